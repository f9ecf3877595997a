// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dictionary reconciles the key sets of dictionary vectors.
// All operations return freshly built vectors and never mutate their
// inputs.  Key union order is first seen wins, so reconciling the
// same vectors twice yields identical code assignments.
package dictionary

import (
	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/container/hashtable"
	"github.com/matrixorigin/colcore/pkg/container/nulls"
	"github.com/matrixorigin/colcore/pkg/container/vector"
	"github.com/matrixorigin/colcore/pkg/vm/process"
)

func checkDict(proc *process.Process, vec *vector.Vector) error {
	if !vec.IsDist() {
		return moerr.NewInvalidInput(proc.Ctx, "not a dictionary vector: %s", vec.GetType().String())
	}
	return nil
}

func checkKeyOperand(proc *process.Process, dict, keys *vector.Vector) error {
	if keys.GetType().Oid != dict.Keys().GetType().Oid {
		return moerr.NewTypeMismatch(proc.Ctx, "key type %s vs %s",
			keys.GetType().String(), dict.Keys().GetType().String())
	}
	if keys.HasNull() {
		return moerr.NewInvalidInput(proc.Ctx, "key operand must not contain nulls")
	}
	return nil
}

// indexKeys builds an id table over a key vector: position p holds
// id p+1.
func indexKeys(proc *process.Process, keys *vector.Vector) (*hashtable.StrHashMap, error) {
	idx := &hashtable.StrHashMap{}
	if err := idx.Init(proc.Mp(), uint64(keys.Length())); err != nil {
		return nil, err
	}
	for p := 0; p < keys.Length(); p++ {
		if _, err := idx.Insert(keys.GetRawBytesAt(p)); err != nil {
			idx.Free()
			return nil, err
		}
	}
	return idx, nil
}

// AddKeys returns vec with keys extended by the rows of add that are
// not in the key set yet, in add's order.  Codes do not move, rows
// are untouched.
func AddKeys(proc *process.Process, vec, add *vector.Vector) (*vector.Vector, error) {
	if err := checkDict(proc, vec); err != nil {
		return nil, err
	}
	if err := checkKeyOperand(proc, vec, add); err != nil {
		return nil, err
	}

	idx, err := indexKeys(proc, vec.Keys())
	if err != nil {
		return nil, err
	}
	defer idx.Free()

	keys, err := vec.Keys().Dup(proc.Mp())
	if err != nil {
		return nil, err
	}
	for r := 0; r < add.Length(); r++ {
		before := idx.Cardinality()
		if _, err := idx.Insert(add.GetRawBytesAt(r)); err != nil {
			keys.Free(proc.Mp())
			return nil, err
		}
		if idx.Cardinality() > before {
			if err := keys.UnionOne(add, int64(r), proc.Mp()); err != nil {
				keys.Free(proc.Mp())
				return nil, err
			}
		}
	}

	out, err := vector.NewDist(keys, vec.Codes(), vec.GetNulls().Clone(), proc.Mp())
	if err != nil {
		keys.Free(proc.Mp())
		return nil, err
	}
	return out, nil
}

// compact rebuilds a dictionary keeping only the key positions where
// keep is true.  Valid rows whose key is dropped become null.
func compact(proc *process.Process, vec *vector.Vector, keep []bool) (*vector.Vector, error) {
	oldKeys := vec.Keys()
	remap := make([]int32, len(keep))
	keys, err := vector.NewVecLike(oldKeys, proc.Mp())
	if err != nil {
		return nil, err
	}
	next := int32(0)
	for p := range keep {
		if !keep[p] {
			remap[p] = -1
			continue
		}
		if err := keys.UnionOne(oldKeys, int64(p), proc.Mp()); err != nil {
			keys.Free(proc.Mp())
			return nil, err
		}
		remap[p] = next
		next++
	}

	codes := vec.Codes()
	newCodes := make([]int32, len(codes))
	nsp := vec.GetNulls().Clone()
	if nsp == nil {
		nsp = &nulls.Nulls{}
	}
	for r := range codes {
		if vec.IsRowNull(r) {
			continue
		}
		c := remap[codes[r]]
		if c < 0 {
			nsp.Set(uint64(r))
			continue
		}
		newCodes[r] = c
	}

	out, err := vector.NewDist(keys, newCodes, nsp, proc.Mp())
	if err != nil {
		keys.Free(proc.Mp())
		return nil, err
	}
	return out, nil
}

// RemoveKeys drops the given keys from the key set.  Rows that
// referenced a dropped key become null.
func RemoveKeys(proc *process.Process, vec, remove *vector.Vector) (*vector.Vector, error) {
	if err := checkDict(proc, vec); err != nil {
		return nil, err
	}
	if err := checkKeyOperand(proc, vec, remove); err != nil {
		return nil, err
	}

	idx, err := indexKeys(proc, vec.Keys())
	if err != nil {
		return nil, err
	}
	defer idx.Free()

	keep := make([]bool, vec.Keys().Length())
	for i := range keep {
		keep[i] = true
	}
	for r := 0; r < remove.Length(); r++ {
		if id := idx.Find(remove.GetRawBytesAt(r)); id != 0 {
			keep[id-1] = false
		}
	}
	return compact(proc, vec, keep)
}

// RemoveUnusedKeys drops keys no valid row references.  Row values
// are unchanged, only codes move.
func RemoveUnusedKeys(proc *process.Process, vec *vector.Vector) (*vector.Vector, error) {
	if err := checkDict(proc, vec); err != nil {
		return nil, err
	}

	keep := make([]bool, vec.Keys().Length())
	codes := vec.Codes()
	for r := range codes {
		if !vec.IsRowNull(r) {
			keep[codes[r]] = true
		}
	}
	return compact(proc, vec, keep)
}

// SetKeys remaps vec onto the given key set, deduplicated in first
// seen order.  Rows whose value is absent from the new set become
// null.
func SetKeys(proc *process.Process, vec, newKeys *vector.Vector) (*vector.Vector, error) {
	if err := checkDict(proc, vec); err != nil {
		return nil, err
	}
	if err := checkKeyOperand(proc, vec, newKeys); err != nil {
		return nil, err
	}

	idx := &hashtable.StrHashMap{}
	if err := idx.Init(proc.Mp(), uint64(newKeys.Length())); err != nil {
		return nil, err
	}
	defer idx.Free()

	keys, err := vector.NewVecLike(newKeys, proc.Mp())
	if err != nil {
		return nil, err
	}
	for r := 0; r < newKeys.Length(); r++ {
		before := idx.Cardinality()
		if _, err := idx.Insert(newKeys.GetRawBytesAt(r)); err != nil {
			keys.Free(proc.Mp())
			return nil, err
		}
		if idx.Cardinality() > before {
			if err := keys.UnionOne(newKeys, int64(r), proc.Mp()); err != nil {
				keys.Free(proc.Mp())
				return nil, err
			}
		}
	}

	oldKeys := vec.Keys()
	codes := vec.Codes()
	newCodes := make([]int32, len(codes))
	nsp := vec.GetNulls().Clone()
	if nsp == nil {
		nsp = &nulls.Nulls{}
	}
	for r := range codes {
		if vec.IsRowNull(r) {
			continue
		}
		id := idx.Find(oldKeys.GetRawBytesAt(int(codes[r])))
		if id == 0 {
			nsp.Set(uint64(r))
			continue
		}
		newCodes[r] = int32(id - 1)
	}

	out, err := vector.NewDist(keys, newCodes, nsp, proc.Mp())
	if err != nil {
		keys.Free(proc.Mp())
		return nil, err
	}
	return out, nil
}

// MatchDictionaries rewrites all vectors onto one shared key set, the
// first seen union across inputs.  After matching, equal codes mean
// equal values across any pair of outputs.
func MatchDictionaries(proc *process.Process, vecs []*vector.Vector) ([]*vector.Vector, error) {
	if len(vecs) == 0 {
		return nil, nil
	}
	keyOid := vecs[0].Keys().GetType().Oid
	for _, vec := range vecs {
		if err := checkDict(proc, vec); err != nil {
			return nil, err
		}
		if vec.Keys().GetType().Oid != keyOid {
			return nil, moerr.NewTypeMismatch(proc.Ctx, "key type %s vs %s",
				vec.Keys().GetType().String(), keyOid.String())
		}
	}

	idx := &hashtable.StrHashMap{}
	if err := idx.Init(proc.Mp(), uint64(vecs[0].Keys().Length())); err != nil {
		return nil, err
	}
	defer idx.Free()

	union, err := vector.NewVecLike(vecs[0].Keys(), proc.Mp())
	if err != nil {
		return nil, err
	}
	defer union.Free(proc.Mp())

	for _, vec := range vecs {
		keys := vec.Keys()
		for p := 0; p < keys.Length(); p++ {
			before := idx.Cardinality()
			if _, err := idx.Insert(keys.GetRawBytesAt(p)); err != nil {
				return nil, err
			}
			if idx.Cardinality() > before {
				if err := union.UnionOne(keys, int64(p), proc.Mp()); err != nil {
					return nil, err
				}
			}
		}
	}

	outs := make([]*vector.Vector, 0, len(vecs))
	fail := func(err error) ([]*vector.Vector, error) {
		for _, out := range outs {
			out.Free(proc.Mp())
		}
		return nil, err
	}
	for _, vec := range vecs {
		oldKeys := vec.Keys()
		codes := vec.Codes()
		newCodes := make([]int32, len(codes))
		for r := range codes {
			if vec.IsRowNull(r) {
				continue
			}
			id := idx.Find(oldKeys.GetRawBytesAt(int(codes[r])))
			newCodes[r] = int32(id - 1)
		}
		keys, err := union.Dup(proc.Mp())
		if err != nil {
			return fail(err)
		}
		out, err := vector.NewDist(keys, newCodes, vec.GetNulls().Clone(), proc.Mp())
		if err != nil {
			keys.Free(proc.Mp())
			return fail(err)
		}
		outs = append(outs, out)
	}
	return outs, nil
}
