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

// Package search answers membership and rank queries over columns.
// Every call builds what it needs, uses it, and frees it; nothing is
// cached between calls.  Result length always follows the query side.
package search

import (
	"bytes"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/compare"
	"github.com/matrixorigin/colcore/pkg/container/batch"
	"github.com/matrixorigin/colcore/pkg/container/hashtable"
	"github.com/matrixorigin/colcore/pkg/container/types"
	"github.com/matrixorigin/colcore/pkg/container/vector"
	"github.com/matrixorigin/colcore/pkg/flatten"
	"github.com/matrixorigin/colcore/pkg/vm/process"
)

// Contains reports whether any valid row of col equals the scalar.
// The scalar is a length independent constant vector of col's type.
// A null scalar asks whether col has any null at all.
func Contains(proc *process.Process, col, scalar *vector.Vector) (bool, error) {
	if !scalar.IsConst() {
		return false, moerr.NewInvalidInput(proc.Ctx, "probe value must be a constant vector")
	}
	if col.GetType().Oid != scalar.GetType().Oid {
		return false, moerr.NewTypeMismatch(proc.Ctx, "%s vs %s",
			col.GetType().String(), scalar.GetType().String())
	}
	if col.GetType().IsArray() {
		return false, moerr.NewNotSupported(proc.Ctx, "contains on %s", col.GetType().String())
	}
	if col.Length() == 0 {
		return false, nil
	}
	if scalar.IsConstNull() {
		return col.HasNull(), nil
	}

	if col.IsTuple() {
		return containsTuple(proc, col, scalar)
	}

	if col.IsDist() {
		// one key lookup replaces a scan when the value is absent
		want := scalar.GetRawBytesAt(0)
		keys := col.Keys()
		hit := int32(-1)
		for p := 0; p < keys.Length(); p++ {
			if bytes.Equal(keys.GetRawBytesAt(p), want) {
				hit = int32(p)
				break
			}
		}
		if hit < 0 {
			return false, nil
		}
		codes := col.Codes()
		for r := range codes {
			if !col.IsRowNull(r) && codes[r] == hit {
				return true, nil
			}
		}
		return false, nil
	}

	want := scalar.GetRawBytesAt(0)
	for r := 0; r < col.Length(); r++ {
		if !col.IsRowNull(r) && bytes.Equal(col.GetRawBytesAt(r), want) {
			return true, nil
		}
	}
	return false, nil
}

// containsTuple flattens the column and the scalar side by side and
// walks the rows with the equality comparator, nulls matching nulls.
func containsTuple(proc *process.Process, col, scalar *vector.Vector) (bool, error) {
	colBat := batch.New(nil)
	colBat.Vecs = []*vector.Vector{col}
	colBat.SetRowCount(col.Length())
	scalarBat := batch.New(nil)
	scalarBat.Vecs = []*vector.Vector{scalar}
	scalarBat.SetRowCount(1)

	colFlat, err := flatten.Flatten(colBat, nil, nil, flatten.Force, proc)
	if err != nil {
		return false, err
	}
	defer colFlat.Free(proc)
	scalarFlat, err := flatten.Flatten(scalarBat, nil, nil, flatten.Force, proc)
	if err != nil {
		return false, err
	}
	defer scalarFlat.Free(proc)

	eq, err := compare.NewRowEqualer(colFlat.Bat, scalarFlat.Bat, true)
	if err != nil {
		return false, err
	}
	for r := 0; r < col.Length(); r++ {
		if col.IsRowNull(r) {
			continue
		}
		if eq.Equal(int64(r), 0) {
			return true, nil
		}
	}
	return false, nil
}

// MultiContains marks, for every row of hay, whether its value
// appears among the valid rows of needles.  Hay's null mask carries
// over to the result and null rows are not probed.
func MultiContains(proc *process.Process, hay, needles *vector.Vector) (*vector.Vector, error) {
	if hay.GetType().Oid != needles.GetType().Oid {
		return nil, moerr.NewTypeMismatch(proc.Ctx, "%s vs %s",
			hay.GetType().String(), needles.GetType().String())
	}
	switch hay.GetType().Oid {
	case types.T_tuple, types.T_array_float32, types.T_array_float64:
		return nil, moerr.NewNotSupported(proc.Ctx, "multi contains on %s", hay.GetType().String())
	}

	n := hay.Length()
	hits := make([]bool, n)

	validNeedles := 0
	for r := 0; r < needles.Length(); r++ {
		if !needles.IsRowNull(r) {
			validNeedles++
		}
	}
	if validNeedles > 0 {
		est := hashtable.NewCardinalityEstimator()
		for r := 0; r < needles.Length(); r++ {
			if !needles.IsRowNull(r) {
				est.Add(needles.GetRawBytesAt(r))
			}
		}

		set := &hashtable.StrHashMultiset{}
		if err := set.Init(proc.Mp(), est.Estimate()); err != nil {
			return nil, err
		}
		defer set.Free()

		keys := make([][]byte, 0, validNeedles)
		for r := 0; r < needles.Length(); r++ {
			if !needles.IsRowNull(r) {
				keys = append(keys, needles.GetRawBytesAt(r))
			}
		}
		states := make([][3]uint64, len(keys))
		values := make([]uint64, len(keys))
		if err := set.InsertStringBatch(states, keys, values); err != nil {
			return nil, err
		}

		if hay.IsDist() {
			// probe each key once, rows inherit their key's answer
			keyCnt := hay.Keys().Length()
			keyHit := make([]bool, keyCnt)
			err := proc.ParallelFor(keyCnt, func(start, end int) error {
				for p := start; p < end; p++ {
					keyHit[p] = set.FindOne(hay.Keys().GetRawBytesAt(p)) > 0
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			codes := hay.Codes()
			for r := 0; r < n; r++ {
				if !hay.IsRowNull(r) {
					hits[r] = keyHit[codes[r]]
				}
			}
		} else {
			err := proc.ParallelFor(n, func(start, end int) error {
				for r := start; r < end; r++ {
					if !hay.IsRowNull(r) {
						hits[r] = set.FindOne(hay.GetRawBytesAt(r)) > 0
					}
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}

	out := vector.NewVec(types.T_bool.ToType())
	if err := vector.AppendFixedList(out, hits, nil, proc.Mp()); err != nil {
		out.Free(proc.Mp())
		return nil, err
	}
	out.SetNulls(hay.GetNulls().Clone())
	return out, nil
}
