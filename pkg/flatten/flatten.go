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

// Package flatten rewrites batches with tuple columns into flat
// batches the row comparators can consume.  A tuple column becomes a
// synthetic bool validity column followed by its flattened children,
// in declaration order.  A row of the validity column is true exactly
// when the tuple row and all its ancestors are valid, so ordering the
// validity column before the children reproduces the ordering of the
// nested rows.
package flatten

import (
	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/container/batch"
	"github.com/matrixorigin/colcore/pkg/container/nulls"
	"github.com/matrixorigin/colcore/pkg/container/types"
	"github.com/matrixorigin/colcore/pkg/container/vector"
	"github.com/matrixorigin/colcore/pkg/vm/process"
)

// Policy controls when a tuple column gets a synthetic validity
// column.
type Policy uint8

const (
	// MatchIncoming emits a validity column only for tuples that
	// carry nulls.  Two batches flattened with MatchIncoming may
	// disagree on shape, use Force when shapes must align.
	MatchIncoming Policy = iota
	Force
)

// FlatBatch is the flattened view.  Leaf columns are borrowed from
// the source, validity columns and merged null masks are owned and
// released by Free.  The source batch must outlive the view.
type FlatBatch struct {
	Bat       *batch.Batch
	Descs     []bool
	NullsLast []bool

	owned []*vector.Vector
}

func (fb *FlatBatch) Free(proc *process.Process) {
	for _, vec := range fb.owned {
		vec.Free(proc.Mp())
	}
	fb.owned = nil
	fb.Bat = nil
}

// Flatten expands every tuple column of bat.  descs and nullsLast,
// when non-empty, give the per-column order of the incoming batch;
// flattened children inherit their parent's flags.
func Flatten(bat *batch.Batch, descs, nullsLast []bool, policy Policy, proc *process.Process) (*FlatBatch, error) {
	n := bat.VectorCount()
	if len(descs) != 0 && len(descs) != n {
		return nil, moerr.NewInvalidInput(proc.Ctx, "desc count %d does not match column count %d", len(descs), n)
	}
	if len(nullsLast) != 0 && len(nullsLast) != n {
		return nil, moerr.NewInvalidInput(proc.Ctx, "null order count %d does not match column count %d", len(nullsLast), n)
	}
	for _, vec := range bat.Vecs {
		if vec.GetType().IsArray() {
			return nil, moerr.NewNotSupported(proc.Ctx, "flatten on %s", vec.GetType().String())
		}
	}

	fb := &FlatBatch{Bat: batch.New(nil)}
	for i, vec := range bat.Vecs {
		desc := len(descs) > 0 && descs[i]
		nLast := len(nullsLast) > 0 && nullsLast[i]
		if err := fb.pushColumn(vec, nil, desc, nLast, policy, proc); err != nil {
			fb.Free(proc)
			return nil, err
		}
	}
	fb.Bat.SetRowCount(bat.RowCount())
	return fb, nil
}

// pushColumn appends vec, or its expansion, to the flat batch.
// ancestorNulls holds the union of null bits of all enclosing tuples.
func (fb *FlatBatch) pushColumn(vec *vector.Vector, ancestorNulls *nulls.Nulls, desc, nLast bool, policy Policy, proc *process.Process) error {
	if !vec.IsTuple() {
		leaf := vec.Borrow()
		if nulls.Any(ancestorNulls) {
			merged := ancestorNulls.Clone()
			merged.Or(vec.GetNulls())
			leaf.SetNulls(merged)
		}
		fb.append(leaf, desc, nLast)
		return nil
	}

	if vec.GetType().IsArray() {
		return moerr.NewNotSupported(proc.Ctx, "flatten on %s", vec.GetType().String())
	}

	// effective nullity of the tuple rows themselves
	selfNulls := &nulls.Nulls{}
	selfNulls.Or(vec.GetNulls())
	selfNulls.Or(ancestorNulls)

	if policy == Force || nulls.Any(selfNulls) {
		validity, err := buildValidity(vec.Length(), selfNulls, proc)
		if err != nil {
			return err
		}
		fb.owned = append(fb.owned, validity)
		// The validity column carries the null precedence, not the
		// value order: false marks a null row, which sorts last
		// exactly when nulls sort last.
		fb.append(validity, nLast, nLast)
	}

	for _, child := range vec.Children() {
		if err := fb.pushColumn(child, selfNulls, desc, nLast, policy, proc); err != nil {
			return err
		}
	}
	return nil
}

func (fb *FlatBatch) append(vec *vector.Vector, desc, nLast bool) {
	fb.Bat.Vecs = append(fb.Bat.Vecs, vec)
	fb.Descs = append(fb.Descs, desc)
	fb.NullsLast = append(fb.NullsLast, nLast)
}

// buildValidity materializes the synthetic bool column: true at valid
// rows, false at rows nulled by the tuple or an ancestor.  The column
// itself has no nulls.
func buildValidity(length int, nsp *nulls.Nulls, proc *process.Process) (*vector.Vector, error) {
	vec := vector.NewVec(types.T_bool.ToType())
	vals := make([]bool, length)
	for i := range vals {
		vals[i] = !nsp.Contains(uint64(i))
	}
	if err := vector.AppendFixedList(vec, vals, nil, proc.Mp()); err != nil {
		vec.Free(proc.Mp())
		return nil, err
	}
	return vec, nil
}
