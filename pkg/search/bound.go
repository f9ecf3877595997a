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

package search

import (
	"sort"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/compare"
	"github.com/matrixorigin/colcore/pkg/container/batch"
	"github.com/matrixorigin/colcore/pkg/container/types"
	"github.com/matrixorigin/colcore/pkg/container/vector"
	"github.com/matrixorigin/colcore/pkg/dictionary"
	"github.com/matrixorigin/colcore/pkg/flatten"
	"github.com/matrixorigin/colcore/pkg/vm/process"
)

// LowerBound returns, per needle row, the count of hay rows ordered
// strictly before it.  Hay must already be sorted by descs/nullsLast;
// sortedness is the caller's contract and is not verified here.
func LowerBound(proc *process.Process, hay, needles *batch.Batch, descs, nullsLast []bool) (*vector.Vector, error) {
	return bound(proc, hay, needles, descs, nullsLast, true)
}

// UpperBound counts hay rows ordered before or equal.
func UpperBound(proc *process.Process, hay, needles *batch.Batch, descs, nullsLast []bool) (*vector.Vector, error) {
	return bound(proc, hay, needles, descs, nullsLast, false)
}

func bound(proc *process.Process, hay, needles *batch.Batch, descs, nullsLast []bool, lower bool) (*vector.Vector, error) {
	if hay.VectorCount() != needles.VectorCount() {
		return nil, moerr.NewInvalidInput(proc.Ctx, "column count mismatch: %d vs %d",
			hay.VectorCount(), needles.VectorCount())
	}

	hayCols, needleCols, free, err := matchDictColumns(proc, hay, needles)
	if err != nil {
		return nil, err
	}
	defer free()

	hayFlat, err := flatten.Flatten(hayCols, descs, nullsLast, flatten.Force, proc)
	if err != nil {
		return nil, err
	}
	defer hayFlat.Free(proc)
	needleFlat, err := flatten.Flatten(needleCols, descs, nullsLast, flatten.Force, proc)
	if err != nil {
		return nil, err
	}
	defer needleFlat.Free(proc)

	cmp, err := compare.NewRowComparer(hayFlat.Bat, needleFlat.Bat, hayFlat.Descs, hayFlat.NullsLast)
	if err != nil {
		return nil, err
	}

	hayRows := hay.RowCount()
	needleRows := needles.RowCount()
	ranks := make([]int64, needleRows)
	err = proc.ParallelFor(needleRows, func(start, end int) error {
		for j := start; j < end; j++ {
			ranks[j] = int64(sort.Search(hayRows, func(i int) bool {
				if lower {
					return cmp.Compare(int64(i), int64(j)) >= 0
				}
				return cmp.Compare(int64(i), int64(j)) > 0
			}))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := vector.NewVec(types.T_int64.ToType())
	if err := vector.AppendFixedList(out, ranks, nil, proc.Mp()); err != nil {
		out.Free(proc.Mp())
		return nil, err
	}
	return out, nil
}

// matchDictColumns rebuilds column pairs where both sides are
// dictionary encoded onto a shared key set, so code order agrees with
// value order resolution on both sides.  Other columns pass through
// borrowed.  The returned cleanup frees only the rebuilt vectors.
func matchDictColumns(proc *process.Process, hay, needles *batch.Batch) (*batch.Batch, *batch.Batch, func(), error) {
	outHay := batch.New(nil)
	outNeedles := batch.New(nil)
	var owned []*vector.Vector
	free := func() {
		for _, vec := range owned {
			vec.Free(proc.Mp())
		}
	}

	for i := range hay.Vecs {
		hv, nv := hay.Vecs[i], needles.Vecs[i]
		if hv.IsDist() && nv.IsDist() {
			matched, err := dictionary.MatchDictionaries(proc, []*vector.Vector{hv, nv})
			if err != nil {
				free()
				return nil, nil, nil, err
			}
			owned = append(owned, matched...)
			hv, nv = matched[0], matched[1]
		}
		outHay.Vecs = append(outHay.Vecs, hv)
		outNeedles.Vecs = append(outNeedles.Vecs, nv)
	}
	outHay.SetRowCount(hay.RowCount())
	outNeedles.SetRowCount(needles.RowCount())
	return outHay, outNeedles, free, nil
}
