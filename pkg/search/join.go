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
	"encoding/binary"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/container/batch"
	"github.com/matrixorigin/colcore/pkg/container/hashtable"
	"github.com/matrixorigin/colcore/pkg/flatten"
	"github.com/matrixorigin/colcore/pkg/vm/process"
)

// LeftSemiJoin returns the ascending indices of left rows whose key
// columns match at least one right row.  nullEq decides whether null
// matches null; with it false a row carrying any null in its key
// columns can never match.
func LeftSemiJoin(proc *process.Process, left, right *batch.Batch, leftCols, rightCols []int32, nullEq bool) ([]int64, error) {
	return semiAnti(proc, left, right, leftCols, rightCols, nullEq, true)
}

// LeftAntiJoin returns the complement: left rows matching no right
// row.  With nullEq false, null carrying left rows always qualify.
func LeftAntiJoin(proc *process.Process, left, right *batch.Batch, leftCols, rightCols []int32, nullEq bool) ([]int64, error) {
	return semiAnti(proc, left, right, leftCols, rightCols, nullEq, false)
}

func selectColumns(proc *process.Process, bat *batch.Batch, cols []int32) (*batch.Batch, error) {
	out := batch.New(nil)
	for _, c := range cols {
		if c < 0 || int(c) >= bat.VectorCount() {
			return nil, moerr.NewInvalidInput(proc.Ctx, "key column %d out of range [0, %d)", c, bat.VectorCount())
		}
		out.Vecs = append(out.Vecs, bat.Vecs[c])
	}
	out.SetRowCount(bat.RowCount())
	return out, nil
}

func semiAnti(proc *process.Process, left, right *batch.Batch, leftCols, rightCols []int32, nullEq, semi bool) ([]int64, error) {
	if len(leftCols) != len(rightCols) {
		return nil, moerr.NewInvalidInput(proc.Ctx, "key column count mismatch: %d vs %d",
			len(leftCols), len(rightCols))
	}
	leftKeys, err := selectColumns(proc, left, leftCols)
	if err != nil {
		return nil, err
	}
	rightKeys, err := selectColumns(proc, right, rightCols)
	if err != nil {
		return nil, err
	}
	for i := range leftKeys.Vecs {
		lt, rt := leftKeys.Vecs[i].GetType(), rightKeys.Vecs[i].GetType()
		if lt.Oid != rt.Oid {
			return nil, moerr.NewTypeMismatch(proc.Ctx, "key column %d: %s vs %s", i, lt.String(), rt.String())
		}
		if lt.IsArray() {
			return nil, moerr.NewNotSupported(proc.Ctx, "join on %s", lt.String())
		}
	}

	// Force keeps both sides shape aligned even when only one side
	// carries nulls in a struct column.
	leftFlat, err := flatten.Flatten(leftKeys, nil, nil, flatten.Force, proc)
	if err != nil {
		return nil, err
	}
	defer leftFlat.Free(proc)
	rightFlat, err := flatten.Flatten(rightKeys, nil, nil, flatten.Force, proc)
	if err != nil {
		return nil, err
	}
	defer rightFlat.Free(proc)

	leftRows := left.RowCount()
	rightRows := right.RowCount()

	// build over the right side
	set := &hashtable.StrHashMultiset{}
	if err := set.Init(proc.Mp(), uint64(rightRows)); err != nil {
		return nil, err
	}
	defer set.Free()

	var keyBuf []byte
	built := 0
	for r := 0; r < rightRows; r++ {
		key, ok := serializeRow(rightFlat.Bat, r, nullEq, keyBuf[:0])
		keyBuf = key
		if !ok {
			continue
		}
		if _, err := set.InsertOne(key); err != nil {
			return nil, err
		}
		built++
	}

	hits := make([]bool, leftRows)
	if built > 0 {
		err = proc.ParallelFor(leftRows, func(start, end int) error {
			var buf []byte
			for r := start; r < end; r++ {
				key, ok := serializeRow(leftFlat.Bat, r, nullEq, buf[:0])
				buf = key
				if ok {
					hits[r] = set.FindOne(key) > 0
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	out := make([]int64, 0, leftRows)
	for r := 0; r < leftRows; r++ {
		if hits[r] == semi {
			out = append(out, int64(r))
		}
	}
	return out, nil
}

// serializeRow appends an unambiguous byte image of row r of the flat
// batch to buf: per column a null marker, then length and value bytes
// for valid cells.  Reports ok=false when the row cannot participate
// in matching, i.e. it has a null cell and nulls compare unequal.
func serializeRow(bat *batch.Batch, r int, nullEq bool, buf []byte) ([]byte, bool) {
	for _, vec := range bat.Vecs {
		if vec.IsRowNull(r) {
			if !nullEq {
				return buf, false
			}
			buf = append(buf, 0)
			continue
		}
		buf = append(buf, 1)
		bs := vec.GetRawBytesAt(r)
		var lenBs [4]byte
		binary.LittleEndian.PutUint32(lenBs[:], uint32(len(bs)))
		buf = append(buf, lenBs[:]...)
		buf = append(buf, bs...)
	}
	return buf, true
}
