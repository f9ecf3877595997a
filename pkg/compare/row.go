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

package compare

import (
	"bytes"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/container/batch"
	"github.com/matrixorigin/colcore/pkg/container/types"
	"github.com/matrixorigin/colcore/pkg/container/vector"
)

func checkColumns(left, right *batch.Batch, flagLens ...int) error {
	if left.VectorCount() != right.VectorCount() {
		return moerr.NewInvalidInputNoCtx("column count mismatch: %d vs %d",
			left.VectorCount(), right.VectorCount())
	}
	for i := range left.Vecs {
		lt, rt := left.Vecs[i].GetType(), right.Vecs[i].GetType()
		if lt.Oid != rt.Oid {
			return moerr.NewTypeMismatchNoCtx("column %d: %s vs %s", i, lt.String(), rt.String())
		}
	}
	for _, n := range flagLens {
		if n != 0 && n != left.VectorCount() {
			return moerr.NewInvalidInputNoCtx(
				"flag count %d does not match column count %d", n, left.VectorCount())
		}
	}
	return nil
}

// RowComparer orders rows of two column aligned batches
// lexicographically.  Both sides must be flat: no tuple columns,
// identical types per position.
type RowComparer struct {
	left  *batch.Batch
	right *batch.Batch
	cmps  []Func
}

// NewRowComparer validates the column pairing eagerly.  Empty descs
// or nullsLast means all ascending, nulls first.
func NewRowComparer(left, right *batch.Batch, descs, nullsLast []bool) (*RowComparer, error) {
	if err := checkColumns(left, right, len(descs), len(nullsLast)); err != nil {
		return nil, err
	}

	cmps := make([]Func, left.VectorCount())
	for i, vec := range left.Vecs {
		desc := len(descs) > 0 && descs[i]
		nLast := len(nullsLast) > 0 && nullsLast[i]
		cmp, err := New(*vec.GetType(), desc, nLast)
		if err != nil {
			return nil, err
		}
		cmps[i] = cmp
	}
	return &RowComparer{left: left, right: right, cmps: cmps}, nil
}

// Compare orders left row i against right row j, first differing
// column wins.
func (c *RowComparer) Compare(i, j int64) int {
	for k, cmp := range c.cmps {
		if ret := cmp(c.left.Vecs[k], c.right.Vecs[k], i, j); ret != 0 {
			return ret
		}
	}
	return 0
}

func (c *RowComparer) Less(i, j int64) bool {
	return c.Compare(i, j) < 0
}

type equalFunc func(v0, v1 *vector.Vector, i, j int) bool

func newValueEqual(oid types.T) (equalFunc, error) {
	if oid.IsVarlen() {
		return func(v0, v1 *vector.Vector, i, j int) bool {
			return bytes.Equal(v0.GetBytesAt(i), v1.GetBytesAt(j))
		}, nil
	}
	switch oid {
	case types.T_tuple, types.T_array_float32, types.T_array_float64:
		return nil, moerr.NewNotSupportedNoCtx("equality on %s", oid.String())
	}
	return func(v0, v1 *vector.Vector, i, j int) bool {
		w0, r0 := resolve(v0, i)
		w1, r1 := resolve(v1, j)
		return bytes.Equal(w0.GetRawBytesAt(r0), w1.GetRawBytesAt(r1))
	}, nil
}

// RowEqualer tests rows of two column aligned batches for equality.
// nullEq decides whether a pair of nulls matches.
type RowEqualer struct {
	left   *batch.Batch
	right  *batch.Batch
	eqs    []equalFunc
	nullEq bool
}

func NewRowEqualer(left, right *batch.Batch, nullEq bool) (*RowEqualer, error) {
	if err := checkColumns(left, right); err != nil {
		return nil, err
	}

	eqs := make([]equalFunc, left.VectorCount())
	for i, vec := range left.Vecs {
		eq, err := newValueEqual(vec.GetType().Oid)
		if err != nil {
			return nil, err
		}
		eqs[i] = eq
	}
	return &RowEqualer{left: left, right: right, eqs: eqs, nullEq: nullEq}, nil
}

func (e *RowEqualer) Equal(i, j int64) bool {
	for k, eq := range e.eqs {
		v0, v1 := e.left.Vecs[k], e.right.Vecs[k]
		n0 := v0.IsRowNull(int(i))
		n1 := v1.IsRowNull(int(j))
		if n0 || n1 {
			if n0 && n1 && e.nullEq {
				continue
			}
			return false
		}
		if !eq(v0, v1, int(i), int(j)) {
			return false
		}
	}
	return true
}
