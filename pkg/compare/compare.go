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

// Package compare builds row comparators over columns that have
// already been flattened and dictionary matched.  Comparators carry
// no mutable state, one comparator may serve many goroutines.
package compare

import (
	"bytes"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/container/types"
	"github.com/matrixorigin/colcore/pkg/container/vector"
)

// Func compares row i of v0 against row j of v1.  The result already
// reflects the requested direction and null placement.
type Func func(v0, v1 *vector.Vector, i, j int64) int

// resolve follows constant and dictionary indirection down to the
// vector and row holding the actual value.
func resolve(v *vector.Vector, i int) (*vector.Vector, int) {
	if v.IsConst() {
		i = 0
	}
	if v.IsDist() {
		return v.Keys(), int(v.Codes()[i])
	}
	return v, i
}

func orderedCompare[T types.OrderedT](v0, v1 *vector.Vector, i, j int) int {
	x := vector.GetFixedAt[T](v0, i)
	y := vector.GetFixedAt[T](v1, j)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func boolCompare(v0, v1 *vector.Vector, i, j int) int {
	x := vector.GetFixedAt[bool](v0, i)
	y := vector.GetFixedAt[bool](v1, j)
	switch {
	case !x && y:
		return -1
	case x && !y:
		return 1
	}
	return 0
}

type valueCompare func(v0, v1 *vector.Vector, i, j int) int

func newValueCompare(oid types.T) (valueCompare, error) {
	switch oid {
	case types.T_bool:
		return boolCompare, nil
	case types.T_int8:
		return orderedCompare[int8], nil
	case types.T_int16:
		return orderedCompare[int16], nil
	case types.T_int32:
		return orderedCompare[int32], nil
	case types.T_int64:
		return orderedCompare[int64], nil
	case types.T_uint8:
		return orderedCompare[uint8], nil
	case types.T_uint16:
		return orderedCompare[uint16], nil
	case types.T_uint32:
		return orderedCompare[uint32], nil
	case types.T_uint64:
		return orderedCompare[uint64], nil
	case types.T_float32:
		return orderedCompare[float32], nil
	case types.T_float64:
		return orderedCompare[float64], nil
	case types.T_char, types.T_varchar:
		return func(v0, v1 *vector.Vector, i, j int) int {
			return bytes.Compare(v0.GetBytesAt(i), v1.GetBytesAt(j))
		}, nil
	case types.T_json, types.T_tuple, types.T_array_float32, types.T_array_float64:
		// no total order; tuples must be flattened first
		return nil, moerr.NewNotSupportedNoCtx("compare on %s", oid.String())
	}
	return nil, moerr.NewNotSupportedNoCtx("compare on %s", oid.String())
}

// New returns an ordering comparator for a single column of type typ.
// Types without a total order are rejected.  Null placement follows
// nullsLast and does not flip with desc.
func New(typ types.Type, desc, nullsLast bool) (Func, error) {
	cmp, err := newValueCompare(typ.Oid)
	if err != nil {
		return nil, err
	}

	return func(v0, v1 *vector.Vector, i, j int64) int {
		n0 := v0.IsRowNull(int(i))
		n1 := v1.IsRowNull(int(j))
		if n0 || n1 {
			switch {
			case n0 && n1:
				return 0
			case n0:
				if nullsLast {
					return 1
				}
				return -1
			default:
				if nullsLast {
					return -1
				}
				return 1
			}
		}
		w0, r0 := resolve(v0, int(i))
		w1, r1 := resolve(v1, int(j))
		ret := cmp(w0, w1, r0, r1)
		if desc {
			ret = -ret
		}
		return ret
	}, nil
}
