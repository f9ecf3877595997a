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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/common/mpool"
	"github.com/matrixorigin/colcore/pkg/container/batch"
	"github.com/matrixorigin/colcore/pkg/container/types"
	"github.com/matrixorigin/colcore/pkg/container/vector"
)

func int64Vec(t *testing.T, mp *mpool.MPool, vals []int64, nullRows ...uint64) *vector.Vector {
	isNulls := make([]bool, len(vals))
	for _, r := range nullRows {
		isNulls[r] = true
	}
	vec := vector.NewVec(types.T_int64.ToType())
	require.NoError(t, vector.AppendFixedList(vec, vals, isNulls, mp))
	return vec
}

func strVec(t *testing.T, mp *mpool.MPool, vals []string, nullRows ...uint64) *vector.Vector {
	isNulls := make([]bool, len(vals))
	for _, r := range nullRows {
		isNulls[r] = true
	}
	vec := vector.NewVec(types.T_varchar.ToType())
	require.NoError(t, vector.AppendStringList(vec, vals, isNulls, mp))
	return vec
}

func TestNewColumnCompare(t *testing.T) {
	mp := mpool.MustNewZero()
	a := int64Vec(t, mp, []int64{1, 5})
	b := int64Vec(t, mp, []int64{3, 5})

	cmp, err := New(*a.GetType(), false, false)
	require.NoError(t, err)
	require.Equal(t, -1, cmp(a, b, 0, 0))
	require.Equal(t, 0, cmp(a, b, 1, 1))
	require.Equal(t, 1, cmp(b, a, 0, 0))

	desc, err := New(*a.GetType(), true, false)
	require.NoError(t, err)
	require.Equal(t, 1, desc(a, b, 0, 0))
}

func TestNullOrderFlip(t *testing.T) {
	mp := mpool.MustNewZero()
	a := int64Vec(t, mp, []int64{0}, 0)
	b := int64Vec(t, mp, []int64{7})

	nullsFirst, err := New(*a.GetType(), false, false)
	require.NoError(t, err)
	require.Equal(t, -1, nullsFirst(a, b, 0, 0))
	require.Equal(t, 1, nullsFirst(b, a, 0, 0))
	require.Equal(t, 0, nullsFirst(a, a, 0, 0))

	nullsLast, err := New(*a.GetType(), false, true)
	require.NoError(t, err)
	require.Equal(t, 1, nullsLast(a, b, 0, 0))
	require.Equal(t, -1, nullsLast(b, a, 0, 0))

	// direction flips values, never null placement
	descNullsFirst, err := New(*a.GetType(), true, false)
	require.NoError(t, err)
	require.Equal(t, -1, descNullsFirst(a, b, 0, 0))
}

func TestCompareStrings(t *testing.T) {
	mp := mpool.MustNewZero()
	a := strVec(t, mp, []string{"apple", "pear"})
	b := strVec(t, mp, []string{"banana", "pear"})

	cmp, err := New(*a.GetType(), false, false)
	require.NoError(t, err)
	require.Equal(t, -1, cmp(a, b, 0, 0))
	require.Equal(t, 0, cmp(a, b, 1, 1))
}

func TestCompareDictResolves(t *testing.T) {
	mp := mpool.MustNewZero()
	keys := strVec(t, mp, []string{"zz", "aa"})
	dict, err := vector.NewDist(keys, []int32{0, 1}, nil, mp)
	require.NoError(t, err)
	flat := strVec(t, mp, []string{"mm"})

	cmp, err := New(*dict.GetType(), false, false)
	require.NoError(t, err)
	// code 0 is "zz", compares above "mm"
	require.Equal(t, 1, cmp(dict, flat, 0, 0))
	require.Equal(t, -1, cmp(dict, flat, 1, 0))
}

func TestNewRejectsUnordered(t *testing.T) {
	for _, oid := range []types.T{types.T_json, types.T_tuple, types.T_array_float32, types.T_array_float64} {
		_, err := New(oid.ToType(), false, false)
		require.Error(t, err)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrNotSupported))
	}
}

func oneColBatch(vec *vector.Vector) *batch.Batch {
	bat := batch.New(nil)
	bat.Vecs = []*vector.Vector{vec}
	bat.SetRowCount(vec.Length())
	return bat
}

func TestRowComparerLexicographic(t *testing.T) {
	mp := mpool.MustNewZero()
	left := batch.New(nil)
	left.Vecs = []*vector.Vector{
		int64Vec(t, mp, []int64{1, 1, 2}),
		strVec(t, mp, []string{"b", "a", "a"}),
	}
	left.SetRowCount(3)

	cmp, err := NewRowComparer(left, left, nil, nil)
	require.NoError(t, err)
	require.True(t, cmp.Less(1, 0))
	require.True(t, cmp.Less(0, 2))
	require.Equal(t, 0, cmp.Compare(2, 2))
}

func TestRowComparerMismatch(t *testing.T) {
	mp := mpool.MustNewZero()
	left := oneColBatch(int64Vec(t, mp, []int64{1}))
	right := oneColBatch(strVec(t, mp, []string{"1"}))

	_, err := NewRowComparer(left, right, nil, nil)
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrTypeMismatch))

	_, err = NewRowComparer(left, left, []bool{true, false}, nil)
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
}

func TestRowEqualerNullEquality(t *testing.T) {
	mp := mpool.MustNewZero()
	vec := int64Vec(t, mp, []int64{5, 5, 0}, 2)
	bat := oneColBatch(vec)

	eq, err := NewRowEqualer(bat, bat, true)
	require.NoError(t, err)
	require.True(t, eq.Equal(0, 1))
	require.True(t, eq.Equal(2, 2))

	ne, err := NewRowEqualer(bat, bat, false)
	require.NoError(t, err)
	require.True(t, ne.Equal(0, 1))
	require.False(t, ne.Equal(2, 2))
	require.False(t, ne.Equal(0, 2))
}
