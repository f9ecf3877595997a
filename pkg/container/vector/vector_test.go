// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/common/mpool"
	"github.com/matrixorigin/colcore/pkg/container/nulls"
	"github.com/matrixorigin/colcore/pkg/container/types"
)

func TestAppendFixed(t *testing.T) {
	mp := mpool.MustNewZero()
	vec := NewVec(types.T_int64.ToType())
	require.NoError(t, AppendFixedList(vec, []int64{3, 1, 4}, []bool{false, true, false}, mp))
	require.Equal(t, 3, vec.Length())
	require.Equal(t, int64(3), GetFixedAt[int64](vec, 0))
	require.Equal(t, int64(4), GetFixedAt[int64](vec, 2))
	require.True(t, vec.IsRowNull(1))
	require.False(t, vec.IsRowNull(2))
	vec.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestAppendBytes(t *testing.T) {
	mp := mpool.MustNewZero()
	vec := NewVec(types.T_varchar.ToType())
	long := strings.Repeat("z", 100)
	require.NoError(t, AppendStringList(vec, []string{"a", long, ""}, nil, mp))
	require.Equal(t, "a", vec.GetStringAt(0))
	require.Equal(t, long, vec.GetStringAt(1))
	require.Equal(t, "", vec.GetStringAt(2))
	vec.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestConst(t *testing.T) {
	mp := mpool.MustNewZero()
	vec, err := NewConstFixed(types.T_int32.ToType(), int32(7), 100, mp)
	require.NoError(t, err)
	require.True(t, vec.IsConst())
	require.Equal(t, 100, vec.Length())
	require.Equal(t, int32(7), GetFixedAt[int32](vec, 55))
	require.Panics(t, func() { _ = AppendFixed(vec, int32(1), false, mp) })
	vec.Free(mp)

	nullVec := NewConstNull(types.T_varchar.ToType(), 3, mp)
	require.True(t, nullVec.IsConstNull())
	require.True(t, nullVec.IsRowNull(2))
}

func TestDist(t *testing.T) {
	mp := mpool.MustNewZero()
	keys := NewVec(types.T_varchar.ToType())
	require.NoError(t, AppendStringList(keys, []string{"red", "green", "blue"}, nil, mp))
	vec, err := NewDist(keys, []int32{2, 0, 0, 1}, nulls.Build(4, 2), mp)
	require.NoError(t, err)
	require.True(t, vec.IsDist())
	require.Equal(t, types.T_varchar, vec.GetType().Oid)
	require.Equal(t, "blue", vec.GetStringAt(0))
	require.Equal(t, "green", vec.GetStringAt(3))
	require.True(t, vec.IsRowNull(2))
	require.Equal(t, []byte("red"), vec.GetRawBytesAt(1))
	vec.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestTupleUnionOne(t *testing.T) {
	mp := mpool.MustNewZero()
	name := NewVec(types.T_varchar.ToType())
	require.NoError(t, AppendStringList(name, []string{"ab", "cd"}, nil, mp))
	age := NewVec(types.T_int32.ToType())
	require.NoError(t, AppendFixedList(age, []int32{10, 20}, nil, mp))
	tup := NewTuple([]*Vector{name, age}, 2)
	nulls.Add(tup.GetNulls(), 1)

	dst, err := NewVecLike(tup, mp)
	require.NoError(t, err)
	require.NoError(t, dst.UnionOne(tup, 1, mp))
	require.NoError(t, dst.UnionOne(tup, 0, mp))
	require.Equal(t, 2, dst.Length())
	require.True(t, dst.IsRowNull(0))
	require.False(t, dst.IsRowNull(1))
	require.Equal(t, "ab", dst.Children()[0].GetStringAt(1))
	require.Equal(t, int32(10), GetFixedAt[int32](dst.Children()[1], 1))

	dst.Free(mp)
	tup.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestUnionTypeMismatch(t *testing.T) {
	mp := mpool.MustNewZero()
	a := NewVec(types.T_int64.ToType())
	b := NewVec(types.T_int32.ToType())
	require.NoError(t, AppendFixed(b, int32(1), false, mp))
	require.Error(t, a.UnionOne(b, 0, mp))
	b.Free(mp)
}

func TestDupAndBorrow(t *testing.T) {
	mp := mpool.MustNewZero()
	vec := NewVec(types.T_varchar.ToType())
	require.NoError(t, AppendStringList(vec, []string{"x", strings.Repeat("y", 64)}, []bool{false, false}, mp))

	dup, err := vec.Dup(mp)
	require.NoError(t, err)
	require.Equal(t, vec.GetStringAt(1), dup.GetStringAt(1))

	view := vec.Borrow()
	view.Free(mp)
	// the view released nothing
	require.Equal(t, "x", vec.GetStringAt(0))

	dup.Free(mp)
	vec.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestVectorCodecRoundTrip(t *testing.T) {
	mp := mpool.MustNewZero()
	vec := NewVec(types.T_varchar.ToType())
	require.NoError(t, AppendStringList(vec, []string{"one", "", strings.Repeat("q", 40)}, []bool{false, true, false}, mp))

	bs, err := vec.MarshalBinary()
	require.NoError(t, err)

	back := &Vector{}
	require.NoError(t, back.UnmarshalBinaryWithCopy(bs, mp))
	require.Equal(t, vec.Length(), back.Length())
	require.Equal(t, vec.GetStringAt(0), back.GetStringAt(0))
	require.True(t, back.IsRowNull(1))
	require.Equal(t, vec.GetStringAt(2), back.GetStringAt(2))

	back.Free(mp)
	vec.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestVectorDecodeBadClass(t *testing.T) {
	mp := mpool.MustNewZero()
	vec := NewVec(types.T_int64.ToType())
	require.NoError(t, AppendFixedList(vec, []int64{1, 2}, nil, mp))

	bs, err := vec.MarshalBinary()
	require.NoError(t, err)
	bs[types.TSize] = 0x7f

	back := &Vector{}
	err = back.UnmarshalBinaryWithCopy(bs, mp)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	vec.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestDistCodecRoundTrip(t *testing.T) {
	mp := mpool.MustNewZero()
	keys := NewVec(types.T_varchar.ToType())
	require.NoError(t, AppendStringList(keys, []string{"a", "b"}, nil, mp))
	vec, err := NewDist(keys, []int32{1, 0, 1}, nil, mp)
	require.NoError(t, err)

	bs, err := vec.MarshalBinary()
	require.NoError(t, err)

	back := &Vector{}
	require.NoError(t, back.UnmarshalBinaryWithCopy(bs, mp))
	require.True(t, back.IsDist())
	require.Equal(t, "b", back.GetStringAt(0))
	require.Equal(t, "a", back.GetStringAt(1))

	back.Free(mp)
	vec.Free(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}
