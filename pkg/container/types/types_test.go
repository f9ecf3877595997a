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

package types

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarlenaSmall(t *testing.T) {
	var v Varlena
	v.SetSmall([]byte("hello"))
	require.True(t, v.IsSmall())
	require.Equal(t, []byte("hello"), v.GetByteSlice(nil))
	require.Equal(t, "hello", v.GetString(nil))

	// inline boundary
	long := bytes.Repeat([]byte{'x'}, VarlenaInlineSize)
	v.Reset()
	v.SetSmall(long)
	require.True(t, v.IsSmall())
	require.Equal(t, long, v.GetByteSlice(nil))
}

func TestVarlenaArea(t *testing.T) {
	var v Varlena
	area := []byte("0123456789")
	v.SetOffsetLen(2, 5)
	require.False(t, v.IsSmall())
	voff, vlen := v.OffsetLen()
	require.Equal(t, uint32(2), voff)
	require.Equal(t, uint32(5), vlen)
	require.Equal(t, []byte("23456"), v.GetByteSlice(area))
}

func TestBuildVarlena(t *testing.T) {
	grow := func(area []byte, sz int) ([]byte, error) {
		for len(area) < sz {
			area = append(area, 0)
		}
		return area, nil
	}

	var area []byte
	v, area, err := BuildVarlena([]byte("tiny"), area, grow)
	require.NoError(t, err)
	require.True(t, v.IsSmall())
	require.Equal(t, 0, len(area))

	big := bytes.Repeat([]byte{'b'}, 100)
	v, area, err = BuildVarlena(big, area, grow)
	require.NoError(t, err)
	require.False(t, v.IsSmall())
	require.Equal(t, big, v.GetByteSlice(area))
}

func TestToType(t *testing.T) {
	for _, oid := range []T{T_char, T_varchar, T_json, T_array_float32, T_array_float64} {
		typ := oid.ToType()
		require.Equal(t, int32(VarlenaSize), typ.Size)
		require.True(t, typ.IsVarlen())
	}
	require.Equal(t, 8, T_int64.ToType().TypeSize())
	require.Equal(t, 1, T_bool.ToType().TypeSize())
	require.True(t, T_tuple.ToType().IsTuple())
	require.True(t, T_array_float32.ToType().IsArray())
	require.False(t, T_array_float32.IsOrdered())
	require.False(t, T_tuple.IsOrdered())
	require.True(t, T_varchar.IsOrdered())
}

func TestEncodeDecodeSlice(t *testing.T) {
	vals := []int32{1, -2, 3, 1 << 30}
	bs := EncodeSlice(vals)
	require.Equal(t, 16, len(bs))
	back := DecodeSlice[int32](bs)
	require.Equal(t, vals, back)

	require.Panics(t, func() { DecodeSlice[int32](bs[:3]) })
}

func TestEncodeDecodeType(t *testing.T) {
	typ := T_varchar.ToType()
	bs := EncodeType(&typ)
	back := DecodeType(bs)
	require.True(t, typ.Eq(back))
	require.Equal(t, typ.Size, back.Size)
}
