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

package batch

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/common/mpool"
	"github.com/matrixorigin/colcore/pkg/container/types"
	"github.com/matrixorigin/colcore/pkg/container/vector"
)

func makeTestBatch(t *testing.T, mp *mpool.MPool) *Batch {
	bat := New([]string{"id", "name"})
	id := vector.NewVec(types.T_int64.ToType())
	require.NoError(t, vector.AppendFixedList(id, []int64{1, 2, 3}, []bool{false, false, true}, mp))
	name := vector.NewVec(types.T_varchar.ToType())
	require.NoError(t, vector.AppendStringList(name, []string{"ann", "bob", "eve"}, nil, mp))
	bat.SetVector(0, id)
	bat.SetVector(1, name)
	bat.SetRowCount(3)
	return bat
}

func TestBatchBasics(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := makeTestBatch(t, mp)
	require.Equal(t, 2, bat.VectorCount())
	require.Equal(t, 3, bat.RowCount())
	require.False(t, bat.IsEmpty())
	require.True(t, bat.Size() > 0)
	bat.Clean(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestBatchAppend(t *testing.T) {
	mp := mpool.MustNewZero()
	a := makeTestBatch(t, mp)
	b := makeTestBatch(t, mp)

	out, err := a.Append(context.TODO(), mp, b)
	require.NoError(t, err)
	require.Equal(t, 6, out.RowCount())
	require.Equal(t, "ann", out.GetVector(1).GetStringAt(3))
	require.True(t, out.GetVector(0).IsRowNull(5))

	a.Clean(mp)
	b.Clean(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestBatchShrink(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := makeTestBatch(t, mp)

	require.NoError(t, bat.Shrink([]int64{2, 0}, mp))
	require.Equal(t, 2, bat.RowCount())
	require.True(t, bat.GetVector(0).IsRowNull(0))
	require.Equal(t, int64(1), vector.GetFixedAt[int64](bat.GetVector(0), 1))
	require.Equal(t, "eve", bat.GetVector(1).GetStringAt(0))

	bat.Clean(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestBatchCodecRoundTrip(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := makeTestBatch(t, mp)

	bs, err := bat.MarshalBinary()
	require.NoError(t, err)

	back := &Batch{}
	require.NoError(t, back.UnmarshalBinaryWithCopy(bs, mp))
	require.Equal(t, bat.RowCount(), back.RowCount())
	require.Equal(t, bat.Attrs, back.Attrs)
	require.Equal(t, "bob", back.GetVector(1).GetStringAt(1))
	require.True(t, back.GetVector(0).IsRowNull(2))

	back.Clean(mp)
	bat.Clean(mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

// storedFrame wraps a raw body in an uncompressed frame.
func storedFrame(body []byte, rowCount int) []byte {
	out := make([]byte, 17, 17+len(body))
	out[0] = codecVersion | 0x80
	binary.LittleEndian.PutUint64(out[1:], uint64(rowCount))
	binary.LittleEndian.PutUint64(out[9:], uint64(len(body)))
	return append(out, body...)
}

func TestBatchDecodeTruncatedAttr(t *testing.T) {
	mp := mpool.MustNewZero()

	// zero vectors, one attribute claiming 100 bytes it does not carry
	var body []byte
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], 0)
	body = append(body, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], 1)
	body = append(body, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], 100)
	body = append(body, u32[:]...)

	bat := &Batch{}
	err := bat.UnmarshalBinaryWithCopy(storedFrame(body, 0), mp)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrUnexpectedEOF))
}

func TestBatchDecodeBadHeader(t *testing.T) {
	mp := mpool.MustNewZero()
	bat := &Batch{}

	// stored length disagreeing with the body
	frame := storedFrame([]byte{1, 2, 3}, 0)
	binary.LittleEndian.PutUint64(frame[9:], 99)
	err := bat.UnmarshalBinaryWithCopy(frame, mp)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrUnexpectedEOF))

	// compressed frame declaring an impossible decoded size
	frame = storedFrame([]byte{1, 2, 3}, 0)
	frame[0] = codecVersion
	binary.LittleEndian.PutUint64(frame[9:], 1<<40)
	err = bat.UnmarshalBinaryWithCopy(frame, mp)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
}
