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
	"bytes"
	"encoding/binary"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/common/mpool"
	"github.com/matrixorigin/colcore/pkg/container/nulls"
	"github.com/matrixorigin/colcore/pkg/container/types"
)

func writeChunk(buf *bytes.Buffer, bs []byte) {
	var lenBs [4]byte
	binary.LittleEndian.PutUint32(lenBs[:], uint32(len(bs)))
	buf.Write(lenBs[:])
	buf.Write(bs)
}

func readChunk(data []byte) ([]byte, []byte, error) {
	if len(data) < 4 {
		return nil, nil, moerr.NewUnexpectedEOF(moerr.Context(), "vector decode")
	}
	sz := binary.LittleEndian.Uint32(data)
	data = data[4:]
	if uint32(len(data)) < sz {
		return nil, nil, moerr.NewUnexpectedEOF(moerr.Context(), "vector decode")
	}
	return data[:sz], data[sz:], nil
}

func (v *Vector) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(types.EncodeType(&v.typ))
	buf.WriteByte(byte(v.class))

	var lenBs [8]byte
	binary.LittleEndian.PutUint64(lenBs[:], uint64(v.length))
	buf.Write(lenBs[:])

	nb, err := v.nsp.Show()
	if err != nil {
		return nil, err
	}
	writeChunk(&buf, nb)
	writeChunk(&buf, v.data[:vecDataLen(v)])
	writeChunk(&buf, v.area)

	var cnt [4]byte
	binary.LittleEndian.PutUint32(cnt[:], uint32(len(v.children)))
	buf.Write(cnt[:])
	for _, child := range v.children {
		cb, err := child.MarshalBinary()
		if err != nil {
			return nil, err
		}
		writeChunk(&buf, cb)
	}

	if v.keys != nil {
		buf.WriteByte(1)
		kb, err := v.keys.MarshalBinary()
		if err != nil {
			return nil, err
		}
		writeChunk(&buf, kb)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

// vecDataLen is the live prefix of data: capacity beyond length*size
// is scratch and not serialized.
func vecDataLen(v *Vector) int {
	if v.typ.Oid == types.T_tuple {
		return 0
	}
	n := v.length
	if v.IsConst() {
		n = 1
	}
	if v.class == DIST {
		return n * 4
	}
	return n * v.typ.TypeSize()
}

// UnmarshalBinaryWithCopy decodes with buffers owned by mp.
func (v *Vector) UnmarshalBinaryWithCopy(data []byte, mp *mpool.MPool) error {
	if len(data) < types.TSize+1+8 {
		return moerr.NewUnexpectedEOF(moerr.Context(), "vector decode")
	}
	v.typ = types.DecodeType(data)
	data = data[types.TSize:]
	v.class = int(data[0])
	data = data[1:]
	switch v.class {
	case FLAT, CONSTANT, DIST:
	default:
		return moerr.NewInvalidInputNoCtx("vector class %d", v.class)
	}
	v.length = int(binary.LittleEndian.Uint64(data))
	data = data[8:]

	nb, data, err := readChunk(data)
	if err != nil {
		return err
	}
	v.nsp = &nulls.Nulls{}
	if err := v.nsp.Read(nb); err != nil {
		return err
	}

	db, data, err := readChunk(data)
	if err != nil {
		return err
	}
	if len(db) > 0 {
		if v.data, err = mp.Alloc(len(db)); err != nil {
			return err
		}
		copy(v.data, db)
	}

	ab, data, err := readChunk(data)
	if err != nil {
		return err
	}
	if len(ab) > 0 {
		if v.area, err = mp.Alloc(len(ab)); err != nil {
			return err
		}
		copy(v.area, ab)
	}

	if len(data) < 4 {
		return moerr.NewUnexpectedEOF(moerr.Context(), "vector decode")
	}
	childCnt := int(binary.LittleEndian.Uint32(data))
	data = data[4:]
	if childCnt > 0 {
		v.children = make([]*Vector, childCnt)
		for i := 0; i < childCnt; i++ {
			var cb []byte
			if cb, data, err = readChunk(data); err != nil {
				return err
			}
			v.children[i] = &Vector{}
			if err = v.children[i].UnmarshalBinaryWithCopy(cb, mp); err != nil {
				return err
			}
		}
	}

	if len(data) < 1 {
		return moerr.NewUnexpectedEOF(moerr.Context(), "vector decode")
	}
	hasKeys := data[0] == 1
	data = data[1:]
	if hasKeys {
		var kb []byte
		if kb, _, err = readChunk(data); err != nil {
			return err
		}
		v.keys = &Vector{}
		if err = v.keys.UnmarshalBinaryWithCopy(kb, mp); err != nil {
			return err
		}
	}
	return nil
}
