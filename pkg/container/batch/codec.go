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
	"bytes"
	"encoding/binary"

	"github.com/pierrec/lz4"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/common/mpool"
	"github.com/matrixorigin/colcore/pkg/container/vector"
)

// Batches move between processes in a compressed frame: a small plain
// header followed by the lz4 block of the concatenated vector
// payloads.  Row groups are mostly low entropy column data, the block
// codec is the same one the storage layer uses for segments.

const codecVersion = 1

func (bat *Batch) MarshalBinary() ([]byte, error) {
	var raw bytes.Buffer

	var cnt [4]byte
	binary.LittleEndian.PutUint32(cnt[:], uint32(len(bat.Vecs)))
	raw.Write(cnt[:])
	for _, vec := range bat.Vecs {
		vb, err := vec.MarshalBinary()
		if err != nil {
			return nil, err
		}
		var lenBs [4]byte
		binary.LittleEndian.PutUint32(lenBs[:], uint32(len(vb)))
		raw.Write(lenBs[:])
		raw.Write(vb)
	}
	binary.LittleEndian.PutUint32(cnt[:], uint32(len(bat.Attrs)))
	raw.Write(cnt[:])
	for _, attr := range bat.Attrs {
		var lenBs [4]byte
		binary.LittleEndian.PutUint32(lenBs[:], uint32(len(attr)))
		raw.Write(lenBs[:])
		raw.WriteString(attr)
	}

	src := raw.Bytes()
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, moerr.ConvertGoError(moerr.Context(), err)
	}

	out := make([]byte, 0, n+17)
	var hdr [17]byte
	hdr[0] = codecVersion
	binary.LittleEndian.PutUint64(hdr[1:], uint64(bat.rowCount))
	binary.LittleEndian.PutUint64(hdr[9:], uint64(len(src)))
	out = append(out, hdr[:]...)
	if n == 0 || n >= len(src) {
		// incompressible, store raw; length zero marks it
		out[0] |= 0x80
		out = append(out, src...)
	} else {
		out = append(out, dst[:n]...)
	}
	return out, nil
}

func (bat *Batch) UnmarshalBinaryWithCopy(data []byte, mp *mpool.MPool) error {
	if len(data) < 17 {
		return moerr.NewUnexpectedEOF(moerr.Context(), "batch decode")
	}
	version := data[0] & 0x7f
	stored := data[0]&0x80 != 0
	if version != codecVersion {
		return moerr.NewInvalidInputNoCtx("batch codec version %d", version)
	}
	bat.rowCount = int(binary.LittleEndian.Uint64(data[1:]))
	rawSz := int(binary.LittleEndian.Uint64(data[9:]))
	data = data[17:]

	var raw []byte
	if stored {
		if rawSz != len(data) {
			return moerr.NewUnexpectedEOF(moerr.Context(), "batch decode")
		}
		raw = data
	} else {
		// an lz4 block cannot expand more than 255x, a header claiming
		// more is corrupt and must not drive the allocation
		if rawSz < 0 || rawSz > (len(data)+1)*255 {
			return moerr.NewInvalidInputNoCtx("batch frame declares %d raw bytes from %d compressed", rawSz, len(data))
		}
		raw = make([]byte, rawSz)
		n, err := lz4.UncompressBlock(data, raw)
		if err != nil {
			return moerr.ConvertGoError(moerr.Context(), err)
		}
		raw = raw[:n]
	}

	if len(raw) < 4 {
		return moerr.NewUnexpectedEOF(moerr.Context(), "batch decode")
	}
	vecCnt := int(binary.LittleEndian.Uint32(raw))
	raw = raw[4:]
	bat.Vecs = make([]*vector.Vector, vecCnt)
	for i := 0; i < vecCnt; i++ {
		if len(raw) < 4 {
			return moerr.NewUnexpectedEOF(moerr.Context(), "batch decode")
		}
		sz := int(binary.LittleEndian.Uint32(raw))
		raw = raw[4:]
		if len(raw) < sz {
			return moerr.NewUnexpectedEOF(moerr.Context(), "batch decode")
		}
		bat.Vecs[i] = &vector.Vector{}
		if err := bat.Vecs[i].UnmarshalBinaryWithCopy(raw[:sz], mp); err != nil {
			return err
		}
		raw = raw[sz:]
	}

	if len(raw) < 4 {
		return moerr.NewUnexpectedEOF(moerr.Context(), "batch decode")
	}
	attrCnt := int(binary.LittleEndian.Uint32(raw))
	raw = raw[4:]
	if attrCnt > 0 {
		bat.Attrs = make([]string, attrCnt)
		for i := 0; i < attrCnt; i++ {
			if len(raw) < 4 {
				return moerr.NewUnexpectedEOF(moerr.Context(), "batch decode")
			}
			sz := int(binary.LittleEndian.Uint32(raw))
			raw = raw[4:]
			if len(raw) < sz {
				return moerr.NewUnexpectedEOF(moerr.Context(), "batch decode")
			}
			bat.Attrs[i] = string(raw[:sz])
			raw = raw[sz:]
		}
	}
	return nil
}
