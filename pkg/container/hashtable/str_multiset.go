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

package hashtable

import (
	"unsafe"

	"github.com/matrixorigin/colcore/pkg/common/mpool"
)

const (
	kInitialCellCnt = 1 << 10

	// resize when the table is three quarters full
	kLoadFactorNumerator   = 3
	kLoadFactorDenominator = 4
)

func maxElemCnt(cellCnt uint64) uint64 {
	return cellCnt * kLoadFactorNumerator / kLoadFactorDenominator
}

type StrHashMultisetCell struct {
	HashState [3]uint64
	Mapped    uint64
}

var strCellSize uint64

func init() {
	strCellSize = uint64(unsafe.Sizeof(StrHashMultisetCell{}))
}

// StrHashMultiset is an open addressing table keyed by the 192-bit
// hash state of a byte key.  Mapped counts insertions of the key, so
// lookups distinguish absent (0) from present n times.  Not safe for
// concurrent writers; concurrent FindStringBatch calls are fine once
// inserts stop.
type StrHashMultiset struct {
	mp *mpool.MPool

	cellCnt     uint64
	cellCntMask uint64
	elemCnt     uint64
	maxElemCnt  uint64
	rawData     []byte
	cells       []StrHashMultisetCell
}

// Init allocates the cell array from mp.  sizeHint is the expected
// distinct key count, zero means unknown.
func (ht *StrHashMultiset) Init(mp *mpool.MPool, sizeHint uint64) error {
	cellCnt := uint64(kInitialCellCnt)
	for maxElemCnt(cellCnt) < sizeHint {
		cellCnt <<= 1
	}

	ht.mp = mp
	if err := ht.allocate(cellCnt); err != nil {
		return err
	}
	ht.elemCnt = 0
	return nil
}

func (ht *StrHashMultiset) allocate(cellCnt uint64) error {
	bs, err := ht.mp.Alloc(int(cellCnt * strCellSize))
	if err != nil {
		return err
	}
	for i := range bs {
		bs[i] = 0
	}
	ht.rawData = bs
	ht.cells = unsafe.Slice((*StrHashMultisetCell)(unsafe.Pointer(&bs[0])), cellCnt)
	ht.cellCnt = cellCnt
	ht.cellCntMask = cellCnt - 1
	ht.maxElemCnt = maxElemCnt(cellCnt)
	return nil
}

func (ht *StrHashMultiset) Free() {
	if ht.rawData != nil {
		ht.mp.Free(ht.rawData)
		ht.rawData, ht.cells = nil, nil
	}
}

// Cardinality reports the number of distinct keys.
func (ht *StrHashMultiset) Cardinality() uint64 {
	return ht.elemCnt
}

// InsertStringBatch inserts keys and writes each key's running
// multiplicity into values.
func (ht *StrHashMultiset) InsertStringBatch(states [][3]uint64, keys [][]byte, values []uint64) error {
	if len(keys) == 0 {
		return nil
	}
	if err := ht.ResizeOnDemand(uint64(len(keys))); err != nil {
		return err
	}

	BytesBatchGenHashStates(&keys[0], &states[0], len(keys))

	for i := range keys {
		cell := ht.findCell(&states[i])
		if cell.Mapped == 0 {
			ht.elemCnt++
			cell.HashState = states[i]
		}
		cell.Mapped++
		values[i] = cell.Mapped
	}
	return nil
}

// FindStringBatch writes each key's multiplicity into values, zero
// for keys never inserted.
func (ht *StrHashMultiset) FindStringBatch(states [][3]uint64, keys [][]byte, values []uint64) {
	if len(keys) == 0 {
		return
	}
	BytesBatchGenHashStates(&keys[0], &states[0], len(keys))

	for i := range keys {
		cell := ht.findCell(&states[i])
		values[i] = cell.Mapped
	}
}

// InsertOne inserts a single key and returns its new multiplicity.
// Only the hash state is retained, callers may reuse the key buffer.
func (ht *StrHashMultiset) InsertOne(key []byte) (uint64, error) {
	if err := ht.ResizeOnDemand(1); err != nil {
		return 0, err
	}
	var state [3]uint64
	BytesGenHashState(key, &state)
	cell := ht.findCell(&state)
	if cell.Mapped == 0 {
		ht.elemCnt++
		cell.HashState = state
	}
	cell.Mapped++
	return cell.Mapped, nil
}

// FindOne returns the multiplicity of a single key.  Read only, safe
// to call from many goroutines once inserts stop.
func (ht *StrHashMultiset) FindOne(key []byte) uint64 {
	var state [3]uint64
	BytesGenHashState(key, &state)
	return ht.findCell(&state).Mapped
}

func (ht *StrHashMultiset) findCell(state *[3]uint64) *StrHashMultisetCell {
	for idx := state[0] & ht.cellCntMask; true; idx = (idx + 1) & ht.cellCntMask {
		cell := &ht.cells[idx]
		if cell.Mapped == 0 || cell.HashState == *state {
			return cell
		}
	}
	return nil
}

func (ht *StrHashMultiset) findEmptyCell(state *[3]uint64) *StrHashMultisetCell {
	for idx := state[0] & ht.cellCntMask; true; idx = (idx + 1) & ht.cellCntMask {
		cell := &ht.cells[idx]
		if cell.Mapped == 0 {
			return cell
		}
	}
	return nil
}

func (ht *StrHashMultiset) ResizeOnDemand(n uint64) error {
	targetCnt := ht.elemCnt + n
	if targetCnt <= ht.maxElemCnt {
		return nil
	}

	newCellCnt := ht.cellCnt << 1
	for maxElemCnt(newCellCnt) < targetCnt {
		newCellCnt <<= 1
	}

	oldCells := ht.cells
	oldData := ht.rawData
	if err := ht.allocate(newCellCnt); err != nil {
		return err
	}

	for i := range oldCells {
		cell := &oldCells[i]
		if cell.Mapped != 0 {
			*ht.findEmptyCell(&cell.HashState) = *cell
		}
	}
	ht.mp.Free(oldData)
	return nil
}
