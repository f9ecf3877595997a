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

type StrHashMapCell struct {
	HashState [3]uint64
	Mapped    uint64
}

// StrHashMap assigns dense first-seen ids to byte keys, starting at
// one.  Zero from a lookup means absent.  Same cell layout and
// probing as StrHashMultiset, Mapped holds the id instead of a count.
type StrHashMap struct {
	mp *mpool.MPool

	cellCnt     uint64
	cellCntMask uint64
	elemCnt     uint64
	maxElemCnt  uint64
	rawData     []byte
	cells       []StrHashMapCell
}

func (ht *StrHashMap) Init(mp *mpool.MPool, sizeHint uint64) error {
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

func (ht *StrHashMap) allocate(cellCnt uint64) error {
	bs, err := ht.mp.Alloc(int(cellCnt * strCellSize))
	if err != nil {
		return err
	}
	for i := range bs {
		bs[i] = 0
	}
	ht.rawData = bs
	ht.cells = unsafe.Slice((*StrHashMapCell)(unsafe.Pointer(&bs[0])), cellCnt)
	ht.cellCnt = cellCnt
	ht.cellCntMask = cellCnt - 1
	ht.maxElemCnt = maxElemCnt(cellCnt)
	return nil
}

func (ht *StrHashMap) Free() {
	if ht.rawData != nil {
		ht.mp.Free(ht.rawData)
		ht.rawData, ht.cells = nil, nil
	}
}

func (ht *StrHashMap) Cardinality() uint64 {
	return ht.elemCnt
}

// Insert maps key to its id, assigning the next id on first sight.
func (ht *StrHashMap) Insert(key []byte) (uint64, error) {
	if err := ht.ResizeOnDemand(1); err != nil {
		return 0, err
	}
	var state [3]uint64
	BytesGenHashState(key, &state)
	cell := ht.findCell(&state)
	if cell.Mapped == 0 {
		ht.elemCnt++
		cell.HashState = state
		cell.Mapped = ht.elemCnt
	}
	return cell.Mapped, nil
}

// Find returns the id of key, zero if never inserted.
func (ht *StrHashMap) Find(key []byte) uint64 {
	var state [3]uint64
	BytesGenHashState(key, &state)
	return ht.findCell(&state).Mapped
}

func (ht *StrHashMap) findCell(state *[3]uint64) *StrHashMapCell {
	for idx := state[0] & ht.cellCntMask; true; idx = (idx + 1) & ht.cellCntMask {
		cell := &ht.cells[idx]
		if cell.Mapped == 0 || cell.HashState == *state {
			return cell
		}
	}
	return nil
}

func (ht *StrHashMap) findEmptyCell(state *[3]uint64) *StrHashMapCell {
	for idx := state[0] & ht.cellCntMask; true; idx = (idx + 1) & ht.cellCntMask {
		cell := &ht.cells[idx]
		if cell.Mapped == 0 {
			return cell
		}
	}
	return nil
}

func (ht *StrHashMap) ResizeOnDemand(n uint64) error {
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
