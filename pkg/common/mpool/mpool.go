// Copyright 2021 - 2022 Matrix Origin
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

// Package mpool is the memory accounting layer every allocating
// operation of the engine goes through.  It hands out plain go slices
// but keeps byte-exact counters and enforces an optional cap, so that
// a runaway probe fails with OOM instead of taking the host down.
package mpool

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
)

const (
	NoFixed = 1

	kMemHdrSz = 16
	// GB for sanity checking single allocations.
	GB = 1 << 30
)

// header sits immediately before every slice returned by Alloc.
type memHdr struct {
	poolId  int64
	allocSz int32
	guard   [3]uint8
}

func (pHdr *memHdr) SetGuard() {
	pHdr.guard[0] = 0xde
	pHdr.guard[1] = 0xad
	pHdr.guard[2] = 0xbf
}

func (pHdr *memHdr) CheckGuard() bool {
	return pHdr.guard[0] == 0xde && pHdr.guard[1] == 0xad && pHdr.guard[2] == 0xbf
}

type MPoolStats struct {
	NumAlloc      int64
	NumFree       int64
	HighWaterMark int64
	currNB        int64
}

func (s *MPoolStats) CurrNB() int64 {
	return atomic.LoadInt64(&s.currNB)
}

// RecordAlloc bumps the counters and returns the current number of
// bytes held by the pool.
func (s *MPoolStats) RecordAlloc(sz int64) int64 {
	atomic.AddInt64(&s.NumAlloc, 1)
	curr := atomic.AddInt64(&s.currNB, sz)
	for {
		hwm := atomic.LoadInt64(&s.HighWaterMark)
		if curr <= hwm {
			break
		}
		if atomic.CompareAndSwapInt64(&s.HighWaterMark, hwm, curr) {
			break
		}
	}
	return curr
}

func (s *MPoolStats) RecordFree(sz int64) int64 {
	atomic.AddInt64(&s.NumFree, 1)
	curr := atomic.AddInt64(&s.currNB, -sz)
	if curr < 0 {
		panic("mpool freed more bytes than allocated")
	}
	return curr
}

func (s *MPoolStats) Report(tab string) string {
	if s.CurrNB() == 0 && atomic.LoadInt64(&s.NumAlloc) == 0 {
		// empty, reduce noise
		return ""
	}
	ret := ""
	ret += fmt.Sprintf("%s current alloc: %d\n", tab, s.CurrNB())
	ret += fmt.Sprintf("%s high water mark: %d\n", tab, atomic.LoadInt64(&s.HighWaterMark))
	ret += fmt.Sprintf("%s number of alloc: %d\n", tab, atomic.LoadInt64(&s.NumAlloc))
	ret += fmt.Sprintf("%s number of free: %d\n", tab, atomic.LoadInt64(&s.NumFree))
	return ret
}

// MPool is a simple accounting allocator.  It is safe for concurrent
// use; all state is in atomics.  Caller owns returned slices until
// Free.
type MPool struct {
	id    int64
	tag   string
	cap   int64
	stats MPoolStats
}

var nextPoolId int64
var globalStats MPoolStats

// NewMPool creates a pool.  cap <= 0 means no enforced limit.  flags
// is reserved for fixed-slab behavior; NoFixed is the only supported
// value today.
func NewMPool(tag string, cap int64, flags int) (*MPool, error) {
	if cap < 0 {
		return nil, moerr.NewInvalidArgNoCtx("mpool cap", cap)
	}
	if flags != 0 && flags != NoFixed {
		return nil, moerr.NewInvalidArgNoCtx("mpool flags", flags)
	}
	mp := &MPool{
		id:  atomic.AddInt64(&nextPoolId, 1),
		tag: tag,
		cap: cap,
	}
	return mp, nil
}

// MustNewZero creates an unlimited pool, for tests and tools.
func MustNewZero() *MPool {
	mp, err := NewMPool("zero_mpool", 0, NoFixed)
	if err != nil {
		panic(err)
	}
	return mp
}

func (mp *MPool) Tag() string {
	return mp.tag
}

func (mp *MPool) Cap() int64 {
	if mp.cap == 0 {
		return int64(1) << 48
	}
	return mp.cap
}

func (mp *MPool) CurrNB() int64 {
	return mp.stats.CurrNB()
}

func (mp *MPool) Stats() *MPoolStats {
	return &mp.stats
}

func (mp *MPool) Report() string {
	ret := fmt.Sprintf("    mpool %s:\n", mp.tag)
	ret += mp.stats.Report("        ")
	return ret
}

func GlobalStats() *MPoolStats {
	return &globalStats
}

func (mp *MPool) Alloc(sz int) ([]byte, error) {
	if sz < 0 || sz > 10*GB {
		return nil, moerr.NewInternalErrorNoCtx("mpool alloc size %d bad", sz)
	}
	if sz == 0 {
		return nil, nil
	}

	requiredSz := int64(sz + kMemHdrSz)
	if mp.cap > 0 && mp.stats.CurrNB()+requiredSz > mp.cap {
		return nil, moerr.NewOOMNoCtx()
	}
	mp.stats.RecordAlloc(requiredSz)
	globalStats.RecordAlloc(requiredSz)

	bs := make([]byte, requiredSz)
	pHdr := (*memHdr)(unsafe.Pointer(&bs[0]))
	pHdr.poolId = mp.id
	pHdr.allocSz = int32(sz)
	pHdr.SetGuard()
	return bs[kMemHdrSz : kMemHdrSz+sz : kMemHdrSz+sz], nil
}

func (mp *MPool) Free(bs []byte) {
	if bs == nil || cap(bs) == 0 {
		return
	}
	bs = bs[:1]
	hdr := unsafe.Add(unsafe.Pointer(&bs[0]), -kMemHdrSz)
	pHdr := (*memHdr)(hdr)
	if !pHdr.CheckGuard() {
		panic("mpool freeing a buffer it did not allocate")
	}
	if pHdr.allocSz == -1 {
		// double free
		panic("mpool double free")
	}
	freeSz := int64(pHdr.allocSz) + kMemHdrSz
	pHdr.allocSz = -1
	mp.stats.RecordFree(freeSz)
	globalStats.RecordFree(freeSz)
}

// Grow reallocates old to hold at least sz bytes, copying content.
// old may be nil.
func (mp *MPool) Grow(old []byte, sz int) ([]byte, error) {
	if sz < len(old) {
		return nil, moerr.NewInternalErrorNoCtx("mpool grow actually shrinks, %d, %d", len(old), sz)
	}
	if sz <= cap(old) {
		return old[:sz], nil
	}
	bs, err := mp.Alloc(growCap(sz))
	if err != nil {
		return nil, err
	}
	bs = bs[:sz]
	copy(bs, old)
	mp.Free(old)
	return bs, nil
}

// growCap rounds up the same way go slices do, to amortize repeated
// appends.
func growCap(sz int) int {
	if sz < 1024 {
		n := 64
		for n < sz {
			n <<= 1
		}
		return n
	}
	n := 1024
	for n < sz {
		n += n / 2
	}
	return n
}
