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

// Package process defines the execution context passed through every
// operator.  A Process owns an ordering domain: operations submitted
// through the same Process observe each other's effects, independent
// Processes may run concurrently.  It carries the memory pool all
// column data is allocated from and a bounded goroutine pool for
// data parallel kernels.
package process

import (
	"context"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/common/mpool"
)

type Process struct {
	Ctx context.Context

	mp *mpool.MPool

	// pool runs the chunks of ParallelFor.  Shared by all operators
	// on this process, sized at construction.
	pool        *ants.Pool
	parallelism int
}

type Option func(*Process)

// WithParallelism caps the number of goroutines ParallelFor fans out
// to.  Zero or negative means GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(proc *Process) {
		proc.parallelism = n
	}
}

func New(ctx context.Context, mp *mpool.MPool, opts ...Option) *Process {
	proc := &Process{
		Ctx: ctx,
		mp:  mp,
	}
	for _, opt := range opts {
		opt(proc)
	}
	if proc.parallelism <= 0 {
		proc.parallelism = runtime.GOMAXPROCS(0)
	}
	return proc
}

func (proc *Process) Mp() *mpool.MPool {
	return proc.mp
}

func (proc *Process) Parallelism() int {
	return proc.parallelism
}

// Close releases the goroutine pool.  The memory pool is owned by the
// caller and is not touched.
func (proc *Process) Close() {
	if proc.pool != nil {
		proc.pool.Release()
		proc.pool = nil
	}
}

func (proc *Process) lazyPool() (*ants.Pool, error) {
	if proc.pool == nil {
		pool, err := ants.NewPool(proc.parallelism)
		if err != nil {
			return nil, moerr.ConvertGoError(proc.Ctx, err)
		}
		proc.pool = pool
	}
	return proc.pool, nil
}

// minParallelChunk keeps tiny inputs on the calling goroutine, the
// submit overhead dominates below this.
const minParallelChunk = 1024

// ParallelFor splits [0, n) into contiguous chunks and runs fn on
// each, joining before return.  fn must be safe to call concurrently
// for disjoint ranges.  The first error wins, remaining chunks still
// run to completion.  Returns the context error if Ctx was canceled
// before submission.
func (proc *Process) ParallelFor(n int, fn func(start, end int) error) error {
	if n <= 0 {
		return nil
	}
	if err := proc.Ctx.Err(); err != nil {
		return moerr.ConvertGoError(proc.Ctx, err)
	}
	workers := proc.parallelism
	if workers <= 1 || n < minParallelChunk*2 {
		return fn(0, n)
	}
	if workers > n {
		workers = n
	}

	pool, err := proc.lazyPool()
	if err != nil {
		return err
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for start := 0; start < n; start += chunk {
		start := start
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := fn(start, end); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		})
		if submitErr != nil {
			// pool rejected, run inline
			if err := fn(start, end); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
			wg.Done()
		}
	}
	wg.Wait()
	return firstErr
}
