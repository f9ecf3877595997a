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

package process

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/common/mpool"
)

func TestParallelForCoversRange(t *testing.T) {
	proc := New(context.Background(), mpool.MustNewZero(), WithParallelism(4))
	defer proc.Close()

	n := 10000
	marks := make([]int32, n)
	err := proc.ParallelFor(n, func(start, end int) error {
		for i := start; i < end; i++ {
			atomic.AddInt32(&marks[i], 1)
		}
		return nil
	})
	require.NoError(t, err)
	for i := range marks {
		require.Equal(t, int32(1), marks[i])
	}
}

func TestParallelForSmallRunsInline(t *testing.T) {
	proc := New(context.Background(), mpool.MustNewZero())
	defer proc.Close()

	sum := 0
	err := proc.ParallelFor(10, func(start, end int) error {
		for i := start; i < end; i++ {
			sum += i
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 45, sum)
}

func TestParallelForError(t *testing.T) {
	proc := New(context.Background(), mpool.MustNewZero(), WithParallelism(4))
	defer proc.Close()

	err := proc.ParallelFor(100000, func(start, end int) error {
		if start == 0 {
			return moerr.NewInternalErrorNoCtx("boom")
		}
		return nil
	})
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))
}

func TestParallelForCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	proc := New(ctx, mpool.MustNewZero())
	defer proc.Close()

	err := proc.ParallelFor(10, func(start, end int) error { return nil })
	require.Error(t, err)
}

func TestParallelForZero(t *testing.T) {
	proc := New(context.Background(), mpool.MustNewZero())
	defer proc.Close()
	require.NoError(t, proc.ParallelFor(0, func(start, end int) error {
		t.Fatal("must not run")
		return nil
	}))
}

func TestParallelismDefault(t *testing.T) {
	proc := New(context.Background(), mpool.MustNewZero())
	defer proc.Close()
	require.True(t, proc.Parallelism() >= 1)
	require.NotNil(t, proc.Mp())
}
