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

// Package batch is the table of the engine: a fixed row count over a
// list of column vectors.
package batch

import (
	"bytes"
	"context"
	"fmt"

	"github.com/matrixorigin/colcore/pkg/common/moerr"
	"github.com/matrixorigin/colcore/pkg/common/mpool"
	"github.com/matrixorigin/colcore/pkg/container/vector"
)

type Batch struct {
	// Attrs are optional column names.
	Attrs []string
	Vecs  []*vector.Vector

	rowCount int
}

func New(attrs []string) *Batch {
	return &Batch{
		Attrs: attrs,
		Vecs:  make([]*vector.Vector, len(attrs)),
	}
}

func NewWithSize(n int) *Batch {
	return &Batch{
		Vecs: make([]*vector.Vector, n),
	}
}

func (bat *Batch) RowCount() int {
	return bat.rowCount
}

func (bat *Batch) SetRowCount(rowCount int) {
	bat.rowCount = rowCount
}

func (bat *Batch) AddRowCount(rowCount int) {
	bat.rowCount += rowCount
}

func (bat *Batch) VectorCount() int {
	return len(bat.Vecs)
}

func (bat *Batch) GetVector(pos int32) *vector.Vector {
	return bat.Vecs[pos]
}

func (bat *Batch) SetVector(pos int32, vec *vector.Vector) {
	bat.Vecs[pos] = vec
}

func (bat *Batch) SetAttributes(attrs []string) {
	bat.Attrs = attrs
}

func (bat *Batch) IsEmpty() bool {
	return bat.rowCount == 0
}

func (bat *Batch) Size() int {
	var size int

	for _, vec := range bat.Vecs {
		size += vec.Size()
	}
	return size
}

func (bat *Batch) Clean(m *mpool.MPool) {
	for _, vec := range bat.Vecs {
		if vec != nil {
			vec.Free(m)
		}
	}
	bat.Attrs = nil
	bat.rowCount = 0
	bat.Vecs = nil
}

func (bat *Batch) String() string {
	var buf bytes.Buffer

	for i, vec := range bat.Vecs {
		buf.WriteString(fmt.Sprintf("%d : %s\n", i, vec.String()))
	}
	return buf.String()
}

func (bat *Batch) Dup(mp *mpool.MPool) (*Batch, error) {
	rbat := NewWithSize(len(bat.Vecs))
	rbat.SetAttributes(bat.Attrs)
	for j, vec := range bat.Vecs {
		rvec, err := vec.Dup(mp)
		if err != nil {
			rbat.Clean(mp)
			return nil, err
		}
		rbat.SetVector(int32(j), rvec)
	}
	rbat.rowCount = bat.rowCount
	return rbat, nil
}

// Borrow returns a non owning view over the same columns.
func (bat *Batch) Borrow() *Batch {
	rbat := NewWithSize(len(bat.Vecs))
	rbat.Attrs = bat.Attrs
	for i, vec := range bat.Vecs {
		rbat.Vecs[i] = vec.Borrow()
	}
	rbat.rowCount = bat.rowCount
	return rbat
}

func (bat *Batch) Append(ctx context.Context, mh *mpool.MPool, b *Batch) (*Batch, error) {
	if bat == nil {
		return b.Dup(mh)
	}
	if len(bat.Vecs) != len(b.Vecs) {
		return nil, moerr.NewInternalError(ctx, "unexpected error happens in batch append")
	}
	if len(bat.Vecs) == 0 {
		return bat, nil
	}

	for i := range bat.Vecs {
		for sel := 0; sel < b.Vecs[i].Length(); sel++ {
			if err := bat.Vecs[i].UnionOne(b.Vecs[i], int64(sel), mh); err != nil {
				return bat, err
			}
		}
		bat.Vecs[i].SetSorted(false)
	}
	bat.AddRowCount(b.rowCount)
	return bat, nil
}

// Shrink keeps only the rows selected by sels, in place.
func (bat *Batch) Shrink(sels []int64, mp *mpool.MPool) error {
	rbat := NewWithSize(len(bat.Vecs))
	for i, vec := range bat.Vecs {
		rvec, err := vector.NewVecLike(vec, mp)
		if err != nil {
			rbat.Clean(mp)
			return err
		}
		if err := rvec.Union(vec, sels, mp); err != nil {
			rvec.Free(mp)
			rbat.Clean(mp)
			return err
		}
		rbat.Vecs[i] = rvec
	}
	for i, vec := range bat.Vecs {
		vec.Free(mp)
		bat.Vecs[i] = rbat.Vecs[i]
	}
	bat.rowCount = len(sels)
	return nil
}
