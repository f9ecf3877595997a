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
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/colcore/pkg/common/mpool"
)

func TestHashStateStable(t *testing.T) {
	var s1, s2 [3]uint64
	BytesGenHashState([]byte("hello"), &s1)
	BytesGenHashState([]byte("hello"), &s2)
	require.Equal(t, s1, s2)

	BytesGenHashState([]byte("hellp"), &s2)
	require.NotEqual(t, s1, s2)

	// empty key is a real key
	BytesGenHashState(nil, &s2)
	require.NotEqual(t, [3]uint64{}, s2)
}

func TestMultisetCounts(t *testing.T) {
	mp := mpool.MustNewZero()
	set := &StrHashMultiset{}
	require.NoError(t, set.Init(mp, 0))
	defer set.Free()

	keys := [][]byte{[]byte("a"), []byte("b"), []byte("a"), []byte("a")}
	states := make([][3]uint64, len(keys))
	values := make([]uint64, len(keys))
	require.NoError(t, set.InsertStringBatch(states, keys, values))
	require.Equal(t, []uint64{1, 1, 2, 3}, values)
	require.Equal(t, uint64(2), set.Cardinality())

	require.Equal(t, uint64(3), set.FindOne([]byte("a")))
	require.Equal(t, uint64(1), set.FindOne([]byte("b")))
	require.Equal(t, uint64(0), set.FindOne([]byte("c")))
}

func TestMultisetResize(t *testing.T) {
	mp := mpool.MustNewZero()
	set := &StrHashMultiset{}
	require.NoError(t, set.Init(mp, 0))
	defer set.Free()

	n := 100000
	for i := 0; i < n; i++ {
		_, err := set.InsertOne([]byte(fmt.Sprintf("key-%d", i)))
		require.NoError(t, err)
	}
	require.Equal(t, uint64(n), set.Cardinality())
	for _, i := range []int{0, 1, 4999, n - 1} {
		require.Equal(t, uint64(1), set.FindOne([]byte(fmt.Sprintf("key-%d", i))))
	}
	require.Equal(t, uint64(0), set.FindOne([]byte("key--1")))
}

func TestStrHashMapIds(t *testing.T) {
	mp := mpool.MustNewZero()
	ht := &StrHashMap{}
	require.NoError(t, ht.Init(mp, 16))
	defer ht.Free()

	id, err := ht.Insert([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)
	id, err = ht.Insert([]byte("y"))
	require.NoError(t, err)
	require.Equal(t, uint64(2), id)
	// re-insert keeps the first id
	id, err = ht.Insert([]byte("x"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	require.Equal(t, uint64(2), ht.Find([]byte("y")))
	require.Equal(t, uint64(0), ht.Find([]byte("z")))
	require.Equal(t, uint64(2), ht.Cardinality())
}

func TestStrHashMapResize(t *testing.T) {
	mp := mpool.MustNewZero()
	ht := &StrHashMap{}
	require.NoError(t, ht.Init(mp, 0))
	defer ht.Free()

	n := 50000
	for i := 0; i < n; i++ {
		id, err := ht.Insert([]byte(fmt.Sprintf("k%d", i)))
		require.NoError(t, err)
		require.Equal(t, uint64(i+1), id)
	}
	for _, i := range []int{0, 777, n - 1} {
		require.Equal(t, uint64(i+1), ht.Find([]byte(fmt.Sprintf("k%d", i))))
	}
}

func TestCardinalityEstimator(t *testing.T) {
	est := NewCardinalityEstimator()
	for i := 0; i < 10000; i++ {
		est.Add([]byte(fmt.Sprintf("v-%d", i%1000)))
	}
	got := est.Estimate()
	// sketch error stays within a few percent at this size
	require.InDelta(t, 1000, float64(got), 100)
}
