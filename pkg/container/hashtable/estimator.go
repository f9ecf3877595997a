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
	"github.com/axiomhq/hyperloglog"
)

// CardinalityEstimator sketches the distinct key count of a batch
// before the table is built, so Init can size the cell array once
// instead of resizing during the insert loop.
type CardinalityEstimator struct {
	sk *hyperloglog.Sketch
}

func NewCardinalityEstimator() *CardinalityEstimator {
	return &CardinalityEstimator{sk: hyperloglog.New14()}
}

func (e *CardinalityEstimator) Add(key []byte) {
	e.sk.Insert(key)
}

func (e *CardinalityEstimator) Estimate() uint64 {
	return e.sk.Estimate()
}
