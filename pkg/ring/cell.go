/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ring

import (
	"math"

	"github.com/srediag/ringshm/internal/mmap"
)

// cpuCacheLine is the assumed CPU cache line size in bytes. Each sequence
// cell occupies exactly one line so producer and consumer sequences never
// share a line and provoke false sharing.
const cpuCacheLine = 64

// seqPrefixPadding is the padding before the 8-byte sequence value within
// its cell, so the hot word lands in the middle of the cache line
// (24 bytes padding, 8 bytes value, 32 bytes padding = 64).
const seqPrefixPadding = 24

// sequenceCell is one padded, cache-line-aligned slot for a single 64-bit
// sequence number inside the ring's header. cellBase is the cell's start
// offset within the region (a multiple of cpuCacheLine); the sequence value
// itself lives at cellBase+seqPrefixPadding.
type sequenceCell struct {
	region   *mmap.Region
	valueOff int
}

func newSequenceCell(region *mmap.Region, cellBase int) sequenceCell {
	return sequenceCell{region: region, valueOff: cellBase + seqPrefixPadding}
}

// get performs an acquire-load of the cell's sequence value.
func (c sequenceCell) get() int64 {
	return int64(c.region.LoadUint64Acquire(c.valueOff))
}

// set performs a release-store of value into the cell.
func (c sequenceCell) set(value int64) {
	c.region.StoreUint64Release(c.valueOff, uint64(value))
}

// disabledSentinel is stored into a broadcast consumer's cell by
// DisableConsumer so the producer's min-over-active-consumers calculation
// ignores it.
const disabledSentinel = int64(math.MaxInt64)
