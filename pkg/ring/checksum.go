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
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/valyala/bytebufferpool"
)

// checksumSeed is the fixed XXH64 seed used across every non-blocking ring,
// so independent producer and consumer processes built from this package
// always agree on it without needing to negotiate one out of band.
const checksumSeed = uint64(7)

// checksumSize is the width, in bytes, of a persisted checksum prefix.
const checksumSize = 8

var checksumScratchPool bytebufferpool.Pool

// computeChecksum hashes the big-endian encoding of seq followed by the
// message payload payload, matching the original ring's convention of
// checksumming the sequence number together with the bytes it guards so a
// stale slot (right bytes, wrong generation) is also caught.
func computeChecksum(seq int64, payload []byte) uint64 {
	buf := checksumScratchPool.Get()
	defer checksumScratchPool.Put(buf)

	buf.Reset()
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], uint64(seq))
	_, _ = buf.Write(seqBytes[:])
	_, _ = buf.Write(payload)

	d := xxhash.NewWithSeed(checksumSeed)
	_, _ = d.Write(buf.B)
	return d.Sum64()
}
