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

package mmap

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// LoadUint32 is a plain, non-synchronizing load of a little-endian uint32 at
// offset. Callers that need cross-process visibility must use
// LoadUint32Acquire instead.
func (r *Region) LoadUint32(offset int) uint32 {
	return binary.LittleEndian.Uint32(r.data[offset : offset+4])
}

// StoreUint32 is a plain, non-synchronizing store of val as little-endian at
// offset.
func (r *Region) StoreUint32(offset int, val uint32) {
	binary.LittleEndian.PutUint32(r.data[offset:offset+4], val)
}

// LoadUint64 is a plain, non-synchronizing load of a little-endian uint64 at
// offset.
func (r *Region) LoadUint64(offset int) uint64 {
	return binary.LittleEndian.Uint64(r.data[offset : offset+8])
}

// StoreUint64 is a plain, non-synchronizing store of val as little-endian at
// offset.
func (r *Region) StoreUint64(offset int, val uint64) {
	binary.LittleEndian.PutUint64(r.data[offset:offset+8], val)
}

// ptr64 returns an *uint64 aliasing the mapped bytes at offset. The Region
// guarantees every offset passed to the Acquire/Release accessors below is
// 8-byte aligned (see pkg/ring/cell.go), which is what sync/atomic requires
// on all supported architectures.
func (r *Region) ptr64(offset int) *uint64 {
	return (*uint64)(unsafe.Pointer(&r.data[offset]))
}

// LoadUint64Acquire performs an acquire-load of the little-endian uint64 at
// offset: every byte written by a release-store that this load observes
// becomes visible to the calling goroutine. Implemented with sync/atomic,
// which compiles to a sequentially consistent operation on every
// architecture Go supports on this codebase's target platforms — strictly
// stronger than acquire/release, so the ordering guarantee holds.
func (r *Region) LoadUint64Acquire(offset int) uint64 {
	return atomic.LoadUint64(r.ptr64(offset))
}

// StoreUint64Release performs a release-store of val as little-endian at
// offset: every write the calling goroutine performed before this call
// becomes visible to any goroutine whose subsequent acquire-load observes
// val.
func (r *Region) StoreUint64Release(offset int, val uint64) {
	atomic.StoreUint64(r.ptr64(offset), val)
}

// ptr32 returns a *uint32 aliasing the mapped bytes at offset; offset must
// be 4-byte aligned.
func (r *Region) ptr32(offset int) *uint32 {
	return (*uint32)(unsafe.Pointer(&r.data[offset]))
}

// LoadUint32Acquire is the 32-bit counterpart of LoadUint64Acquire.
func (r *Region) LoadUint32Acquire(offset int) uint32 {
	return atomic.LoadUint32(r.ptr32(offset))
}

// StoreUint32Release is the 32-bit counterpart of StoreUint64Release.
func (r *Region) StoreUint32Release(offset int, val uint32) {
	atomic.StoreUint32(r.ptr32(offset), val)
}

// CopyFrom copies src into the region starting at offset.
func (r *Region) CopyFrom(offset int, src []byte) int {
	return copy(r.data[offset:], src)
}

// CopyTo copies len(dst) bytes from the region starting at offset into dst.
func (r *Region) CopyTo(offset int, dst []byte) int {
	return copy(dst, r.data[offset:])
}
