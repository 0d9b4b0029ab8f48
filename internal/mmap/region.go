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

// Package mmap maps a file into a writable byte region shared across
// processes and provides plain and acquire/release accessors over it. It is
// the sole primitive the ring protocol in pkg/ring builds on; no other
// package calls mmap directly.
package mmap

import "errors"

// MaxSize bounds how large a region Open will attempt to map. Kept well
// below the architectural ceiling so a garbled size argument fails fast
// instead of attempting a multi-exabyte mapping.
const MaxSize = int64(1) << 62

var (
	// ErrSizeTooLarge is returned when the requested size is >= MaxSize.
	ErrSizeTooLarge = errors.New("mmap: requested size too large")
	// ErrUnsupportedPlatform is returned by the non-Linux build of Open.
	ErrUnsupportedPlatform = errors.New("mmap: unsupported platform")
	// ErrClosed is returned by a second call to Close. The accessors do not
	// check for it.
	ErrClosed = errors.New("mmap: region is closed")
)

// Region is a byte-addressable view over a memory-mapped file, shared
// read/write across any process that maps the same path.
type Region struct {
	data   []byte
	path   string
	closed bool

	// unmap is supplied by the platform-specific opener and performs the
	// actual munmap/close syscalls; Close(deleteFile) layers file removal
	// on top so Region itself stays platform-agnostic.
	unmap func() error
}

// Path returns the filesystem path backing this region.
func (r *Region) Path() string { return r.path }

// Len returns the mapped region's length in bytes.
func (r *Region) Len() int { return len(r.data) }

// Bytes returns the mapped region as a byte slice. The slice is valid until
// Close; callers must not retain it past that point.
func (r *Region) Bytes() []byte { return r.data }

// Close unmaps the region and, if deleteFile is true, removes the backing
// file. It is safe to call at most once; a second call returns ErrClosed.
func (r *Region) Close(deleteFile bool) error {
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	if err := r.unmap(); err != nil {
		return err
	}
	if deleteFile {
		return removeFile(r.path)
	}
	return nil
}
