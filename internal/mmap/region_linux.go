//go:build linux

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
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Open creates the file at path and extends it to size bytes if it does not
// already exist, or attaches to it unchanged if it does. Either way the
// whole file is mapped PROT_READ|PROT_WRITE, MAP_SHARED. When the file
// already exists, its current length is what gets mapped (and returned via
// Region.Len()); callers that require the length to equal a specific value
// (capacity discovery, §4.5 of the ring spec) must check Region.Len()
// themselves and fail accordingly.
func Open(path string, size int64, create bool) (*Region, error) {
	if size >= MaxSize {
		return nil, ErrSizeTooLarge
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("mmap: mkdir %s: %w", dir, err)
		}
	}

	flags := os.O_RDWR
	existed := true
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("mmap: stat %s: %w", path, err)
		}
		existed = false
	}
	if !existed {
		if !create {
			return nil, fmt.Errorf("mmap: %s: %w", path, os.ErrNotExist)
		}
		if size <= 0 {
			return nil, fmt.Errorf("mmap: cannot create %s with size %d", path, size)
		}
		flags |= os.O_CREATE
	}

	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return nil, fmt.Errorf("mmap: open %s: %w", path, err)
	}
	defer file.Close()

	mapSize := size
	if existed {
		info, err := file.Stat()
		if err != nil {
			return nil, fmt.Errorf("mmap: stat fd for %s: %w", path, err)
		}
		mapSize = info.Size()
	} else {
		if err := file.Truncate(size); err != nil {
			return nil, fmt.Errorf("mmap: truncate %s to %d: %w", path, size, err)
		}
	}

	if mapSize == 0 {
		return nil, fmt.Errorf("mmap: %s has zero length", path)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(mapSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: mmap %s: %w", path, err)
	}

	return &Region{
		data: data,
		path: path,
		unmap: func() error {
			if err := unix.Munmap(data); err != nil {
				return fmt.Errorf("mmap: munmap %s: %w", path, err)
			}
			return nil
		},
	}, nil
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("mmap: remove %s: %w", path, err)
	}
	return nil
}
