//go:build !linux

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

// Open is unimplemented outside Linux. The ring protocol's pure arithmetic
// (index math, header layout, checksum) still builds and tests on any
// platform; only the actual file mapping requires Linux today, matching the
// teacher repo's platform_linux.go / platform_windows.go split.
func Open(path string, size int64, create bool) (*Region, error) {
	return nil, ErrUnsupportedPlatform
}

func removeFile(path string) error { return nil }
