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

import "errors"

var (
	// ErrResourceAcquisition means the backing region could not be created,
	// extended, or mapped.
	ErrResourceAcquisition = errors.New("ring: cannot acquire shared memory region")

	// ErrConfigMismatch means the caller-supplied capacity or max message
	// size differs from what is persisted in, or implied by, the file.
	ErrConfigMismatch = errors.New("ring: capacity or max message size does not match the existing file")

	// ErrFileNotFound means the caller asked to infer capacity or number of
	// consumers from a file that does not exist.
	ErrFileNotFound = errors.New("ring: file not found and required values were not supplied")

	// ErrInvalidArgument covers out-of-range constructor arguments: a
	// fall-behind tolerance outside (0, 1], a negative rollback count, a
	// rollback count exceeding the in-flight fetch count, or a broadcast
	// ring missing both capacity and number of consumers.
	ErrInvalidArgument = errors.New("ring: invalid argument")

	// ErrLagOvertake is surfaced through AvailableToFetch() == -1 on a
	// non-blocking consumer: the producer has wrapped past it.
	ErrLagOvertake = errors.New("ring: consumer fell behind and the producer overwrote unread slots")

	// ErrIntegrityFailure is surfaced through Fetch returning (zero, false)
	// when checksum verification fails; consumer counters are left
	// unchanged so a retry can observe the ring in a later, coherent state.
	ErrIntegrityFailure = errors.New("ring: checksum verification failed")
)
