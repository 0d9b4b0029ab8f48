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

// Package ringregistry tracks which ring files this process currently has
// open, so two goroutines cannot accidentally attach a second SPSC
// producer or consumer to the same file, and provides a retrying-open
// helper for the common "wait for the other side to create the file"
// startup race between independent processes.
package ringregistry

import (
	"context"
	"fmt"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/cenkalti/backoff/v4"
)

var openPaths = cmap.New[struct{}]()

// Register claims path for this process. It returns false if path is
// already registered (a second producer or consumer attaching to the
// same ring file from within one process almost always indicates a bug,
// since each side of a ring expects to be the only local owner of its
// sequence cell).
func Register(path string) bool {
	return openPaths.SetIfAbsent(path, struct{}{})
}

// Release un-claims path, allowing a future Register to succeed again
// (typically called from Close).
func Release(path string) {
	openPaths.Remove(path)
}

// OpenWithRetry retries open with an exponential backoff (capped by ctx)
// until it succeeds or ctx is done. It is meant for the participant that
// attaches to a ring file the other side is responsible for creating:
// rather than failing immediately on ErrFileNotFound, the caller waits for
// its peer to finish Open.
func OpenWithRetry[T any](ctx context.Context, open func() (T, error)) (T, error) {
	var result T
	operation := func() error {
		v, err := open()
		if err != nil {
			return err
		}
		result = v
		return nil
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		var zero T
		return zero, fmt.Errorf("ringregistry: open did not succeed before context was done: %w", err)
	}
	return result, nil
}
