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

// Package ringtest provides scaffolding for tests that drive many
// simulated consumers against one ring without letting goroutine count
// grow unbounded, and that wait for all of them to finish. No other
// package in this module imports it; it is exercised only by its own
// tests.
//
// Nothing here is on a ring's hot path: it exists purely to make the
// broadcast-fairness and high-volume end-to-end scenarios easy to write.
package ringtest

import (
	"fmt"
	"sync"

	queuepkg "github.com/Workiva/go-datastructures/queue"
	"github.com/panjf2000/ants/v2"
)

// CompletionQueue lets a fixed number of worker goroutines report
// completion (by index) to a coordinator that blocks until all of them
// have checked in. Unlike the ring's own hot-path object pool, this
// genuinely benefits from the backing queue's blocking Get semantics:
// Wait legitimately wants to park until n items exist.
type CompletionQueue struct {
	q *queuepkg.Queue
}

// NewCompletionQueue returns a CompletionQueue sized for up to capacity
// outstanding completions.
func NewCompletionQueue(capacity int) *CompletionQueue {
	return &CompletionQueue{q: queuepkg.New(int64(capacity))}
}

// Done reports that worker index has finished.
func (c *CompletionQueue) Done(index int) error {
	return c.q.Put(index)
}

// Wait blocks until n workers have reported completion (in whatever order
// they finish) and returns their indices.
func (c *CompletionQueue) Wait(n int) ([]int, error) {
	// Get returns as soon as any items are queued (up to the number asked
	// for), so keep asking until all n have arrived.
	indices := make([]int, 0, n)
	for len(indices) < n {
		items, err := c.q.Get(int64(n - len(indices)))
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			idx, ok := item.(int)
			if !ok {
				return nil, fmt.Errorf("ringtest: completion queue held non-int value %v", item)
			}
			indices = append(indices, idx)
		}
	}
	return indices, nil
}

// RunBounded runs fn(0), fn(1), ..., fn(n-1) concurrently with at most
// poolSize goroutines in flight at once, via an ants worker pool, and
// returns the first non-nil error (if any), after every fn call has
// returned.
func RunBounded(poolSize, n int, fn func(index int) error) error {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return fmt.Errorf("ringtest: cannot create worker pool: %w", err)
	}
	defer pool.Release()

	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		index := i
		submitErr := pool.Submit(func() {
			defer wg.Done()
			errs[index] = fn(index)
		})
		if submitErr != nil {
			errs[index] = submitErr
			wg.Done()
		}
	}

	wg.Wait()

	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
