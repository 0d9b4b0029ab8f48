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

package ringtest

import (
	"fmt"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionQueueWaitsForAllWorkers(t *testing.T) {
	q := NewCompletionQueue(8)

	for i := 0; i < 5; i++ {
		go func(i int) {
			_ = q.Done(i)
		}(i)
	}

	indices, err := q.Wait(5)
	require.NoError(t, err)
	sort.Ints(indices)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, indices)
}

func TestRunBoundedRunsEveryIndexAndCapsConcurrency(t *testing.T) {
	const n = 50
	var inFlight, maxInFlight int32
	var ran [n]int32

	err := RunBounded(4, n, func(index int) error {
		cur := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if cur <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, cur) {
				break
			}
		}
		atomic.AddInt32(&ran[index], 1)
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		assert.Equal(t, int32(1), ran[i], "index %d should have run exactly once", i)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(4))
}

func TestRunBoundedReturnsFirstError(t *testing.T) {
	err := RunBounded(2, 10, func(index int) error {
		if index == 3 {
			return fmt.Errorf("boom at %d", index)
		}
		return nil
	})
	assert.Error(t, err)
}
