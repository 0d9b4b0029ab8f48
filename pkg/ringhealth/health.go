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

// Package ringhealth exposes a ring consumer's health as an HTTP liveness
// and readiness handler, so a process hosting a non-blocking consumer can
// be drained or restarted before it silently falls behind and starts
// dropping messages.
package ringhealth

import (
	"fmt"

	"github.com/heptiolabs/healthcheck"
	"github.com/shirou/gopsutil/v3/mem"
)

// LagSource is satisfied by any ring consumer (blocking, non-blocking, or
// broadcast): AvailableToFetch already returns -1 on non-blocking overtake,
// which this package treats as an unhealthy liveness signal.
type LagSource interface {
	AvailableToFetch() int64
}

// NewHandler builds a healthcheck.Handler wired with:
//   - a liveness check that fails once source reports an overtake (-1) or
//     a lag above maxHealthyLag;
//   - a readiness check gating on available system memory headroom, so a
//     consumer under memory pressure is taken out of rotation before it
//     starts failing allocations it cannot avoid (decode buffers, pool
//     growth beyond the pre-warmed depth).
func NewHandler(name string, source LagSource, maxHealthyLag int64, minFreeMemoryBytes uint64) healthcheck.Handler {
	h := healthcheck.NewHandler()

	h.AddLivenessCheck(name+"-lag", func() error {
		lag := source.AvailableToFetch()
		if lag < 0 {
			return fmt.Errorf("%s: producer overtook consumer", name)
		}
		if lag > maxHealthyLag {
			return fmt.Errorf("%s: lag %d exceeds healthy threshold %d", name, lag, maxHealthyLag)
		}
		return nil
	})

	h.AddReadinessCheck(name+"-memory", func() error {
		vm, err := mem.VirtualMemory()
		if err != nil {
			return fmt.Errorf("%s: cannot read memory stats: %w", name, err)
		}
		if vm.Available < minFreeMemoryBytes {
			return fmt.Errorf("%s: available memory %d below threshold %d", name, vm.Available, minFreeMemoryBytes)
		}
		return nil
	})

	return h
}
