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

// SessionState is the producer or consumer side of a publish/fetch cycle,
// queryable for diagnostics and health checks. It is not part of the
// original ring's API surface; every producer and consumer here tracks it
// as a plain field alongside the counters the original already keeps.
type SessionState int

const (
	// Idle means no pending or in-flight messages: a producer has nothing
	// queued since its last Flush, a consumer nothing fetched since its
	// last DoneFetching or a RollBack of every in-flight fetch.
	Idle SessionState = iota

	// Pending is a producer that has called NextToDispatch at least once
	// since its last Flush.
	Pending

	// Fetching is a consumer that has called Fetch at least once since
	// its last DoneFetching and still has in-flight fetches not rolled back.
	Fetching
)

func (s SessionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Fetching:
		return "fetching"
	default:
		return "unknown"
	}
}
