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

// objectPool is a fixed-capacity free list of pre-built Message instances.
// It is deliberately single-threaded: only producers hold one, and a
// producer's pool is only ever touched from the producer's own goroutine
// (between NextToDispatch and Flush), so no synchronization is needed.
// Consumers hold no pool; each decodes into a single instance built at
// open time. This
// mirrors the single-threaded contract of the original's free-list, which
// is explicit that it "will break if used concurrently by multiple
// threads" - the ring's SPSC/SPMC discipline is what keeps that true here.
//
// get never allocates once warm: the pool is pre-filled to depth at
// construction, and put recycles an instance by index instead of letting
// it become garbage.
type objectPool[E Message] struct {
	builder Builder[E]
	free    []E
}

func newObjectPool[E Message](builder Builder[E], depth int) *objectPool[E] {
	p := &objectPool[E]{
		builder: builder,
		free:    make([]E, 0, depth),
	}
	for i := 0; i < depth; i++ {
		p.free = append(p.free, builder())
	}
	return p
}

// get removes and returns the last free instance, building a fresh one if
// the pool has run dry (this only allocates under sustained in-flight
// depth beyond what the caller provisioned, never on the steady-state
// path).
func (p *objectPool[E]) get() E {
	n := len(p.free)
	if n == 0 {
		return p.builder()
	}
	e := p.free[n-1]
	var zero E
	p.free[n-1] = zero
	p.free = p.free[:n-1]
	return e
}

// put returns an instance to the pool for reuse.
func (p *objectPool[E]) put(e E) {
	p.free = append(p.free, e)
}
