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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectPoolWarmsToDepth(t *testing.T) {
	p := newObjectPool(newTestMessage, 4)
	assert.Len(t, p.free, 4)
}

func TestObjectPoolGetPutRecycles(t *testing.T) {
	p := newObjectPool(newTestMessage, 2)

	a := p.get()
	b := p.get()
	assert.NotNil(t, a)
	assert.NotNil(t, b)
	assert.Empty(t, p.free)

	a.Value = 7
	p.put(a)
	assert.Len(t, p.free, 1)

	c := p.get()
	assert.Same(t, a, c)
	assert.Equal(t, int64(7), c.Value)
}

func TestObjectPoolBuildsFreshWhenExhausted(t *testing.T) {
	p := newObjectPool(newTestMessage, 0)
	assert.Empty(t, p.free)

	m := p.get()
	assert.NotNil(t, m)
}
