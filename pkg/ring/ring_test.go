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
	"encoding/binary"
	"fmt"
)

// testMessage is the Message implementation shared by every test in this
// package: an 8-byte little-endian value, nothing more.
type testMessage struct {
	Value int64
}

const testMessageSize = 8

func newTestMessage() *testMessage { return &testMessage{} }

func (m *testMessage) MaxSize() int { return testMessageSize }

func (m *testMessage) WriteTo(b []byte) (int, error) {
	if len(b) < testMessageSize {
		return 0, fmt.Errorf("test message: buffer too small")
	}
	binary.LittleEndian.PutUint64(b, uint64(m.Value))
	return testMessageSize, nil
}

func (m *testMessage) ReadFrom(b []byte) (int, error) {
	if len(b) < testMessageSize {
		return 0, fmt.Errorf("test message: buffer too small")
	}
	m.Value = int64(binary.LittleEndian.Uint64(b))
	return testMessageSize, nil
}
