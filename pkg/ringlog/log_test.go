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

package ringlog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerRespectsLevel(t *testing.T) {
	defer SetLevel(LevelWarn)

	var buf bytes.Buffer
	l := New("test", &buf)

	SetLevel(LevelWarn)
	l.Infof("should not appear")
	assert.Empty(t, buf.String())

	l.Warnf("should appear: %d", 7)
	assert.Contains(t, buf.String(), "should appear: 7")
	assert.Contains(t, buf.String(), "Warn")
	assert.Contains(t, buf.String(), "test")
}

func TestLoggerTraceLevelShowsEverything(t *testing.T) {
	defer SetLevel(LevelWarn)

	var buf bytes.Buffer
	l := New("test", &buf)
	SetLevel(LevelTrace)

	l.Tracef("trace line")
	l.Debugf("debug line")
	l.Infof("info line")
	l.Warnf("warn line")
	l.Errorf("error line")

	out := buf.String()
	for _, want := range []string{"trace line", "debug line", "info line", "warn line", "error line"} {
		assert.True(t, strings.Contains(out, want), "expected output to contain %q, got %q", want, out)
	}
}

func TestSetLevelIgnoresOutOfRangeValue(t *testing.T) {
	defer SetLevel(LevelWarn)

	SetLevel(LevelWarn)
	SetLevel(levelNoPrint + 1)
	assert.Equal(t, LevelWarn, level)
}

func TestNewDefaultsToStdoutWhenWriterIsNil(t *testing.T) {
	l := New("test", nil)
	assert.NotNil(t, l.out)
}
