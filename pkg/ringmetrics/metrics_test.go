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

package ringmetrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/assert"
)

func TestNewRecorderRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg, nil, nil, "test-ring")
	require.NoError(t, err)

	r.ObserveOffer(context.Background())
	r.ObserveFetch(context.Background(), 3)
	r.ObserveChecksumFailure()
	r.ObserveLagOvertake()

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	got := map[string]*dto.MetricFamily{}
	for _, mf := range metricFamilies {
		got[mf.GetName()] = mf
	}

	require.Contains(t, got, "ring_messages_offered_total")
	assert.Equal(t, float64(1), got["ring_messages_offered_total"].Metric[0].Counter.GetValue())

	require.Contains(t, got, "ring_messages_fetched_total")
	assert.Equal(t, float64(1), got["ring_messages_fetched_total"].Metric[0].Counter.GetValue())

	require.Contains(t, got, "ring_consumer_lag")
	assert.Equal(t, float64(3), got["ring_consumer_lag"].Metric[0].Gauge.GetValue())

	require.Contains(t, got, "ring_checksum_failures_total")
	assert.Equal(t, float64(1), got["ring_checksum_failures_total"].Metric[0].Counter.GetValue())

	require.Contains(t, got, "ring_lag_overtakes_total")
	assert.Equal(t, float64(1), got["ring_lag_overtakes_total"].Metric[0].Counter.GetValue())
}

func TestNewRecorderRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg, nil, nil, "dup-ring")
	require.NoError(t, err)

	_, err = NewRecorder(reg, nil, nil, "dup-ring")
	assert.Error(t, err)
}

func TestStartSpanIsNoOpWithoutTracer(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg, nil, nil, "no-tracer-ring")
	require.NoError(t, err)

	ctx, end := r.StartSpan(context.Background(), "offer")
	assert.NotNil(t, ctx)
	assert.NotPanics(t, end)
}
