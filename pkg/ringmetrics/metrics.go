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

// Package ringmetrics instruments a ring producer/consumer pair with
// Prometheus counters/gauges and an OpenTelemetry meter and tracer. A
// Recorder is constructed once per ring endpoint and its methods are
// called by the caller around the corresponding producer/consumer
// operations;
// ring itself stays free of any metrics dependency so the hot path never
// pays for an instrumentation call it does not want.
package ringmetrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Recorder instruments one ring endpoint (a producer or a consumer
// attached to one ring file).
type Recorder struct {
	ringName string

	offered          prometheus.Counter
	fetched          prometheus.Counter
	checksumFailures prometheus.Counter
	lagOvertakes     prometheus.Counter
	lagGauge         prometheus.Gauge

	meter        metric.Meter
	offeredOtel  metric.Int64Counter
	fetchedOtel  metric.Int64Counter
	tracer       trace.Tracer
}

// NewRecorder registers Prometheus collectors for ringName against reg
// (pass prometheus.DefaultRegisterer to use the global registry). If meter
// is non-nil, the offered and fetched counters are mirrored as OTel
// Int64Counters; the checksum-failure and overtake counters and the lag
// gauge are Prometheus-only. If tracer is non-nil, StartSpan creates spans
// through it; no span is started unless the caller calls StartSpan.
func NewRecorder(reg prometheus.Registerer, meter metric.Meter, tracer trace.Tracer, ringName string) (*Recorder, error) {
	r := &Recorder{
		ringName: ringName,
		offered: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ring_messages_offered_total",
			Help:        "Messages successfully published to the ring.",
			ConstLabels: prometheus.Labels{"ring": ringName},
		}),
		fetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ring_messages_fetched_total",
			Help:        "Messages successfully fetched from the ring.",
			ConstLabels: prometheus.Labels{"ring": ringName},
		}),
		checksumFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ring_checksum_failures_total",
			Help:        "Non-blocking fetches rejected by checksum verification.",
			ConstLabels: prometheus.Labels{"ring": ringName},
		}),
		lagOvertakes: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ring_lag_overtakes_total",
			Help:        "Times a non-blocking consumer observed the producer had wrapped past it.",
			ConstLabels: prometheus.Labels{"ring": ringName},
		}),
		lagGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ring_consumer_lag",
			Help:        "Most recently observed AvailableToFetch() value.",
			ConstLabels: prometheus.Labels{"ring": ringName},
		}),
		meter:  meter,
		tracer: tracer,
	}

	for _, c := range []prometheus.Collector{r.offered, r.fetched, r.checksumFailures, r.lagOvertakes, r.lagGauge} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	if meter != nil {
		var err error
		if r.offeredOtel, err = meter.Int64Counter("ring.messages.offered"); err != nil {
			return nil, err
		}
		if r.fetchedOtel, err = meter.Int64Counter("ring.messages.fetched"); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// ObserveOffer records a successful publish.
func (r *Recorder) ObserveOffer(ctx context.Context) {
	r.offered.Inc()
	if r.offeredOtel != nil {
		r.offeredOtel.Add(ctx, 1)
	}
}

// ObserveFetch records a successful fetch and the lag value observed just
// before it (AvailableToFetch's return value).
func (r *Recorder) ObserveFetch(ctx context.Context, lag int64) {
	r.fetched.Inc()
	r.lagGauge.Set(float64(lag))
	if r.fetchedOtel != nil {
		r.fetchedOtel.Add(ctx, 1)
	}
}

// ObserveChecksumFailure records a rejected non-blocking fetch.
func (r *Recorder) ObserveChecksumFailure() { r.checksumFailures.Inc() }

// ObserveLagOvertake records a consumer observing AvailableToFetch() == -1.
func (r *Recorder) ObserveLagOvertake() { r.lagOvertakes.Inc() }

// StartSpan begins a span named operation if a tracer was supplied,
// otherwise it returns a no-op end function.
func (r *Recorder) StartSpan(ctx context.Context, operation string) (context.Context, func()) {
	if r.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := r.tracer.Start(ctx, r.ringName+"."+operation)
	return ctx, func() { span.End() }
}
