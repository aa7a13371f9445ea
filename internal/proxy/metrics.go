// Copyright 2026 The ClassBridge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package proxy

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/classbridge/classbridge/internal/observability/metrics"
)

// Metrics holds the proxy's instruments. All methods are nil-safe so wiring
// without a meter (tests, disabled observability) costs nothing.
type Metrics struct {
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	gateDenials     metric.Int64Counter
	upstreamSeconds metric.Float64Histogram
}

// NewMetrics registers the proxy instruments on the meter.
func NewMetrics(m *metrics.Meter) (*Metrics, error) {
	hits, err := m.CreateCounter("classbridge_cache_hits_total",
		"Reads served from cache without an upstream call")
	if err != nil {
		return nil, err
	}
	misses, err := m.CreateCounter("classbridge_cache_misses_total",
		"Reads that fell through to the upstream record API")
	if err != nil {
		return nil, err
	}
	denials, err := m.CreateCounter("classbridge_gate_denials_total",
		"Requests denied by the subscription gate")
	if err != nil {
		return nil, err
	}
	hist, err := m.CreateHistogram("classbridge_upstream_duration_seconds",
		"Latency of upstream record API calls", "s")
	if err != nil {
		return nil, err
	}
	return &Metrics{
		cacheHits:       hits,
		cacheMisses:     misses,
		gateDenials:     denials,
		upstreamSeconds: hist,
	}, nil
}

func (m *Metrics) recordHit(ctx context.Context, resource string) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("resource", resource)))
}

func (m *Metrics) recordMiss(ctx context.Context, resource string) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("resource", resource)))
}

func (m *Metrics) recordDenial(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.gateDenials.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) recordUpstream(ctx context.Context, resource string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamSeconds.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("resource", resource)))
}
