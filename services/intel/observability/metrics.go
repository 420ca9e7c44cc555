// Copyright (C) 2026 Sightline Intelligence (eng@sightline-intel.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability holds the Prometheus metric set and the OTLP
// tracer bootstrap.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sightline"

// Metrics is the service's Prometheus instrument set.
type Metrics struct {
	// UpstreamRequestsTotal counts attempts per family and outcome
	// (success, failure, rejected).
	UpstreamRequestsTotal *prometheus.CounterVec

	// UpstreamFailuresTotal counts classified failures per family and kind.
	UpstreamFailuresTotal *prometheus.CounterVec

	// UpstreamLatencySeconds observes per-attempt upstream latency.
	UpstreamLatencySeconds *prometheus.HistogramVec

	// CacheEventsTotal counts cache hits and misses per family.
	CacheEventsTotal *prometheus.CounterVec

	// CircuitState exports each family's breaker state:
	// 0 closed, 1 half-open, 2 open.
	CircuitState *prometheus.GaugeVec

	// CostUnitsTotal accumulates estimated upstream cost units per family.
	CostUnitsTotal *prometheus.CounterVec

	// ReportsTotal counts assembled reports by completeness.
	ReportsTotal *prometheus.CounterVec

	// ReportDurationSeconds observes end-to-end report build time.
	ReportDurationSeconds prometheus.Histogram

	// ProgressEventsDropped counts progress events dropped by the hub.
	ProgressEventsDropped prometheus.Counter
}

// NewMetrics registers the instrument set against reg. Tests pass their
// own registry to avoid duplicate-registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		UpstreamRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream call attempts by family and outcome.",
		}, []string{"family", "outcome"}),

		UpstreamFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Classified upstream failures by family and kind.",
		}, []string{"family", "kind"}),

		UpstreamLatencySeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_seconds",
			Help:      "Per-attempt upstream latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"family"}),

		CacheEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Cache hits and misses by family.",
		}, []string{"family", "event"}),

		CircuitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_state",
			Help:      "Breaker state per family: 0 closed, 1 half-open, 2 open.",
		}, []string{"family"}),

		CostUnitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_units_total",
			Help:      "Estimated upstream cost units consumed, by family.",
		}, []string{"family"}),

		ReportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Assembled reports by completeness.",
		}, []string{"complete"}),

		ReportDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "End-to-end report assembly time.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),

		ProgressEventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_events_dropped_total",
			Help:      "Progress events dropped because a queue was full.",
		}),
	}
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// InitMetrics registers the instrument set against the default registry
// exactly once and returns it.
func InitMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}
