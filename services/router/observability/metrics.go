// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// router service.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the region
// queues, the executor and the diff engine:
//   - Job counters (by region and terminal status)
//   - Queue depth gauges (by region and lane)
//   - Retry and dead-letter counters
//   - Inference duration histograms (by region and provider)
//   - Provider health gauges
//   - Diff analysis counters (by risk level)
//
// Metrics are exposed via the /metrics endpoint.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics.
const metricsNamespace = "vantage"

// RouterMetrics holds all Prometheus metrics for the router service.
// Initialize once at startup via InitMetrics().
type RouterMetrics struct {
	// JobsTotal counts jobs reaching a terminal state.
	// Labels: region, status (completed, failed)
	JobsTotal *prometheus.CounterVec

	// QueueDepth tracks jobs waiting per region and lane.
	// Labels: region, lane (regular, retry)
	QueueDepth *prometheus.GaugeVec

	// RetriesTotal counts retry schedules. Labels: region
	RetriesTotal *prometheus.CounterVec

	// DeadLettersTotal counts jobs dead-lettered after exhausting retries.
	// Labels: region
	DeadLettersTotal *prometheus.CounterVec

	// InferenceDurationSeconds measures successful call latency.
	// Labels: region, provider
	InferenceDurationSeconds *prometheus.HistogramVec

	// ProviderHealthy reports provider health (1 healthy, 0.5 degraded,
	// 0 unhealthy). Labels: provider, region
	ProviderHealthy *prometheus.GaugeVec

	// AnalysesTotal counts diff analyses computed. Labels: risk_level
	AnalysesTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
var DefaultMetrics *RouterMetrics

// InitMetrics creates and registers all router metrics on the default
// Prometheus registry. Call once at startup.
func InitMetrics() *RouterMetrics {
	m := &RouterMetrics{
		JobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "jobs_total",
			Help:      "Jobs reaching a terminal state, by region and status.",
		}, []string{"region", "status"}),
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Jobs currently waiting, by region and lane.",
		}, []string{"region", "lane"}),
		RetriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "retries_total",
			Help:      "Retries scheduled to the priority lane, by region.",
		}, []string{"region"}),
		DeadLettersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "dead_letters_total",
			Help:      "Jobs dead-lettered after exhausting retries, by region.",
		}, []string{"region"}),
		InferenceDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "executor",
			Name:      "inference_duration_seconds",
			Help:      "Successful inference call latency.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"region", "provider"}),
		ProviderHealthy: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "registry",
			Name:      "provider_healthy",
			Help:      "Provider health: 1 healthy, 0.5 degraded, 0 unhealthy.",
		}, []string{"provider", "region"}),
		AnalysesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "analysis",
			Name:      "analyses_total",
			Help:      "Cross-region diff analyses computed, by risk level.",
		}, []string{"risk_level"}),
	}
	DefaultMetrics = m
	return m
}

// =============================================================================
// Nil-Safe Recording Helpers
// =============================================================================
//
// Queue and engine code records through these helpers so unit tests can run
// without touching the global Prometheus registry.

// RecordJob records a terminal job outcome.
func (m *RouterMetrics) RecordJob(region, status string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(region, status).Inc()
}

// SetQueueDepth updates the depth gauge for one lane.
func (m *RouterMetrics) SetQueueDepth(region, lane string, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(region, lane).Set(float64(depth))
}

// RecordRetry counts one scheduled retry.
func (m *RouterMetrics) RecordRetry(region string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(region).Inc()
}

// RecordDeadLetter counts one dead-lettered job.
func (m *RouterMetrics) RecordDeadLetter(region string) {
	if m == nil {
		return
	}
	m.DeadLettersTotal.WithLabelValues(region).Inc()
}

// RecordInference records a successful call latency.
func (m *RouterMetrics) RecordInference(region, provider string, seconds float64) {
	if m == nil {
		return
	}
	m.InferenceDurationSeconds.WithLabelValues(region, provider).Observe(seconds)
}

// SetProviderHealth updates the provider health gauge.
func (m *RouterMetrics) SetProviderHealth(provider, region string, value float64) {
	if m == nil {
		return
	}
	m.ProviderHealthy.WithLabelValues(provider, region).Set(value)
}

// RecordAnalysis counts one computed diff analysis.
func (m *RouterMetrics) RecordAnalysis(riskLevel string) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(riskLevel).Inc()
}
