// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

// Package metrics defines Prometheus collectors for the event pipeline.
// All collectors are registered on the default registry via promauto and
// exposed on /metrics by the API router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clicutcl"

var (
	// EventsReceived counts raw events accepted at the intake surface,
	// labeled by source (batch, webhook, lifecycle).
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "events_received_total",
			Help:      "Total events received at intake, by source.",
		},
		[]string{"source"},
	)

	// EventsRejected counts events rejected before dispatch, labeled by
	// reason (invalid_event, auth_failed, rate_limited, payload_too_large,
	// batch_too_large).
	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intake",
			Name:      "events_rejected_total",
			Help:      "Total events rejected at intake, by reason.",
		},
		[]string{"reason"},
	)

	// DispatchOutcomes counts dispatch results per destination and status
	// (sent, skipped, duplicate, failed, queued).
	DispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "outcomes_total",
			Help:      "Dispatch outcomes by destination and status.",
		},
		[]string{"destination", "status"},
	)

	// DispatchDuration observes adapter send latency per destination.
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Adapter send duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"destination"},
	)

	// DedupChecks counts deduplication lookups, labeled by result
	// (hit, miss).
	DedupChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "checks_total",
			Help:      "Deduplication store lookups, by result.",
		},
		[]string{"result"},
	)

	// QueueDepth tracks the number of pending retry queue entries.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Pending entries in the retry queue.",
		},
	)

	// QueueRetries counts retry attempts, labeled by outcome
	// (delivered, failed, dropped).
	QueueRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "retries_total",
			Help:      "Retry queue processing attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	// WebhookEvents counts provider webhook deliveries, labeled by
	// provider and result (accepted, rejected, replayed, unsupported).
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhooks",
			Name:      "events_total",
			Help:      "Provider webhook deliveries, by provider and result.",
		},
		[]string{"provider", "result"},
	)

	// HTTPRequests counts HTTP requests by route pattern, method and code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		},
		[]string{"route", "method", "code"},
	)

	// TelemetryFlushes counts failure telemetry flushes, labeled by result
	// (ok, error, throttled).
	TelemetryFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "flushes_total",
			Help:      "Failure telemetry flushes, by result.",
		},
		[]string{"result"},
	)

	// CircuitBreakerState exposes adapter circuit breaker state per
	// destination (0 closed, 1 half-open, 2 open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per destination (0=closed, 1=half-open, 2=open).",
		},
		[]string{"destination"},
	)
)
