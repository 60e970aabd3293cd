// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

// Package metrics provides Prometheus instrumentation for the gateway:
// connection lifecycle, inbound event throughput, rate limiting, broadcast
// fan-out and collaborator circuit breakers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection lifecycle
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_connections_active",
			Help: "Current number of live chat connections",
		},
	)

	ObserversActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_observers_active",
			Help: "Current number of privileged metrics observers",
		},
	)

	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_auth_failures_total",
			Help: "Total rejected connection attempts",
		},
		[]string{"reason"}, // "missing_token", "invalid_token", "forbidden"
	)

	// Inbound events
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_events_total",
			Help: "Total inbound events by type",
		},
		[]string{"event"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_rate_limit_rejections_total",
			Help: "Total events rejected by the per-subject rate limiter",
		},
		[]string{"tier"}, // "minute", "hour"
	)

	FaultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_faults_total",
			Help: "Total faults translated at the boundary",
		},
		[]string{"code"},
	)

	// Fan-out
	MessagesBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_messages_broadcast_total",
			Help: "Total messages fanned out to room members",
		},
		[]string{"event"},
	)

	BroadcastFanout = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_broadcast_fanout_size",
			Help:    "Number of recipients per broadcast",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	SlowConsumerDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_slow_consumer_drops_total",
			Help: "Connections dropped because their send buffer was full",
		},
	)

	// Metrics broadcast (privileged channel)
	SnapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_snapshot_duration_seconds",
			Help:    "Duration of collaborator snapshot pulls",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotSectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_snapshot_section_errors_total",
			Help: "Snapshot sections degraded by collaborator failures",
		},
		[]string{"section"}, // "queue", "cache", "store"
	)

	// Circuit breakers around metrics collaborators
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_circuit_breaker_requests_total",
			Help: "Requests through collaborator circuit breakers by outcome",
		},
		[]string{"name", "outcome"}, // "success", "failure", "rejected"
	)
)
