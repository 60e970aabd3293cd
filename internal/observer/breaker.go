// Relaygate - Real-Time Chat Gateway
// Copyright 2026 M. Feltz (mfeltz)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mfeltz/relaygate

package observer

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mfeltz/relaygate/internal/logging"
	"github.com/mfeltz/relaygate/internal/metrics"
	"github.com/mfeltz/relaygate/internal/models"
)

// newBreaker builds a circuit breaker for one collaborator. The breaker uses
// real time for its interval and timeout; tests exercise the wrapped
// collaborator directly rather than mocking breaker timing.
//
// Configuration: 3 concurrent requests in half-open state, 1 minute
// measurement window, 30s before recovery attempts, opens after 60% failures
// with at least 5 requests.
func newBreaker[T any](name string) *gobreaker.CircuitBreaker[T] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().
				Str("breaker", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("collaborator circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// execute runs fn through the breaker and records the outcome.
func execute[T any](cb *gobreaker.CircuitBreaker[T], name string, fn func() (T, error)) (T, error) {
	result, err := cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
		}
		var zero T
		return zero, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
	return result, nil
}

// BreakerQueueStats wraps a QueueStats collaborator in a circuit breaker.
type BreakerQueueStats struct {
	inner QueueStats
	cb    *gobreaker.CircuitBreaker[models.QueueCounts]
	name  string
}

// NewBreakerQueueStats wraps the collaborator; name labels the breaker metrics.
func NewBreakerQueueStats(inner QueueStats, name string) *BreakerQueueStats {
	return &BreakerQueueStats{inner: inner, cb: newBreaker[models.QueueCounts](name), name: name}
}

func (b *BreakerQueueStats) QueueCounts(ctx context.Context) (models.QueueCounts, error) {
	return execute(b.cb, b.name, func() (models.QueueCounts, error) {
		return b.inner.QueueCounts(ctx)
	})
}

// BreakerCacheProbe wraps a CacheProbe collaborator in a circuit breaker.
type BreakerCacheProbe struct {
	inner CacheProbe
	cb    *gobreaker.CircuitBreaker[models.CacheHealth]
	name  string
}

// NewBreakerCacheProbe wraps the collaborator; name labels the breaker metrics.
func NewBreakerCacheProbe(inner CacheProbe, name string) *BreakerCacheProbe {
	return &BreakerCacheProbe{inner: inner, cb: newBreaker[models.CacheHealth](name), name: name}
}

func (b *BreakerCacheProbe) CacheHealth(ctx context.Context) (models.CacheHealth, error) {
	return execute(b.cb, b.name, func() (models.CacheHealth, error) {
		return b.inner.CacheHealth(ctx)
	})
}

// BreakerStoreProbe wraps a StoreProbe collaborator in a circuit breaker.
type BreakerStoreProbe struct {
	inner StoreProbe
	cb    *gobreaker.CircuitBreaker[models.StoreHealth]
	name  string
}

// NewBreakerStoreProbe wraps the collaborator; name labels the breaker metrics.
func NewBreakerStoreProbe(inner StoreProbe, name string) *BreakerStoreProbe {
	return &BreakerStoreProbe{inner: inner, cb: newBreaker[models.StoreHealth](name), name: name}
}

func (b *BreakerStoreProbe) StoreHealth(ctx context.Context) (models.StoreHealth, error) {
	return execute(b.cb, b.name, func() (models.StoreHealth, error) {
		return b.inner.StoreHealth(ctx)
	})
}
