// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package adapters

import (
	"errors"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/clicutcl/clicutcl/internal/logging"
	"github.com/clicutcl/clicutcl/internal/metrics"
)

// breakerFailureThreshold trips the breaker after this many consecutive
// delivery failures.
const breakerFailureThreshold = 5

// breakerOpenTimeout is how long the breaker stays open before probing.
const breakerOpenTimeout = 60 * time.Second

var errDeliveryFailed = errors.New("delivery failed")

var (
	sharedMu       sync.Mutex
	sharedAdapters = map[string]Adapter{}
)

// Shared returns the breaker-wrapped adapter for a destination, building
// it on first use. Breaker state only counts for anything when it
// persists across sends, so every caller delivering to the same
// destination must resolve the same instance.
func Shared(kind string, cfg Config) (Adapter, error) {
	key := kind + "|" + cfg.Endpoint
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if a, ok := sharedAdapters[key]; ok {
		return a, nil
	}
	inner, err := New(kind, cfg)
	if err != nil {
		return nil, err
	}
	a := WithBreaker(inner)
	sharedAdapters[key] = a
	return a, nil
}

// WithBreaker wraps an adapter in a circuit breaker. While the breaker
// is open, sends short-circuit into a circuit_open failure that feeds
// the standard retry path instead of hammering a dead destination.
// Skips and health checks do not count against the breaker.
func WithBreaker(inner Adapter) Adapter {
	name := inner.Name()
	cb := gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			logging.Warn().
				Str("destination", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Destination circuit breaker state change")
		},
	})
	return &breakerAdapter{inner: inner, cb: cb}
}

type breakerAdapter struct {
	inner Adapter
	cb    *gobreaker.CircuitBreaker[Result]
}

func (b *breakerAdapter) Name() string { return b.inner.Name() }

func (b *breakerAdapter) Send(payload map[string]interface{}) Result {
	result, err := b.cb.Execute(func() (Result, error) {
		r := b.inner.Send(payload)
		if r.Failed() {
			return r, errDeliveryFailed
		}
		return r, nil
	})
	if err != nil {
		if errors.Is(err, errDeliveryFailed) {
			return result
		}
		// breaker rejected the call without invoking the adapter
		return FailureResult("circuit_open", 0, err.Error())
	}
	return result
}

func (b *breakerAdapter) HealthCheck() Result {
	return b.inner.HealthCheck()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
