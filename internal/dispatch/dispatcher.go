// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

// Package dispatch orchestrates event delivery: consent gate, endpoint
// and adapter resolution, dedup check, adapter send, failure recording,
// retry enqueue and dedup mark, strictly in that order. Every exit
// returns a typed result; nothing here panics or throws past the
// boundary.
package dispatch

import (
	"net/url"
	"time"

	"github.com/clicutcl/clicutcl/internal/adapters"
	"github.com/clicutcl/clicutcl/internal/config"
	"github.com/clicutcl/clicutcl/internal/dedup"
	"github.com/clicutcl/clicutcl/internal/event"
	"github.com/clicutcl/clicutcl/internal/logging"
	"github.com/clicutcl/clicutcl/internal/metrics"
	"github.com/clicutcl/clicutcl/internal/telemetry"
)

// Skip and failure status codes produced by the dispatcher itself, in
// gate order. Adapter results pass through untouched.
const (
	StatusDisabled        = "disabled"
	StatusMissingEndpoint = "missing_endpoint"
	StatusConsentDenied   = "consent_denied"
	StatusMissingAdapter  = "missing_adapter"
	StatusDuplicateEvent  = "duplicate_event"
)

// Enqueuer is the retry queue surface the dispatcher needs. Defined
// here so the queue depends on dispatch results, not the other way
// around.
type Enqueuer interface {
	Enqueue(eventName, eventID, adapterKey, endpoint string, payload map[string]interface{}, lastError string) error
}

// Dispatcher drives delivery for the configured primary destination.
type Dispatcher struct {
	destinations config.DestinationsConfig
	dedup        *dedup.Store
	queue        Enqueuer
	recorder     *Recorder
	dedupTTL     time.Duration

	// newAdapter is swapped by tests to observe sends.
	newAdapter func(kind string, cfg adapters.Config) (adapters.Adapter, error)
}

// New builds a dispatcher. The enqueuer may be nil, in which case
// failed sends are recorded but not retried.
func New(destinations config.DestinationsConfig, store *dedup.Store, queue Enqueuer, recorder *Recorder, dedupTTL time.Duration) *Dispatcher {
	return &Dispatcher{
		destinations: destinations,
		dedup:        store,
		queue:        queue,
		recorder:     recorder,
		dedupTTL:     dedupTTL,
		// Shared memoizes the breaker-wrapped adapter per destination so
		// consecutive failures across dispatches accumulate in one breaker.
		newAdapter: adapters.Shared,
	}
}

// Dispatch delivers one event in its flattened internal shape. The
// accumulator collects failure telemetry for the surrounding request;
// the caller flushes it once when the request ends.
func (d *Dispatcher) Dispatch(payload map[string]interface{}, acc *telemetry.Accumulator) adapters.Result {
	eventName, _ := payload["event_name"].(string)
	eventID, _ := payload["event_id"].(string)
	dest := d.destinations.Primary

	if !d.destinations.Enabled || !dest.Enabled {
		return d.finish(dest.Kind, adapters.SkippedResult(StatusDisabled))
	}

	if dest.Endpoint == "" {
		d.recorder.RecordError(dest.Kind, StatusMissingEndpoint, "no destination endpoint configured")
		acc.RecordFailure(StatusMissingEndpoint)
		return d.finish(dest.Kind, adapters.SkippedResult(StatusMissingEndpoint))
	}

	if dest.RequireConsent && !marketingConsent(payload) {
		// expected outcome, not an error: no telemetry, no recording
		return d.finish(dest.Kind, adapters.SkippedResult(StatusConsentDenied))
	}

	adapter, err := d.newAdapter(dest.Kind, adapters.Config{
		Endpoint: dest.Endpoint,
		APIKey:   dest.APIKey,
		Timeout:  dest.Timeout,
	})
	if err != nil {
		d.recorder.RecordError(dest.Kind, StatusMissingAdapter, err.Error())
		acc.RecordFailure(StatusMissingAdapter)
		return d.finish(dest.Kind, adapters.FailureResult(StatusMissingAdapter, 0, err.Error()))
	}

	if d.dedup.IsDuplicate(dest.Kind, eventName, eventID) {
		return d.finish(dest.Kind, adapters.SkippedResult(StatusDuplicateEvent))
	}

	start := time.Now()
	result := adapter.Send(payload)
	metrics.DispatchDuration.WithLabelValues(dest.Kind).Observe(time.Since(start).Seconds())

	if d.recorder.DebugActive() {
		d.recorder.LogDispatch(DispatchLogEntry{
			EventName:    eventName,
			EventID:      eventID,
			Adapter:      adapter.Name(),
			Status:       result.Status,
			HTTPStatus:   result.HTTPStatus,
			Message:      result.Message,
			EndpointHost: endpointHost(dest.Endpoint),
		})
	}

	if result.Failed() {
		d.recorder.RecordError(dest.Kind, result.Status, result.Message)
		acc.RecordFailure(result.Status)
		if d.queue != nil {
			if qerr := d.queue.Enqueue(eventName, eventID, dest.Kind, dest.Endpoint, payload, result.Message); qerr != nil {
				logging.Err(qerr).
					Str("event_name", eventName).
					Str("event_id", eventID).
					Msg("Retry enqueue failed")
			}
		}
		return d.finish(dest.Kind, result)
	}

	if result.Success {
		if merr := d.dedup.Mark(dest.Kind, eventName, eventID, d.dedupTTL); merr != nil {
			logging.Err(merr).
				Str("event_name", eventName).
				Str("event_id", eventID).
				Msg("Dedup mark failed after successful send")
		}
	}
	return d.finish(dest.Kind, result)
}

// DispatchFromV2 maps a canonical v2 event into the flattened internal
// shape and dispatches it. One delivery code path regardless of which
// schema produced the event.
func (d *Dispatcher) DispatchFromV2(c *event.Canonical, acc *telemetry.Accumulator) adapters.Result {
	return d.Dispatch(c.ToLegacy(), acc)
}

// Destination returns the configured primary destination kind.
func (d *Dispatcher) Destination() string {
	return d.destinations.Primary.Kind
}

// HealthCheck probes the primary destination.
func (d *Dispatcher) HealthCheck() adapters.Result {
	dest := d.destinations.Primary
	adapter, err := d.newAdapter(dest.Kind, adapters.Config{
		Endpoint: dest.Endpoint,
		APIKey:   dest.APIKey,
		Timeout:  dest.Timeout,
	})
	if err != nil {
		return adapters.FailureResult(StatusMissingAdapter, 0, err.Error())
	}
	return adapter.HealthCheck()
}
func (d *Dispatcher) finish(destination string, result adapters.Result) adapters.Result {
	status := "failed"
	switch {
	case result.Success:
		status = "sent"
	case result.Skipped && result.Status == StatusDuplicateEvent:
		status = "duplicate"
	case result.Skipped:
		status = "skipped"
	case result.Status == StatusMissingAdapter:
		status = "failed" // config errors are not enqueued
	case d.queue != nil:
		status = "queued"
	}
	metrics.DispatchOutcomes.WithLabelValues(destination, status).Inc()
	return result
}

// marketingConsent reads the consent block from the flattened payload.
// A missing block denies.
func marketingConsent(payload map[string]interface{}) bool {
	consentMap, ok := payload["consent"].(map[string]interface{})
	if !ok {
		return false
	}
	granted, ok := consentMap["marketing"].(bool)
	return ok && granted
}

func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Host
}
