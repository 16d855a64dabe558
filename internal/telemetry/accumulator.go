// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

// Package telemetry aggregates delivery failures into payload-free,
// hour-bucketed counters. Failure codes are counted in-process during
// a request and flushed once at the end; nothing here ever stores event
// contents or PII.
package telemetry

import (
	"sync"
)

// Accumulator collects per-request failure counts. One accumulator is
// created per request and flushed exactly once when the request ends;
// a second Flush is a no-op.
type Accumulator struct {
	mu      sync.Mutex
	counts  map[string]int64
	flushed bool
}

// NewAccumulator returns an empty per-request accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{counts: map[string]int64{}}
}

// RecordFailure increments the in-process counter for a failure code.
func (a *Accumulator) RecordFailure(code string) {
	if code == "" {
		code = "unknown"
	}
	a.mu.Lock()
	a.counts[code]++
	a.mu.Unlock()
}

// Flush drains the accumulated counts into the bucket store. Guarded
// against double-flush; safe to call from a deferred handler even when
// an earlier explicit flush already ran.
func (a *Accumulator) Flush(store *Store) {
	a.mu.Lock()
	if a.flushed || len(a.counts) == 0 {
		a.flushed = true
		a.mu.Unlock()
		return
	}
	counts := a.counts
	a.counts = map[string]int64{}
	a.flushed = true
	a.mu.Unlock()

	store.Flush(counts)
}

// snapshot returns a copy of the pending counts, used by tests.
func (a *Accumulator) snapshot() map[string]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int64, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}
