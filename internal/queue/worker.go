// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package queue

import (
	"context"
	"time"

	"github.com/clicutcl/clicutcl/internal/logging"
)

// DefaultWorkerInterval is how often the worker drains the queue.
const DefaultWorkerInterval = 5 * time.Minute

// Worker periodically drains the retry queue. It implements
// suture.Service and runs under the application supervision tree.
type Worker struct {
	queue    *Queue
	interval time.Duration
}

// NewWorker builds the periodic worker. A zero interval takes the
// 5 minute default.
func NewWorker(q *Queue, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultWorkerInterval
	}
	return &Worker{queue: q, interval: interval}
}

// Serve runs the drain loop until the context is canceled. Errors from
// a single run are logged and the loop continues; the supervisor only
// restarts the worker on a returned error.
func (w *Worker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", w.interval).Msg("Retry worker started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Retry worker stopping")
			return ctx.Err()
		case <-ticker.C:
			processed, err := w.queue.Process(ctx)
			if err != nil {
				logging.Err(err).Msg("Retry worker run failed")
				continue
			}
			if processed > 0 {
				logging.Info().Int("processed", processed).Msg("Retry worker run complete")
			}
		}
	}
}

// String names the service in supervisor logs.
func (w *Worker) String() string { return "retry-queue-worker" }
