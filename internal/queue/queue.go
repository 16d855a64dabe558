// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

// Package queue implements durable at-least-once redelivery for failed
// dispatches. The retry_queue table is the queue; a periodic worker
// drains due rows under a short-lived mutual-exclusion lock so
// overlapping runs never double-send.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/clicutcl/clicutcl/internal/adapters"
	"github.com/clicutcl/clicutcl/internal/logging"
	"github.com/clicutcl/clicutcl/internal/metrics"
)

// DefaultMaxAttempts is the terminal attempt cutoff.
const DefaultMaxAttempts = 5

// DefaultBatchSize caps rows processed per worker run.
const DefaultBatchSize = 10

// DefaultLockTTL bounds how long a crashed worker run can hold the lock.
const DefaultLockTTL = 60 * time.Second

const lockKey = "lock:retry_queue"

const (
	backoffFloor = 60 * time.Second
	backoffCap   = 3600 * time.Second
)

// Backoff returns the delay before the next attempt: 60s doubling per
// attempt, capped at one hour.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := time.Duration(60*math.Pow(2, float64(attempt))) * time.Second
	if d < backoffFloor {
		return backoffFloor
	}
	if d > backoffCap {
		return backoffCap
	}
	return d
}

// errorRecorder is the failure snapshot surface the queue needs for
// terminal drops.
type errorRecorder interface {
	RecordError(destination, code, message string)
}

// Options configure the queue.
type Options struct {
	MaxAttempts int
	BatchSize   int
	LockTTL     time.Duration
}

func (o Options) normalize() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.LockTTL <= 0 {
		o.LockTTL = DefaultLockTTL
	}
	return o
}

// Queue is the durable retry queue.
type Queue struct {
	db       *sql.DB
	kv       *badger.DB
	opts     Options
	recorder errorRecorder
	now      func() time.Time

	// send is swapped by tests; the default rebuilds the adapter from
	// the stored adapter key and endpoint.
	send func(adapterKey, endpoint string, payload map[string]interface{}) adapters.Result
}

// New builds a queue over the durable store, using the key-value store
// for the worker lock. The recorder may be nil.
func New(db *sql.DB, kv *badger.DB, opts Options, recorder errorRecorder) *Queue {
	q := &Queue{
		db:       db,
		kv:       kv,
		opts:     opts.normalize(),
		recorder: recorder,
		now:      time.Now,
	}
	q.send = func(adapterKey, endpoint string, payload map[string]interface{}) adapters.Result {
		// Retries go through the same shared breaker as live dispatches,
		// so a dead destination is not hammered from two paths.
		adapter, err := adapters.Shared(adapterKey, adapters.Config{Endpoint: endpoint})
		if err != nil {
			return adapters.FailureResult("missing_adapter", 0, err.Error())
		}
		return adapter.Send(payload)
	}
	return q
}

// Enqueue inserts a failed dispatch for redelivery. A row with the same
// (event_name, event_id) already queued makes this a no-op, so the same
// logical event is never retried twice in parallel.
func (q *Queue) Enqueue(eventName, eventID, adapterKey, endpoint string, payload map[string]interface{}, lastError string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var exists int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM retry_queue WHERE event_name = ? AND event_id = ?`,
		eventName, eventID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking retry queue: %w", err)
	}
	if exists > 0 {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding retry payload: %w", err)
	}

	_, err = q.db.ExecContext(ctx,
		`INSERT INTO retry_queue (event_name, event_id, adapter, endpoint, payload, attempts, next_attempt_at, last_error)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		eventName, eventID, adapterKey, endpoint, string(data),
		q.now().Add(Backoff(0)), lastError)
	if err != nil {
		return fmt.Errorf("enqueueing retry: %w", err)
	}

	q.updateDepthGauge(ctx)
	return nil
}

// Process drains up to the batch size of due rows. Returns the number
// of rows handled. A second worker run overlapping the lock window is a
// silent no-op.
func (q *Queue) Process(ctx context.Context) (int, error) {
	acquired, err := q.acquireLock()
	if err != nil {
		return 0, fmt.Errorf("acquiring worker lock: %w", err)
	}
	if !acquired {
		logging.Debug().Msg("Retry worker lock held, skipping run")
		return 0, nil
	}
	defer q.releaseLock()

	rows, err := q.db.QueryContext(ctx,
		`SELECT id, event_name, event_id, adapter, endpoint, payload, attempts
		 FROM retry_queue WHERE next_attempt_at <= ? ORDER BY next_attempt_at LIMIT ?`,
		q.now(), q.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("selecting due retries: %w", err)
	}

	type row struct {
		id         int64
		eventName  string
		eventID    string
		adapterKey string
		endpoint   string
		payload    string
		attempts   int
	}
	var due []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.eventName, &r.eventID, &r.adapterKey, &r.endpoint, &r.payload, &r.attempts); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scanning retry row: %w", err)
		}
		due = append(due, r)
	}
	if err := rows.Close(); err != nil {
		return 0, fmt.Errorf("reading due retries: %w", err)
	}

	processed := 0
	for _, r := range due {
		if ctx.Err() != nil {
			break
		}

		var payload map[string]interface{}
		if err := json.Unmarshal([]byte(r.payload), &payload); err != nil {
			// unreadable payload can never deliver; drop it
			q.drop(ctx, r.id, r.adapterKey, "payload_corrupt", err.Error())
			processed++
			continue
		}

		result := q.send(r.adapterKey, r.endpoint, payload)
		processed++

		switch {
		case result.Success, result.Skipped:
			// skips mean the destination no longer wants the event;
			// keeping the row would retry forever
			if err := q.delete(ctx, r.id); err != nil {
				logging.Err(err).Int64("row", r.id).Msg("Deleting delivered retry row failed")
				continue
			}
			metrics.QueueRetries.WithLabelValues("delivered").Inc()
			logging.Info().
				Str("event_name", r.eventName).
				Str("event_id", r.eventID).
				Int("attempts", r.attempts).
				Msg("Retry delivered")

		default:
			attempts := r.attempts + 1
			if attempts >= q.opts.MaxAttempts {
				q.drop(ctx, r.id, r.adapterKey, "retry_exhausted", result.Message)
				continue
			}
			_, err := q.db.ExecContext(ctx,
				`UPDATE retry_queue SET attempts = ?, next_attempt_at = ?, last_error = ? WHERE id = ?`,
				attempts, q.now().Add(Backoff(attempts)), result.Message, r.id)
			if err != nil {
				logging.Err(err).Int64("row", r.id).Msg("Rescheduling retry row failed")
				continue
			}
			metrics.QueueRetries.WithLabelValues("failed").Inc()
		}
	}

	q.updateDepthGauge(ctx)
	return processed, nil
}

// Depth returns the number of pending rows.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM retry_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting retry queue: %w", err)
	}
	return n, nil
}

// drop removes a row terminally and records the failure.
func (q *Queue) drop(ctx context.Context, id int64, adapterKey, code, message string) {
	if err := q.delete(ctx, id); err != nil {
		logging.Err(err).Int64("row", id).Msg("Dropping retry row failed")
		return
	}
	metrics.QueueRetries.WithLabelValues("dropped").Inc()
	if q.recorder != nil {
		q.recorder.RecordError(adapterKey, code, message)
	}
	logging.Warn().
		Int64("row", id).
		Str("adapter", adapterKey).
		Str("code", code).
		Msg("Retry dropped terminally")
}

func (q *Queue) delete(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM retry_queue WHERE id = ?`, id)
	return err
}

// acquireLock takes the worker lock with TTL via set-if-absent inside
// one serializable transaction.
func (q *Queue) acquireLock() (bool, error) {
	acquired := false
	err := q.kv.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(lockKey))
		if err == nil {
			return nil // held by another run
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		entry := badger.NewEntry([]byte(lockKey), []byte{1}).WithTTL(q.opts.LockTTL)
		if err := txn.SetEntry(entry); err != nil {
			return err
		}
		acquired = true
		return nil
	})
	return acquired, err
}

func (q *Queue) releaseLock() {
	err := q.kv.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(lockKey))
	})
	if err != nil {
		logging.Err(err).Msg("Releasing retry worker lock failed")
	}
}

func (q *Queue) updateDepthGauge(ctx context.Context) {
	if n, err := q.Depth(ctx); err == nil {
		metrics.QueueDepth.Set(float64(n))
	}
}
