// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

// Package storage opens the embedded stores shared by the pipeline: a
// Badger key-value store for TTL state (dedup marks, telemetry buckets,
// locks, ring buffers, nonce counters) and a DuckDB database for the
// durable retry queue and event log.
package storage

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/clicutcl/clicutcl/internal/logging"
)

// OpenBadger opens (or creates) the TTL state store at path. An empty
// path opens an in-memory store, used by tests.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(badgerLogger{}).
		WithCompactL0OnClose(true)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}
	return db, nil
}

// badgerLogger adapts Badger's logger interface onto zerolog. Badger is
// chatty at INFO during compaction, so its info/debug output is demoted.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Msgf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Msgf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Msgf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Debug().Msgf("badger: "+format, args...)
}
