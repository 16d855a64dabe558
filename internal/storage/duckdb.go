// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

// schemaStatements creates the durable tables on first open. DuckDB
// sequences back the auto-increment ids because the engine has no
// AUTOINCREMENT column attribute.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS seq_events_log START 1`,
	`CREATE TABLE IF NOT EXISTS events_log (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_events_log'),
		event_type VARCHAR NOT NULL,
		event_data VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE SEQUENCE IF NOT EXISTS seq_retry_queue START 1`,
	`CREATE TABLE IF NOT EXISTS retry_queue (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_retry_queue'),
		event_name VARCHAR NOT NULL,
		event_id VARCHAR NOT NULL,
		adapter VARCHAR NOT NULL,
		endpoint VARCHAR NOT NULL,
		payload VARCHAR NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		next_attempt_at TIMESTAMP NOT NULL,
		last_error VARCHAR,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		UNIQUE (event_name, event_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_retry_queue_due ON retry_queue (next_attempt_at)`,
}

// OpenDuckDB opens the durable store at path and ensures the schema
// exists. An empty path opens an in-memory database.
func OpenDuckDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("opening durable store: %w", err)
	}

	// single writer; DuckDB handles concurrent readers internally
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging durable store: %w", err)
	}

	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the durable tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring durable schema: %w", err)
		}
	}
	return nil
}
