// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package queue

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
)

// EventLog appends accepted events and terminal delivery outcomes to
// the durable events_log table for audit and recovery.
type EventLog struct {
	db *sql.DB
}

// NewEventLog wraps the durable store.
func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db}
}

// Append writes one log row. Data is stored as JSON.
func (l *EventLog) Append(ctx context.Context, eventType string, data map[string]interface{}) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding event log data: %w", err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO events_log (event_type, event_data) VALUES (?, ?)`,
		eventType, string(encoded))
	if err != nil {
		return fmt.Errorf("appending event log: %w", err)
	}
	return nil
}

// Recent returns the newest rows, most recent first, capped at limit.
func (l *EventLog) Recent(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT event_type, event_data, created_at FROM events_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("reading event log: %w", err)
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var eventType, data string
		var createdAt sql.NullTime
		if err := rows.Scan(&eventType, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event log row: %w", err)
		}
		entry := map[string]interface{}{"event_type": eventType}
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(data), &decoded); err == nil {
			entry["event_data"] = decoded
		}
		if createdAt.Valid {
			entry["created_at"] = createdAt.Time.UTC()
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
