// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package dispatch

import (
	"strconv"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/clicutcl/clicutcl/internal/logging"
)

const (
	lastErrorPrefix = "lasterr:"
	debugLogKey     = "debuglog:dispatch"
	intakeLogKey    = "debuglog:intake"
	debugUntilKey   = "debug:until"
)

// lastErrorDedupWindow suppresses repeated identical errors so a
// flapping destination doesn't churn the snapshot on every request.
const lastErrorDedupWindow = 30 * time.Second

// lastErrorTTL bounds how long a stale error snapshot survives.
const lastErrorTTL = 7 * 24 * time.Hour

// LastError is the most recent delivery error for a destination.
type LastError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RecordedAt int64  `json:"recorded_at"`
}

// DispatchLogEntry is one entry in the bounded diagnostic ring buffer.
// Entries carry delivery metadata only, never payload contents.
type DispatchLogEntry struct {
	EventName    string `json:"event_name"`
	EventID      string `json:"event_id"`
	Adapter      string `json:"adapter"`
	Status       string `json:"status"`
	HTTPStatus   int    `json:"http_status"`
	Message      string `json:"message,omitempty"`
	EndpointHost string `json:"endpoint_host,omitempty"`
	LoggedAt     int64  `json:"logged_at"`
}

// IntakeLogEntry is one entry in the raw-intake debug ring buffer.
// Like dispatch entries it carries metadata only, never payloads.
type IntakeLogEntry struct {
	Source    string `json:"source"`
	EventName string `json:"event_name"`
	EventID   string `json:"event_id"`
	Outcome   string `json:"outcome"`
	LoggedAt  int64  `json:"logged_at"`
}

// Recorder keeps the per-destination last-error snapshot and the
// time-boxed dispatch and intake debug ring buffers.
type Recorder struct {
	db         *badger.DB
	bufferSize int
	now        func() time.Time
}

// NewRecorder wraps a Badger handle. bufferSize bounds the debug ring
// buffer; zero takes 50.
func NewRecorder(db *badger.DB, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 50
	}
	return &Recorder{db: db, bufferSize: bufferSize, now: time.Now}
}

// RecordError stores the destination's last error. An identical
// code+message pair recorded within the dedup window is dropped.
func (r *Recorder) RecordError(destination, code, message string) {
	key := []byte(lastErrorPrefix + destination)
	now := r.now().Unix()

	err := r.db.Update(func(txn *badger.Txn) error {
		if item, err := txn.Get(key); err == nil {
			var prev LastError
			if verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &prev)
			}); verr == nil {
				if prev.Code == code && prev.Message == message &&
					now-prev.RecordedAt < int64(lastErrorDedupWindow/time.Second) {
					return nil
				}
			}
		}
		data, err := json.Marshal(LastError{Code: code, Message: message, RecordedAt: now})
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(lastErrorTTL))
	})
	if err != nil {
		logging.Err(err).Str("destination", destination).Msg("Recording last error failed")
	}
}

// GetLastError returns the destination's last error, or nil.
func (r *Recorder) GetLastError(destination string) *LastError {
	var out *LastError
	_ = r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(lastErrorPrefix + destination))
		if err != nil {
			return nil
		}
		return item.Value(func(val []byte) error {
			var le LastError
			if err := json.Unmarshal(val, &le); err == nil {
				out = &le
			}
			return nil
		})
	})
	return out
}

// EnableDebug activates the dispatch debug log for the given window.
func (r *Recorder) EnableDebug(window time.Duration) error {
	until := r.now().Add(window).Unix()
	return r.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(debugUntilKey),
			[]byte(strconv.FormatInt(until, 10))).WithTTL(window + time.Minute)
		return txn.SetEntry(entry)
	})
}

// DebugActive reports whether the time-boxed debug flag is currently
// set. Dispatch logging is gated on this so the ring buffer never
// accumulates unconditionally in production.
func (r *Recorder) DebugActive() bool {
	active := false
	_ = r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(debugUntilKey))
		if err != nil {
			return nil
		}
		return item.Value(func(val []byte) error {
			until, err := strconv.ParseInt(string(val), 10, 64)
			if err == nil && r.now().Unix() < until {
				active = true
			}
			return nil
		})
	})
	return active
}

// LogDispatch appends an entry to the debug ring buffer, evicting the
// oldest entry past the bound. Callers check DebugActive first.
func (r *Recorder) LogDispatch(entry DispatchLogEntry) {
	entry.LoggedAt = r.now().Unix()

	err := r.db.Update(func(txn *badger.Txn) error {
		var entries []DispatchLogEntry
		if item, err := txn.Get([]byte(debugLogKey)); err == nil {
			_ = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entries)
			})
		}
		entries = append(entries, entry)
		if len(entries) > r.bufferSize {
			entries = entries[len(entries)-r.bufferSize:]
		}
		data, err := json.Marshal(entries)
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry([]byte(debugLogKey), data).WithTTL(24 * time.Hour))
	})
	if err != nil {
		logging.Err(err).Msg("Appending dispatch debug log failed")
	}
}

// RecentDispatches returns the debug ring buffer contents, oldest first.
func (r *Recorder) RecentDispatches() []DispatchLogEntry {
	var entries []DispatchLogEntry
	_ = r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(debugLogKey))
		if err != nil {
			return nil
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entries)
		})
	})
	return entries
}

// LogIntake appends an entry to the raw-intake ring buffer. Callers
// check DebugActive first, same as dispatch logging.
func (r *Recorder) LogIntake(entry IntakeLogEntry) {
	entry.LoggedAt = r.now().Unix()

	err := r.db.Update(func(txn *badger.Txn) error {
		var entries []IntakeLogEntry
		if item, err := txn.Get([]byte(intakeLogKey)); err == nil {
			_ = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entries)
			})
		}
		entries = append(entries, entry)
		if len(entries) > r.bufferSize {
			entries = entries[len(entries)-r.bufferSize:]
		}
		data, err := json.Marshal(entries)
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry([]byte(intakeLogKey), data).WithTTL(24 * time.Hour))
	})
	if err != nil {
		logging.Err(err).Msg("Appending intake debug log failed")
	}
}

// RecentIntake returns the raw-intake ring buffer contents, oldest first.
func (r *Recorder) RecentIntake() []IntakeLogEntry {
	var entries []IntakeLogEntry
	_ = r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(intakeLogKey))
		if err != nil {
			return nil
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entries)
		})
	})
	return entries
}
