// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

// Package dedup implements the idempotency ledger keyed by
// (destination, event_name, event_id). Marks expire via the underlying
// store's TTL; nothing is ever explicitly deleted.
//
// Check and mark are two separate store operations, not one atomic
// step. Two near-simultaneous dispatches for the same event can both
// pass the check and both send; deduplication here is best-effort, not
// an exactly-once guarantee.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/clicutcl/clicutcl/internal/metrics"
)

const keyPrefix = "dedup:"

// TTL bounds for dedup marks.
const (
	DefaultTTL = 7 * 24 * time.Hour
	MinTTL     = 24 * time.Hour
	MaxTTL     = 30 * 24 * time.Hour
)

// Stats is an operational snapshot of ledger activity since startup.
type Stats struct {
	Checks         int64            `json:"checks"`
	Hits           int64            `json:"hits"`
	Misses         int64            `json:"misses"`
	ByDestination  map[string]int64 `json:"by_destination"`
}

// Store is the TTL-backed deduplication ledger.
type Store struct {
	db         *badger.DB
	defaultTTL time.Duration

	mu            sync.Mutex
	checks        int64
	hits          int64
	misses        int64
	byDestination map[string]int64
}

// NewStore wraps a Badger handle into a dedup ledger. A zero ttl takes
// the 7 day default; out-of-range values are clamped to [1d, 30d].
func NewStore(db *badger.DB, ttl time.Duration) *Store {
	return &Store{
		db:            db,
		defaultTTL:    clampTTL(ttl),
		byDestination: map[string]int64{},
	}
}

// IsDuplicate reports whether the triple has an unexpired mark. Every
// call updates the hit/miss statistics.
func (s *Store) IsDuplicate(destination, eventName, eventID string) bool {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(Key(destination, eventName, eventID))
		if err == nil {
			found = true
			return nil
		}
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
	// read errors count as a miss so delivery is never blocked by the ledger
	if err != nil {
		found = false
	}

	s.count(destination, found)
	return found
}

// Mark writes the dedup mark with the given TTL. A zero ttl takes the
// store default; values outside [1d, 30d] are clamped.
func (s *Store) Mark(destination, eventName, eventID string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	ttl = clampTTL(ttl)

	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(Key(destination, eventName, eventID), []byte{1}).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("marking dedup key: %w", err)
	}
	return nil
}

// CheckAndMark combines IsDuplicate and Mark for single-call sites such
// as ingest dedup. Returns true when the triple was already marked; on
// a miss the mark is written before returning.
func (s *Store) CheckAndMark(destination, eventName, eventID string, ttl time.Duration) (bool, error) {
	if s.IsDuplicate(destination, eventName, eventID) {
		return true, nil
	}
	if err := s.Mark(destination, eventName, eventID, ttl); err != nil {
		return false, err
	}
	return false, nil
}

// GetStats returns a copy of the ledger statistics.
func (s *Store) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDest := make(map[string]int64, len(s.byDestination))
	for k, v := range s.byDestination {
		byDest[k] = v
	}
	return Stats{
		Checks:        s.checks,
		Hits:          s.hits,
		Misses:        s.misses,
		ByDestination: byDest,
	}
}

func (s *Store) count(destination string, hit bool) {
	s.mu.Lock()
	s.checks++
	if hit {
		s.hits++
	} else {
		s.misses++
	}
	s.byDestination[destination]++
	s.mu.Unlock()

	if hit {
		metrics.DedupChecks.WithLabelValues("hit").Inc()
	} else {
		metrics.DedupChecks.WithLabelValues("miss").Inc()
	}
}

// Key derives the opaque store key for a dedup triple.
func Key(destination, eventName, eventID string) []byte {
	sum := sha256.Sum256([]byte(destination + "|" + eventName + "|" + eventID))
	return []byte(keyPrefix + hex.EncodeToString(sum[:]))
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return DefaultTTL
	}
	if ttl < MinTTL {
		return MinTTL
	}
	if ttl > MaxTTL {
		return MaxTTL
	}
	return ttl
}
