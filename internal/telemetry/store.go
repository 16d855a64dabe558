// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package telemetry

import (
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/clicutcl/clicutcl/internal/logging"
	"github.com/clicutcl/clicutcl/internal/metrics"
)

const bucketPrefix = "telem:"

// bucketKeyFormat renders an hour bucket key, sortable by time.
const bucketKeyFormat = "2006010215"

// DefaultRetentionBuckets keeps three days of hourly buckets.
const DefaultRetentionBuckets = 72

// Bucket is one UTC hour of aggregated failure counts.
type Bucket struct {
	BucketStart int64            `json:"bucket_start"`
	UpdatedAt   int64            `json:"updated_at"`
	Total       int64            `json:"total"`
	Codes       map[string]int64 `json:"codes"`
}

// Reporter receives a site-scoped, payload-free failure summary. Wired
// only when external reporting is explicitly enabled.
type Reporter interface {
	Report(site, bucket string, codes map[string]int64)
}

// Store persists hour-bucketed failure aggregates in the TTL store.
// Flushes are throttled; a throttled flush falls back to a structured
// log line so counts are never silently dropped.
type Store struct {
	db        *badger.DB
	limiter   *rate.Limiter
	retention int
	site      string
	reporter  Reporter
	now       func() time.Time
}

// StoreOptions configure the bucket store.
type StoreOptions struct {
	// FlushInterval throttles aggregate writes under load. Zero takes 10s.
	FlushInterval time.Duration
	// RetentionBuckets bounds how many hourly buckets are kept. Zero
	// takes DefaultRetentionBuckets.
	RetentionBuckets int
	// Site scopes externally reported summaries.
	Site string
	// Reporter, when non-nil, receives a PII-free summary per flush.
	Reporter Reporter
}

// NewStore wraps a Badger handle into the failure telemetry store.
func NewStore(db *badger.DB, opts StoreOptions) *Store {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 10 * time.Second
	}
	if opts.RetentionBuckets <= 0 {
		opts.RetentionBuckets = DefaultRetentionBuckets
	}
	return &Store{
		db:        db,
		limiter:   rate.NewLimiter(rate.Every(opts.FlushInterval), 1),
		retention: opts.RetentionBuckets,
		site:      opts.Site,
		reporter:  opts.Reporter,
		now:       time.Now,
	}
}

// Flush merges counts into the current hour's bucket and prunes buckets
// beyond the retention bound. When the write lock is throttled the
// counts are logged instead of aggregated, so nothing is lost.
func (s *Store) Flush(counts map[string]int64) {
	if len(counts) == 0 {
		return
	}

	if !s.limiter.Allow() {
		metrics.TelemetryFlushes.WithLabelValues("throttled").Inc()
		logging.Warn().
			Interface("failure_counts", counts).
			Msg("Telemetry flush throttled, counts logged unaggregated")
		return
	}

	now := s.now().UTC()
	key := []byte(bucketPrefix + now.Format(bucketKeyFormat))
	bucketStart := now.Truncate(time.Hour).Unix()

	err := s.db.Update(func(txn *badger.Txn) error {
		bucket := Bucket{BucketStart: bucketStart, Codes: map[string]int64{}}
		item, err := txn.Get(key)
		if err == nil {
			if verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &bucket)
			}); verr != nil {
				// corrupt bucket, start fresh
				bucket = Bucket{BucketStart: bucketStart, Codes: map[string]int64{}}
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		for code, n := range counts {
			bucket.Codes[code] += n
			bucket.Total += n
		}
		bucket.UpdatedAt = now.Unix()

		data, err := json.Marshal(bucket)
		if err != nil {
			return err
		}
		ttl := time.Duration(s.retention)*time.Hour + time.Hour
		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(ttl))
	})
	if err != nil {
		metrics.TelemetryFlushes.WithLabelValues("error").Inc()
		logging.Err(err).
			Interface("failure_counts", counts).
			Msg("Telemetry flush failed, counts logged unaggregated")
		return
	}

	metrics.TelemetryFlushes.WithLabelValues("ok").Inc()
	s.prune()

	if s.reporter != nil {
		summary := make(map[string]int64, len(counts))
		for code, n := range counts {
			summary[code] = n
		}
		s.reporter.Report(s.site, now.Format(bucketKeyFormat), summary)
	}
}

// Buckets returns all retained buckets, oldest first.
func (s *Store) Buckets() ([]Bucket, error) {
	var buckets []Bucket
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(bucketPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var b Bucket
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &b)
			}); err != nil {
				continue
			}
			buckets = append(buckets, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].BucketStart < buckets[j].BucketStart })
	return buckets, nil
}

// prune deletes the oldest buckets beyond the retention bound. Bucket
// keys sort chronologically, so pruning is a prefix scan plus deletes.
func (s *Store) prune() {
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(bucketPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var keys [][]byte
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		if len(keys) <= s.retention {
			return nil
		}
		sort.Slice(keys, func(i, j int) bool { return string(keys[i]) < string(keys[j]) })
		for _, key := range keys[:len(keys)-s.retention] {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logging.Err(err).Msg("Telemetry bucket prune failed")
	}
}
