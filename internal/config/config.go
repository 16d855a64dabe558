// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

// Package config defines the typed configuration for the Clicutcl pipeline
// and loads it with Koanf v2 from layered sources (defaults, optional YAML
// file, environment variables). Unset keys never regress to blank values:
// the defaults struct is loaded first and only explicitly provided keys
// override it.
package config

import (
	"time"
)

// Config is the root configuration for the Clicutcl server.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Logging      LoggingConfig      `koanf:"logging"`
	Features     FeaturesConfig     `koanf:"features"`
	Security     SecurityConfig     `koanf:"security"`
	Destinations DestinationsConfig `koanf:"destinations"`
	Webhooks     WebhooksConfig     `koanf:"webhooks"`
	Lifecycle    LifecycleConfig    `koanf:"lifecycle"`
	Identity     IdentityConfig     `koanf:"identity"`
	Dedup        DedupConfig        `koanf:"dedup"`
	Queue        QueueConfig        `koanf:"queue"`
	Diagnostics  DiagnosticsConfig  `koanf:"diagnostics"`
	Storage      StorageConfig      `koanf:"storage"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// Site is the canonical site identifier used for intake token scoping.
	Site string `koanf:"site"`
	// Host names (besides Site) for which intake tokens are accepted.
	AllowedTokenHosts []string `koanf:"allowed_token_hosts"`
	CORSOrigins       []string `koanf:"cors_origins"`
}

// LoggingConfig mirrors the logging package configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// FeaturesConfig holds the feature flags gating intake surfaces.
type FeaturesConfig struct {
	EventV2            bool `koanf:"event_v2"`
	ExternalWebhooks   bool `koanf:"external_webhooks"`
	ConnectorNative    bool `koanf:"connector_native"`
	DiagnosticsV2      bool `koanf:"diagnostics_v2"`
	LifecycleIngestion bool `koanf:"lifecycle_ingestion"`
}

// SecurityConfig holds intake authentication and rate limiting knobs.
type SecurityConfig struct {
	// TokenSecret signs intake bearer tokens (HMAC-SHA256). Required when
	// event intake is enabled.
	TokenSecret string `koanf:"token_secret"`
	// TokenTTL bounds intake token lifetime.
	TokenTTL time.Duration `koanf:"token_ttl"`
	// NonceReplayLimit caps how many times a single token nonce is accepted.
	// 0 disables replay counting.
	NonceReplayLimit int `koanf:"nonce_replay_limit"`
	// AllowOpenIntake permits running batch intake without token
	// verification. Without it, enabled intake with an empty token
	// secret fails validation at startup.
	AllowOpenIntake bool `koanf:"allow_open_intake"`

	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// TrustedProxies lists CIDRs whose forwarded-IP headers are honored
	// when resolving the client IP for rate limiting.
	TrustedProxies []string `koanf:"trusted_proxies"`

	// MaxBodyBytes caps intake request bodies. Default 128 KiB.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
	// MaxBatchEvents caps events per intake batch.
	MaxBatchEvents int `koanf:"max_batch_events"`

	// AdminUsername/AdminPasswordHash protect the diagnostics surface.
	// The password is stored as a bcrypt hash, never plaintext.
	AdminUsername     string `koanf:"admin_username"`
	AdminPasswordHash string `koanf:"admin_password_hash"`
}

// DestinationConfig describes one downstream destination.
type DestinationConfig struct {
	Enabled bool   `koanf:"enabled"`
	Kind    string `koanf:"kind"`
	// Endpoint is the collector URL events are POSTed to.
	Endpoint string `koanf:"endpoint"`
	// APIKey is passed to destinations that authenticate sends.
	APIKey string `koanf:"api_key"`
	// Timeout bounds a single outbound send, clamped to [1s, 15s].
	Timeout time.Duration `koanf:"timeout"`
	// RequireConsent gates dispatch on marketing consent. On by default.
	RequireConsent bool `koanf:"require_consent"`
}

// DestinationsConfig holds the configured destinations keyed by name.
type DestinationsConfig struct {
	// Enabled is the master switch for server-side sending.
	Enabled bool `koanf:"enabled"`
	// Primary is the default destination used by the dispatcher.
	Primary DestinationConfig `koanf:"primary"`
}

// WebhookProviderConfig holds one inbound webhook provider's settings.
type WebhookProviderConfig struct {
	Enabled bool   `koanf:"enabled"`
	Secret  string `koanf:"secret"`
}

// WebhooksConfig holds inbound webhook settings.
type WebhooksConfig struct {
	// ReplayWindow rejects signed payloads older than this, clamped to
	// [60s, 3600s].
	ReplayWindow time.Duration                    `koanf:"replay_window"`
	Providers    map[string]WebhookProviderConfig `koanf:"providers"`
}

// LifecycleConfig holds CRM lifecycle callback settings.
type LifecycleConfig struct {
	// Token authenticates lifecycle callbacks (compared constant-time).
	Token string `koanf:"token"`
}

// IdentityConfig selects the identity resolution policy.
type IdentityConfig struct {
	// Policy is one of "consent_gated_minimal" (default) or "disabled".
	Policy string `koanf:"policy"`
}

// DedupConfig holds deduplication ledger settings.
type DedupConfig struct {
	// TTL is how long a dedup mark suppresses redelivery, clamped to
	// [24h, 720h] (1 to 30 days).
	TTL time.Duration `koanf:"ttl"`
}

// QueueConfig holds retry queue settings.
type QueueConfig struct {
	// Interval is how often the background worker drains due rows.
	Interval time.Duration `koanf:"interval"`
	// MaxAttempts is the terminal attempt cutoff.
	MaxAttempts int `koanf:"max_attempts"`
	// BatchSize caps rows processed per worker run.
	BatchSize int `koanf:"batch_size"`
	// LockTTL bounds the worker's mutual-exclusion lock.
	LockTTL time.Duration `koanf:"lock_ttl"`
}

// DiagnosticsConfig holds failure telemetry and debug buffer settings.
type DiagnosticsConfig struct {
	// FlushInterval throttles telemetry bucket writes under load.
	FlushInterval time.Duration `koanf:"flush_interval"`
	// RetentionBuckets bounds how many hourly failure buckets are kept.
	RetentionBuckets int `koanf:"retention_buckets"`
	// DebugBufferSize bounds the recent-dispatch ring buffer.
	DebugBufferSize int `koanf:"debug_buffer_size"`
	// DebugWindow is how long debug-mode dispatch logging stays active
	// after being switched on.
	DebugWindow time.Duration `koanf:"debug_window"`
	// ExternalReporting opts in to the payload-free failure summary hook.
	ExternalReporting bool `koanf:"external_reporting"`
}

// StorageConfig holds datastore paths.
type StorageConfig struct {
	// StatePath is the Badger directory for TTL-keyed state (dedup marks,
	// telemetry buckets, locks, debug buffers). Empty means in-memory.
	StatePath string `koanf:"state_path"`
	// DatabasePath is the DuckDB file backing the retry queue and event log.
	DatabasePath string `koanf:"database_path"`
}

// defaultConfig returns a Config with every default the pipeline relies on.
// These are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8632,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			Site:              "",
			AllowedTokenHosts: []string{},
			CORSOrigins:       []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Features: FeaturesConfig{
			EventV2:            true,
			ExternalWebhooks:   false,
			ConnectorNative:    false,
			DiagnosticsV2:      true,
			LifecycleIngestion: false,
		},
		Security: SecurityConfig{
			TokenSecret:       "",
			TokenTTL:          10 * time.Minute,
			NonceReplayLimit:  0,
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			TrustedProxies:    []string{},
			MaxBodyBytes:      128 << 10, // 128 KiB
			MaxBatchEvents:    50,
			AdminUsername:     "",
			AdminPasswordHash: "",
		},
		Destinations: DestinationsConfig{
			Enabled: false,
			Primary: DestinationConfig{
				Enabled:        false,
				Kind:           "collector",
				Endpoint:       "",
				APIKey:         "",
				Timeout:        5 * time.Second,
				RequireConsent: true,
			},
		},
		Webhooks: WebhooksConfig{
			ReplayWindow: 5 * time.Minute,
			Providers:    map[string]WebhookProviderConfig{},
		},
		Lifecycle: LifecycleConfig{
			Token: "",
		},
		Identity: IdentityConfig{
			Policy: "consent_gated_minimal",
		},
		Dedup: DedupConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Queue: QueueConfig{
			Interval:    5 * time.Minute,
			MaxAttempts: 5,
			BatchSize:   10,
			LockTTL:     60 * time.Second,
		},
		Diagnostics: DiagnosticsConfig{
			FlushInterval:     10 * time.Second,
			RetentionBuckets:  72,
			DebugBufferSize:   50,
			DebugWindow:       30 * time.Minute,
			ExternalReporting: false,
		},
		Storage: StorageConfig{
			StatePath:    "/data/clicutcl/state",
			DatabasePath: "/data/clicutcl/clicutcl.duckdb",
		},
	}
}
