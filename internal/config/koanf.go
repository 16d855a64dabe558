// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"clicutcl.yaml",
	"clicutcl.yml",
	"/etc/clicutcl/config.yaml",
	"/etc/clicutcl/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CLICUTCL_CONFIG"

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are config paths parsed as comma-separated slices when
// they arrive as strings from environment variables.
var sliceConfigPaths = []string{
	"server.allowed_token_hosts",
	"server.cors_origins",
	"security.trusted_proxies",
}

// processSliceFields converts comma-separated env values to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so random environment noise cannot leak
// into the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":           "server.host",
		"http_port":           "server.port",
		"http_read_timeout":   "server.read_timeout",
		"http_write_timeout":  "server.write_timeout",
		"site":                "server.site",
		"allowed_token_hosts": "server.allowed_token_hosts",
		"cors_origins":        "server.cors_origins",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Feature flags
		"enable_event_v2":            "features.event_v2",
		"enable_external_webhooks":   "features.external_webhooks",
		"enable_connector_native":    "features.connector_native",
		"enable_diagnostics_v2":      "features.diagnostics_v2",
		"enable_lifecycle_ingestion": "features.lifecycle_ingestion",

		// Security
		"token_secret":        "security.token_secret",
		"token_ttl":           "security.token_ttl",
		"nonce_replay_limit":  "security.nonce_replay_limit",
		"allow_open_intake":   "security.allow_open_intake",
		"rate_limit_requests": "security.rate_limit_requests",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"trusted_proxies":     "security.trusted_proxies",
		"max_body_bytes":      "security.max_body_bytes",
		"max_batch_events":    "security.max_batch_events",
		"admin_username":      "security.admin_username",
		"admin_password_hash": "security.admin_password_hash",

		// Destinations
		"enable_server_side_sending":   "destinations.enabled",
		"destination_enabled":          "destinations.primary.enabled",
		"destination_kind":             "destinations.primary.kind",
		"destination_endpoint":         "destinations.primary.endpoint",
		"destination_api_key":          "destinations.primary.api_key",
		"destination_timeout":          "destinations.primary.timeout",
		"destination_require_consent":  "destinations.primary.require_consent",

		// Webhooks
		"webhook_replay_window":   "webhooks.replay_window",
		"webhook_calendly_on":     "webhooks.providers.calendly.enabled",
		"webhook_calendly_secret": "webhooks.providers.calendly.secret",
		"webhook_hubspot_on":      "webhooks.providers.hubspot.enabled",
		"webhook_hubspot_secret":  "webhooks.providers.hubspot.secret",
		"webhook_typeform_on":     "webhooks.providers.typeform.enabled",
		"webhook_typeform_secret": "webhooks.providers.typeform.secret",

		// Lifecycle
		"lifecycle_token": "lifecycle.token",

		// Identity
		"identity_policy": "identity.policy",

		// Dedup
		"dedup_ttl": "dedup.ttl",

		// Queue
		"queue_interval":     "queue.interval",
		"queue_max_attempts": "queue.max_attempts",
		"queue_batch_size":   "queue.batch_size",
		"queue_lock_ttl":     "queue.lock_ttl",

		// Diagnostics
		"diag_flush_interval":     "diagnostics.flush_interval",
		"diag_retention_buckets":  "diagnostics.retention_buckets",
		"diag_debug_buffer_size":  "diagnostics.debug_buffer_size",
		"diag_debug_window":       "diagnostics.debug_window",
		"diag_external_reporting": "diagnostics.external_reporting",

		// Storage
		"state_path":  "storage.state_path",
		"duckdb_path": "storage.database_path",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
