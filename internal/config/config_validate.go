// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package config

import (
	"fmt"
	"net"
	"net/url"
	"time"
)

// Clamp bounds for operator-tunable knobs. Values outside these ranges are
// clamped rather than rejected so a typo never disables the pipeline.
const (
	MinDedupTTL = 24 * time.Hour
	MaxDedupTTL = 30 * 24 * time.Hour

	MinReplayWindow = 60 * time.Second
	MaxReplayWindow = 3600 * time.Second

	MinAdapterTimeout = 1 * time.Second
	MaxAdapterTimeout = 15 * time.Second
)

// Validate checks hard requirements and clamps soft ranges in place.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}

	if c.Features.EventV2 && c.Security.TokenSecret == "" && !c.Security.AllowOpenIntake {
		return fmt.Errorf("security.token_secret is required while features.event_v2 is enabled (set security.allow_open_intake to accept unauthenticated intake)")
	}
	if c.Features.EventV2 && c.Security.TokenSecret != "" && len(c.Security.TokenSecret) < 32 {
		return fmt.Errorf("security.token_secret must be at least 32 characters")
	}

	for _, cidr := range c.Security.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("security.trusted_proxies entry %q is not a valid CIDR: %w", cidr, err)
		}
	}

	if c.Destinations.Primary.Endpoint != "" {
		u, err := url.Parse(c.Destinations.Primary.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("destinations.primary.endpoint %q is not a valid URL", c.Destinations.Primary.Endpoint)
		}
	}

	c.Dedup.TTL = clampDuration(c.Dedup.TTL, MinDedupTTL, MaxDedupTTL)
	c.Webhooks.ReplayWindow = clampDuration(c.Webhooks.ReplayWindow, MinReplayWindow, MaxReplayWindow)
	c.Destinations.Primary.Timeout = clampDuration(c.Destinations.Primary.Timeout, MinAdapterTimeout, MaxAdapterTimeout)

	if c.Security.MaxBodyBytes <= 0 {
		c.Security.MaxBodyBytes = 128 << 10
	}
	if c.Security.MaxBatchEvents <= 0 {
		c.Security.MaxBatchEvents = 50
	}
	if c.Queue.MaxAttempts <= 0 {
		c.Queue.MaxAttempts = 5
	}
	if c.Queue.BatchSize <= 0 {
		c.Queue.BatchSize = 10
	}
	if c.Queue.LockTTL <= 0 {
		c.Queue.LockTTL = 60 * time.Second
	}
	if c.Diagnostics.RetentionBuckets <= 0 {
		c.Diagnostics.RetentionBuckets = 72
	}
	if c.Diagnostics.DebugBufferSize <= 0 {
		c.Diagnostics.DebugBufferSize = 50
	}

	switch c.Identity.Policy {
	case "", "consent_gated_minimal", "disabled":
	default:
		return fmt.Errorf("identity.policy %q is not one of consent_gated_minimal, disabled", c.Identity.Policy)
	}
	if c.Identity.Policy == "" {
		c.Identity.Policy = "consent_gated_minimal"
	}

	return nil
}

// clampDuration bounds d to [min, max].
func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
