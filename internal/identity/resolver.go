// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

// Package identity derives the consent-gated identity payload attached
// to canonical events. Raw PII never crosses this package's boundary:
// only SHA-256 hashes (and, on explicit opt-in, minimal network
// context) are emitted.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"regexp"
	"strings"

	"github.com/clicutcl/clicutcl/internal/consent"
	"github.com/clicutcl/clicutcl/internal/validation"
)

// PolicyConsentGatedMinimal is the default resolver policy: emit hashed
// identifiers only when marketing consent is granted, nothing otherwise.
const PolicyConsentGatedMinimal = "consent_gated_minimal"

// PolicyDisabled turns identity resolution off entirely.
const PolicyDisabled = "disabled"

const maxUserAgentLen = 512

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,20}$`)

// Input is the raw identity material collected at the intake boundary.
type Input struct {
	Email     string
	Phone     string
	IPAddress string
	UserAgent string
}

// Options control per-call resolver behavior.
type Options struct {
	// IncludeNetwork opts in to emitting ip_address and user_agent for
	// destinations that need minimal network context. Never a default.
	IncludeNetwork bool
}

// Resolver turns raw identity input into the hashed identity map.
type Resolver struct {
	policy string
}

// NewResolver builds a resolver for the given policy. Unknown policies
// fall back to consent_gated_minimal.
func NewResolver(policy string) *Resolver {
	if policy != PolicyConsentGatedMinimal && policy != PolicyDisabled {
		policy = PolicyConsentGatedMinimal
	}
	return &Resolver{policy: policy}
}

// Resolve derives the identity map for one event. Under
// consent_gated_minimal an empty result is returned unless the decision
// grants marketing consent. Invalid emails and phone numbers are
// silently dropped rather than hashed.
func (r *Resolver) Resolve(in Input, decision consent.Decision, opts Options) map[string]string {
	if r.policy == PolicyDisabled || !decision.Marketing {
		return nil
	}

	out := map[string]string{}

	if email := normalizeEmail(in.Email); email != "" {
		out["hashed_email"] = hashValue(email)
	}
	if phone := normalizePhone(in.Phone); phone != "" {
		out["hashed_phone"] = hashValue(phone)
	}

	if opts.IncludeNetwork {
		if ip := net.ParseIP(strings.TrimSpace(in.IPAddress)); ip != nil {
			out["ip_address"] = ip.String()
		}
		if ua := strings.TrimSpace(in.UserAgent); ua != "" {
			if len(ua) > maxUserAgentLen {
				ua = ua[:maxUserAgentLen]
			}
			out["user_agent"] = ua
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeEmail lowercases and validates an email address, returning
// empty on anything unusable.
func normalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	if err := validation.GetValidator().Var(email, "email"); err != nil {
		return ""
	}
	return email
}

// normalizePhone strips everything but digits and a leading plus, then
// validates the result against the accepted phone shape.
func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	if !phonePattern.MatchString(normalized) {
		return ""
	}
	return normalized
}

// hashValue returns the lowercase hex SHA-256 of a normalized value.
func hashValue(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// HashFor exposes the hashing used for identity values, for callers
// that need deterministic identifiers built the same way.
func HashFor(parts ...string) string {
	return hashValue(strings.Join(parts, "|"))
}
