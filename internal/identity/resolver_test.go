// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/clicutcl/clicutcl/internal/consent"
)

func granted() consent.Decision {
	return consent.Decision{Marketing: true, Analytics: true, Granted: true}
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestResolveDeniedWithoutMarketingConsent(t *testing.T) {
	r := NewResolver(PolicyConsentGatedMinimal)
	out := r.Resolve(Input{Email: "user@example.com", Phone: "+491701234567"},
		consent.Decision{Analytics: true, Granted: true}, Options{})
	if out != nil {
		t.Errorf("expected nil identity without marketing consent, got %v", out)
	}
}

func TestResolveHashesEmail(t *testing.T) {
	r := NewResolver(PolicyConsentGatedMinimal)
	out := r.Resolve(Input{Email: "  User@Example.COM "}, granted(), Options{})
	if out["hashed_email"] != sha("user@example.com") {
		t.Errorf("unexpected hashed_email: %s", out["hashed_email"])
	}
	if _, ok := out["hashed_phone"]; ok {
		t.Error("expected no hashed_phone without phone input")
	}
}

func TestResolveHashesPhone(t *testing.T) {
	r := NewResolver(PolicyConsentGatedMinimal)
	out := r.Resolve(Input{Phone: "+49 (170) 123-4567"}, granted(), Options{})
	if out["hashed_phone"] != sha("+491701234567") {
		t.Errorf("unexpected hashed_phone: %s", out["hashed_phone"])
	}
}

func TestResolveDropsInvalidValues(t *testing.T) {
	r := NewResolver(PolicyConsentGatedMinimal)
	tests := []struct {
		name string
		in   Input
	}{
		{"bad email", Input{Email: "not-an-email"}},
		{"short phone", Input{Phone: "12345"}},
		{"alpha phone", Input{Phone: "call-me-maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out := r.Resolve(tt.in, granted(), Options{}); out != nil {
				t.Errorf("expected invalid input dropped, got %v", out)
			}
		})
	}
}

func TestResolveNetworkContextOptIn(t *testing.T) {
	r := NewResolver(PolicyConsentGatedMinimal)

	out := r.Resolve(Input{Email: "a@b.co", IPAddress: "203.0.113.7", UserAgent: "UA/1.0"},
		granted(), Options{})
	if _, ok := out["ip_address"]; ok {
		t.Error("network context must not be emitted without opt-in")
	}

	out = r.Resolve(Input{IPAddress: "203.0.113.7", UserAgent: "UA/1.0"},
		granted(), Options{IncludeNetwork: true})
	if out["ip_address"] != "203.0.113.7" {
		t.Errorf("expected ip_address, got %v", out)
	}
	if out["user_agent"] != "UA/1.0" {
		t.Errorf("expected user_agent, got %v", out)
	}
}

func TestResolveTruncatesUserAgent(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	r := NewResolver(PolicyConsentGatedMinimal)
	out := r.Resolve(Input{IPAddress: "2001:db8::1", UserAgent: string(long)},
		granted(), Options{IncludeNetwork: true})
	if len(out["user_agent"]) != 512 {
		t.Errorf("expected user agent truncated to 512, got %d", len(out["user_agent"]))
	}
}

func TestResolveRejectsBadIP(t *testing.T) {
	r := NewResolver(PolicyConsentGatedMinimal)
	out := r.Resolve(Input{IPAddress: "999.999.1.1"}, granted(), Options{IncludeNetwork: true})
	if _, ok := out["ip_address"]; ok {
		t.Error("expected invalid IP dropped")
	}
}

func TestUnknownPolicyFallsBack(t *testing.T) {
	r := NewResolver("everything_goes")
	out := r.Resolve(Input{Email: "user@example.com"}, consent.Decision{}, Options{})
	if out != nil {
		t.Error("unknown policy must behave like consent_gated_minimal")
	}
}

func TestDisabledPolicyResolvesNothing(t *testing.T) {
	r := NewResolver(PolicyDisabled)
	out := r.Resolve(Input{Email: "user@example.com"}, granted(), Options{IncludeNetwork: true})
	if out != nil {
		t.Error("disabled policy must never emit identity")
	}
}

func TestHashFor(t *testing.T) {
	if HashFor("lead", "l-1", "{}") != sha("lead|l-1|{}") {
		t.Error("HashFor must join parts with | before hashing")
	}
}
