// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package auth

import (
	"errors"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/clicutcl/clicutcl/internal/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func openKV(t *testing.T) *badger.DB {
	t.Helper()
	kv, err := storage.OpenBadger("")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestTokenMintAndVerify(t *testing.T) {
	v := NewTokenVerifier(testSecret, "a.example.com", nil, 0, time.Minute, nil)

	token, err := v.Mint("a.example.com", "1", "n-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	claims, err := v.Verify(token, "a.example.com", "1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Nonce != "n-1" || claims.Site != "a.example.com" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestTokenHostMismatchRejected(t *testing.T) {
	minting := NewTokenVerifier(testSecret, "a.example.com", nil, 0, time.Minute, nil)
	token, err := minting.Mint("a.example.com", "1", "n-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// same secret, different deployment, no allow-list relationship
	verifying := NewTokenVerifier(testSecret, "b.example.com", nil, 0, time.Minute, nil)
	if _, err := verifying.Verify(token, "b.example.com", "1"); !errors.Is(err, ErrTokenSiteMismatch) {
		t.Errorf("expected token_site_mismatch, got %v", err)
	}
}

func TestTokenAllowedHostSubdomain(t *testing.T) {
	minting := NewTokenVerifier(testSecret, "shop.example.com", nil, 0, time.Minute, nil)
	token, err := minting.Mint("shop.example.com", "1", "n-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// request arrives on a sibling subdomain covered by the allow-list
	verifying := NewTokenVerifier(testSecret, "shop.example.com", []string{"example.com"}, 0, time.Minute, nil)
	if _, err := verifying.Verify(token, "blog.example.com", "1"); err != nil {
		t.Errorf("allow-listed subdomain must verify, got %v", err)
	}
}

func TestTokenBlogMismatchRejected(t *testing.T) {
	v := NewTokenVerifier(testSecret, "a.example.com", nil, 0, time.Minute, nil)
	token, err := v.Mint("a.example.com", "1", "n-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := v.Verify(token, "a.example.com", "2"); !errors.Is(err, ErrTokenSiteMismatch) {
		t.Errorf("expected token_site_mismatch for blog mismatch, got %v", err)
	}
}

func TestTokenTamperRejected(t *testing.T) {
	v := NewTokenVerifier(testSecret, "a.example.com", nil, 0, time.Minute, nil)
	token, err := v.Mint("a.example.com", "1", "n-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"
	if _, err := v.Verify(tampered, "a.example.com", "1"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected token_invalid, got %v", err)
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	minting := NewTokenVerifier(testSecret, "a.example.com", nil, 0, time.Minute, nil)
	token, err := minting.Mint("a.example.com", "1", "n-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	verifying := NewTokenVerifier("another-secret-another-secret-00", "a.example.com", nil, 0, time.Minute, nil)
	if _, err := verifying.Verify(token, "a.example.com", "1"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected token_invalid, got %v", err)
	}
}

func TestTokenNonceReplayLimit(t *testing.T) {
	kv := openKV(t)
	v := NewTokenVerifier(testSecret, "a.example.com", nil, 2, time.Minute, kv)

	token, err := v.Mint("a.example.com", "1", "n-replay")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := v.Verify(token, "a.example.com", "1"); err != nil {
			t.Fatalf("use %d: %v", i+1, err)
		}
	}
	if _, err := v.Verify(token, "a.example.com", "1"); !errors.Is(err, ErrNonceReplay) {
		t.Errorf("expected nonce replay rejection, got %v", err)
	}
}

func TestWebhookSignatureRoundTrip(t *testing.T) {
	v := NewWebhookVerifier(0)
	body := []byte(`{"event":"invitee.created"}`)
	ts := time.Now().Unix()

	sig := ComputeSignature("whsec", ts, body)
	if err := v.Verify("whsec", sig, ts, body); err != nil {
		t.Errorf("valid signature must verify, got %v", err)
	}
}

func TestWebhookTamperedBodyRejected(t *testing.T) {
	v := NewWebhookVerifier(0)
	ts := time.Now().Unix()
	sig := ComputeSignature("whsec", ts, []byte(`{"a":1}`))

	err := v.Verify("whsec", sig, ts, []byte(`{"a":2}`))
	if !errors.Is(err, ErrWebhookSignatureInvalid) {
		t.Errorf("expected webhook_signature_invalid, got %v", err)
	}
}

func TestWebhookStaleTimestampRejected(t *testing.T) {
	v := NewWebhookVerifier(0)
	stale := time.Now().Add(-10 * time.Minute).Unix()
	body := []byte(`{}`)
	sig := ComputeSignature("whsec", stale, body)

	// valid signature, expired timestamp
	err := v.Verify("whsec", sig, stale, body)
	if !errors.Is(err, ErrWebhookTimestampExpired) {
		t.Errorf("expected webhook_timestamp_expired, got %v", err)
	}
}

func TestWebhookMissingSignature(t *testing.T) {
	v := NewWebhookVerifier(0)
	if err := v.Verify("whsec", "", time.Now().Unix(), nil); !errors.Is(err, ErrWebhookSignatureMissing) {
		t.Errorf("expected webhook_signature_missing, got %v", err)
	}
}

func TestWebhookWindowClamp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, DefaultReplayWindow},
		{10 * time.Second, MinReplayWindow},
		{2 * time.Hour, MaxReplayWindow},
		{600 * time.Second, 600 * time.Second},
	}
	for _, tt := range tests {
		if got := NewWebhookVerifier(tt.in).window; got != tt.want {
			t.Errorf("window %v clamped to %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestVerifySharedToken(t *testing.T) {
	if !VerifySharedToken("crm-token", "crm-token") {
		t.Error("matching tokens must verify")
	}
	if VerifySharedToken("crm-token", "other") {
		t.Error("mismatched tokens must fail")
	}
	if VerifySharedToken("", "") {
		t.Error("unconfigured token must never verify")
	}
}

func TestAdminCredentials(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	creds := NewAdminCredentials("ops", hash)

	if !creds.Check("ops", "s3cret") {
		t.Error("valid credentials must pass")
	}
	if creds.Check("ops", "wrong") {
		t.Error("wrong password must fail")
	}
	if creds.Check("other", "s3cret") {
		t.Error("wrong username must fail")
	}
}

func TestAdminDisabledWithoutConfig(t *testing.T) {
	creds := NewAdminCredentials("", "")
	if creds.Enabled() {
		t.Error("unset credentials must disable admin access")
	}
	if creds.Check("", "") {
		t.Error("disabled admin must reject everything")
	}
}
