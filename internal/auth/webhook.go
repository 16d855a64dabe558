// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Webhook verification failure codes.
var (
	ErrWebhookSignatureMissing = errors.New("webhook_signature_missing")
	ErrWebhookSignatureInvalid = errors.New("webhook_signature_invalid")
	ErrWebhookTimestampExpired = errors.New("webhook_timestamp_expired")
)

// Webhook replay window bounds.
const (
	DefaultReplayWindow = 300 * time.Second
	MinReplayWindow     = 60 * time.Second
	MaxReplayWindow     = 3600 * time.Second
)

// WebhookVerifier validates provider webhook signatures: hex
// HMAC-SHA256 over "{timestamp}.{raw_body}" with a bounded timestamp
// replay window.
type WebhookVerifier struct {
	window time.Duration
	now    func() time.Time
}

// NewWebhookVerifier builds a verifier. The window is clamped to
// [60s, 3600s]; zero takes the 300s default.
func NewWebhookVerifier(window time.Duration) *WebhookVerifier {
	if window == 0 {
		window = DefaultReplayWindow
	}
	if window < MinReplayWindow {
		window = MinReplayWindow
	}
	if window > MaxReplayWindow {
		window = MaxReplayWindow
	}
	return &WebhookVerifier{window: window, now: time.Now}
}

// ComputeSignature returns the expected hex signature for a payload.
// Exposed for provider registration flows and tests.
func ComputeSignature(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the timestamp freshness first, then the signature with
// a constant-time comparison. A stale timestamp is rejected before any
// signature work so replayed captures fail fast.
func (v *WebhookVerifier) Verify(secret, signature string, timestamp int64, body []byte) error {
	if signature == "" {
		return ErrWebhookSignatureMissing
	}

	age := v.now().Unix() - timestamp
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Second > v.window {
		return ErrWebhookTimestampExpired
	}

	expected := ComputeSignature(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrWebhookSignatureInvalid
	}
	return nil
}

// VerifySharedToken compares a presented bearer token against the
// configured CRM lifecycle token in constant time.
func VerifySharedToken(configured, presented string) bool {
	if configured == "" || presented == "" {
		return false
	}
	return hmac.Equal([]byte(configured), []byte(presented))
}
