// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// AdminCredentials guards the privileged diagnostics endpoints with
// HTTP basic auth. The password is stored as a bcrypt hash; no
// plaintext admin password ever lives in configuration.
type AdminCredentials struct {
	username     string
	passwordHash string
}

// NewAdminCredentials builds the credential checker. Empty values
// disable admin access entirely rather than allowing anonymous access.
func NewAdminCredentials(username, passwordHash string) *AdminCredentials {
	return &AdminCredentials{username: username, passwordHash: passwordHash}
}

// Enabled reports whether admin access is configured at all.
func (a *AdminCredentials) Enabled() bool {
	return a.username != "" && a.passwordHash != ""
}

// Check validates a basic auth pair. Username comparison is constant
// time; bcrypt is inherently slow so the password path needs no extra
// care.
func (a *AdminCredentials) Check(username, password string) bool {
	if !a.Enabled() {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(a.username), []byte(username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) == nil
	return userOK && passOK
}

// HashPassword produces a bcrypt hash for provisioning tooling.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
