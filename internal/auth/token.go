// Clicutcl - Marketing Attribution Event Pipeline
// Copyright 2026 Clicutcl Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clicutcl/clicutcl

// Package auth implements the intake authentication surfaces: signed
// bearer tokens for batch event intake, HMAC signature verification for
// provider webhooks, the CRM lifecycle shared token, and admin
// credentials for the diagnostics endpoints.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/golang-jwt/jwt/v5"
)

// Token failure codes surfaced to intake responses.
var (
	ErrTokenInvalid      = errors.New("token_invalid")
	ErrTokenExpired      = errors.New("token_expired")
	ErrTokenSiteMismatch = errors.New("token_site_mismatch")
	ErrNonceReplay       = errors.New("token_nonce_replayed")
)

// DefaultTokenTTL bounds intake token lifetime.
const DefaultTokenTTL = 10 * time.Minute

const tokenVersion = 2

const noncePrefix = "nonce:"

// IntakeClaims are the signed claims carried by an intake bearer token.
type IntakeClaims struct {
	V     int    `json:"v"`
	Site  string `json:"site"`
	Host  string `json:"host"`
	Blog  string `json:"blog"`
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// TokenVerifier validates intake bearer tokens against the current
// deployment and tracks nonce usage for replay limiting.
type TokenVerifier struct {
	secret       []byte
	site         string
	allowedHosts []string
	replayLimit  int
	kv           *badger.DB
	ttl          time.Duration
}

// NewTokenVerifier builds a verifier. replayLimit 0 disables nonce
// counting; kv may be nil in that case.
func NewTokenVerifier(secret, site string, allowedHosts []string, replayLimit int, ttl time.Duration, kv *badger.DB) *TokenVerifier {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenVerifier{
		secret:       []byte(secret),
		site:         normalizeHost(site),
		allowedHosts: normalizeHosts(allowedHosts),
		replayLimit:  replayLimit,
		kv:           kv,
		ttl:          ttl,
	}
}

// Mint issues a token for the current site, used by the token endpoint
// handed to the browser-side capture layer.
func (v *TokenVerifier) Mint(host, blog, nonce string) (string, error) {
	now := time.Now()
	claims := IntakeClaims{
		V:     tokenVersion,
		Site:  v.site,
		Host:  normalizeHost(host),
		Blog:  blog,
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing intake token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and site/host binding: a token minted
// for another deployment must never authenticate here, so cross-site
// reuse is rejected with token_site_mismatch. The nonce replay count is
// enforced when a replay limit is configured.
func (v *TokenVerifier) Verify(tokenString, requestHost, blog string) (*IntakeClaims, error) {
	claims := &IntakeClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.V != tokenVersion {
		return nil, ErrTokenInvalid
	}

	if !v.hostAllowed(claims.Host) || !v.hostAllowed(normalizeHost(requestHost)) {
		return nil, ErrTokenSiteMismatch
	}
	if claims.Site != v.site {
		return nil, ErrTokenSiteMismatch
	}
	if blog != "" && claims.Blog != "" && claims.Blog != blog {
		return nil, ErrTokenSiteMismatch
	}

	if v.replayLimit > 0 && claims.Nonce != "" {
		uses, err := v.bumpNonce(claims.Nonce)
		if err != nil {
			return nil, fmt.Errorf("counting token nonce: %w", err)
		}
		if uses > v.replayLimit {
			return nil, ErrNonceReplay
		}
	}
	return claims, nil
}

// hostAllowed accepts the deployment's own host plus the configured
// allow-list, including direct subdomains of allow-listed entries.
func (v *TokenVerifier) hostAllowed(host string) bool {
	if host == "" {
		return false
	}
	if host == v.site {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// bumpNonce increments the nonce use counter with the token TTL.
func (v *TokenVerifier) bumpNonce(nonce string) (int, error) {
	key := []byte(noncePrefix + nonce)
	uses := 0
	err := v.kv.Update(func(txn *badger.Txn) error {
		if item, err := txn.Get(key); err == nil {
			if verr := item.Value(func(val []byte) error {
				n, perr := strconv.Atoi(string(val))
				if perr == nil {
					uses = n
				}
				return nil
			}); verr != nil {
				return verr
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		uses++
		entry := badger.NewEntry(key, []byte(strconv.Itoa(uses))).WithTTL(v.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return 0, err
	}
	return uses, nil
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "www.")
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}

func normalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if n := normalizeHost(h); n != "" {
			out = append(out, n)
		}
	}
	return out
}
