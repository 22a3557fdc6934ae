// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package gdpr

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// hashInfo is the HKDF context for the email hashing key.
	hashInfo   = "tenantvault/gdpr/email-hash/v1"
	hashKeyLen = 32
)

// EmailHasher produces the one-way hash kept after anonymization.
type EmailHasher struct {
	key []byte
}

// NewEmailHasher derives an HMAC key from secret. An empty secret yields
// plain SHA-256 hashes.
func NewEmailHasher(secret string) (*EmailHasher, error) {
	if secret == "" {
		return &EmailHasher{}, nil
	}
	key := make([]byte, hashKeyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hashInfo)), key); err != nil {
		return nil, fmt.Errorf("derive email hash key: %w", err)
	}
	return &EmailHasher{key: key}, nil
}

// Hash returns the hex digest of the normalized email.
func (h *EmailHasher) Hash(email string) string {
	normalized := []byte(strings.ToLower(strings.TrimSpace(email)))
	if h == nil || h.key == nil {
		sum := sha256.Sum256(normalized)
		return hex.EncodeToString(sum[:])
	}
	mac := hmac.New(sha256.New, h.key)
	mac.Write(normalized)
	return hex.EncodeToString(mac.Sum(nil))
}

// AnonymousEmail is the deterministic replacement address for userID.
func AnonymousEmail(userID string) string {
	return fmt.Sprintf("deleted_%s@anonymized.invalid", userID)
}
