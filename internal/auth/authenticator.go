// Event Analytics Platform - Multi-Tenant Behavioral Event Analytics
// Copyright 2026 Rahul Bhardwaj (rahulbhardwaj94)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rahulbhardwaj94/event-analytics-platform

// Package auth implements API key authentication. Keys are random 256-bit
// values shown once at creation; only their SHA-256 digest is stored, so a
// database leak does not leak credentials.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rahulbhardwaj94/event-analytics-platform/internal/database"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/logging"
	"github.com/rahulbhardwaj94/event-analytics-platform/internal/models"
)

// HeaderName is the request header carrying the raw API key.
const HeaderName = "X-API-Key"

// ErrInvalidKey is returned for unknown, inactive, or malformed keys. The
// caller must not distinguish these cases to the client.
var ErrInvalidKey = errors.New("invalid api key")

// touchTimeout bounds the async last-used update.
const touchTimeout = 5 * time.Second

// Authenticator validates raw API keys against stored digests.
type Authenticator struct {
	db *database.DB
}

// NewAuthenticator creates an authenticator backed by the key store.
func NewAuthenticator(db *database.DB) *Authenticator {
	return &Authenticator{db: db}
}

// GenerateKey returns new random key material: 32 bytes, hex encoded.
func GenerateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key material: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// DigestKey returns the stored form of a raw key.
func DigestKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Authenticate resolves a raw key to its auth context. The key's last-used
// instant is updated asynchronously; a touch failure never fails the
// request.
func (a *Authenticator) Authenticate(ctx context.Context, rawKey string) (*models.AuthContext, error) {
	if rawKey == "" {
		return nil, ErrInvalidKey
	}

	key, err := a.db.GetAPIKeyByDigest(ctx, DigestKey(rawKey))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}

	go a.touch(key.ID)

	return &models.AuthContext{
		OrgID:       key.OrgID,
		ProjectID:   key.ProjectID,
		KeyID:       key.ID,
		Permissions: key.Permissions,
	}, nil
}

func (a *Authenticator) touch(keyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
	defer cancel()
	if err := a.db.TouchAPIKey(ctx, keyID, time.Now().UTC()); err != nil {
		logging.Warn().Err(err).Str("key_id", keyID).Msg("Failed to update key last_used")
	}
}
