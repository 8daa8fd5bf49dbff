// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package apikeys issues and validates the opaque bearer credentials that
// grant proxy access to a running connection.
//
// Keys are random strings with a fixed prefix. They carry no structure and
// are never derivable from any other value: possession of the stored record
// is the only way to validate one.
package apikeys

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/toolbridge/pkg/core"
	"github.com/stacklok/toolbridge/pkg/logger"
	"github.com/stacklok/toolbridge/pkg/storage"
)

var (
	// ErrInvalidKey indicates the presented value matches no known key.
	ErrInvalidKey = errors.New("invalid API key")

	// ErrKeyInactive indicates the key exists but has been deactivated.
	ErrKeyInactive = errors.New("API key is inactive")

	// ErrKeyExpired indicates the key exists but is past its expiry.
	ErrKeyExpired = errors.New("API key has expired")
)

// Issuer mints new API keys.
type Issuer struct {
	store storage.APIKeyStore

	// Prefix is prepended to every issued key value.
	Prefix string

	// Bytes is the random payload length before encoding.
	Bytes int
}

// NewIssuer creates an Issuer writing to the given store.
func NewIssuer(store storage.APIKeyStore, prefix string, bytes int) (*Issuer, error) {
	if prefix == "" {
		return nil, errors.New("key prefix is required")
	}
	if bytes < 16 {
		return nil, errors.New("key payload must be at least 16 bytes")
	}
	return &Issuer{store: store, Prefix: prefix, Bytes: bytes}, nil
}

// Issue mints a key for a (user, connection) pair and persists it. The
// returned record is the only place the key value ever appears in plain
// form; callers must hand it to the user immediately.
func (i *Issuer) Issue(ctx context.Context, userID, connectionID string, expiresAt *time.Time) (*core.APIKey, error) {
	payload := make([]byte, i.Bytes)
	if _, err := rand.Read(payload); err != nil {
		return nil, fmt.Errorf("generating key material: %w", err)
	}

	key := &core.APIKey{
		ID:           uuid.NewString(),
		Value:        i.Prefix + base64.RawURLEncoding.EncodeToString(payload),
		UserID:       userID,
		ConnectionID: connectionID,
		Active:       true,
		ExpiresAt:    expiresAt,
		CreatedAt:    time.Now(),
	}

	if err := i.store.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("persisting API key: %w", err)
	}

	logger.Infow("issued API key",
		"key_id", key.ID,
		"connection_id", connectionID,
	)
	return key, nil
}

// Validator checks presented API keys against the store.
type Validator struct {
	store storage.APIKeyStore

	// now is injectable for expiry tests.
	now func() time.Time
}

// NewValidator creates a Validator reading from the given store.
func NewValidator(store storage.APIKeyStore) *Validator {
	return &Validator{store: store, now: time.Now}
}

// Validate resolves a presented key value to its record. The lookup is an
// exact match on the opaque value; unknown values, deactivated keys, and
// expired keys are rejected with distinguishable errors. A successful
// validation records last-use best-effort.
func (v *Validator) Validate(ctx context.Context, value string) (*core.APIKey, error) {
	key, err := v.store.GetByValue(ctx, value)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("looking up API key: %w", err)
	}

	if !key.Active {
		return nil, ErrKeyInactive
	}
	if key.ExpiresAt != nil && v.now().After(*key.ExpiresAt) {
		return nil, ErrKeyExpired
	}

	// Last-use tracking must never fail a valid key.
	if err := v.store.TouchLastUsed(ctx, key.ID); err != nil {
		logger.Debugf("Failed to record API key use: %v", err)
	}

	return key, nil
}
