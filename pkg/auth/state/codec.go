// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package state implements the tamper-evident state token that carries an
// authorization attempt across the browser redirect.
//
// The token is a compact HS256 JWS over the attempt payload, so the server
// needs no session storage between starting an authorization and handling
// the provider callback: everything required to finish the flow (including
// the PKCE verifier) travels inside the token, protected by the signature.
package state

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
)

var (
	// ErrInvalidStateToken indicates the token is malformed or its signature
	// does not verify.
	ErrInvalidStateToken = errors.New("invalid state token")

	// ErrStateExpired indicates the token verified but its attempt window
	// has passed.
	ErrStateExpired = errors.New("authorization attempt expired")

	// ErrUserMismatch indicates the callback was completed by a different
	// user than the one who started the attempt.
	ErrUserMismatch = errors.New("state token was issued for a different user")
)

// DefaultTTL bounds how long an authorization attempt stays redeemable.
const DefaultTTL = 10 * time.Minute

// MinKeySize is the minimum HMAC key length accepted by NewCodec.
const MinKeySize = 32

// Attempt is the payload carried through the redirect for one authorization
// attempt.
type Attempt struct {
	// UserID is the user who initiated the attempt.
	UserID string `json:"uid"`

	// OrganizationID is the tenant the attempt belongs to.
	OrganizationID string `json:"org"`

	// ConnectionID is the connection being authorized.
	ConnectionID string `json:"cid"`

	// OAuthClientID references the stored client record used for the
	// attempt, so completion binds tokens to the exact client that
	// started the flow.
	OAuthClientID string `json:"ocid"`

	// CodeVerifier is the PKCE verifier. It never appears outside the
	// signed token.
	CodeVerifier string `json:"cv"`

	// RedirectURI is the redirect URI the attempt was started with; the
	// token exchange must present the same value.
	RedirectURI string `json:"ru"`

	// Scopes are the scopes requested for the attempt.
	Scopes []string `json:"scp,omitempty"`

	// Integrated marks attempts started as part of a larger setup flow.
	// Carried through and surfaced on completion, not interpreted here.
	Integrated bool `json:"intg,omitempty"`

	// Nonce makes every attempt token unique.
	Nonce string `json:"n"`

	// IssuedAt and ExpiresAt bound the attempt window (unix seconds).
	IssuedAt  int64 `json:"iat"`
	ExpiresAt int64 `json:"exp"`
}

// ValidateUser checks that the given user is the one who started the
// attempt.
func (a *Attempt) ValidateUser(userID string) error {
	if a.UserID != userID {
		return ErrUserMismatch
	}
	return nil
}

// Codec signs and verifies state tokens.
type Codec struct {
	key []byte
	ttl time.Duration

	// now is injectable for expiry tests.
	now func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithTTL overrides the default attempt lifetime.
func WithTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		c.ttl = ttl
	}
}

// WithClock overrides the codec's time source. Intended for tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a state token codec with the given HMAC signing key.
func NewCodec(key []byte, opts ...CodecOption) (*Codec, error) {
	if len(key) < MinKeySize {
		return nil, fmt.Errorf("signing key must be at least %d bytes", MinKeySize)
	}
	c := &Codec{
		key: key,
		ttl: DefaultTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ttl <= 0 {
		return nil, errors.New("state TTL must be positive")
	}
	return c, nil
}

// Encode signs an attempt into a compact state token. The nonce and time
// bounds are filled in here; callers only supply the attempt identity and
// verifier fields.
func (c *Codec) Encode(attempt Attempt) (string, error) {
	now := c.now()
	attempt.Nonce = rand.Text()
	attempt.IssuedAt = now.Unix()
	attempt.ExpiresAt = now.Add(c.ttl).Unix()

	payload, err := json.Marshal(attempt)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state payload: %w", err)
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: c.key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	obj, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("failed to sign state payload: %w", err)
	}

	token, err := obj.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize state token: %w", err)
	}
	return token, nil
}

// Decode verifies a state token and returns the attempt it carries.
// Malformed tokens and bad signatures yield ErrInvalidStateToken; a verified
// but stale token yields ErrStateExpired.
func (c *Codec) Decode(token string) (*Attempt, error) {
	obj, err := jose.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStateToken, err)
	}

	payload, err := obj.Verify(c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: signature verification failed", ErrInvalidStateToken)
	}

	var attempt Attempt
	if err := json.Unmarshal(payload, &attempt); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStateToken, err)
	}
	if attempt.UserID == "" || attempt.ConnectionID == "" {
		return nil, fmt.Errorf("%w: missing attempt fields", ErrInvalidStateToken)
	}

	if c.now().Unix() > attempt.ExpiresAt {
		return nil, ErrStateExpired
	}

	return &attempt, nil
}
