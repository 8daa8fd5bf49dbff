// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func testAttempt() Attempt {
	return Attempt{
		UserID:         "user-1",
		OrganizationID: "org-1",
		ConnectionID:   "conn-1",
		OAuthClientID:  "oc-1",
		CodeVerifier:   "verifier-xyz",
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec, err := NewCodec(testKey)
	require.NoError(t, err)

	token, err := codec.Encode(testAttempt())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "org-1", got.OrganizationID)
	assert.Equal(t, "conn-1", got.ConnectionID)
	assert.Equal(t, "oc-1", got.OAuthClientID)
	assert.Equal(t, "verifier-xyz", got.CodeVerifier)
	assert.NotEmpty(t, got.Nonce)
	assert.Greater(t, got.ExpiresAt, got.IssuedAt)
}

func TestCodec_UniqueTokens(t *testing.T) {
	t.Parallel()

	codec, err := NewCodec(testKey)
	require.NoError(t, err)

	t1, err := codec.Encode(testAttempt())
	require.NoError(t, err)
	t2, err := codec.Encode(testAttempt())
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)
}

func TestCodec_TamperedPayload(t *testing.T) {
	t.Parallel()

	codec, err := NewCodec(testKey)
	require.NoError(t, err)

	token, err := codec.Encode(testAttempt())
	require.NoError(t, err)

	// Flip a character in the payload segment.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	parts[1] = string(payload)
	tampered := strings.Join(parts, ".")

	_, err = codec.Decode(tampered)
	assert.ErrorIs(t, err, ErrInvalidStateToken)
}

func TestCodec_WrongKey(t *testing.T) {
	t.Parallel()

	codec, err := NewCodec(testKey)
	require.NoError(t, err)
	other, err := NewCodec([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)

	token, err := codec.Encode(testAttempt())
	require.NoError(t, err)

	_, err = other.Decode(token)
	assert.ErrorIs(t, err, ErrInvalidStateToken)
}

func TestCodec_Garbage(t *testing.T) {
	t.Parallel()

	codec, err := NewCodec(testKey)
	require.NoError(t, err)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := codec.Decode(token)
		assert.ErrorIs(t, err, ErrInvalidStateToken, "token %q", token)
	}
}

func TestCodec_Expiry(t *testing.T) {
	t.Parallel()

	now := time.Now()
	clock := &now
	codec, err := NewCodec(testKey,
		WithTTL(10*time.Minute),
		WithClock(func() time.Time { return *clock }),
	)
	require.NoError(t, err)

	token, err := codec.Encode(testAttempt())
	require.NoError(t, err)

	// Still valid just inside the window.
	later := now.Add(9 * time.Minute)
	clock = &later
	_, err = codec.Decode(token)
	require.NoError(t, err)

	// Expired past the window.
	expired := now.Add(11 * time.Minute)
	clock = &expired
	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, ErrStateExpired)
}

func TestAttempt_ValidateUser(t *testing.T) {
	t.Parallel()

	a := testAttempt()
	require.NoError(t, a.ValidateUser("user-1"))
	assert.ErrorIs(t, a.ValidateUser("user-2"), ErrUserMismatch)
}

func TestNewCodec_KeyTooShort(t *testing.T) {
	t.Parallel()

	_, err := NewCodec([]byte("short"))
	require.Error(t, err)
}
