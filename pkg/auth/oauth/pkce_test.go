// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePKCE(t *testing.T) {
	t.Parallel()

	p := GeneratePKCE()
	require.NotEmpty(t, p.Verifier)
	require.NotEmpty(t, p.Challenge)
	assert.Equal(t, "S256", p.Method)

	// Challenge must be the base64url-encoded SHA-256 of the verifier.
	sum := sha256.Sum256([]byte(p.Verifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), p.Challenge)

	// RFC 7636 verifier length bounds.
	assert.GreaterOrEqual(t, len(p.Verifier), 43)
	assert.LessOrEqual(t, len(p.Verifier), 128)
}

func TestGeneratePKCE_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for range 32 {
		p := GeneratePKCE()
		_, dup := seen[p.Verifier]
		require.False(t, dup, "verifier reuse")
		seen[p.Verifier] = struct{}{}
	}
}
