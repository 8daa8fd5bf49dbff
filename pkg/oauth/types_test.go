// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeList_Unmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  ScopeList
	}{
		{"space separated", `"openid profile email"`, ScopeList{"openid", "profile", "email"}},
		{"array", `["openid","profile"]`, ScopeList{"openid", "profile"}},
		{"array with blanks", `["openid"," ",""]`, ScopeList{"openid"}},
		{"empty string", `""`, nil},
		{"null", `null`, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var got ScopeList
			require.NoError(t, json.Unmarshal([]byte(tc.input), &got))
			assert.Equal(t, tc.want, got)
		})
	}

	var got ScopeList
	assert.Error(t, json.Unmarshal([]byte(`42`), &got))
}

func TestScopeList_Marshal(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(ScopeList{"tools:read", "tools:call"})
	require.NoError(t, err)
	assert.Equal(t, `"tools:read tools:call"`, string(out))
}

func TestAuthServerMetadata_Validate(t *testing.T) {
	t.Parallel()

	valid := AuthServerMetadata{
		Issuer:                "https://as.example.com",
		AuthorizationEndpoint: "https://as.example.com/authorize",
		TokenEndpoint:         "https://as.example.com/token",
	}
	assert.NoError(t, valid.Validate())

	missing := valid
	missing.TokenEndpoint = ""
	assert.Error(t, missing.Validate())
}

func TestAuthServerMetadata_SupportsS256(t *testing.T) {
	t.Parallel()

	m := AuthServerMetadata{}
	assert.True(t, m.SupportsS256(), "absent list means PKCE may still be accepted")

	m.CodeChallengeMethodsSupported = []string{"plain"}
	assert.False(t, m.SupportsS256())

	m.CodeChallengeMethodsSupported = []string{"plain", "S256"}
	assert.True(t, m.SupportsS256())
}
