// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAuthorizationURL(t *testing.T) {
	t.Parallel()

	got, err := BuildAuthorizationURL(AuthorizationParams{
		AuthorizationEndpoint: "https://idp.example.com/authorize",
		ClientID:              "client-1",
		RedirectURI:           "https://bridge.example.com/api/v1/oauth/callback",
		State:                 "signed-state-token",
		CodeChallenge:         "challenge-abc",
		Scopes:                []string{"tools:read", "tools:write"},
	})
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "https://idp.example.com/authorize?"))

	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "https://bridge.example.com/api/v1/oauth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "signed-state-token", q.Get("state"))
	assert.Equal(t, "challenge-abc", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "tools:read tools:write", q.Get("scope"))
}

func TestBuildAuthorizationURL_NoScopes(t *testing.T) {
	t.Parallel()

	got, err := BuildAuthorizationURL(AuthorizationParams{
		AuthorizationEndpoint: "https://idp.example.com/authorize",
		ClientID:              "client-1",
		RedirectURI:           "https://bridge.example.com/cb",
		State:                 "state",
		CodeChallenge:         "challenge",
	})
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.False(t, u.Query().Has("scope"))
}

func TestBuildAuthorizationURL_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		params  AuthorizationParams
		wantErr string
	}{
		{
			name: "missing state",
			params: AuthorizationParams{
				AuthorizationEndpoint: "https://idp.example.com/authorize",
				ClientID:              "client-1",
				CodeChallenge:         "challenge",
			},
			wantErr: "state parameter is required",
		},
		{
			name: "missing challenge",
			params: AuthorizationParams{
				AuthorizationEndpoint: "https://idp.example.com/authorize",
				ClientID:              "client-1",
				State:                 "state",
			},
			wantErr: "code challenge is required",
		},
		{
			name: "missing endpoint",
			params: AuthorizationParams{
				ClientID:      "client-1",
				State:         "state",
				CodeChallenge: "challenge",
			},
			wantErr: "authorization endpoint is required",
		},
		{
			name: "missing client ID",
			params: AuthorizationParams{
				AuthorizationEndpoint: "https://idp.example.com/authorize",
				State:                 "state",
				CodeChallenge:         "challenge",
			},
			wantErr: "client ID is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := BuildAuthorizationURL(tt.params)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
