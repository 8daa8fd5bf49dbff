// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oauthproto "github.com/stacklok/toolbridge/pkg/oauth"
)

func TestRegister_Success(t *testing.T) {
	t.Parallel()

	var got RegistrationRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		require.NoError(t, json.NewEncoder(w).Encode(RegistrationResponse{
			ClientID:                "client-123",
			ClientName:              got.ClientName,
			RedirectURIs:            got.RedirectURIs,
			TokenEndpointAuthMethod: got.TokenEndpointAuthMethod,
		}))
	}))
	defer server.Close()

	r := NewRegistrar(server.Client())
	resp, err := r.Register(context.Background(), server.URL,
		NewRegistrationRequest("https://bridge.example.com/api/v1/oauth/callback", []string{"tools:read"}))
	require.NoError(t, err)

	assert.Equal(t, "client-123", resp.ClientID)
	assert.Empty(t, resp.ClientSecret)
	assert.Equal(t, ClientName, got.ClientName)
	assert.Equal(t, []string{"https://bridge.example.com/api/v1/oauth/callback"}, got.RedirectURIs)
	assert.Equal(t, oauthproto.TokenEndpointAuthNone, got.TokenEndpointAuthMethod)
	assert.Equal(t, []string{oauthproto.GrantTypeAuthorizationCode}, got.GrantTypes)
	assert.Equal(t, []string{oauthproto.ResponseTypeCode}, got.ResponseTypes)
}

func TestRegister_ScopeStringResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"client_id":"c1","scope":"tools:read tools:write"}`))
	}))
	defer server.Close()

	r := NewRegistrar(server.Client())
	resp, err := r.Register(context.Background(), server.URL,
		NewRegistrationRequest("https://bridge.example.com/cb", nil))
	require.NoError(t, err)
	assert.Equal(t, oauthproto.ScopeList{"tools:read", "tools:write"}, resp.Scopes)
}

func TestRegister_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "provider rejects registration",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_redirect_uri"}`))
			},
		},
		{
			name: "missing client_id",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{}`))
			},
		},
		{
			name: "non-JSON response",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(`<html></html>`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			r := NewRegistrar(server.Client())
			_, err := r.Register(context.Background(), server.URL,
				NewRegistrationRequest("https://bridge.example.com/cb", nil))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDCRFailed)
		})
	}
}

func TestRegister_NoEndpoint(t *testing.T) {
	t.Parallel()

	r := NewRegistrar(nil)
	_, err := r.Register(context.Background(), "", NewRegistrationRequest("https://bridge.example.com/cb", nil))
	assert.ErrorIs(t, err, ErrDCRUnsupported)
}

func TestRegister_RejectsHTTPEndpoint(t *testing.T) {
	t.Parallel()

	r := NewRegistrar(nil)
	_, err := r.Register(context.Background(), "http://example.com/register",
		NewRegistrationRequest("https://bridge.example.com/cb", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDCRFailed)
}

func TestRegister_MissingRedirectURIs(t *testing.T) {
	t.Parallel()

	r := NewRegistrar(nil)
	_, err := r.Register(context.Background(), "https://example.com/register", &RegistrationRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDCRFailed)
}
