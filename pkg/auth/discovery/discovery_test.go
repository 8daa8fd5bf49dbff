// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolbridge/pkg/oauth"
)

func writeMetadata(t *testing.T, w http.ResponseWriter, doc *oauth.AuthServerMetadata) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(doc))
}

func metadataFor(issuer string) *oauth.AuthServerMetadata {
	return &oauth.AuthServerMetadata{
		Issuer:                        issuer,
		AuthorizationEndpoint:         issuer + "/authorize",
		TokenEndpoint:                 issuer + "/token",
		RegistrationEndpoint:          issuer + "/register",
		CodeChallengeMethodsSupported: []string{"S256"},
	}
}

func TestDiscover_OAuthPath(t *testing.T) {
	t.Parallel()

	var issuer string
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, _ *http.Request) {
		writeMetadata(t, w, metadataFor(issuer))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	issuer = server.URL

	d := NewDiscoverer(server.Client())
	doc, err := d.Discover(context.Background(), server.URL+"/mcp")
	require.NoError(t, err)
	assert.Equal(t, issuer, doc.Issuer)
	assert.Equal(t, issuer+"/register", doc.RegistrationEndpoint)
	assert.True(t, doc.SupportsS256())
}

func TestDiscover_FallsBackToOIDCPath(t *testing.T) {
	t.Parallel()

	var issuer string
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		writeMetadata(t, w, metadataFor(issuer))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	issuer = server.URL

	d := NewDiscoverer(server.Client())
	doc, err := d.Discover(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, issuer+"/token", doc.TokenEndpoint)
}

func TestDiscover_TenantPathPreserved(t *testing.T) {
	t.Parallel()

	var issuer string
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/oauth-authorization-server/tenants/acme", func(w http.ResponseWriter, _ *http.Request) {
		writeMetadata(t, w, metadataFor(issuer))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	issuer = server.URL + "/tenants/acme"

	d := NewDiscoverer(server.Client())
	doc, err := d.Discover(context.Background(), issuer+"/")
	require.NoError(t, err)
	assert.Equal(t, issuer, doc.Issuer)
}

func TestDiscover_NoMetadata(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	d := NewDiscoverer(server.Client())
	_, err := d.Discover(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMetadataUnavailable)
}

func TestDiscover_IssuerMismatch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, _ *http.Request) {
		writeMetadata(t, w, metadataFor("https://evil.example.com"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	d := NewDiscoverer(server.Client())
	_, err := d.Discover(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMetadataUnavailable)
}

func TestDiscover_MissingRequiredFields(t *testing.T) {
	t.Parallel()

	var issuer string
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, _ *http.Request) {
		writeMetadata(t, w, &oauth.AuthServerMetadata{Issuer: issuer})
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	issuer = server.URL

	d := NewDiscoverer(server.Client())
	_, err := d.Discover(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMetadataUnavailable)
}

func TestDiscover_RejectsNonHTTPSServerURL(t *testing.T) {
	t.Parallel()

	d := NewDiscoverer(nil)
	_, err := d.Discover(context.Background(), "http://example.com/mcp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTPS")
}

func TestDeriveIssuer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		serverURL string
		want      string
		wantErr   bool
	}{
		{
			name:      "bare host",
			serverURL: "https://tools.example.com",
			want:      "https://tools.example.com",
		},
		{
			name:      "path and trailing slash stripped",
			serverURL: "https://tools.example.com/mcp/",
			want:      "https://tools.example.com/mcp",
		},
		{
			name:      "localhost http allowed",
			serverURL: "http://127.0.0.1:8123/mcp",
			want:      "http://127.0.0.1:8123/mcp",
		},
		{
			name:      "relative URL rejected",
			serverURL: "/mcp",
			wantErr:   true,
		},
		{
			name:      "plain http rejected",
			serverURL: "http://example.com",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := deriveIssuer(tt.serverURL)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
