// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package oauth provides shared RFC-defined types, constants, and validation
// utilities for OAuth 2.0 and OpenID Connect. It serves as a shared
// foundation for the discovery, registration, and token-exchange clients.
package oauth

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// WellKnownOIDCPath is the OIDC discovery path (OpenID Connect Discovery 1.0).
	WellKnownOIDCPath = "/.well-known/openid-configuration"

	// WellKnownOAuthServerPath is the OAuth Authorization Server Metadata path (RFC 8414).
	WellKnownOAuthServerPath = "/.well-known/oauth-authorization-server"

	// PKCEMethodS256 is the only supported PKCE challenge method (RFC 7636).
	PKCEMethodS256 = "S256"

	// GrantTypeAuthorizationCode is the grant type for authorization code.
	GrantTypeAuthorizationCode = "authorization_code"

	// ResponseTypeCode is the response type for code.
	ResponseTypeCode = "code"

	// TokenEndpointAuthNone is the token endpoint auth method for public clients.
	TokenEndpointAuthNone = "none"

	// TokenEndpointAuthBasic is the token endpoint auth method using HTTP basic auth.
	TokenEndpointAuthBasic = "client_secret_basic"

	// TokenEndpointAuthPost is the token endpoint auth method sending the secret in the form body.
	TokenEndpointAuthPost = "client_secret_post"
)

// ScopeList decodes the OAuth "scope" field, which providers variously return
// as a space-separated string or a JSON array of strings.
type ScopeList []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *ScopeList) UnmarshalJSON(data []byte) error {
	// Handle explicit null
	if string(data) == "null" {
		*s = nil
		return nil
	}

	// Try to decode as string first: "openid profile email"
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		str = strings.TrimSpace(str)
		if str == "" {
			*s = nil
			return nil
		}
		*s = strings.Fields(str)
		return nil
	}

	// Try to decode as []string: ["openid","profile","email"]
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*s = make([]string, 0, len(arr))
		for _, v := range arr {
			if v = strings.TrimSpace(v); v != "" {
				*s = append(*s, v)
			}
		}
		return nil
	}

	return fmt.Errorf("invalid scope format: %s", string(data))
}

// MarshalJSON implements json.Marshaler, emitting the conventional
// space-separated form.
func (s ScopeList) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.Join(s, " "))
}

// AuthServerMetadata is the authorization server metadata document returned
// from a well-known discovery endpoint (RFC 8414 / OIDC Discovery).
type AuthServerMetadata struct {
	Issuer                        string    `json:"issuer"`
	AuthorizationEndpoint         string    `json:"authorization_endpoint"`
	TokenEndpoint                 string    `json:"token_endpoint"`
	RegistrationEndpoint          string    `json:"registration_endpoint,omitempty"`
	JWKSURI                       string    `json:"jwks_uri,omitempty"`
	UserinfoEndpoint              string    `json:"userinfo_endpoint,omitempty"`
	IntrospectionEndpoint         string    `json:"introspection_endpoint,omitempty"`
	ScopesSupported               ScopeList `json:"scopes_supported,omitempty"`
	ResponseTypesSupported        []string  `json:"response_types_supported,omitempty"`
	GrantTypesSupported           []string  `json:"grant_types_supported,omitempty"`
	CodeChallengeMethodsSupported []string  `json:"code_challenge_methods_supported,omitempty"`
}

// Validate checks that the mandatory metadata fields are present.
func (m *AuthServerMetadata) Validate() error {
	if m.Issuer == "" {
		return fmt.Errorf("missing issuer")
	}
	if m.AuthorizationEndpoint == "" {
		return fmt.Errorf("missing authorization_endpoint")
	}
	if m.TokenEndpoint == "" {
		return fmt.Errorf("missing token_endpoint")
	}
	return nil
}

// SupportsS256 reports whether the server advertises S256 PKCE support.
// An empty list is treated as supported; RFC 8414 says servers that omit the
// field may still accept PKCE.
func (m *AuthServerMetadata) SupportsS256() bool {
	if len(m.CodeChallengeMethodsSupported) == 0 {
		return true
	}
	for _, method := range m.CodeChallengeMethodsSupported {
		if method == PKCEMethodS256 {
			return true
		}
	}
	return false
}
