// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"errors"
	"net/url"
	"strings"

	"github.com/stacklok/toolbridge/pkg/logger"
	oauthproto "github.com/stacklok/toolbridge/pkg/oauth"
)

// AuthorizationParams carries everything needed to build the provider
// authorization URL for one attempt.
type AuthorizationParams struct {
	// AuthorizationEndpoint is the provider's authorization endpoint.
	AuthorizationEndpoint string

	// ClientID identifies the registered client.
	ClientID string

	// RedirectURI must exactly match a registered redirect URI.
	RedirectURI string

	// State is the signed state token carried through the redirect.
	State string

	// CodeChallenge is the S256 PKCE challenge.
	CodeChallenge string

	// Scopes are joined space-separated into the scope parameter.
	Scopes []string
}

// BuildAuthorizationURL assembles the URL the user's browser is sent to.
// The verifier never appears here; only the derived challenge does.
func BuildAuthorizationURL(p AuthorizationParams) (string, error) {
	if p.AuthorizationEndpoint == "" {
		return "", errors.New("authorization endpoint is required")
	}
	if p.ClientID == "" {
		return "", errors.New("client ID is required")
	}
	if p.State == "" {
		return "", errors.New("state parameter is required")
	}
	if p.CodeChallenge == "" {
		return "", errors.New("code challenge is required")
	}

	logger.Debugw("building authorization URL",
		"authorization_endpoint", p.AuthorizationEndpoint,
		"client_id", p.ClientID,
	)

	params := url.Values{
		"response_type":         {oauthproto.ResponseTypeCode},
		"client_id":             {p.ClientID},
		"redirect_uri":          {p.RedirectURI},
		"state":                 {p.State},
		"code_challenge":        {p.CodeChallenge},
		"code_challenge_method": {oauthproto.PKCEMethodS256},
	}
	if len(p.Scopes) > 0 {
		params.Set("scope", strings.Join(p.Scopes, " "))
	}

	return p.AuthorizationEndpoint + "?" + params.Encode(), nil
}
