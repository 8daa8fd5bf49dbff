// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stacklok/toolbridge/pkg/logger"
	"github.com/stacklok/toolbridge/pkg/networking"
	oauthproto "github.com/stacklok/toolbridge/pkg/oauth"
)

// Tokens is the outcome of a successful token exchange.
type Tokens struct {
	// AccessToken is the bearer token for the target server.
	AccessToken string

	// RefreshToken is present only if the provider issued one.
	RefreshToken string

	// TokenType is the provider-reported token type, normally "Bearer".
	TokenType string

	// Scope is the granted scope set, which may differ from the requested one.
	Scope []string

	// ExpiresAt is nil when the provider issued a non-expiring token.
	ExpiresAt *time.Time
}

// ExchangeParams carries the inputs for one authorization-code exchange.
type ExchangeParams struct {
	TokenEndpoint string
	ClientID      string

	// ClientSecret is empty for public clients.
	ClientSecret string

	// TokenEndpointAuthMethod selects how the secret is presented:
	// client_secret_basic (default when a secret is set) or
	// client_secret_post.
	TokenEndpointAuthMethod string

	Code         string
	CodeVerifier string
	RedirectURI  string
}

// Exchanger redeems authorization codes at provider token endpoints.
type Exchanger struct {
	client networking.HTTPClient
}

// NewExchanger returns an Exchanger using the given HTTP client. A nil
// client falls back to a default with conservative timeouts.
func NewExchanger(client networking.HTTPClient) *Exchanger {
	if client == nil {
		client = networking.NewHTTPClient(30 * time.Second)
	}
	return &Exchanger{client: client}
}

// ExchangeCode exchanges an authorization code for tokens, proving code
// possession with the PKCE verifier. Provider rejections and malformed
// responses are reported as ErrTokenExchangeFailed.
func (e *Exchanger) ExchangeCode(ctx context.Context, p ExchangeParams) (*Tokens, error) {
	if p.Code == "" {
		return nil, errors.New("authorization code is required")
	}
	if p.CodeVerifier == "" {
		return nil, errors.New("code verifier is required")
	}
	if err := networking.ValidateEndpointURL(p.TokenEndpoint); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenExchangeFailed, err)
	}

	logger.Infow("exchanging authorization code for tokens",
		"token_endpoint", p.TokenEndpoint,
		"client_id", p.ClientID,
	)

	params := url.Values{
		"grant_type":    {oauthproto.GrantTypeAuthorizationCode},
		"code":          {p.Code},
		"redirect_uri":  {p.RedirectURI},
		"client_id":     {p.ClientID},
		"code_verifier": {p.CodeVerifier},
	}

	useBasicAuth := false
	if p.ClientSecret != "" {
		if p.TokenEndpointAuthMethod == oauthproto.TokenEndpointAuthPost {
			params.Set("client_secret", p.ClientSecret)
		} else {
			useBasicAuth = true
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenEndpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", networking.ContentTypeFormURLEncoded)
	req.Header.Set("Accept", networking.ContentTypeJSON)
	req.Header.Set("User-Agent", UserAgent)
	if useBasicAuth {
		req.SetBasicAuth(url.QueryEscape(p.ClientID), url.QueryEscape(p.ClientSecret))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenExchangeFailed, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Debugf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, networking.DefaultMaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTokenExchangeFailed, err)
	}

	tokens, err := parseTokenResponse(body, resp.StatusCode)
	if err != nil {
		return nil, err
	}

	logger.Infow("authorization code exchange successful",
		"has_refresh_token", tokens.RefreshToken != "",
		"expires", tokens.ExpiresAt != nil,
	)
	return tokens, nil
}

// tokenResponse is the wire form of a token endpoint success or error body.
type tokenResponse struct {
	AccessToken      string               `json:"access_token"`
	RefreshToken     string               `json:"refresh_token"`
	TokenType        string               `json:"token_type"`
	ExpiresIn        int64                `json:"expires_in"`
	Scope            oauthproto.ScopeList `json:"scope"`
	Error            string               `json:"error"`
	ErrorDescription string               `json:"error_description"`
}

// parseTokenResponse interprets a token endpoint response body. An expires_in
// of zero (or absent) yields a token without an expiry.
func parseTokenResponse(body []byte, statusCode int) (*Tokens, error) {
	var wire tokenResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		if statusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: status %d: %s", ErrTokenExchangeFailed, statusCode, string(body))
		}
		return nil, fmt.Errorf("%w: decode response: %w", ErrTokenExchangeFailed, err)
	}

	if statusCode != http.StatusOK || wire.Error != "" {
		if wire.Error != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrTokenExchangeFailed, wire.Error, wire.ErrorDescription)
		}
		return nil, fmt.Errorf("%w: status %d", ErrTokenExchangeFailed, statusCode)
	}

	if wire.AccessToken == "" {
		return nil, fmt.Errorf("%w: response missing access_token", ErrTokenExchangeFailed)
	}

	tokens := &Tokens{
		AccessToken:  wire.AccessToken,
		RefreshToken: wire.RefreshToken,
		TokenType:    wire.TokenType,
		Scope:        []string(wire.Scope),
	}
	if wire.ExpiresIn > 0 {
		expiresAt := time.Now().Add(time.Duration(wire.ExpiresIn) * time.Second)
		tokens.ExpiresAt = &expiresAt
	}
	return tokens, nil
}
