// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package discovery locates OAuth authorization server metadata for a target
// MCP server. Given the server's base URL it derives the issuer and probes
// the RFC 8414 and OIDC well-known endpoints, returning the first valid
// metadata document.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/toolbridge/pkg/logger"
	"github.com/stacklok/toolbridge/pkg/networking"
	"github.com/stacklok/toolbridge/pkg/oauth"
)

// UserAgent identifies ToolBridge to provider endpoints.
const UserAgent = "ToolBridge/1.0"

// ErrMetadataUnavailable indicates that no usable authorization server
// metadata could be discovered for the target server.
var ErrMetadataUnavailable = errors.New("authorization server metadata unavailable")

const maxDiscoveryAttempts = 3

// Discoverer probes well-known endpoints for authorization server metadata.
type Discoverer struct {
	client networking.HTTPClient
}

// NewDiscoverer returns a Discoverer using the given HTTP client. A nil
// client falls back to a default with conservative timeouts.
func NewDiscoverer(client networking.HTTPClient) *Discoverer {
	if client == nil {
		client = networking.NewHTTPClient(30 * time.Second)
	}
	return &Discoverer{client: client}
}

// Discover derives the issuer from the target server URL and fetches its
// authorization server metadata. The RFC 8414 OAuth path is tried first,
// then the OIDC discovery path; tenant paths in the issuer are preserved in
// both well-known URL forms. Returns ErrMetadataUnavailable when neither
// endpoint yields a valid document.
func (d *Discoverer) Discover(ctx context.Context, serverURL string) (*oauth.AuthServerMetadata, error) {
	issuer, err := deriveIssuer(serverURL)
	if err != nil {
		return nil, err
	}

	oauthURL, oidcURL, err := buildWellKnownURLs(issuer)
	if err != nil {
		return nil, err
	}

	doc, oauthErr := d.fetch(ctx, oauthURL, issuer)
	if oauthErr == nil {
		return doc, nil
	}
	doc, oidcErr := d.fetch(ctx, oidcURL, issuer)
	if oidcErr == nil {
		return doc, nil
	}

	logger.Debugf("Metadata discovery failed for %s - OAuth error: %v, OIDC error: %v", issuer, oauthErr, oidcErr)
	return nil, fmt.Errorf("%w: tried %q and %q", ErrMetadataUnavailable, oauthURL, oidcURL)
}

// fetch retrieves and validates one metadata document, retrying transient
// network failures with exponential backoff. Non-2xx responses and malformed
// documents are permanent.
func (d *Discoverer) fetch(ctx context.Context, urlStr, expectedIssuer string) (*oauth.AuthServerMetadata, error) {
	op := func() (*oauth.AuthServerMetadata, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("User-Agent", UserAgent)
		req.Header.Set("Accept", networking.ContentTypeJSON)

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", urlStr, err)
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				logger.Debugf("Failed to close response body: %v", err)
			}
		}()

		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(fmt.Errorf("%s: HTTP %d", urlStr, resp.StatusCode))
		}
		ct := strings.ToLower(resp.Header.Get("Content-Type"))
		if !strings.Contains(ct, networking.ContentTypeJSON) {
			return nil, backoff.Permanent(fmt.Errorf("%s: unexpected content-type %q", urlStr, ct))
		}

		var doc oauth.AuthServerMetadata
		if err := json.NewDecoder(io.LimitReader(resp.Body, networking.DefaultMaxResponseSize)).Decode(&doc); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("%s: unexpected response: %w", urlStr, err))
		}
		if err := validateMetadata(&doc, expectedIssuer); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("%s: invalid metadata: %w", urlStr, err))
		}
		return &doc, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxDiscoveryAttempts),
	)
}

// validateMetadata checks field presence, issuer consistency, and endpoint
// URL safety on a discovered document.
func validateMetadata(doc *oauth.AuthServerMetadata, expectedIssuer string) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	// Issuer must match the location the document was derived from.
	if strings.TrimSuffix(doc.Issuer, "/") != strings.TrimSuffix(expectedIssuer, "/") {
		return fmt.Errorf("issuer mismatch: expected %s, got %s", expectedIssuer, doc.Issuer)
	}

	endpoints := map[string]string{
		"authorization_endpoint": doc.AuthorizationEndpoint,
		"token_endpoint":         doc.TokenEndpoint,
		"registration_endpoint":  doc.RegistrationEndpoint,
		"jwks_uri":               doc.JWKSURI,
		"introspection_endpoint": doc.IntrospectionEndpoint,
	}
	for name, endpoint := range endpoints {
		if endpoint == "" {
			continue
		}
		if err := networking.ValidateEndpointURL(endpoint); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// deriveIssuer reduces a target MCP server URL to its issuer identifier:
// scheme, host, and any tenant path, with trailing slash and well-known
// suffixes stripped.
func deriveIssuer(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("server URL %q must be absolute", serverURL)
	}
	if u.Scheme != networking.HttpsScheme && !networking.IsLocalhost(u.Host) {
		return "", fmt.Errorf("server URL must use HTTPS: %s", serverURL)
	}

	issuer := &url.URL{
		Scheme: u.Scheme,
		Host:   u.Host,
		Path:   strings.TrimSuffix(u.EscapedPath(), "/"),
	}
	return issuer.String(), nil
}

// buildWellKnownURLs constructs both metadata URL forms for an issuer. Tenant
// paths are placed per each spec's convention:
//
//	RFC 8414: /.well-known/oauth-authorization-server/{tenant}
//	OIDC:     /{tenant}/.well-known/openid-configuration
func buildWellKnownURLs(issuer string) (oauthURL, oidcURL string, err error) {
	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return "", "", fmt.Errorf("invalid issuer URL: %w", err)
	}

	tenant := strings.Trim(issuerURL.EscapedPath(), "/")
	base := &url.URL{
		Scheme: issuerURL.Scheme,
		Host:   issuerURL.Host,
	}

	o := *base
	o.Path = path.Join(oauth.WellKnownOAuthServerPath, tenant)
	oauthURL = o.String()

	oidc := *base
	oidc.Path = path.Join("/", tenant, oauth.WellKnownOIDCPath)
	oidcURL = oidc.String()

	return oauthURL, oidcURL, nil
}
