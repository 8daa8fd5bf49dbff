// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stacklok/toolbridge/pkg/logger"
	"github.com/stacklok/toolbridge/pkg/networking"
	oauthproto "github.com/stacklok/toolbridge/pkg/oauth"
)

// ClientName is the client_name ToolBridge registers with providers.
const ClientName = "ToolBridge Connector"

// UserAgent identifies ToolBridge to provider endpoints.
const UserAgent = "ToolBridge/1.0"

// RegistrationRequest is the RFC 7591 dynamic client registration request.
type RegistrationRequest struct {
	// RedirectURIs is required by RFC 7591.
	RedirectURIs []string `json:"redirect_uris"`

	ClientName              string   `json:"client_name,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	Scopes                  []string `json:"scope,omitempty"`
}

// NewRegistrationRequest builds a registration request for the PKCE
// authorization-code flow with the given redirect URI.
func NewRegistrationRequest(redirectURI string, scopes []string) *RegistrationRequest {
	return &RegistrationRequest{
		ClientName:              ClientName,
		RedirectURIs:            []string{redirectURI},
		TokenEndpointAuthMethod: oauthproto.TokenEndpointAuthNone,
		GrantTypes:              []string{oauthproto.GrantTypeAuthorizationCode},
		ResponseTypes:           []string{oauthproto.ResponseTypeCode},
		Scopes:                  scopes,
	}
}

// RegistrationResponse is the RFC 7591 dynamic client registration response.
type RegistrationResponse struct {
	// ClientID is the only field RFC 7591 requires in a success response.
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`

	ClientIDIssuedAt        int64  `json:"client_id_issued_at,omitempty"`
	ClientSecretExpiresAt   int64  `json:"client_secret_expires_at,omitempty"`
	RegistrationAccessToken string `json:"registration_access_token,omitempty"`
	RegistrationClientURI   string `json:"registration_client_uri,omitempty"`

	ClientName              string               `json:"client_name,omitempty"`
	RedirectURIs            []string             `json:"redirect_uris,omitempty"`
	TokenEndpointAuthMethod string               `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string             `json:"grant_types,omitempty"`
	ResponseTypes           []string             `json:"response_types,omitempty"`
	Scopes                  oauthproto.ScopeList `json:"scope,omitempty"`
}

// Registrar performs dynamic client registration against provider
// registration endpoints.
type Registrar struct {
	client networking.HTTPClient
}

// NewRegistrar returns a Registrar using the given HTTP client. A nil client
// falls back to a default with conservative timeouts.
func NewRegistrar(client networking.HTTPClient) *Registrar {
	if client == nil {
		client = networking.NewHTTPClient(30 * time.Second)
	}
	return &Registrar{client: client}
}

// Register registers a new OAuth client at the given endpoint. A success
// response must carry a client_id; responses without one, non-2xx statuses,
// and non-JSON bodies are all reported as ErrDCRFailed.
func (r *Registrar) Register(
	ctx context.Context,
	registrationEndpoint string,
	request *RegistrationRequest,
) (*RegistrationResponse, error) {
	if registrationEndpoint == "" {
		return nil, ErrDCRUnsupported
	}
	if err := networking.ValidateEndpointURL(registrationEndpoint); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDCRFailed, err)
	}
	if err := validateAndSetDefaults(request); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDCRFailed, err)
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", ErrDCRFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrDCRFailed, err)
	}
	req.Header.Set("Content-Type", networking.ContentTypeJSON)
	req.Header.Set("Accept", networking.ContentTypeJSON)
	req.Header.Set("User-Agent", UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDCRFailed, err)
	}

	response, err := handleRegistrationResponse(resp)
	if err != nil {
		return nil, err
	}

	logger.Infof("Successfully registered OAuth client dynamically - client_id: %s", response.ClientID)
	return response, nil
}

// validateAndSetDefaults validates the request and fills in flow defaults.
func validateAndSetDefaults(request *RegistrationRequest) error {
	if request == nil {
		return fmt.Errorf("registration request cannot be nil")
	}
	if len(request.RedirectURIs) == 0 {
		return fmt.Errorf("at least one redirect URI is required")
	}

	if request.ClientName == "" {
		request.ClientName = ClientName
	}
	if len(request.GrantTypes) == 0 {
		request.GrantTypes = []string{oauthproto.GrantTypeAuthorizationCode}
	}
	if len(request.ResponseTypes) == 0 {
		request.ResponseTypes = []string{oauthproto.ResponseTypeCode}
	}
	if request.TokenEndpointAuthMethod == "" {
		// Public client for the PKCE flow.
		request.TokenEndpointAuthMethod = oauthproto.TokenEndpointAuthNone
	}

	return nil
}

func handleRegistrationResponse(resp *http.Response) (*RegistrationResponse, error) {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Debugf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, networking.DefaultMaxResponseSize))
		return nil, fmt.Errorf("%w: status %d: %s", ErrDCRFailed, resp.StatusCode, string(errorBody))
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, networking.ContentTypeJSON) {
		return nil, fmt.Errorf("%w: unexpected content type: %s", ErrDCRFailed, contentType)
	}

	var response RegistrationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, networking.DefaultMaxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrDCRFailed, err)
	}

	if response.ClientID == "" {
		return nil, fmt.Errorf("%w: response missing client_id", ErrDCRFailed)
	}

	return &response, nil
}
