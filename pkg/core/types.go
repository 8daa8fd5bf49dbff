// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package core contains the shared domain records for ToolBridge:
// connections to remote MCP servers, the OAuth clients and tokens obtained
// for them, their discovered tool catalogs, and the opaque API keys minted
// for proxy access.
package core

import (
	"encoding/json"
	"time"
)

// ConnectionStatus is the externally visible lifecycle state of a connection.
type ConnectionStatus string

const (
	// ConnectionStatusPending means the connection exists but authorization
	// has not completed yet.
	ConnectionStatusPending ConnectionStatus = "pending"

	// ConnectionStatusRunning means a token was obtained and at least one
	// tool was discovered; the connection is usable.
	ConnectionStatusRunning ConnectionStatus = "running"

	// ConnectionStatusError means authorization succeeded but tool discovery
	// failed or returned zero tools.
	ConnectionStatusError ConnectionStatus = "error"

	// ConnectionStatusStopped means the connection was administratively
	// disabled.
	ConnectionStatusStopped ConnectionStatus = "stopped"
)

// TransportType selects the wire protocol used to talk to the target MCP
// server. It is a property of the connection record, not a runtime choice.
type TransportType string

const (
	// TransportStreamableHTTP is the MCP streamable-HTTP transport.
	TransportStreamableHTTP TransportType = "streamable-http"

	// TransportSSE is the MCP SSE transport.
	TransportSSE TransportType = "sse"
)

// Valid reports whether t is a member of the closed transport set.
func (t TransportType) Valid() bool {
	return t == TransportStreamableHTTP || t == TransportSSE
}

// Origin describes where a connection's target server came from: either a
// catalog template or a custom URL supplied by the operator. It is resolved
// once at connection-creation time into the normalized fields stored on the
// Connection record.
type Origin struct {
	// TemplateID references a catalog template, if the connection was
	// created from one.
	TemplateID string

	// ServerURL is the resolved base URL of the target MCP server.
	ServerURL string

	// DisplayName is the resolved human-readable name.
	DisplayName string
}

// Connection is a configured, possibly-authorized link to one deployment of
// a remote tool-provider server.
type Connection struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	Name           string           `json:"name"`
	ServerURL      string           `json:"server_url"`
	TemplateID     string           `json:"template_id,omitempty"`
	Transport      TransportType    `json:"transport"`
	Status         ConnectionStatus `json:"status"`
	StatusMessage  string           `json:"status_message,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// OAuthClient identifies a dynamically-registered (or manually supplied)
// OAuth client for one (organization, connection) pair. At most one live
// client per pair is used for new authorization attempts; historical rows
// remain for already-issued tokens. Rows are never mutated after creation;
// secret rotation happens by registering a new client.
type OAuthClient struct {
	ID                      string    `json:"id"`
	OrganizationID          string    `json:"organization_id"`
	ConnectionID            string    `json:"connection_id"`
	ClientID                string    `json:"client_id"`
	ClientSecret            string    `json:"-"`
	Issuer                  string    `json:"issuer"`
	AuthorizationEndpoint   string    `json:"authorization_endpoint"`
	TokenEndpoint           string    `json:"token_endpoint"`
	RegistrationEndpoint    string    `json:"registration_endpoint,omitempty"`
	RegistrationAccessToken string    `json:"-"`
	RegistrationClientURI   string    `json:"registration_client_uri,omitempty"`
	RedirectURIs            []string  `json:"redirect_uris"`
	GrantTypes              []string  `json:"grant_types"`
	ResponseTypes           []string  `json:"response_types"`
	Scopes                  []string  `json:"scopes,omitempty"`
	TokenEndpointAuthMethod string    `json:"token_endpoint_auth_method"`
	Live                    bool      `json:"live"`
	CreatedAt               time.Time `json:"created_at"`
}

// Public reports whether this client authenticates at the token endpoint
// without a secret.
func (c *OAuthClient) Public() bool {
	return c.ClientSecret == ""
}

// TokenPurpose tags what an OAuthToken was minted for.
type TokenPurpose string

// TokenPurposeTools marks tokens obtained for backend tool access.
const TokenPurposeTools TokenPurpose = "tools"

// OAuthToken is one access grant for a (user, connection) pair. Re-running
// the authorization flow for the same pair replaces the prior row.
type OAuthToken struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	OrganizationID string      `json:"organization_id"`
	ConnectionID  string       `json:"connection_id"`
	OAuthClientID string       `json:"oauth_client_id"`
	AccessToken   string       `json:"-"`
	RefreshToken  string       `json:"-"`
	// ExpiresAt is nil for providers that issue non-expiring tokens.
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	Purpose   TokenPurpose `json:"purpose"`
	CreatedAt time.Time    `json:"created_at"`
}

// Expired reports whether the token is past its expiry. Tokens without an
// expiry never expire.
func (t *OAuthToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// Tool is one callable operation a connected server exposes, as discovered
// post-authorization.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// APIKey is the internally-issued opaque bearer credential for proxy access
// to a running connection. The Value is stored and compared as an opaque
// string; it is never re-derivable and is returned to the caller exactly
// once, at issuance.
type APIKey struct {
	ID           string     `json:"id"`
	Value        string     `json:"-"`
	UserID       string     `json:"user_id"`
	ConnectionID string     `json:"connection_id"`
	Active       bool       `json:"active"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
