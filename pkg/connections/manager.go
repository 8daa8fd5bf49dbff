// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package connections orchestrates the lifecycle of tool-provider
// connections: creation with metadata discovery and client registration,
// PKCE authorization, token exchange, tool introspection, and API key
// issuance.
package connections

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/stacklok/toolbridge/pkg/apikeys"
	"github.com/stacklok/toolbridge/pkg/auth"
	"github.com/stacklok/toolbridge/pkg/auth/discovery"
	"github.com/stacklok/toolbridge/pkg/auth/oauth"
	"github.com/stacklok/toolbridge/pkg/auth/state"
	"github.com/stacklok/toolbridge/pkg/core"
	"github.com/stacklok/toolbridge/pkg/logger"
	"github.com/stacklok/toolbridge/pkg/mcptools"
	oauthproto "github.com/stacklok/toolbridge/pkg/oauth"
	"github.com/stacklok/toolbridge/pkg/storage"
	"github.com/stacklok/toolbridge/pkg/telemetry"
)

const maxIntrospectionAttempts = 3

// MetadataDiscoverer locates authorization server metadata for a target
// server.
type MetadataDiscoverer interface {
	Discover(ctx context.Context, serverURL string) (*oauthproto.AuthServerMetadata, error)
}

// ClientRegistrar performs dynamic client registration.
type ClientRegistrar interface {
	Register(ctx context.Context, registrationEndpoint string, request *oauth.RegistrationRequest) (*oauth.RegistrationResponse, error)
}

// CodeExchanger redeems authorization codes for tokens.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, p oauth.ExchangeParams) (*oauth.Tokens, error)
}

// ToolIntrospector lists the tool catalog of a connected server.
type ToolIntrospector interface {
	ListTools(ctx context.Context, serverURL string, transportType core.TransportType, accessToken string) ([]core.Tool, error)
}

// Manager coordinates the stores and protocol clients behind the connection
// lifecycle. All operations are scoped to the caller's identity.
type Manager struct {
	store        storage.Store
	discoverer   MetadataDiscoverer
	registrar    ClientRegistrar
	exchanger    CodeExchanger
	introspector ToolIntrospector
	codec        *state.Codec
	issuer       *apikeys.Issuer
	metrics      *telemetry.Metrics

	redirectURI string
	templates   map[string]Template

	// now is injectable for expiry tests.
	now func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDiscoverer overrides the metadata discoverer.
func WithDiscoverer(d MetadataDiscoverer) ManagerOption {
	return func(m *Manager) { m.discoverer = d }
}

// WithRegistrar overrides the client registrar.
func WithRegistrar(r ClientRegistrar) ManagerOption {
	return func(m *Manager) { m.registrar = r }
}

// WithExchanger overrides the token exchanger.
func WithExchanger(e CodeExchanger) ManagerOption {
	return func(m *Manager) { m.exchanger = e }
}

// WithIntrospector overrides the tool introspector.
func WithIntrospector(i ToolIntrospector) ManagerOption {
	return func(m *Manager) { m.introspector = i }
}

// WithTemplates loads the connection template catalog.
func WithTemplates(templates []Template) ManagerOption {
	return func(m *Manager) {
		for _, tpl := range templates {
			m.templates[tpl.ID] = tpl
		}
	}
}

// WithMetrics wires flow metrics. Without it the manager runs unmetered.
func WithMetrics(metrics *telemetry.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a Manager over the given store. The redirect URI is the
// externally reachable callback endpoint registered with every provider.
func NewManager(
	store storage.Store,
	codec *state.Codec,
	issuer *apikeys.Issuer,
	redirectURI string,
	opts ...ManagerOption,
) (*Manager, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if codec == nil {
		return nil, errors.New("state codec is required")
	}
	if issuer == nil {
		return nil, errors.New("API key issuer is required")
	}
	if redirectURI == "" {
		return nil, errors.New("redirect URI is required")
	}

	m := &Manager{
		store:        store,
		discoverer:   discovery.NewDiscoverer(nil),
		registrar:    oauth.NewRegistrar(nil),
		exchanger:    oauth.NewExchanger(nil),
		introspector: mcptools.NewIntrospector(30 * time.Second),
		codec:        codec,
		issuer:       issuer,
		redirectURI:  redirectURI,
		templates:    make(map[string]Template),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CreateRequest is the input for creating a connection. Either TemplateID or
// the (Name, ServerURL, Transport) triple must be supplied. ClientID and
// ClientSecret carry operator-supplied credentials for providers without
// dynamic registration; when set, registration is skipped and only discovery
// runs.
type CreateRequest struct {
	Name       string             `json:"name,omitempty"`
	TemplateID string             `json:"template_id,omitempty"`
	ServerURL  string             `json:"server_url,omitempty"`
	Transport  core.TransportType `json:"transport,omitempty"`
	Scopes     []string           `json:"scopes,omitempty"`

	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// Create sets up a new connection: it resolves the origin, discovers the
// provider's authorization server metadata, obtains an OAuth client (by
// dynamic registration or from operator-supplied credentials), and persists
// the connection in PENDING state together with its live client.
func (m *Manager) Create(ctx context.Context, identity *auth.Identity, req CreateRequest) (*core.Connection, error) {
	origin, transportType, scopes, err := m.resolveOrigin(req)
	if err != nil {
		return nil, err
	}
	if len(req.Scopes) > 0 {
		scopes = req.Scopes
	}

	metadata, err := m.discoverer.Discover(ctx, origin.ServerURL)
	if err != nil {
		return nil, err
	}
	if !metadata.SupportsS256() {
		return nil, fmt.Errorf("%w: provider does not support S256 PKCE", ErrInvalidRequest)
	}

	now := m.now().UTC()
	conn := &core.Connection{
		ID:             uuid.NewString(),
		OrganizationID: identity.OrganizationID,
		Name:           origin.DisplayName,
		ServerURL:      origin.ServerURL,
		TemplateID:     origin.TemplateID,
		Transport:      transportType,
		Status:         core.ConnectionStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	client, err := m.obtainClient(ctx, identity, conn, metadata, scopes, req)
	if err != nil {
		return nil, err
	}

	if err := m.store.Connections().CreateWithClient(ctx, conn, client); err != nil {
		return nil, fmt.Errorf("persisting connection: %w", err)
	}

	m.metrics.ConnectionCreated(origin.TemplateID != "")
	logger.Infow("connection created",
		"connection_id", conn.ID,
		"server_url", conn.ServerURL,
		"template_id", conn.TemplateID,
		"dynamic_registration", req.ClientID == "",
	)
	return conn, nil
}

// obtainClient produces the OAuth client record for a new connection, either
// by registering one dynamically or from manually supplied credentials.
func (m *Manager) obtainClient(
	ctx context.Context,
	identity *auth.Identity,
	conn *core.Connection,
	metadata *oauthproto.AuthServerMetadata,
	scopes []string,
	req CreateRequest,
) (*core.OAuthClient, error) {
	client := &core.OAuthClient{
		ID:                    uuid.NewString(),
		OrganizationID:        identity.OrganizationID,
		ConnectionID:          conn.ID,
		Issuer:                metadata.Issuer,
		AuthorizationEndpoint: metadata.AuthorizationEndpoint,
		TokenEndpoint:         metadata.TokenEndpoint,
		RegistrationEndpoint:  metadata.RegistrationEndpoint,
		RedirectURIs:          []string{m.redirectURI},
		GrantTypes:            []string{oauthproto.GrantTypeAuthorizationCode},
		ResponseTypes:         []string{oauthproto.ResponseTypeCode},
		Scopes:                scopes,
		Live:                  true,
		CreatedAt:             m.now().UTC(),
	}

	if req.ClientID != "" {
		// Operator-supplied credentials: only discovery runs, but the
		// client is still recorded like a registered one.
		client.ClientID = req.ClientID
		client.ClientSecret = req.ClientSecret
		client.TokenEndpointAuthMethod = oauthproto.TokenEndpointAuthNone
		if req.ClientSecret != "" {
			client.TokenEndpointAuthMethod = oauthproto.TokenEndpointAuthBasic
		}
		return client, nil
	}

	registered, err := m.registrar.Register(ctx, metadata.RegistrationEndpoint, oauth.NewRegistrationRequest(m.redirectURI, scopes))
	if err != nil {
		return nil, err
	}

	client.ClientID = registered.ClientID
	client.ClientSecret = registered.ClientSecret
	client.RegistrationAccessToken = registered.RegistrationAccessToken
	client.RegistrationClientURI = registered.RegistrationClientURI
	client.TokenEndpointAuthMethod = registered.TokenEndpointAuthMethod
	if client.TokenEndpointAuthMethod == "" {
		client.TokenEndpointAuthMethod = oauthproto.TokenEndpointAuthNone
		if registered.ClientSecret != "" {
			client.TokenEndpointAuthMethod = oauthproto.TokenEndpointAuthBasic
		}
	}
	if len(registered.Scopes) > 0 {
		client.Scopes = registered.Scopes
	}
	return client, nil
}

// Get returns a connection scoped to the caller's organization.
func (m *Manager) Get(ctx context.Context, identity *auth.Identity, connectionID string) (*core.Connection, error) {
	return m.store.Connections().Get(ctx, identity.OrganizationID, connectionID)
}

// List returns all connections in the caller's organization.
func (m *Manager) List(ctx context.Context, identity *auth.Identity) ([]*core.Connection, error) {
	return m.store.Connections().List(ctx, identity.OrganizationID)
}

// Tools returns the discovered tool catalog of a connection.
func (m *Manager) Tools(ctx context.Context, identity *auth.Identity, connectionID string) ([]core.Tool, error) {
	if _, err := m.store.Connections().Get(ctx, identity.OrganizationID, connectionID); err != nil {
		return nil, err
	}
	return m.store.Connections().ListTools(ctx, connectionID)
}

// BeginAuthorization starts an authorization attempt for a connection and
// returns the provider URL to send the user's browser to. The attempt's PKCE
// verifier never leaves the server except inside the signed state token.
// Integrated marks attempts started from a larger setup flow; the flag rides
// the state token and is surfaced again on completion.
func (m *Manager) BeginAuthorization(ctx context.Context, identity *auth.Identity, connectionID string, integrated bool) (string, error) {
	conn, err := m.store.Connections().Get(ctx, identity.OrganizationID, connectionID)
	if err != nil {
		return "", err
	}

	client, err := m.store.OAuthClients().GetLive(ctx, identity.OrganizationID, conn.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrCredentialNotFound
		}
		return "", fmt.Errorf("resolving OAuth client: %w", err)
	}

	pkce := oauth.GeneratePKCE()
	stateToken, err := m.codec.Encode(state.Attempt{
		UserID:         identity.Subject,
		OrganizationID: identity.OrganizationID,
		ConnectionID:   conn.ID,
		OAuthClientID:  client.ID,
		CodeVerifier:   pkce.Verifier,
		RedirectURI:    m.redirectURI,
		Scopes:         client.Scopes,
		Integrated:     integrated,
	})
	if err != nil {
		return "", fmt.Errorf("encoding state token: %w", err)
	}

	authURL, err := oauth.BuildAuthorizationURL(oauth.AuthorizationParams{
		AuthorizationEndpoint: client.AuthorizationEndpoint,
		ClientID:              client.ClientID,
		RedirectURI:           m.redirectURI,
		State:                 stateToken,
		CodeChallenge:         pkce.Challenge,
		Scopes:                client.Scopes,
	})
	if err != nil {
		return "", err
	}

	m.metrics.AuthorizationStarted()
	logger.Infow("authorization started",
		"connection_id", conn.ID,
		"client_id", client.ClientID,
	)
	return authURL, nil
}

// CompletionResult is the outcome of a successfully completed authorization.
type CompletionResult struct {
	Connection *core.Connection

	// APIKey is set only when completion minted a key, which happens on the
	// connection's first transition to running.
	APIKey *core.APIKey

	// Integrated echoes the flag the attempt was started with.
	Integrated bool
}

// CompleteAuthorization handles the provider callback for one authorization
// attempt. The state token is verified before anything else; a token that
// does not verify, has expired, or was issued to a different user aborts the
// flow without touching any stored record. A failed exchange likewise leaves
// no trace. After a successful exchange the token is persisted even if the
// subsequent tool introspection fails, so introspection can be retried
// without sending the user back through the provider.
func (m *Manager) CompleteAuthorization(ctx context.Context, identity *auth.Identity, callbackURL string) (*CompletionResult, error) {
	cb, err := url.Parse(callbackURL)
	if err != nil {
		m.metrics.AuthorizationCompleted(telemetry.OutcomeStateInvalid)
		return nil, fmt.Errorf("%w: malformed callback URL", ErrAuthorizationResponseInvalid)
	}
	query := cb.Query()

	stateToken := query.Get("state")
	if stateToken == "" {
		m.metrics.AuthorizationCompleted(telemetry.OutcomeStateInvalid)
		return nil, fmt.Errorf("%w: missing state parameter", ErrAuthorizationResponseInvalid)
	}
	attempt, err := m.codec.Decode(stateToken)
	if err != nil {
		m.metrics.AuthorizationCompleted(telemetry.OutcomeStateInvalid)
		return nil, err
	}
	if err := attempt.ValidateUser(identity.Subject); err != nil {
		m.metrics.AuthorizationCompleted(telemetry.OutcomeStateInvalid)
		return nil, err
	}
	if attempt.OrganizationID != identity.OrganizationID {
		m.metrics.AuthorizationCompleted(telemetry.OutcomeStateInvalid)
		return nil, ErrOrganizationMismatch
	}

	conn, client, err := m.resolveAttempt(ctx, attempt)
	if err != nil {
		m.metrics.AuthorizationCompleted(telemetry.OutcomeStateInvalid)
		return nil, err
	}

	code, err := validateCallback(cb, query, attempt)
	if err != nil {
		m.metrics.AuthorizationCompleted(telemetry.OutcomeProviderDenied)
		return nil, err
	}

	tokens, err := m.exchanger.ExchangeCode(ctx, oauth.ExchangeParams{
		TokenEndpoint:           client.TokenEndpoint,
		ClientID:                client.ClientID,
		ClientSecret:            client.ClientSecret,
		TokenEndpointAuthMethod: client.TokenEndpointAuthMethod,
		Code:                    code,
		CodeVerifier:            attempt.CodeVerifier,
		RedirectURI:             attempt.RedirectURI,
	})
	if err != nil {
		m.metrics.AuthorizationCompleted(telemetry.OutcomeExchangeFailed)
		return nil, err
	}

	token := &core.OAuthToken{
		ID:             uuid.NewString(),
		UserID:         attempt.UserID,
		OrganizationID: attempt.OrganizationID,
		ConnectionID:   conn.ID,
		OAuthClientID:  client.ID,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		ExpiresAt:      tokens.ExpiresAt,
		Purpose:        core.TokenPurposeTools,
		CreatedAt:      m.now().UTC(),
	}
	if err := m.store.Tokens().Replace(ctx, token); err != nil {
		return nil, fmt.Errorf("persisting token: %w", err)
	}

	result, err := m.introspectAndTransition(ctx, identity, conn, token.AccessToken)
	if err != nil {
		m.metrics.AuthorizationCompleted(telemetry.OutcomeIntrospectionFailed)
		return nil, err
	}

	m.metrics.AuthorizationCompleted(telemetry.OutcomeSuccess)
	result.Integrated = attempt.Integrated
	return result, nil
}

// resolveAttempt re-resolves the connection and client an attempt refers to.
// Records may have changed while the user was at the provider; a missing
// connection or client, or one that moved organizations, voids the attempt.
func (m *Manager) resolveAttempt(ctx context.Context, attempt *state.Attempt) (*core.Connection, *core.OAuthClient, error) {
	conn, err := m.store.Connections().Get(ctx, attempt.OrganizationID, attempt.ConnectionID)
	if err != nil {
		return nil, nil, err
	}

	// Tokens bind to the exact client the attempt started with, even if a
	// newer live client has since been registered.
	client, err := m.store.OAuthClients().Get(ctx, attempt.OAuthClientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrCredentialNotFound
		}
		return nil, nil, fmt.Errorf("resolving OAuth client: %w", err)
	}
	if client.ConnectionID != conn.ID {
		return nil, nil, ErrCredentialNotFound
	}
	if client.OrganizationID != attempt.OrganizationID {
		return nil, nil, ErrOrganizationMismatch
	}
	return conn, client, nil
}

// validateCallback checks the authorization response carried by the callback
// and returns the authorization code.
func validateCallback(cb *url.URL, query url.Values, attempt *state.Attempt) (string, error) {
	if errCode := query.Get("error"); errCode != "" {
		if desc := query.Get("error_description"); desc != "" {
			return "", fmt.Errorf("%w: provider returned %s: %s", ErrAuthorizationResponseInvalid, errCode, desc)
		}
		return "", fmt.Errorf("%w: provider returned %s", ErrAuthorizationResponseInvalid, errCode)
	}

	code := query.Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: missing authorization code", ErrAuthorizationResponseInvalid)
	}

	if !matchesRedirect(cb, attempt.RedirectURI) {
		return "", fmt.Errorf("%w: callback does not match attempt redirect URI", ErrAuthorizationResponseInvalid)
	}
	return code, nil
}

// matchesRedirect reports whether the callback arrived at the redirect URI
// the attempt was started with. Server handlers often see only a relative
// request URL, so the host is compared only when the callback carries one.
func matchesRedirect(cb *url.URL, redirectURI string) bool {
	ru, err := url.Parse(redirectURI)
	if err != nil {
		return false
	}
	if cb.IsAbs() && (!strings.EqualFold(cb.Scheme, ru.Scheme) || !strings.EqualFold(cb.Host, ru.Host)) {
		return false
	}
	return cb.Path == ru.Path
}

// RetryIntrospection re-runs tool introspection for a connection using the
// persisted token, retrying transient failures. It serves connections stuck
// in ERROR after a failed post-authorization introspection.
func (m *Manager) RetryIntrospection(ctx context.Context, identity *auth.Identity, connectionID string) (*core.Connection, error) {
	conn, err := m.store.Connections().Get(ctx, identity.OrganizationID, connectionID)
	if err != nil {
		return nil, err
	}

	token, err := m.store.Tokens().Get(ctx, identity.Subject, conn.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("resolving token: %w", err)
	}
	if token.Expired(m.now()) {
		// A stale token cannot serve introspection; drop it so the pair is
		// cleanly unauthorized.
		if err := m.store.Tokens().Delete(ctx, identity.Subject, conn.ID); err != nil {
			logger.Debugf("Failed to delete expired token for %s: %v", conn.ID, err)
		}
		return nil, fmt.Errorf("%w: token expired", ErrTokenNotFound)
	}

	result, err := m.introspectAndTransition(ctx, identity, conn, token.AccessToken)
	if err != nil {
		return nil, err
	}
	return result.Connection, nil
}

// introspectAndTransition queries the target server's tool catalog and moves
// the connection to RUNNING or ERROR accordingly. A failed introspection
// records the failure on the connection but reports it to the caller too.
// The connection's first transition to RUNNING mints an API key for the
// authorizing user.
func (m *Manager) introspectAndTransition(
	ctx context.Context,
	identity *auth.Identity,
	conn *core.Connection,
	accessToken string,
) (*CompletionResult, error) {
	op := func() ([]core.Tool, error) {
		tools, err := m.introspector.ListTools(ctx, conn.ServerURL, conn.Transport, accessToken)
		if err != nil {
			// An empty catalog will stay empty; only transport-level
			// failures are worth retrying.
			if errors.Is(err, mcptools.ErrNoTools) || errors.Is(err, mcptools.ErrUnsupportedTransport) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return tools, nil
	}

	tools, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxIntrospectionAttempts),
	)
	if err != nil {
		statusErr := m.store.Connections().UpdateStatus(
			ctx, conn.OrganizationID, conn.ID, core.ConnectionStatusError, err.Error())
		if statusErr != nil {
			logger.Errorf("Failed to record introspection failure for %s: %v", conn.ID, statusErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrToolIntrospectionFailed, err)
	}

	if err := m.store.Connections().ReplaceTools(ctx, conn.ID, tools); err != nil {
		return nil, fmt.Errorf("persisting tool catalog: %w", err)
	}
	if err := m.store.Connections().UpdateStatus(
		ctx, conn.OrganizationID, conn.ID, core.ConnectionStatusRunning, ""); err != nil {
		return nil, fmt.Errorf("updating connection status: %w", err)
	}
	m.metrics.ToolsDiscovered(len(tools))

	result := &CompletionResult{}

	key, err := m.mintFirstKey(ctx, identity, conn)
	if err != nil {
		// The connection is usable; key issuance can be redone explicitly.
		logger.Errorf("Failed to mint API key for connection %s: %v", conn.ID, err)
	} else {
		result.APIKey = key
	}

	updated, err := m.store.Connections().Get(ctx, conn.OrganizationID, conn.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading connection: %w", err)
	}
	result.Connection = updated

	logger.Infow("connection running",
		"connection_id", conn.ID,
		"tool_count", len(tools),
	)
	return result, nil
}

// mintFirstKey issues an API key if the connection has none yet.
func (m *Manager) mintFirstKey(ctx context.Context, identity *auth.Identity, conn *core.Connection) (*core.APIKey, error) {
	existing, err := m.store.APIKeys().ListByConnection(ctx, conn.ID)
	if err != nil {
		return nil, fmt.Errorf("listing API keys: %w", err)
	}
	if len(existing) > 0 {
		return nil, nil
	}

	key, err := m.issuer.Issue(ctx, identity.Subject, conn.ID, nil)
	if err != nil {
		return nil, err
	}
	m.metrics.APIKeyIssued()
	return key, nil
}

// MintAPIKey issues an additional API key for a running connection.
func (m *Manager) MintAPIKey(ctx context.Context, identity *auth.Identity, connectionID string, expiresAt *time.Time) (*core.APIKey, error) {
	conn, err := m.store.Connections().Get(ctx, identity.OrganizationID, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.Status != core.ConnectionStatusRunning {
		return nil, fmt.Errorf("%w: status is %s", ErrConnectionNotRunning, conn.Status)
	}

	key, err := m.issuer.Issue(ctx, identity.Subject, conn.ID, expiresAt)
	if err != nil {
		return nil, err
	}
	m.metrics.APIKeyIssued()
	return key, nil
}

// Stop administratively disables a connection. Its API keys are deactivated
// so proxy access stops with it; the stored token is kept so a later
// re-authorization is not forced if the connection is resumed by a fresh
// introspection.
func (m *Manager) Stop(ctx context.Context, identity *auth.Identity, connectionID string) (*core.Connection, error) {
	conn, err := m.store.Connections().Get(ctx, identity.OrganizationID, connectionID)
	if err != nil {
		return nil, err
	}

	keys, err := m.store.APIKeys().ListByConnection(ctx, conn.ID)
	if err != nil {
		return nil, fmt.Errorf("listing API keys: %w", err)
	}
	for _, key := range keys {
		if !key.Active {
			continue
		}
		if err := m.store.APIKeys().Deactivate(ctx, key.ID); err != nil {
			return nil, fmt.Errorf("deactivating API key %s: %w", key.ID, err)
		}
	}

	if err := m.store.Connections().UpdateStatus(
		ctx, conn.OrganizationID, conn.ID, core.ConnectionStatusStopped, "stopped by operator"); err != nil {
		return nil, fmt.Errorf("updating connection status: %w", err)
	}

	logger.Infow("connection stopped",
		"connection_id", conn.ID,
		"keys_deactivated", len(keys),
	)
	return m.store.Connections().Get(ctx, conn.OrganizationID, conn.ID)
}
