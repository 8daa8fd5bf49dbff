// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stacklok/toolbridge/pkg/core"
	"github.com/stacklok/toolbridge/pkg/storage"
)

// clientStore implements storage.OAuthClientStore using SQLite.
type clientStore struct {
	db *sql.DB
}

const clientColumns = `id, organization_id, connection_id, client_id, client_secret,
	issuer, authorization_endpoint, token_endpoint, registration_endpoint,
	registration_access_token, registration_client_uri, redirect_uris,
	grant_types, response_types, scopes, token_endpoint_auth_method, live, created_at`

// Create stores a new OAuth client, demoting any prior live client for the
// pair when the new one is live.
func (s *clientStore) Create(ctx context.Context, client *core.OAuthClient) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	if err := insertClient(ctx, tx, client); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves a client by record ID.
func (s *clientStore) Get(ctx context.Context, id string) (*core.OAuthClient, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients WHERE id = ?`, id,
	)
	return scanClient(row)
}

// GetLive retrieves the live client for a (organization, connection) pair.
func (s *clientStore) GetLive(ctx context.Context, orgID, connectionID string) (*core.OAuthClient, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients
		 WHERE organization_id = ? AND connection_id = ? AND live = 1`,
		orgID, connectionID,
	)
	return scanClient(row)
}

// insertClient writes one client row within the caller's transaction,
// demoting the prior live client first when needed.
func insertClient(ctx context.Context, tx *sql.Tx, client *core.OAuthClient) error {
	if client.Live {
		if err := demoteLive(ctx, tx, client.OrganizationID, client.ConnectionID); err != nil {
			return err
		}
	}

	redirectURIs, err := encodeJSON(client.RedirectURIs)
	if err != nil {
		return fmt.Errorf("encoding redirect URIs: %w", err)
	}
	grantTypes, err := encodeJSON(client.GrantTypes)
	if err != nil {
		return fmt.Errorf("encoding grant types: %w", err)
	}
	responseTypes, err := encodeJSON(client.ResponseTypes)
	if err != nil {
		return fmt.Errorf("encoding response types: %w", err)
	}
	scopes, err := encodeJSON(client.Scopes)
	if err != nil {
		return fmt.Errorf("encoding scopes: %w", err)
	}

	live := 0
	if client.Live {
		live = 1
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO oauth_clients (
			id, organization_id, connection_id, client_id, client_secret,
			issuer, authorization_endpoint, token_endpoint, registration_endpoint,
			registration_access_token, registration_client_uri, redirect_uris,
			grant_types, response_types, scopes, token_endpoint_auth_method,
			live, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID,
		client.OrganizationID,
		client.ConnectionID,
		client.ClientID,
		client.ClientSecret,
		client.Issuer,
		client.AuthorizationEndpoint,
		client.TokenEndpoint,
		client.RegistrationEndpoint,
		client.RegistrationAccessToken,
		client.RegistrationClientURI,
		redirectURIs,
		grantTypes,
		responseTypes,
		scopes,
		client.TokenEndpointAuthMethod,
		live,
		formatTime(client.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting oauth client: %w", err)
	}

	return nil
}

// scanClient scans one client row.
func scanClient(sc scanner) (*core.OAuthClient, error) {
	var (
		client                   core.OAuthClient
		redirectURIs, grantTypes []byte
		responseTypes, scopes    []byte
		live                     int
		createdAt                string
	)
	err := sc.Scan(
		&client.ID, &client.OrganizationID, &client.ConnectionID, &client.ClientID,
		&client.ClientSecret, &client.Issuer, &client.AuthorizationEndpoint,
		&client.TokenEndpoint, &client.RegistrationEndpoint,
		&client.RegistrationAccessToken, &client.RegistrationClientURI,
		&redirectURIs, &grantTypes, &responseTypes, &scopes,
		&client.TokenEndpointAuthMethod, &live, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scanning oauth client row: %w", err)
	}

	client.Live = live == 1
	if client.RedirectURIs, err = decodeJSON(redirectURIs); err != nil {
		return nil, err
	}
	if client.GrantTypes, err = decodeJSON(grantTypes); err != nil {
		return nil, err
	}
	if client.ResponseTypes, err = decodeJSON(responseTypes); err != nil {
		return nil, err
	}
	if client.Scopes, err = decodeJSON(scopes); err != nil {
		return nil, err
	}
	if client.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &client, nil
}
