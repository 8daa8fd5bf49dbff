// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package storage defines the persistence interfaces for ToolBridge records.
// Two implementations exist: an in-memory store for tests and ephemeral
// deployments, and a SQLite store for durable ones.
package storage

import (
	"context"

	"github.com/stacklok/toolbridge/pkg/core"
)

// ConnectionStore persists connection records.
type ConnectionStore interface {
	// CreateWithClient atomically persists a new connection together with
	// its initial live OAuth client. Neither record becomes visible unless
	// both are written.
	CreateWithClient(ctx context.Context, conn *core.Connection, client *core.OAuthClient) error

	// Get returns a connection by ID, scoped to an organization.
	Get(ctx context.Context, orgID, connectionID string) (*core.Connection, error)

	// List returns all connections for an organization.
	List(ctx context.Context, orgID string) ([]*core.Connection, error)

	// UpdateStatus transitions a connection's lifecycle status and message.
	UpdateStatus(ctx context.Context, orgID, connectionID string, status core.ConnectionStatus, message string) error

	// ReplaceTools replaces the connection's tool catalog wholesale.
	ReplaceTools(ctx context.Context, connectionID string, tools []core.Tool) error

	// ListTools returns the connection's current tool catalog.
	ListTools(ctx context.Context, connectionID string) ([]core.Tool, error)
}

// OAuthClientStore persists OAuth client registrations.
type OAuthClientStore interface {
	// Create persists a new client. When client.Live is set, any previously
	// live client for the same (organization, connection) pair is demoted in
	// the same operation, so at most one live client exists per pair.
	Create(ctx context.Context, client *core.OAuthClient) error

	// Get returns a client by record ID.
	Get(ctx context.Context, id string) (*core.OAuthClient, error)

	// GetLive returns the live client for a (organization, connection) pair.
	GetLive(ctx context.Context, orgID, connectionID string) (*core.OAuthClient, error)
}

// TokenStore persists OAuth tokens obtained from providers.
type TokenStore interface {
	// Replace persists a token, removing any prior token for the same
	// (user, connection) pair in the same operation.
	Replace(ctx context.Context, token *core.OAuthToken) error

	// Get returns the current token for a (user, connection) pair.
	Get(ctx context.Context, userID, connectionID string) (*core.OAuthToken, error)

	// Delete removes the token for a (user, connection) pair.
	Delete(ctx context.Context, userID, connectionID string) error
}

// APIKeyStore persists issued API keys.
type APIKeyStore interface {
	// Create persists a new API key.
	Create(ctx context.Context, key *core.APIKey) error

	// GetByValue returns the key record matching an opaque key value.
	GetByValue(ctx context.Context, value string) (*core.APIKey, error)

	// ListByConnection returns all keys issued for a connection.
	ListByConnection(ctx context.Context, connectionID string) ([]*core.APIKey, error)

	// Deactivate marks a key inactive. Validation of inactive keys fails.
	Deactivate(ctx context.Context, id string) error

	// TouchLastUsed records a successful validation. Failures here are
	// best-effort for callers and must not affect validation outcome.
	TouchLastUsed(ctx context.Context, id string) error
}

// Store aggregates all record stores behind one handle.
type Store interface {
	Connections() ConnectionStore
	OAuthClients() OAuthClientStore
	Tokens() TokenStore
	APIKeys() APIKeyStore

	// Close releases underlying resources.
	Close() error
}
