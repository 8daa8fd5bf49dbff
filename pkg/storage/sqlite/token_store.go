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

// tokenStore implements storage.TokenStore using SQLite.
type tokenStore struct {
	db *sql.DB
}

// Replace stores a token, removing any prior token for the same
// (user, connection) pair in the same transaction.
func (s *tokenStore) Replace(ctx context.Context, token *core.OAuthToken) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM oauth_tokens WHERE user_id = ? AND connection_id = ?`,
		token.UserID, token.ConnectionID,
	); err != nil {
		return fmt.Errorf("deleting prior token: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO oauth_tokens (
			id, user_id, organization_id, connection_id, oauth_client_id,
			access_token, refresh_token, expires_at, purpose, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		token.ID,
		token.UserID,
		token.OrganizationID,
		token.ConnectionID,
		token.OAuthClientID,
		token.AccessToken,
		token.RefreshToken,
		formatNullableTime(token.ExpiresAt),
		string(token.Purpose),
		formatTime(token.CreatedAt),
	); err != nil {
		return fmt.Errorf("inserting token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves the current token for a (user, connection) pair.
func (s *tokenStore) Get(ctx context.Context, userID, connectionID string) (*core.OAuthToken, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, organization_id, connection_id, oauth_client_id,
		       access_token, refresh_token, expires_at, purpose, created_at
		FROM oauth_tokens
		WHERE user_id = ? AND connection_id = ?`,
		userID, connectionID,
	)

	var (
		token     core.OAuthToken
		purpose   string
		expiresAt sql.NullString
		createdAt string
	)
	err := row.Scan(
		&token.ID, &token.UserID, &token.OrganizationID, &token.ConnectionID,
		&token.OAuthClientID, &token.AccessToken, &token.RefreshToken,
		&expiresAt, &purpose, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scanning token row: %w", err)
	}

	token.Purpose = core.TokenPurpose(purpose)
	if token.ExpiresAt, err = parseNullableTime(expiresAt); err != nil {
		return nil, err
	}
	if token.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &token, nil
}

// Delete removes the token for a (user, connection) pair.
func (s *tokenStore) Delete(ctx context.Context, userID, connectionID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM oauth_tokens WHERE user_id = ? AND connection_id = ?`,
		userID, connectionID,
	)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
