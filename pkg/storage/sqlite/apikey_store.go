// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/toolbridge/pkg/core"
	"github.com/stacklok/toolbridge/pkg/storage"
)

// apiKeyStore implements storage.APIKeyStore using SQLite.
type apiKeyStore struct {
	db *sql.DB
}

const apiKeyColumns = `id, value, user_id, connection_id, active, expires_at, last_used_at, created_at`

// Create stores a new API key.
func (s *apiKeyStore) Create(ctx context.Context, key *core.APIKey) error {
	active := 0
	if key.Active {
		active = 1
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (
			id, value, user_id, connection_id, active, expires_at, last_used_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID,
		key.Value,
		key.UserID,
		key.ConnectionID,
		active,
		formatNullableTime(key.ExpiresAt),
		formatNullableTime(key.LastUsedAt),
		formatTime(key.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting api key: %w", err)
	}
	return nil
}

// GetByValue retrieves the key record matching an opaque key value.
func (s *apiKeyStore) GetByValue(ctx context.Context, value string) (*core.APIKey, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE value = ?`, value,
	)
	return scanAPIKey(row)
}

// ListByConnection returns all keys issued for a connection, oldest first.
func (s *apiKeyStore) ListByConnection(ctx context.Context, connectionID string) ([]*core.APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys
		 WHERE connection_id = ? ORDER BY created_at`,
		connectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying api keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.APIKey
	for rows.Next() {
		key, scanErr := scanAPIKey(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating api key rows: %w", err)
	}
	return out, nil
}

// Deactivate marks a key inactive.
func (s *apiKeyStore) Deactivate(ctx context.Context, id string) error {
	return s.updateKey(ctx, id, `UPDATE api_keys SET active = 0 WHERE id = ?`)
}

// TouchLastUsed records a successful validation.
func (s *apiKeyStore) TouchLastUsed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`,
		formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating api key: %w", err)
	}
	return checkAffected(res)
}

func (s *apiKeyStore) updateKey(ctx context.Context, id, query string) error {
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("updating api key: %w", err)
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanAPIKey scans one API key row.
func scanAPIKey(sc scanner) (*core.APIKey, error) {
	var (
		key                   core.APIKey
		active                int
		expiresAt, lastUsedAt sql.NullString
		createdAt             string
	)
	err := sc.Scan(
		&key.ID, &key.Value, &key.UserID, &key.ConnectionID,
		&active, &expiresAt, &lastUsedAt, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scanning api key row: %w", err)
	}

	key.Active = active == 1
	if key.ExpiresAt, err = parseNullableTime(expiresAt); err != nil {
		return nil, err
	}
	if key.LastUsedAt, err = parseNullableTime(lastUsedAt); err != nil {
		return nil, err
	}
	if key.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &key, nil
}
