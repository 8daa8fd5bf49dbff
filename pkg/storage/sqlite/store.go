// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/stacklok/toolbridge/pkg/storage"
)

// Store implements storage.Store on a SQLite database.
type Store struct {
	wrapper *DB
	db      *sql.DB
}

// NewStore creates a SQLite-backed Store over an open database.
func NewStore(db *DB) *Store {
	return &Store{wrapper: db, db: db.DB()}
}

var _ storage.Store = (*Store)(nil)

// Connections implements storage.Store.
func (s *Store) Connections() storage.ConnectionStore { return &connectionStore{db: s.db} }

// OAuthClients implements storage.Store.
func (s *Store) OAuthClients() storage.OAuthClientStore { return &clientStore{db: s.db} }

// Tokens implements storage.Store.
func (s *Store) Tokens() storage.TokenStore { return &tokenStore{db: s.db} }

// APIKeys implements storage.Store.
func (s *Store) APIKeys() storage.APIKeyStore { return &apiKeyStore{db: s.db} }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.wrapper.Close()
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows.
type scanner interface{ Scan(dest ...any) error }

// formatTime stores timestamps as RFC3339Nano strings, matching the
// strftime format the schema defaults would produce.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// formatNullableTime handles optional timestamps stored as NULL.
func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// encodeJSON marshals a string slice for storage in a BLOB column.
func encodeJSON(values []string) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("marshaling JSON: %w", err)
	}
	return data, nil
}

// decodeJSON unmarshals a BLOB column back into a string slice.
func decodeJSON(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result []string
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshaling JSON: %w", err)
	}
	return result, nil
}

// isUniqueViolation checks for a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite3.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// rollback rolls back tx, ignoring errors (tx may already be committed).
func rollback(tx *sql.Tx) { _ = tx.Rollback() }

// demoteLive clears the live flag on the current live client for a pair.
// Runs inside the caller's transaction.
func demoteLive(ctx context.Context, tx *sql.Tx, orgID, connectionID string) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE oauth_clients SET live = 0
		 WHERE organization_id = ? AND connection_id = ? AND live = 1`,
		orgID, connectionID,
	); err != nil {
		return fmt.Errorf("demoting live client: %w", err)
	}
	return nil
}
