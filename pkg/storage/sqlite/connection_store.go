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

// connectionStore implements storage.ConnectionStore using SQLite.
type connectionStore struct {
	db *sql.DB
}

const connectionColumns = `id, organization_id, name, server_url, template_id,
	transport, status, status_message, created_at, updated_at`

// CreateWithClient stores a new connection and its initial OAuth client in
// one transaction.
func (s *connectionStore) CreateWithClient(ctx context.Context, conn *core.Connection, client *core.OAuthClient) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO connections (
			id, organization_id, name, server_url, template_id,
			transport, status, status_message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conn.ID,
		conn.OrganizationID,
		conn.Name,
		conn.ServerURL,
		conn.TemplateID,
		string(conn.Transport),
		string(conn.Status),
		conn.StatusMessage,
		formatTime(conn.CreatedAt),
		formatTime(conn.UpdatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting connection: %w", err)
	}

	if err := insertClient(ctx, tx, client); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Get retrieves a connection by ID within an organization.
func (s *connectionStore) Get(ctx context.Context, orgID, connectionID string) (*core.Connection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connections
		 WHERE id = ? AND organization_id = ?`,
		connectionID, orgID,
	)
	return scanConnection(row)
}

// List returns all connections for an organization, oldest first.
func (s *connectionStore) List(ctx context.Context, orgID string) ([]*core.Connection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+connectionColumns+` FROM connections
		 WHERE organization_id = ? ORDER BY created_at`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.Connection
	for rows.Next() {
		conn, scanErr := scanConnection(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connection rows: %w", err)
	}
	return out, nil
}

// UpdateStatus transitions a connection's status and message.
func (s *connectionStore) UpdateStatus(
	ctx context.Context, orgID, connectionID string, status core.ConnectionStatus, message string,
) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE connections SET status = ?, status_message = ?, updated_at = ?
		 WHERE id = ? AND organization_id = ?`,
		string(status), message, formatTime(time.Now()), connectionID, orgID,
	)
	if err != nil {
		return fmt.Errorf("updating connection status: %w", err)
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

// ReplaceTools replaces the connection's tool catalog wholesale: delete
// existing, then re-insert.
func (s *connectionStore) ReplaceTools(ctx context.Context, connectionID string, tools []core.Tool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollback(tx)

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM connections WHERE id = ?`, connectionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	} else if err != nil {
		return fmt.Errorf("looking up connection: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM connection_tools WHERE connection_id = ?`, connectionID,
	); err != nil {
		return fmt.Errorf("deleting old tools: %w", err)
	}

	for _, tool := range tools {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO connection_tools (connection_id, name, description, input_schema)
			 VALUES (?, ?, ?, ?)`,
			connectionID, tool.Name, tool.Description, []byte(tool.InputSchema),
		); err != nil {
			return fmt.Errorf("inserting tool %q: %w", tool.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// ListTools returns the connection's current tool catalog.
func (s *connectionStore) ListTools(ctx context.Context, connectionID string) ([]core.Tool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM connections WHERE id = ?`, connectionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("looking up connection: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, description, input_schema FROM connection_tools
		 WHERE connection_id = ? ORDER BY name`,
		connectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying tools: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tools []core.Tool
	for rows.Next() {
		var tool core.Tool
		var schema []byte
		if err := rows.Scan(&tool.Name, &tool.Description, &schema); err != nil {
			return nil, fmt.Errorf("scanning tool row: %w", err)
		}
		tool.InputSchema = schema
		tools = append(tools, tool)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tool rows: %w", err)
	}
	return tools, nil
}

// scanConnection scans one connection row.
func scanConnection(sc scanner) (*core.Connection, error) {
	var (
		conn                 core.Connection
		transport, status    string
		createdAt, updatedAt string
	)
	err := sc.Scan(
		&conn.ID, &conn.OrganizationID, &conn.Name, &conn.ServerURL, &conn.TemplateID,
		&transport, &status, &conn.StatusMessage, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scanning connection row: %w", err)
	}

	conn.Transport = core.TransportType(transport)
	conn.Status = core.ConnectionStatus(status)
	if conn.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if conn.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &conn, nil
}
