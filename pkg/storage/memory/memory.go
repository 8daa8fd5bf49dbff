// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package memory implements the storage interfaces with in-memory maps.
// This implementation is thread-safe and suitable for development and
// testing; durable deployments should use the SQLite backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stacklok/toolbridge/pkg/core"
	"github.com/stacklok/toolbridge/pkg/storage"
)

// Store implements storage.Store with mutex-guarded maps. Records are
// copied on the way in and out so callers can never mutate shared state.
type Store struct {
	mu sync.RWMutex

	// connections maps connection ID -> record.
	connections map[string]*core.Connection

	// tools maps connection ID -> catalog.
	tools map[string][]core.Tool

	// clients maps client record ID -> record.
	clients map[string]*core.OAuthClient

	// tokens maps userID+"\x00"+connectionID -> record. One token per pair.
	tokens map[string]*core.OAuthToken

	// apiKeys maps key record ID -> record; apiKeyValues indexes the opaque
	// value for O(1) validation lookups.
	apiKeys      map[string]*core.APIKey
	apiKeyValues map[string]string
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		connections:  make(map[string]*core.Connection),
		tools:        make(map[string][]core.Tool),
		clients:      make(map[string]*core.OAuthClient),
		tokens:       make(map[string]*core.OAuthToken),
		apiKeys:      make(map[string]*core.APIKey),
		apiKeyValues: make(map[string]string),
	}
}

// Connections implements storage.Store.
func (s *Store) Connections() storage.ConnectionStore { return (*connectionStore)(s) }

// OAuthClients implements storage.Store.
func (s *Store) OAuthClients() storage.OAuthClientStore { return (*clientStore)(s) }

// Tokens implements storage.Store.
func (s *Store) Tokens() storage.TokenStore { return (*tokenStore)(s) }

// APIKeys implements storage.Store.
func (s *Store) APIKeys() storage.APIKeyStore { return (*apiKeyStore)(s) }

// Close implements storage.Store. It is a no-op for the in-memory backend.
func (*Store) Close() error { return nil }

func tokenKey(userID, connectionID string) string {
	return userID + "\x00" + connectionID
}

type connectionStore Store

func (s *connectionStore) CreateWithClient(_ context.Context, conn *core.Connection, client *core.OAuthClient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.connections[conn.ID]; ok {
		return storage.ErrAlreadyExists
	}
	if _, ok := s.clients[client.ID]; ok {
		return storage.ErrAlreadyExists
	}

	connCopy := *conn
	s.connections[conn.ID] = &connCopy

	(*Store)(s).demoteLiveLocked(client.OrganizationID, client.ConnectionID)
	clientCopy := *client
	s.clients[client.ID] = &clientCopy
	return nil
}

func (s *connectionStore) Get(_ context.Context, orgID, connectionID string) (*core.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conn, ok := s.connections[connectionID]
	if !ok || conn.OrganizationID != orgID {
		return nil, storage.ErrNotFound
	}
	connCopy := *conn
	return &connCopy, nil
}

func (s *connectionStore) List(_ context.Context, orgID string) ([]*core.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Connection
	for _, conn := range s.connections {
		if conn.OrganizationID != orgID {
			continue
		}
		connCopy := *conn
		out = append(out, &connCopy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *connectionStore) UpdateStatus(
	_ context.Context, orgID, connectionID string, status core.ConnectionStatus, message string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.connections[connectionID]
	if !ok || conn.OrganizationID != orgID {
		return storage.ErrNotFound
	}
	conn.Status = status
	conn.StatusMessage = message
	conn.UpdatedAt = time.Now()
	return nil
}

func (s *connectionStore) ReplaceTools(_ context.Context, connectionID string, tools []core.Tool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.connections[connectionID]; !ok {
		return storage.ErrNotFound
	}
	s.tools[connectionID] = append([]core.Tool(nil), tools...)
	return nil
}

func (s *connectionStore) ListTools(_ context.Context, connectionID string) ([]core.Tool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.connections[connectionID]; !ok {
		return nil, storage.ErrNotFound
	}
	return append([]core.Tool(nil), s.tools[connectionID]...), nil
}

type clientStore Store

func (s *clientStore) Create(_ context.Context, client *core.OAuthClient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client.ID]; ok {
		return storage.ErrAlreadyExists
	}
	if client.Live {
		(*Store)(s).demoteLiveLocked(client.OrganizationID, client.ConnectionID)
	}
	clientCopy := *client
	s.clients[client.ID] = &clientCopy
	return nil
}

func (s *clientStore) Get(_ context.Context, id string) (*core.OAuthClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clientCopy := *client
	return &clientCopy, nil
}

func (s *clientStore) GetLive(_ context.Context, orgID, connectionID string) (*core.OAuthClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, client := range s.clients {
		if client.Live && client.OrganizationID == orgID && client.ConnectionID == connectionID {
			clientCopy := *client
			return &clientCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// demoteLiveLocked clears the live flag on any current live client for the
// pair. Callers must hold the write lock.
func (s *Store) demoteLiveLocked(orgID, connectionID string) {
	for _, client := range s.clients {
		if client.Live && client.OrganizationID == orgID && client.ConnectionID == connectionID {
			client.Live = false
		}
	}
}

type tokenStore Store

func (s *tokenStore) Replace(_ context.Context, token *core.OAuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokenCopy := *token
	s.tokens[tokenKey(token.UserID, token.ConnectionID)] = &tokenCopy
	return nil
}

func (s *tokenStore) Get(_ context.Context, userID, connectionID string) (*core.OAuthToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[tokenKey(userID, connectionID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	tokenCopy := *token
	return &tokenCopy, nil
}

func (s *tokenStore) Delete(_ context.Context, userID, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tokenKey(userID, connectionID)
	if _, ok := s.tokens[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.tokens, key)
	return nil
}

type apiKeyStore Store

func (s *apiKeyStore) Create(_ context.Context, key *core.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apiKeys[key.ID]; ok {
		return storage.ErrAlreadyExists
	}
	if _, ok := s.apiKeyValues[key.Value]; ok {
		return storage.ErrAlreadyExists
	}
	keyCopy := *key
	s.apiKeys[key.ID] = &keyCopy
	s.apiKeyValues[key.Value] = key.ID
	return nil
}

func (s *apiKeyStore) GetByValue(_ context.Context, value string) (*core.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.apiKeyValues[value]
	if !ok {
		return nil, storage.ErrNotFound
	}
	keyCopy := *s.apiKeys[id]
	return &keyCopy, nil
}

func (s *apiKeyStore) ListByConnection(_ context.Context, connectionID string) ([]*core.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.APIKey
	for _, key := range s.apiKeys {
		if key.ConnectionID != connectionID {
			continue
		}
		keyCopy := *key
		out = append(out, &keyCopy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *apiKeyStore) Deactivate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.apiKeys[id]
	if !ok {
		return storage.ErrNotFound
	}
	key.Active = false
	return nil
}

func (s *apiKeyStore) TouchLastUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.apiKeys[id]
	if !ok {
		return storage.ErrNotFound
	}
	now := time.Now()
	key.LastUsedAt = &now
	return nil
}

// Interface compliance checks.
var (
	_ storage.Store = (*Store)(nil)
)
