// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolbridge/pkg/core"
	"github.com/stacklok/toolbridge/pkg/storage"
)

func testConnection(id, orgID string) *core.Connection {
	return &core.Connection{
		ID:             id,
		OrganizationID: orgID,
		Name:           "GitHub Tools",
		ServerURL:      "https://tools.example.com/mcp",
		Transport:      core.TransportStreamableHTTP,
		Status:         core.ConnectionStatusPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

func testClient(id, orgID, connectionID string) *core.OAuthClient {
	return &core.OAuthClient{
		ID:                    id,
		OrganizationID:        orgID,
		ConnectionID:          connectionID,
		ClientID:              "client-" + id,
		Issuer:                "https://tools.example.com",
		AuthorizationEndpoint: "https://tools.example.com/authorize",
		TokenEndpoint:         "https://tools.example.com/token",
		Live:                  true,
		CreatedAt:             time.Now(),
	}
}

func TestConnectionStore_CreateWithClient(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	conn := testConnection("c1", "org-1")
	client := testClient("oc1", "org-1", "c1")
	require.NoError(t, s.Connections().CreateWithClient(ctx, conn, client))

	got, err := s.Connections().Get(ctx, "org-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, core.ConnectionStatusPending, got.Status)

	gotClient, err := s.OAuthClients().GetLive(ctx, "org-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "client-oc1", gotClient.ClientID)

	// Duplicate connection IDs are rejected.
	err = s.Connections().CreateWithClient(ctx, conn, testClient("oc2", "org-1", "c1"))
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestConnectionStore_OrgScoping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Connections().CreateWithClient(ctx,
		testConnection("c1", "org-1"), testClient("oc1", "org-1", "c1")))

	_, err := s.Connections().Get(ctx, "org-2", "c1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	list, err := s.Connections().List(ctx, "org-2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestConnectionStore_UpdateStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Connections().CreateWithClient(ctx,
		testConnection("c1", "org-1"), testClient("oc1", "org-1", "c1")))

	require.NoError(t, s.Connections().UpdateStatus(ctx, "org-1", "c1", core.ConnectionStatusRunning, ""))
	got, err := s.Connections().Get(ctx, "org-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, core.ConnectionStatusRunning, got.Status)

	err = s.Connections().UpdateStatus(ctx, "org-1", "missing", core.ConnectionStatusError, "boom")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConnectionStore_ReplaceTools(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Connections().CreateWithClient(ctx,
		testConnection("c1", "org-1"), testClient("oc1", "org-1", "c1")))

	first := []core.Tool{{Name: "search"}, {Name: "create_issue"}}
	require.NoError(t, s.Connections().ReplaceTools(ctx, "c1", first))

	// Replacement is wholesale, not a merge.
	second := []core.Tool{{Name: "list_repos"}}
	require.NoError(t, s.Connections().ReplaceTools(ctx, "c1", second))

	got, err := s.Connections().ListTools(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "list_repos", got[0].Name)
}

func TestClientStore_LiveSupersede(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Connections().CreateWithClient(ctx,
		testConnection("c1", "org-1"), testClient("oc1", "org-1", "c1")))

	// Registering a replacement demotes the previous live client.
	require.NoError(t, s.OAuthClients().Create(ctx, testClient("oc2", "org-1", "c1")))

	live, err := s.OAuthClients().GetLive(ctx, "org-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "oc2", live.ID)

	// The old record survives for tokens that reference it.
	old, err := s.OAuthClients().Get(ctx, "oc1")
	require.NoError(t, err)
	assert.False(t, old.Live)
}

func TestTokenStore_Replace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	first := &core.OAuthToken{
		ID: "t1", UserID: "u1", OrganizationID: "org-1", ConnectionID: "c1",
		OAuthClientID: "oc1", AccessToken: "at-old", CreatedAt: time.Now(),
	}
	require.NoError(t, s.Tokens().Replace(ctx, first))

	second := &core.OAuthToken{
		ID: "t2", UserID: "u1", OrganizationID: "org-1", ConnectionID: "c1",
		OAuthClientID: "oc1", AccessToken: "at-new", CreatedAt: time.Now(),
	}
	require.NoError(t, s.Tokens().Replace(ctx, second))

	got, err := s.Tokens().Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "at-new", got.AccessToken)

	// A different user keeps a separate token.
	_, err = s.Tokens().Get(ctx, "u2", "c1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Tokens().Delete(ctx, "u1", "c1"))
	_, err = s.Tokens().Get(ctx, "u1", "c1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAPIKeyStore_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	key := &core.APIKey{
		ID: "k1", Value: "tbk_secret", UserID: "u1", ConnectionID: "c1",
		Active: true, CreatedAt: time.Now(),
	}
	require.NoError(t, s.APIKeys().Create(ctx, key))

	got, err := s.APIKeys().GetByValue(ctx, "tbk_secret")
	require.NoError(t, err)
	assert.Equal(t, "k1", got.ID)
	assert.True(t, got.Active)
	assert.Nil(t, got.LastUsedAt)

	require.NoError(t, s.APIKeys().TouchLastUsed(ctx, "k1"))
	got, err = s.APIKeys().GetByValue(ctx, "tbk_secret")
	require.NoError(t, err)
	assert.NotNil(t, got.LastUsedAt)

	require.NoError(t, s.APIKeys().Deactivate(ctx, "k1"))
	got, err = s.APIKeys().GetByValue(ctx, "tbk_secret")
	require.NoError(t, err)
	assert.False(t, got.Active)

	list, err := s.APIKeys().ListByConnection(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.APIKeys().GetByValue(ctx, "tbk_unknown")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_CopiesOnReadAndWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewStore()

	conn := testConnection("c1", "org-1")
	require.NoError(t, s.Connections().CreateWithClient(ctx, conn, testClient("oc1", "org-1", "c1")))

	// Mutating the caller's record after creation must not leak in.
	conn.Status = core.ConnectionStatusStopped
	got, err := s.Connections().Get(ctx, "org-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, core.ConnectionStatusPending, got.Status)

	// Mutating a returned record must not leak back.
	got.Status = core.ConnectionStatusError
	again, err := s.Connections().Get(ctx, "org-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, core.ConnectionStatusPending, again.Status)
}
