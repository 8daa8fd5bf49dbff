// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package mcptools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolbridge/pkg/core"
)

// newToolServer creates a real in-process MCP server over streamable-HTTP.
// It requires the given bearer token on every request and exposes the named
// tools. Shut down via t.Cleanup.
func newToolServer(t *testing.T, wantToken string, toolNames ...string) string {
	t.Helper()

	mcpSrv := mcpserver.NewMCPServer("test-server", "1.0.0")
	for _, name := range toolNames {
		mcpSrv.AddTool(
			mcp.NewTool(name,
				mcp.WithDescription("Test tool "+name),
				mcp.WithString("input", mcp.Required()),
			),
			func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return &mcp.CallToolResult{
					Content: []mcp.Content{mcp.NewTextContent("ok")},
				}, nil
			},
		)
	}

	streamableSrv := mcpserver.NewStreamableHTTPServer(mcpSrv)
	mux := http.NewServeMux()
	mux.Handle("/mcp", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+wantToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		streamableSrv.ServeHTTP(w, r)
	}))

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts.URL + "/mcp"
}

func TestListTools_StreamableHTTP(t *testing.T) {
	t.Parallel()

	serverURL := newToolServer(t, "at-123", "search", "create_issue")

	i := NewIntrospector(10 * time.Second)
	tools, err := i.ListTools(context.Background(), serverURL, core.TransportStreamableHTTP, "at-123")
	require.NoError(t, err)

	require.Len(t, tools, 2)
	names := []string{tools[0].Name, tools[1].Name}
	assert.ElementsMatch(t, []string{"search", "create_issue"}, names)
	for _, tool := range tools {
		assert.NotEmpty(t, tool.Description)
		assert.NotEmpty(t, tool.InputSchema)
	}
}

func TestListTools_BadToken(t *testing.T) {
	t.Parallel()

	serverURL := newToolServer(t, "at-123", "search")

	i := NewIntrospector(5 * time.Second)
	_, err := i.ListTools(context.Background(), serverURL, core.TransportStreamableHTTP, "wrong-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIntrospectionFailed)
}

func TestListTools_EmptyCatalog(t *testing.T) {
	t.Parallel()

	serverURL := newToolServer(t, "at-123")

	i := NewIntrospector(5 * time.Second)
	_, err := i.ListTools(context.Background(), serverURL, core.TransportStreamableHTTP, "at-123")
	assert.ErrorIs(t, err, ErrNoTools)
}

func TestListTools_SSE(t *testing.T) {
	t.Parallel()

	mcpSrv := mcpserver.NewMCPServer("test-server", "1.0.0")
	mcpSrv.AddTool(
		mcp.NewTool("echo", mcp.WithDescription("Echo"), mcp.WithString("input", mcp.Required())),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent("ok")}}, nil
		},
	)

	sseSrv := mcpserver.NewSSEServer(mcpSrv)
	ts := httptest.NewServer(sseSrv)
	t.Cleanup(ts.Close)

	i := NewIntrospector(10 * time.Second)
	tools, err := i.ListTools(context.Background(), ts.URL+"/sse", core.TransportSSE, "at-123")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
}

func TestListTools_UnsupportedTransport(t *testing.T) {
	t.Parallel()

	i := NewIntrospector(time.Second)
	_, err := i.ListTools(context.Background(), "http://127.0.0.1:1/mcp", core.TransportType("stdio"), "token")
	assert.ErrorIs(t, err, ErrUnsupportedTransport)
}

func TestListTools_ServerUnreachable(t *testing.T) {
	t.Parallel()

	i := NewIntrospector(2 * time.Second)
	_, err := i.ListTools(context.Background(), "http://127.0.0.1:1/mcp", core.TransportStreamableHTTP, "token")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIntrospectionFailed)
}
