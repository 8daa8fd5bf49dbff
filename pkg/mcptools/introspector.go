// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package mcptools queries connected MCP servers for their tool catalogs.
//
// Introspection runs once authorization has produced an access token: the
// introspector connects to the target server over its configured transport,
// performs the MCP initialization handshake with the token attached as a
// bearer credential, and lists the tools the server exposes.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/toolbridge/pkg/core"
	"github.com/stacklok/toolbridge/pkg/logger"
)

var (
	// ErrUnsupportedTransport indicates a transport outside the supported set.
	ErrUnsupportedTransport = errors.New("unsupported transport type")

	// ErrNoTools indicates the server initialized correctly but exposed an
	// empty tool catalog. A connection with zero tools is not usable.
	ErrNoTools = errors.New("server exposes no tools")

	// ErrIntrospectionFailed indicates the server could not be reached or
	// rejected the handshake.
	ErrIntrospectionFailed = errors.New("tool introspection failed")
)

// maxResponseSize bounds HTTP responses from target servers. Tool catalogs
// are small; anything near this limit is malformed or hostile.
const maxResponseSize = 10 * 1024 * 1024 // 10 MB

// clientInfo identifies ToolBridge in the MCP handshake.
var clientInfo = mcp.Implementation{
	Name:    "toolbridge",
	Version: "0.1.0",
}

// Introspector lists tools from target MCP servers.
type Introspector struct {
	// clientFactory creates MCP clients for targets. Abstracted as a
	// function to enable testing with mock clients.
	clientFactory func(ctx context.Context, serverURL string, transportType core.TransportType, accessToken string) (*client.Client, error)

	timeout time.Duration
}

// NewIntrospector creates an Introspector. The timeout bounds the whole
// introspection exchange against one server.
func NewIntrospector(timeout time.Duration) *Introspector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	i := &Introspector{timeout: timeout}
	i.clientFactory = i.defaultClientFactory
	return i
}

// bearerRoundTripper attaches the access token to every outgoing request and
// bounds the response body size.
type bearerRoundTripper struct {
	base  http.RoundTripper
	token string
}

// RoundTrip implements http.RoundTripper.
func (b *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone request to avoid modifying the original.
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", "Bearer "+b.token)

	resp, err := b.base.RoundTrip(reqClone)
	if err != nil {
		return nil, err
	}
	resp.Body = struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(resp.Body, maxResponseSize),
		Closer: resp.Body,
	}
	return resp, nil
}

// defaultClientFactory creates mark3labs MCP clients for the supported
// transport types with bearer authentication.
func (i *Introspector) defaultClientFactory(
	ctx context.Context, serverURL string, transportType core.TransportType, accessToken string,
) (*client.Client, error) {
	httpClient := &http.Client{
		Transport: &bearerRoundTripper{base: http.DefaultTransport, token: accessToken},
		Timeout:   i.timeout,
	}

	var c *client.Client
	var err error

	switch transportType {
	case core.TransportStreamableHTTP:
		c, err = client.NewStreamableHttpClient(
			serverURL,
			transport.WithHTTPTimeout(i.timeout),
			transport.WithHTTPBasicClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create streamable-http client: %w", err)
		}

	case core.TransportSSE:
		c, err = client.NewSSEMCPClient(
			serverURL,
			transport.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create SSE client: %w", err)
		}

	default:
		return nil, fmt.Errorf("%w: %s (supported: %s, %s)",
			ErrUnsupportedTransport, transportType, core.TransportStreamableHTTP, core.TransportSSE)
	}

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start client connection: %w", err)
	}

	return c, nil
}

// ListTools connects to a target server and returns its tool catalog.
// A server that initializes but exposes zero tools yields ErrNoTools:
// without tools the connection serves no purpose, and an empty list usually
// means the token lacks the scopes the server requires.
func (i *Introspector) ListTools(
	ctx context.Context, serverURL string, transportType core.TransportType, accessToken string,
) ([]core.Tool, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	logger.Debugf("Introspecting tools from %s over %s", serverURL, transportType)

	c, err := i.clientFactory(ctx, serverURL, transportType, accessToken)
	if err != nil {
		if errors.Is(err, ErrUnsupportedTransport) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrIntrospectionFailed, err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Debugf("Failed to close client: %v", err)
		}
	}()

	initResult, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      clientInfo,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: initialize: %w", ErrIntrospectionFailed, err)
	}

	if initResult.Capabilities.Tools == nil {
		logger.Debugf("Server %s does not advertise tools capability", serverURL)
		return nil, ErrNoTools
	}

	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: list tools: %w", ErrIntrospectionFailed, err)
	}
	if len(result.Tools) == 0 {
		return nil, ErrNoTools
	}

	tools := make([]core.Tool, 0, len(result.Tools))
	for _, tool := range result.Tools {
		schema, err := encodeInputSchema(tool.InputSchema)
		if err != nil {
			logger.Warnf("Skipping schema for tool %q: %v", tool.Name, err)
		}
		tools = append(tools, core.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		})
	}

	logger.Infow("tool introspection complete",
		"server_url", serverURL,
		"tool_count", len(tools),
	)
	return tools, nil
}

// encodeInputSchema flattens an MCP tool input schema back to raw JSON for
// storage.
func encodeInputSchema(schema mcp.ToolInputSchema) (json.RawMessage, error) {
	m := map[string]any{
		"type": schema.Type,
	}
	if schema.Properties != nil {
		m["properties"] = schema.Properties
	}
	if len(schema.Required) > 0 {
		m["required"] = schema.Required
	}
	if schema.Defs != nil {
		m["$defs"] = schema.Defs
	}
	return json.Marshal(m)
}
