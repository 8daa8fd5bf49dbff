// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package connections

import (
	"fmt"
	"strings"

	"github.com/stacklok/toolbridge/pkg/core"
)

// Template is a catalog entry describing a known tool-provider server.
// Creating a connection from a template pins the server URL, transport, and
// default scopes so operators only pick a name.
type Template struct {
	ID          string             `json:"id"`
	DisplayName string             `json:"display_name"`
	ServerURL   string             `json:"server_url"`
	Transport   core.TransportType `json:"transport"`
	Scopes      []string           `json:"scopes,omitempty"`
}

// resolveOrigin normalizes a create request into the connection's origin.
// Template references win over inline fields; custom requests must carry a
// server URL and transport of their own.
func (m *Manager) resolveOrigin(req CreateRequest) (core.Origin, core.TransportType, []string, error) {
	if req.TemplateID != "" {
		tpl, ok := m.templates[req.TemplateID]
		if !ok {
			return core.Origin{}, "", nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, req.TemplateID)
		}
		name := req.Name
		if name == "" {
			name = tpl.DisplayName
		}
		return core.Origin{
			TemplateID:  tpl.ID,
			ServerURL:   tpl.ServerURL,
			DisplayName: name,
		}, tpl.Transport, tpl.Scopes, nil
	}

	serverURL := strings.TrimSpace(req.ServerURL)
	if serverURL == "" {
		return core.Origin{}, "", nil, fmt.Errorf("%w: either template_id or server_url is required", ErrInvalidRequest)
	}
	if req.Name == "" {
		return core.Origin{}, "", nil, fmt.Errorf("%w: name is required for custom connections", ErrInvalidRequest)
	}
	if !req.Transport.Valid() {
		return core.Origin{}, "", nil, fmt.Errorf("%w: unsupported transport %q", ErrInvalidRequest, req.Transport)
	}
	return core.Origin{
		ServerURL:   strings.TrimSuffix(serverURL, "/"),
		DisplayName: req.Name,
	}, req.Transport, req.Scopes, nil
}
