// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package v1 implements the ToolBridge HTTP API.
//
// All routes except the OAuth callback operate on JSON bodies and are scoped
// to the authenticated identity; the callback carries its inputs in the
// query string, exactly as the provider redirect delivers them.
package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/toolbridge/pkg/auth"
	"github.com/stacklok/toolbridge/pkg/connections"
	"github.com/stacklok/toolbridge/pkg/core"
)

// Handler serves the v1 API on top of the connection manager.
type Handler struct {
	manager *connections.Manager
}

// NewHandler creates the v1 API handler.
func NewHandler(manager *connections.Manager) *Handler {
	return &Handler{manager: manager}
}

// Routes returns the v1 route tree. The caller is responsible for mounting
// it behind identity middleware.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/connections", func(r chi.Router) {
		r.Post("/", h.createConnection)
		r.Get("/", h.listConnections)
		r.Route("/{connectionID}", func(r chi.Router) {
			r.Get("/", h.getConnection)
			r.Post("/authorize", h.beginAuthorization)
			r.Post("/introspect", h.retryIntrospection)
			r.Get("/tools", h.listTools)
			r.Post("/apikeys", h.mintAPIKey)
			r.Post("/stop", h.stopConnection)
		})
	})
	r.Get("/oauth/callback", h.oauthCallback)

	return r
}

// identity pulls the authenticated identity set by the middleware. Routes
// are never mounted without it, so absence is a server wiring bug.
func identity(r *http.Request) (*auth.Identity, bool) {
	return auth.IdentityFromContext(r.Context())
}

func (h *Handler) createConnection(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
	if !ok {
		writeError(w, errors.New("missing identity"))
		return
	}

	var req connections.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	conn, err := h.manager.Create(r.Context(), ident, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conn)
}

func (h *Handler) listConnections(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
	if !ok {
		writeError(w, errors.New("missing identity"))
		return
	}

	conns, err := h.manager.List(r.Context(), ident)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": conns})
}

func (h *Handler) getConnection(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
	if !ok {
		writeError(w, errors.New("missing identity"))
		return
	}

	conn, err := h.manager.Get(r.Context(), ident, chi.URLParam(r, "connectionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

type authorizeRequest struct {
	// Integrated marks the attempt as part of a larger setup flow; the flag
	// is echoed back from the callback response.
	Integrated bool `json:"integrated,omitempty"`
}

type authorizeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

func (h *Handler) beginAuthorization(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
	if !ok {
		writeError(w, errors.New("missing identity"))
		return
	}

	// The body is optional; an empty one means a standalone attempt.
	var req authorizeRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	authURL, err := h.manager.BeginAuthorization(r.Context(), ident, chi.URLParam(r, "connectionID"), req.Integrated)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authorizeResponse{AuthorizationURL: authURL})
}

// apiKeyResponse exposes the key value, which the stored record deliberately
// never serializes. This response is the one time the value is shown.
type apiKeyResponse struct {
	*core.APIKey
	Value string `json:"value"`
}

type callbackResponse struct {
	Connection *core.Connection `json:"connection"`
	APIKey     *apiKeyResponse  `json:"api_key,omitempty"`
	Integrated bool             `json:"integrated"`
}

func (h *Handler) oauthCallback(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
	if !ok {
		writeError(w, errors.New("missing identity"))
		return
	}

	result, err := h.manager.CompleteAuthorization(r.Context(), ident, r.URL.String())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := callbackResponse{
		Connection: result.Connection,
		Integrated: result.Integrated,
	}
	if result.APIKey != nil {
		resp.APIKey = &apiKeyResponse{APIKey: result.APIKey, Value: result.APIKey.Value}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) retryIntrospection(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
	if !ok {
		writeError(w, errors.New("missing identity"))
		return
	}

	conn, err := h.manager.RetryIntrospection(r.Context(), ident, chi.URLParam(r, "connectionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (h *Handler) listTools(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
	if !ok {
		writeError(w, errors.New("missing identity"))
		return
	}

	tools, err := h.manager.Tools(r.Context(), ident, chi.URLParam(r, "connectionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

type mintKeyRequest struct {
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (h *Handler) mintAPIKey(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
	if !ok {
		writeError(w, errors.New("missing identity"))
		return
	}

	var req mintKeyRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	key, err := h.manager.MintAPIKey(r.Context(), ident, chi.URLParam(r, "connectionID"), req.ExpiresAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apiKeyResponse{APIKey: key, Value: key.Value})
}

func (h *Handler) stopConnection(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(r)
	if !ok {
		writeError(w, errors.New("missing identity"))
		return
	}

	conn, err := h.manager.Stop(r.Context(), ident, chi.URLParam(r, "connectionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conn)
}
