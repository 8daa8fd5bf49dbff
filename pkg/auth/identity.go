// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package auth provides the request identity model for ToolBridge.
//
// ToolBridge trusts the surrounding application's session layer to
// authenticate end users; this package only carries the resulting identity
// through request contexts and exposes middleware that extracts it from
// trusted headers set by the session layer.
package auth

import (
	"context"
	"net/http"
)

// Identity represents the authenticated principal of an API request.
type Identity struct {
	// Subject is the unique identifier for the user.
	Subject string

	// OrganizationID is the tenant the user is acting within.
	OrganizationID string

	// Email is the user's email address, if known.
	Email string
}

// IdentityContextKey is the context key under which the identity is stored.
type IdentityContextKey struct{}

// WithIdentity stores an Identity in the context.
// If identity is nil, the original context is returned unchanged.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, IdentityContextKey{}, identity)
}

// IdentityFromContext retrieves an Identity from the context.
// Returns the identity and true if present, nil and false otherwise.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey{}).(*Identity)
	return identity, ok
}

// Header names populated by the fronting session layer.
const (
	HeaderUserID = "X-User-ID"
	HeaderOrgID  = "X-Org-ID"
)

// Middleware extracts the authenticated identity from trusted headers and
// stores it in the request context. Requests without both headers are
// rejected with 401.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		orgID := r.Header.Get(HeaderOrgID)
		if userID == "" || orgID == "" {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		identity := &Identity{Subject: userID, OrganizationID: orgID}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}
