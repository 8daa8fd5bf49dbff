// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stacklok/toolbridge/pkg/auth/discovery"
	"github.com/stacklok/toolbridge/pkg/auth/oauth"
	"github.com/stacklok/toolbridge/pkg/auth/state"
	"github.com/stacklok/toolbridge/pkg/connections"
	"github.com/stacklok/toolbridge/pkg/logger"
	"github.com/stacklok/toolbridge/pkg/storage"
)

// Remediation hints attached to error responses so callers know whether the
// user can fix the problem by re-authenticating or needs operator help.
const (
	HintReauthenticate  = "reauthenticate"
	HintContactOperator = "contact_operator"
)

type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

// writeError maps a domain error to an HTTP status and remediation hint.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	hint := ""

	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound

	case errors.Is(err, connections.ErrInvalidRequest),
		errors.Is(err, connections.ErrUnknownTemplate):
		status = http.StatusBadRequest

	case errors.Is(err, state.ErrInvalidStateToken),
		errors.Is(err, state.ErrStateExpired),
		errors.Is(err, state.ErrUserMismatch):
		status = http.StatusUnauthorized
		hint = HintReauthenticate

	case errors.Is(err, connections.ErrAuthorizationResponseInvalid):
		status = http.StatusBadRequest
		hint = HintReauthenticate

	case errors.Is(err, connections.ErrOrganizationMismatch),
		errors.Is(err, connections.ErrCredentialNotFound),
		errors.Is(err, connections.ErrTokenNotFound):
		status = http.StatusConflict
		hint = HintReauthenticate

	case errors.Is(err, connections.ErrConnectionNotRunning):
		status = http.StatusConflict

	case errors.Is(err, oauth.ErrTokenExchangeFailed):
		status = http.StatusBadGateway
		hint = HintReauthenticate

	case errors.Is(err, discovery.ErrMetadataUnavailable),
		errors.Is(err, oauth.ErrDCRFailed),
		errors.Is(err, oauth.ErrDCRUnsupported),
		errors.Is(err, connections.ErrToolIntrospectionFailed):
		status = http.StatusBadGateway
		hint = HintContactOperator
	}

	if status == http.StatusInternalServerError {
		logger.Errorf("Internal error handling request: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Hint: hint})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debugf("Failed to encode response: %v", err)
	}
}
