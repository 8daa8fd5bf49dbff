// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package connections

import "errors"

var (
	// ErrInvalidRequest indicates a create request that fails validation
	// before any external call is made.
	ErrInvalidRequest = errors.New("invalid connection request")

	// ErrUnknownTemplate indicates a create request referencing a template
	// that is not in the catalog.
	ErrUnknownTemplate = errors.New("unknown connection template")

	// ErrCredentialNotFound indicates no live OAuth client exists for the
	// connection, so an authorization attempt cannot start or finish.
	ErrCredentialNotFound = errors.New("no live OAuth client for connection")

	// ErrOrganizationMismatch indicates a callback or request whose attempt
	// was started under a different organization than the one it resolves to
	// now.
	ErrOrganizationMismatch = errors.New("authorization attempt belongs to a different organization")

	// ErrAuthorizationResponseInvalid indicates the provider callback is
	// unusable: the provider returned an error parameter, the code is
	// missing, or the redirect does not match the attempt.
	ErrAuthorizationResponseInvalid = errors.New("authorization response invalid")

	// ErrTokenNotFound indicates no persisted token exists for the
	// (user, connection) pair.
	ErrTokenNotFound = errors.New("no token for connection")

	// ErrToolIntrospectionFailed indicates the post-authorization tool query
	// failed or returned zero tools. The exchanged token stays persisted so
	// introspection can be retried without a new authorization.
	ErrToolIntrospectionFailed = errors.New("tool introspection failed")

	// ErrConnectionNotRunning indicates an operation that requires a running
	// connection, such as minting an API key.
	ErrConnectionNotRunning = errors.New("connection is not running")
)
