// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import "errors"

var (
	// ErrDCRFailed indicates dynamic client registration was rejected or the
	// provider's response was unusable.
	ErrDCRFailed = errors.New("dynamic client registration failed")

	// ErrDCRUnsupported indicates the provider advertises no registration
	// endpoint, so a client cannot be obtained automatically.
	ErrDCRUnsupported = errors.New("provider does not support dynamic client registration")

	// ErrTokenExchangeFailed indicates the authorization code could not be
	// exchanged for tokens.
	ErrTokenExchangeFailed = errors.New("token exchange failed")
)
