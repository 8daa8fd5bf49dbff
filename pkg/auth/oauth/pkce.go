// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package oauth implements the OAuth 2.0 client-side protocol steps
// ToolBridge performs against tool-provider authorization servers: dynamic
// client registration (RFC 7591), PKCE-protected authorization URLs, and
// authorization-code token exchange.
package oauth

import (
	"golang.org/x/oauth2"

	oauthproto "github.com/stacklok/toolbridge/pkg/oauth"
)

// PKCE holds the proof-key material for one authorization attempt. The
// verifier stays server-side inside the signed state token; only the
// challenge crosses the browser.
type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

// GeneratePKCE creates a fresh S256 verifier/challenge pair.
func GeneratePKCE() PKCE {
	verifier := oauth2.GenerateVerifier()
	return PKCE{
		Verifier:  verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
		Method:    oauthproto.PKCEMethodS256,
	}
}
