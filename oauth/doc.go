// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package oauth provides the RFC-defined constants, error kinds, and validation
// utilities shared by the token exchange client and the dancers.
//
// # Token Errors
//
// Every failed token exchange is reported as a *TokenError. Its Kind separates
// the three ways a call to the token endpoint can fail:
//
//	_, err := future.Await(ctx)
//	switch {
//	case errors.Is(err, oauth.ErrTokenURLUnreachable):
//		// network failure or timeout, caller may retry
//	case errors.Is(err, oauth.ErrTokenURLResponse):
//		// status >= 400, inspect the body
//	case errors.Is(err, oauth.ErrTokenNotFound):
//		// 2xx without an access token, check the extraction expressions
//	}
//
// None of these failures are retried by the library.
//
// # Redirect URI Validation
//
// The external callback URL of the authorization code flow is validated per
// RFC 6749 and RFC 8252 with a configurable scheme policy:
//
//	err := oauth.ValidateRedirectURI("https://app.example.com/callback", oauth.RedirectURIPolicyStrict)
//
// # Stability
//
// This package is Beta stability. The API may have minor changes before
// reaching stable status in v1.0.0.
package oauth
