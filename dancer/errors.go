// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package dancer

import "errors"

var (
	// ErrInvalidConfig is wrapped by every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid dancer configuration")

	// ErrInvalidResourceOwner is returned when a resource owner id transforms
	// to an empty store key.
	ErrInvalidResourceOwner = errors.New("invalid resource owner")

	// ErrNoAccessToken is returned when a resource owner has not completed an
	// authorization yet.
	ErrNoAccessToken = errors.New("no access token for resource owner")

	// ErrNoRefreshToken is returned when refreshing a context that holds no
	// refresh token.
	ErrNoRefreshToken = errors.New("no refresh token for resource owner")

	// ErrMissingAuthorizationCode is returned when a callback carries no code.
	ErrMissingAuthorizationCode = errors.New("authorization code missing from callback")

	// ErrInvalidState is returned when a callback's state does not match the
	// configured state.
	ErrInvalidState = errors.New("invalid state in callback")
)
