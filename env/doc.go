// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package env provides an interface-based abstraction for environment variable
access, so that configuration overrides can be tested without touching the
process environment.

# Basic Usage

Use OSReader to read environment variables via the standard os package, and
Prefixed to scope the keys:

	reader := env.Prefixed{R: &env.OSReader{}, Prefix: "TOOLHIVE_OAUTH_"}
	secret := env.Override(reader, "CLIENT_SECRET", cfg.ClientSecret)

Override keeps the current value when the variable is unset or blank.

# Testing

Map serves a fixed set of variables. A generated mock of Reader is available
in the mocks sub-package:

	ctrl := gomock.NewController(t)
	mock := mocks.NewMockReader(ctrl)
	mock.EXPECT().Getenv("TOOLHIVE_OAUTH_CLIENT_ID").Return("test-value")

# Stability

This package is Stable.
*/
package env
