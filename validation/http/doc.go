// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package http validates the HTTP inputs of a dancer configuration: the custom
headers sent to the token endpoint and the authorization and token endpoint
URLs.

	if err := http.ValidateHeaders(cfg.CustomHeaders); err != nil {
		return err
	}
	if err := http.ValidateEndpointURL(cfg.TokenURL); err != nil {
		return err
	}

Header names must be RFC 7230 tokens of at most 256 bytes and values must not
contain CR, LF or other control characters, which rules out header injection.
Content-Type, Content-Length and Host are reserved.

# Stability

This package is Alpha stability. The API may change without notice.
*/
package http
