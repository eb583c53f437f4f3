// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package expression extracts token fields from token endpoint responses of
arbitrary shape.

Each field (access token, refresh token, expires-in, custom parameters) is
configured as a string. A string the Evaluator recognises as an expression is
evaluated against the response; any other string is a literal value.

# Bindings

Expressions see three variables:

	payload                  the body, decoded as JSON or form data when the
	                         media type says so, otherwise the raw text
	attributes.headers       response headers, lower-case names, first value
	attributes.allHeaders    response headers, lower-case names, all values
	attributes.queryParams   callback query parameters (authorization code only)
	dataType                 mediaType, mimeType and charset of the payload

# Evaluators

The package defines the Evaluator interface only. The cel package provides
the default implementation, where expressions are written as #[...]:

	x := expression.NewExtractor(cel.NewEvaluator())
	token, ok, err := x.ExtractString("#[payload.access_token]", &expression.Input{
	    Body:      body,
	    Header:    resp.Header,
	    MediaType: expression.ParseMediaType(resp.Header.Get("Content-Type")),
	})

# Stability

This package is Beta stability. The API may have minor changes before
reaching stable status in v1.0.0.
*/
package expression
