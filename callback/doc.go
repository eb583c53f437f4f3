// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package callback provides the HTTP side of the authorization code grant: a
handler that sends resource owners to the authorization server and a handler
for the redirect URI that completes the authorization.

The caller mounts the handlers; the package runs no server of its own.

	d, err := dancer.NewAuthorizationCodeDancer(cfg)
	...
	mux := http.NewServeMux()
	mux.Handle("/oauth/authorize", callback.NewAuthorizeHandler(d))
	mux.Handle("/oauth/callback", callback.NewCallbackHandler(d))

The resource owner of an authorize request is resolved with an expression
evaluated against the request's query parameters and headers, by default
DefaultResourceOwnerExpr:

	GET /oauth/authorize?resourceOwnerId=alice
	302 Location: https://idp.example.com/authorize?...&state=...%3AresourceOwnerId%3Dalice

The callback handler waits for the exchange to finish. Errors are answered
through package httperr: a missing code, an invalid state or an error
redirect from the authorization server is 400, a failing token endpoint is
502. Both handlers recover from panics.

# Stability

This package is Alpha stability. The API may change without notice.
*/
package callback
