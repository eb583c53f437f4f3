// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package exchange posts token requests to an OAuth 2.0 token endpoint and
extracts the access token, refresh token, expiry and custom parameters from
the response.

	c := exchange.NewClient(tr, expression.NewExtractor(cel.NewEvaluator()), exchange.DefaultExpressions())
	resp, err := c.Exchange(ctx, exchange.Request{
	    TokenURL:      "https://idp.example.com/token",
	    Form:          map[string]string{oauth.ParamGrantType: oauth.GrantTypeClientCredentials},
	    Authorization: exchange.BasicAuthorization(clientID, clientSecret),
	}).Await(ctx)

Failures are reported as *oauth.TokenError values of one of three kinds:

  - oauth.ErrKindTokenURLUnreachable: the request could not be sent or timed out.
  - oauth.ErrKindTokenURLResponse: the endpoint answered with status 400 or above,
    or a refresh token, expiry or custom parameter could not be extracted from a
    successful answer. TokenError.Field names the field in the latter case.
  - oauth.ErrKindTokenNotFound: no access token could be extracted.

The exchange is never retried.

# Stability

This package is Beta stability. The API may have minor changes before
reaching stable status in v1.0.0.
*/
package exchange
