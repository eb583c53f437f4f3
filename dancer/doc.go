// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package dancer manages the OAuth 2.0 token lifecycle of resource owners: it
acquires, caches, refreshes and invalidates tokens, and notifies listeners of
every change.

Two grant types are provided. A ClientCredentialsDancer holds one context for
the client itself:

	d, err := dancer.NewClientCredentialsDancer(dancer.ClientCredentialsConfig{
	    Config: dancer.Config{
	        ClientID:     clientID,
	        ClientSecret: clientSecret,
	        TokenURL:     "https://idp.example.com/oauth/token",
	        Scopes:       "read write",
	    },
	})
	if err != nil {
	    return err
	}
	if err := d.Start(ctx); err != nil { // fetches the first token
	    return err
	}
	defer d.Stop()

	token, err := d.AccessToken(ctx).Await(ctx)

An AuthorizationCodeDancer holds one context per resource owner. The owner is
sent to AuthorizationURL, and the redirect back is passed to HandleCallback:

	authURL, err := d.AuthorizationURL("alice")
	// ... later, on the redirect:
	rc, err := d.HandleCallback(ctx, dancer.CallbackRequest{
	    Code:        r.URL.Query().Get("code"),
	    State:       r.URL.Query().Get("state"),
	    QueryParams: r.URL.Query(),
	}).Await(ctx)

# State

The state parameter carries the resource owner id back to the callback as
"<state>:resourceOwnerId=<id>". Without AuthorizationCodeConfig.State each
authorization URL gets a fresh nonce signed with the owner id, and a callback
whose state was not signed for its owner fails with ErrInvalidState. A
configured State is compared as is, and the owner id after it is trusted.
Nonces are not recorded, so a state stays valid for its owner until the
signing key changes.

# Concurrency

Token exchanges for one resource owner run one at a time: the owner's lock
is held from reading the context until the new tokens are stored. Different
owners refresh in parallel. With Config.Coalesce, callers that refresh an
owner while a refresh is in flight share its result.

Once sent, an exchange is not cancelled by the caller's context; waiting for
locks is.

Listeners are called with the owner's lock held on invalidation, and after
it is released otherwise. The locks are not reentrant: OnTokenInvalidated
must not refresh, update or invalidate the same owner synchronously.

# Errors

Token endpoint failures are *oauth.TokenError values. A failed exchange
leaves the stored context unchanged.

# Stability

This package is Beta stability. The API may have minor changes before
reaching stable status in v1.0.0.
*/
package dancer
