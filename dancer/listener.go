// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package dancer

import (
	"context"

	"github.com/stacklok/toolhive-oauth/state"
)

// TokenListener is notified of token state changes. Errors and panics are
// logged and never reach the operation that triggered the notification.
type TokenListener interface {
	// OnTokenRefreshed receives a copy of the context right after a refresh
	// was persisted.
	OnTokenRefreshed(ctx context.Context, rc *state.ResourceOwnerContext) error
	// OnTokenInvalidated is called after the context of resourceOwnerID was
	// removed, while the owner's lock is still held. It must not refresh,
	// update or invalidate the same owner and wait for the result; such work
	// has to run on another goroutine, and it proceeds once the invalidation
	// returns.
	OnTokenInvalidated(ctx context.Context, resourceOwnerID string) error
}

// AuthorizationCodeListener is additionally notified when a resource owner
// completes an authorization.
type AuthorizationCodeListener interface {
	TokenListener
	OnAuthorizationCompleted(ctx context.Context, rc *state.ResourceOwnerContext) error
}

// TokenListenerFuncs adapts functions to a TokenListener. Nil functions are
// skipped. Register it by pointer.
type TokenListenerFuncs struct {
	Refreshed   func(ctx context.Context, rc *state.ResourceOwnerContext) error
	Invalidated func(ctx context.Context, resourceOwnerID string) error
}

var _ TokenListener = (*TokenListenerFuncs)(nil)

// OnTokenRefreshed implements TokenListener.
func (f *TokenListenerFuncs) OnTokenRefreshed(ctx context.Context, rc *state.ResourceOwnerContext) error {
	if f.Refreshed == nil {
		return nil
	}
	return f.Refreshed(ctx, rc)
}

// OnTokenInvalidated implements TokenListener.
func (f *TokenListenerFuncs) OnTokenInvalidated(ctx context.Context, resourceOwnerID string) error {
	if f.Invalidated == nil {
		return nil
	}
	return f.Invalidated(ctx, resourceOwnerID)
}

// AuthorizationCodeListenerFuncs adapts functions to an AuthorizationCodeListener.
// Register it by pointer.
type AuthorizationCodeListenerFuncs struct {
	TokenListenerFuncs
	Completed func(ctx context.Context, rc *state.ResourceOwnerContext) error
}

var _ AuthorizationCodeListener = (*AuthorizationCodeListenerFuncs)(nil)

// OnAuthorizationCompleted implements AuthorizationCodeListener.
func (f *AuthorizationCodeListenerFuncs) OnAuthorizationCompleted(ctx context.Context, rc *state.ResourceOwnerContext) error {
	if f.Completed == nil {
		return nil
	}
	return f.Completed(ctx, rc)
}
