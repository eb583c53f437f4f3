// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package dancer

import (
	"context"
	"fmt"
	"maps"

	"golang.org/x/oauth2"

	"github.com/stacklok/toolhive-oauth/async"
	"github.com/stacklok/toolhive-oauth/exchange"
	"github.com/stacklok/toolhive-oauth/oauth"
	"github.com/stacklok/toolhive-oauth/state"
	httpval "github.com/stacklok/toolhive-oauth/validation/http"
)

// ClientCredentialsConfig configures a ClientCredentialsDancer.
type ClientCredentialsConfig struct {
	Config

	// CustomParameters are added to the form of every token request.
	CustomParameters map[string]string
	// CustomHeaders are added to every token request.
	CustomHeaders map[string]string
}

// ClientCredentialsDancer obtains tokens for the client itself with the
// client credentials grant (RFC 6749 Section 4.4). It keeps a single context
// under state.DefaultResourceOwnerID.
type ClientCredentialsDancer struct {
	base             *Base[TokenListener]
	customParameters map[string]string
	customHeaders    map[string]string
}

// NewClientCredentialsDancer validates cfg and returns a stopped dancer.
func NewClientCredentialsDancer(cfg ClientCredentialsConfig) (*ClientCredentialsDancer, error) {
	if err := httpval.ValidateHeaders(cfg.CustomHeaders); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	b, err := newBase[TokenListener](cfg.Config, CredentialsInHeader)
	if err != nil {
		return nil, err
	}
	return &ClientCredentialsDancer{
		base:             b,
		customParameters: maps.Clone(cfg.CustomParameters),
		customHeaders:    maps.Clone(cfg.CustomHeaders),
	}, nil
}

// Name returns the dancer name.
func (d *ClientCredentialsDancer) Name() string {
	return d.base.Name()
}

// Start starts the transport and fetches the first token. When the fetch
// fails the transport is stopped again and the error returned.
func (d *ClientCredentialsDancer) Start(ctx context.Context) error {
	if err := d.base.Start(); err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}
	if _, err := d.RefreshToken(ctx).Await(ctx); err != nil {
		if stopErr := d.base.Stop(); stopErr != nil {
			d.base.logger.Warn("failed to stop transport", "error", stopErr)
		}
		return fmt.Errorf("fetching initial token: %w", err)
	}
	return nil
}

// Stop stops the transport.
func (d *ClientCredentialsDancer) Stop() error {
	return d.base.Stop()
}

// AccessToken returns the current access token, fetching one when the
// context has none.
func (d *ClientCredentialsDancer) AccessToken(ctx context.Context) *async.Future[string] {
	rc, err := d.base.GetContext(ctx, state.DefaultResourceOwnerID)
	if err != nil {
		return async.Failed[string](err)
	}
	if rc.HasAccessToken() {
		return async.Completed(rc.AccessToken)
	}
	return async.Then(d.RefreshToken(ctx), func(rc *state.ResourceOwnerContext) (string, error) {
		return rc.AccessToken, nil
	})
}

// RefreshToken requests a new access token. Concurrent refreshes run one
// after another unless the dancer coalesces them.
func (d *ClientCredentialsDancer) RefreshToken(ctx context.Context) *async.Future[*state.ResourceOwnerContext] {
	return d.base.dance(ctx, danceRequest[TokenListener]{
		ownerID:  state.DefaultResourceOwnerID,
		coalesce: true,
		build: func(*state.ResourceOwnerContext) (exchange.Request, error) {
			form := maps.Clone(d.customParameters)
			if form == nil {
				form = make(map[string]string, 2)
			}
			form[oauth.ParamGrantType] = oauth.GrantTypeClientCredentials
			if d.base.cfg.Scopes != "" {
				form[oauth.ParamScope] = d.base.cfg.Scopes
			}
			return d.base.newRequest(form, d.customHeaders), nil
		},
		apply: mergeResponse,
		event: eventTokenRefreshed,
		notify: func(ctx context.Context, l TokenListener, rc *state.ResourceOwnerContext) error {
			return l.OnTokenRefreshed(ctx, rc)
		},
	})
}

// Context returns the dancer's context.
func (d *ClientCredentialsDancer) Context(ctx context.Context) (*state.ResourceOwnerContext, error) {
	return d.base.GetContext(ctx, state.DefaultResourceOwnerID)
}

// InvalidateContext removes the dancer's context so the next AccessToken
// fetches a new token.
func (d *ClientCredentialsDancer) InvalidateContext(ctx context.Context) error {
	return d.base.InvalidateContext(ctx, state.DefaultResourceOwnerID)
}

// AddListener registers l and returns a function that removes it.
func (d *ClientCredentialsDancer) AddListener(l TokenListener) (remove func()) {
	return d.base.AddListener(l)
}

// RemoveListener unregisters l and reports whether it was registered.
func (d *ClientCredentialsDancer) RemoveListener(l TokenListener) bool {
	return d.base.RemoveListener(l)
}

// TokenSource returns an oauth2.TokenSource serving the dancer's access token.
func (d *ClientCredentialsDancer) TokenSource(ctx context.Context) oauth2.TokenSource {
	return NewTokenSource(ctx, func(ctx context.Context) (string, error) {
		return d.AccessToken(ctx).Await(ctx)
	})
}
