// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package dancer

import (
	"context"

	"golang.org/x/oauth2"
)

// AccessTokenFunc returns the current access token of a dancer.
type AccessTokenFunc func(ctx context.Context) (string, error)

// NewTokenSource adapts fn to an oauth2.TokenSource issuing bearer tokens
// without an expiry. Every Token call reads the dancer's current token, so
// an invalidation or refresh is picked up by the next request.
//
//	client := oauth2.NewClient(ctx, d.TokenSource(ctx))
func NewTokenSource(ctx context.Context, fn AccessTokenFunc) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, fn: fn}
}

type tokenSource struct {
	ctx context.Context
	fn  AccessTokenFunc
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	token, err := s.fn(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
