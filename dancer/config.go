// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package dancer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/stacklok/toolhive-oauth/cel"
	"github.com/stacklok/toolhive-oauth/exchange"
	"github.com/stacklok/toolhive-oauth/expression"
	"github.com/stacklok/toolhive-oauth/lock"
	"github.com/stacklok/toolhive-oauth/oauth"
	"github.com/stacklok/toolhive-oauth/state"
	"github.com/stacklok/toolhive-oauth/transport"
	httpval "github.com/stacklok/toolhive-oauth/validation/http"
)

// CredentialsLocation is where the client credentials are sent on token requests.
type CredentialsLocation string

const (
	// CredentialsInHeader sends an HTTP Basic Authorization header.
	CredentialsInHeader CredentialsLocation = oauth.TokenEndpointAuthMethodClientSecretBasic
	// CredentialsInBody sends client_id and client_secret form parameters.
	CredentialsInBody CredentialsLocation = oauth.TokenEndpointAuthMethodClientSecretPost
)

// ParseCredentialsLocation parses a token endpoint authentication method name.
// The empty string parses to the empty location, which selects the grant
// type's default.
func ParseCredentialsLocation(s string) (CredentialsLocation, error) {
	switch l := CredentialsLocation(strings.ToLower(strings.TrimSpace(s))); l {
	case "", CredentialsInHeader, CredentialsInBody:
		return l, nil
	default:
		return "", fmt.Errorf("%w: unknown credentials location %q", ErrInvalidConfig, s)
	}
}

// Config holds the settings shared by every grant type.
type Config struct {
	// Name identifies the dancer in lock ids and logs. A random name is
	// generated when empty. Dancers sharing a Store and a distributed lock
	// Provider must use the same name.
	Name string

	ClientID     string
	ClientSecret string
	TokenURL     string

	// Scopes is sent as the scope parameter when not empty.
	Scopes string

	// Encoding is the charset of token request bodies. Defaults to UTF-8.
	Encoding string

	// CredentialsLocation defaults to CredentialsInHeader for client
	// credentials and to CredentialsInBody for authorization codes.
	CredentialsLocation CredentialsLocation

	// Expressions extract fields from token responses. Empty AccessToken,
	// RefreshToken and ExpiresIn expressions take the exchange defaults.
	Expressions exchange.Expressions

	// ResourceOwnerIDTransformer maps a resource owner id to its store key.
	// Defaults to the identity.
	ResourceOwnerIDTransformer func(string) string

	// Store defaults to a state.MemoryStore.
	Store state.Store
	// Locks defaults to a lock.LocalProvider.
	Locks lock.Provider
	// Transport defaults to a transport.HTTPClient.
	Transport transport.Client
	// Evaluator defaults to the CEL evaluator.
	Evaluator expression.Evaluator
	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Coalesce shares one in-flight refresh between concurrent callers for the
	// same resource owner instead of running them one after another.
	Coalesce bool
}

// checker is implemented by evaluators that can reject expressions before
// they are evaluated.
type checker interface {
	Check(expr string) error
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("%w: client id is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return fmt.Errorf("%w: client secret is required", ErrInvalidConfig)
	}
	if err := httpval.ValidateEndpointURL(c.TokenURL); err != nil {
		return fmt.Errorf("%w: token URL: %w", ErrInvalidConfig, err)
	}
	if _, err := ParseCredentialsLocation(string(c.CredentialsLocation)); err != nil {
		return err
	}
	if _, err := exchange.EncodeForm(nil, c.Encoding); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if chk, ok := c.Evaluator.(checker); ok {
		exprs := map[string]string{
			"access token":  c.Expressions.AccessToken,
			"refresh token": c.Expressions.RefreshToken,
			"expires in":    c.Expressions.ExpiresIn,
		}
		for key, expr := range c.Expressions.CustomParameters {
			exprs["custom parameter "+key] = expr
		}
		for what, expr := range exprs {
			if !c.Evaluator.IsExpression(expr) {
				continue
			}
			if err := chk.Check(expr); err != nil {
				return fmt.Errorf("%w: %s expression: %w", ErrInvalidConfig, what, err)
			}
		}
	}
	return nil
}

// withDefaults returns a copy of c with every unset collaborator filled in.
func (c Config) withDefaults(location CredentialsLocation) Config {
	if c.Name == "" {
		c.Name = uuid.NewString()
	}
	if c.Encoding == "" {
		c.Encoding = exchange.DefaultEncoding
	}
	if c.CredentialsLocation == "" {
		c.CredentialsLocation = location
	}
	c.CredentialsLocation = CredentialsLocation(strings.ToLower(string(c.CredentialsLocation)))

	defaults := exchange.DefaultExpressions()
	if c.Expressions.AccessToken == "" {
		c.Expressions.AccessToken = defaults.AccessToken
	}
	if c.Expressions.RefreshToken == "" {
		c.Expressions.RefreshToken = defaults.RefreshToken
	}
	if c.Expressions.ExpiresIn == "" {
		c.Expressions.ExpiresIn = defaults.ExpiresIn
	}

	if c.ResourceOwnerIDTransformer == nil {
		c.ResourceOwnerIDTransformer = func(id string) string { return id }
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Store == nil {
		c.Store = state.NewMemoryStore()
	}
	if c.Locks == nil {
		c.Locks = lock.NewLocalProvider()
	}
	if c.Transport == nil {
		c.Transport = transport.NewHTTPClient(transport.WithLogger(c.Logger))
	}
	if c.Evaluator == nil {
		c.Evaluator = cel.NewEvaluator()
	}
	return c
}
