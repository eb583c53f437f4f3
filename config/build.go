// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/go-redis/redis/v8"

	"github.com/stacklok/toolhive-oauth/dancer"
	"github.com/stacklok/toolhive-oauth/exchange"
	"github.com/stacklok/toolhive-oauth/lock"
	"github.com/stacklok/toolhive-oauth/lock/redislock"
	"github.com/stacklok/toolhive-oauth/logging"
	"github.com/stacklok/toolhive-oauth/oauth"
	"github.com/stacklok/toolhive-oauth/state"
	"github.com/stacklok/toolhive-oauth/state/redisstore"
	"github.com/stacklok/toolhive-oauth/state/sqlstore"
)

// Stack holds what Build creates from a Config. The dancers are not started.
type Stack struct {
	Logger *slog.Logger
	Store  state.Store
	Locks  lock.Provider

	ClientCredentials map[string]*dancer.ClientCredentialsDancer
	AuthorizationCode map[string]*dancer.AuthorizationCodeDancer

	closers []func() error
}

// Close releases the store and Redis connections. Dancers must be stopped first.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Build creates the logger, the store, the lock provider and every dancer of
// cfg. On failure everything created so far is closed.
func Build(ctx context.Context, cfg *Config, opts ...logging.Option) (_ *Stack, err error) {
	logger, err := NewLogger(cfg.Logging, opts...)
	if err != nil {
		return nil, err
	}

	s := &Stack{
		Logger:            logger,
		ClientCredentials: make(map[string]*dancer.ClientCredentialsDancer),
		AuthorizationCode: make(map[string]*dancer.AuthorizationCodeDancer),
	}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	var client redis.UniversalClient
	if cfg.Redis != nil {
		c := NewRedisClient(cfg.Redis)
		s.closers = append(s.closers, c.Close)
		client = c
	}

	store, closeStore, err := NewStore(ctx, cfg.Store, client)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		s.closers = append(s.closers, closeStore)
	}
	s.Store = store

	if s.Locks, err = NewLockProvider(cfg.Locks, client); err != nil {
		return nil, err
	}

	shared := dancer.Config{Store: s.Store, Locks: s.Locks}
	for _, d := range cfg.Dancers {
		shared.Logger = logger.With("dancer", d.Name)
		switch d.Grant {
		case GrantClientCredentials:
			dc, err := d.ClientCredentialsConfig(shared)
			if err != nil {
				return nil, err
			}
			if s.ClientCredentials[d.Name], err = dancer.NewClientCredentialsDancer(dc); err != nil {
				return nil, fmt.Errorf("dancer %q: %w", d.Name, err)
			}
		case GrantAuthorizationCode:
			dc, err := d.AuthorizationCodeConfig(shared)
			if err != nil {
				return nil, err
			}
			if s.AuthorizationCode[d.Name], err = dancer.NewAuthorizationCodeDancer(dc); err != nil {
				return nil, fmt.Errorf("dancer %q: %w", d.Name, err)
			}
		default:
			return nil, fmt.Errorf("dancer %q: unknown grant %q", d.Name, d.Grant)
		}
	}
	return s, nil
}

// NewLogger creates the logger selected by l. opts are applied first, so l
// wins over a format or level they set.
func NewLogger(l Logging, opts ...logging.Option) (*slog.Logger, error) {
	format, err := logging.ParseFormat(l.Format)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts = append(opts, logging.WithFormat(format), logging.WithLevel(level))
	return logging.New(opts...), nil
}

// NewRedisClient returns a client for r.
func NewRedisClient(r *Redis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     r.Address,
		Password: r.Password,
		DB:       r.DB,
	})
}

// NewStore creates the store selected by s. The returned close function is
// nil for stores that hold no connection of their own. client is required by
// the redis store.
func NewStore(ctx context.Context, s Store, client redis.UniversalClient) (state.Store, func() error, error) {
	switch s.Type {
	case "", StoreMemory:
		return state.NewMemoryStore(), nil, nil
	case StoreRedis:
		if client == nil {
			return nil, nil, errors.New("redis store requires a redis connection")
		}
		var opts []redisstore.Option
		if s.KeyPrefix != "" {
			opts = append(opts, redisstore.WithKeyPrefix(s.KeyPrefix))
		}
		if s.TTL > 0 {
			opts = append(opts, redisstore.WithTTL(s.TTL))
		}
		return redisstore.New(client, opts...), nil, nil
	case StoreSQLite, StorePostgres:
		driver := sqlstore.DriverSQLite
		if s.Type == StorePostgres {
			driver = sqlstore.DriverPostgres
		}
		var opts []sqlstore.Option
		if s.Table != "" {
			opts = append(opts, sqlstore.WithTable(s.Table))
		}
		store, err := sqlstore.Open(ctx, driver, s.DSN, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("%s store: %w", s.Type, err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", s.Type)
	}
}

// NewLockProvider creates the lock provider selected by l. client is
// required by the redis locks.
func NewLockProvider(l Locks, client redis.UniversalClient) (lock.Provider, error) {
	switch l.Type {
	case "", LocksLocal:
		return lock.NewLocalProvider(), nil
	case LocksRedis:
		if client == nil {
			return nil, errors.New("redis locks require a redis connection")
		}
		var opts []redislock.Option
		if l.KeyPrefix != "" {
			opts = append(opts, redislock.WithKeyPrefix(l.KeyPrefix))
		}
		if l.Expiry > 0 {
			opts = append(opts, redislock.WithExpiry(l.Expiry))
		}
		return redislock.New(client, opts...), nil
	default:
		return nil, fmt.Errorf("unknown lock type %q", l.Type)
	}
}

// StoreKey returns the key under which the dancer named name keeps the
// context of ownerID. Dancers built from one file share a store, so every key
// carries the dancer name.
func StoreKey(name, ownerID string) string {
	return name + ":" + ownerID
}

// config merges d into shared, which supplies the collaborators.
func (d Dancer) config(shared dancer.Config) (dancer.Config, error) {
	location, err := dancer.ParseCredentialsLocation(d.CredentialsLocation)
	if err != nil {
		return dancer.Config{}, fmt.Errorf("dancer %q: %w", d.Name, err)
	}

	c := shared
	c.Name = d.Name
	c.ClientID = d.ClientID
	c.ClientSecret = d.ClientSecret
	c.TokenURL = d.TokenURL
	c.Scopes = d.Scopes
	c.Encoding = d.Encoding
	c.CredentialsLocation = location
	c.Coalesce = d.Coalesce
	name := d.Name
	c.ResourceOwnerIDTransformer = func(ownerID string) string { return StoreKey(name, ownerID) }
	c.Expressions = exchange.Expressions{
		AccessToken:      d.Expressions.AccessToken,
		RefreshToken:     d.Expressions.RefreshToken,
		ExpiresIn:        d.Expressions.ExpiresIn,
		CustomParameters: maps.Clone(d.Expressions.CustomParameters),
	}
	return c, nil
}

// ClientCredentialsConfig returns the dancer configuration of d.
func (d Dancer) ClientCredentialsConfig(shared dancer.Config) (dancer.ClientCredentialsConfig, error) {
	c, err := d.config(shared)
	if err != nil {
		return dancer.ClientCredentialsConfig{}, err
	}
	return dancer.ClientCredentialsConfig{
		Config:           c,
		CustomParameters: maps.Clone(d.CustomParameters),
		CustomHeaders:    maps.Clone(d.CustomHeaders),
	}, nil
}

// AuthorizationCodeConfig returns the dancer configuration of d. The static
// custom parameters and headers are supplied for every callback.
func (d Dancer) AuthorizationCodeConfig(shared dancer.Config) (dancer.AuthorizationCodeConfig, error) {
	c, err := d.config(shared)
	if err != nil {
		return dancer.AuthorizationCodeConfig{}, err
	}
	policy, err := oauth.ParseRedirectURIPolicy(d.RedirectURIPolicy)
	if err != nil {
		return dancer.AuthorizationCodeConfig{}, fmt.Errorf("dancer %q: %w", d.Name, err)
	}

	ac := dancer.AuthorizationCodeConfig{
		Config:              c,
		AuthorizationURL:    d.AuthorizationURL,
		ExternalCallbackURL: d.ExternalCallbackURL,
		RedirectURIPolicy:   policy,
		State:               d.State,
	}
	if d.StateKey != "" {
		ac.StateKey = []byte(d.StateKey)
	}
	if params := maps.Clone(d.CustomParameters); len(params) > 0 {
		ac.CustomParameters = func(dancer.CallbackContext) map[string]string { return params }
	}
	if headers := maps.Clone(d.CustomHeaders); len(headers) > 0 {
		ac.CustomHeaders = func(dancer.CallbackContext) map[string]string { return headers }
	}
	return ac, nil
}
