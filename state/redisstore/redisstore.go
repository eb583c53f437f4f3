// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package redisstore provides a state.Store that keeps resource owner contexts
// in Redis as JSON documents, so several processes can share them and they
// survive restarts.
//
// # Stability
//
// This package is Alpha stability. The API may change without notice.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/stacklok/toolhive-oauth/state"
)

// DefaultKeyPrefix is prepended to every owner key.
const DefaultKeyPrefix = "oauth:context:"

// Store is a Redis-backed state.Store.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ state.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix sets the key prefix. The default is DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL expires contexts that have not been written for ttl.
// The default of zero keeps them until they are invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// New returns a Store using client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks connectivity to Redis.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// Get loads the context stored under key.
func (s *Store) Get(ctx context.Context, key string) (*state.ResourceOwnerContext, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading context %q: %w", key, err)
	}

	rc, err := state.Unmarshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("decoding context %q: %w", key, err)
	}
	return rc, true, nil
}

// Put writes rc under key.
func (s *Store) Put(ctx context.Context, key string, rc *state.ResourceOwnerContext) error {
	data, err := rc.Marshal()
	if err != nil {
		return fmt.Errorf("encoding context %q: %w", key, err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("storing context %q: %w", key, err)
	}
	return nil
}

// Delete removes the context stored under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("deleting context %q: %w", key, err)
	}
	return nil
}
