// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package redislock provides lock.Provider backed by Redis through the Redlock
// implementation of go-redsync, for dancers in several processes that share a
// token store.
//
// Each NewLock call returns a new redsync mutex on the shared key. While a
// handle is held its expiry is extended in the background, so a lock survives
// a token exchange that runs up to its full timeout.
//
// # Stability
//
// This package is Alpha stability. The API may change without notice.
package redislock

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredislib "github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"github.com/stacklok/toolhive-oauth/lock"
)

const (
	// DefaultKeyPrefix is prepended to every lock id.
	DefaultKeyPrefix = "lock:"

	// DefaultExpiry is how long a lock lives in Redis without being extended.
	// It outlasts the 60 second token exchange timeout.
	DefaultExpiry = 2 * time.Minute

	// DefaultRetryDelay and DefaultTries bound how long Lock waits for a
	// contended lock before giving up, roughly 90 seconds.
	DefaultRetryDelay = 150 * time.Millisecond
	DefaultTries      = 600

	extendTimeout = 5 * time.Second
)

// Provider creates Redis-backed lock handles.
type Provider struct {
	rs         *redsync.Redsync
	prefix     string
	expiry     time.Duration
	retryDelay time.Duration
	tries      int
}

var _ lock.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithKeyPrefix sets the prefix of the Redis keys. The default is DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(p *Provider) {
		p.prefix = prefix
	}
}

// WithExpiry sets the lock expiry. The default is DefaultExpiry.
func WithExpiry(d time.Duration) Option {
	return func(p *Provider) {
		p.expiry = d
	}
}

// WithRetry sets how many times, and how often, Lock retries a contended lock.
func WithRetry(tries int, delay time.Duration) Option {
	return func(p *Provider) {
		p.tries = tries
		p.retryDelay = delay
	}
}

// New returns a Provider using client for coordination.
func New(client goredislib.UniversalClient, opts ...Option) *Provider {
	p := &Provider{
		rs:         redsync.New(goredis.NewPool(client)),
		prefix:     DefaultKeyPrefix,
		expiry:     DefaultExpiry,
		retryDelay: DefaultRetryDelay,
		tries:      DefaultTries,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewLock returns a new handle on the Redis lock for id.
func (p *Provider) NewLock(id string) lock.Lock {
	return &mutexLock{
		mutex: p.rs.NewMutex(p.prefix+id,
			redsync.WithExpiry(p.expiry),
			redsync.WithTries(p.tries),
			redsync.WithRetryDelay(p.retryDelay),
		),
		expiry: p.expiry,
	}
}

type mutexLock struct {
	mutex  *redsync.Mutex
	expiry time.Duration

	mu         sync.Mutex
	stopExtend context.CancelFunc
	extendDone chan struct{}
}

func (l *mutexLock) Lock(ctx context.Context) error {
	if err := l.mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("acquiring lock %s: %w", l.mutex.Name(), err)
	}

	extendCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	l.mu.Lock()
	l.stopExtend = cancel
	l.extendDone = done
	l.mu.Unlock()

	go l.extend(extendCtx, done)
	return nil
}

// extend keeps the lock alive at a third of its expiry until stopped or lost.
func (l *mutexLock) extend(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := l.expiry / 3
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extendCtx, cancel := context.WithTimeout(ctx, extendTimeout)
			ok, err := l.mutex.ExtendContext(extendCtx)
			cancel()
			if err != nil || !ok {
				return
			}
		}
	}
}

func (l *mutexLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	stop, done := l.stopExtend, l.extendDone
	l.stopExtend, l.extendDone = nil, nil
	l.mu.Unlock()

	if stop == nil {
		return lock.ErrNotHeld
	}
	stop()
	<-done

	ok, err := l.mutex.UnlockContext(ctx)
	if err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.mutex.Name(), err)
	}
	if !ok {
		return fmt.Errorf("releasing lock %s: %w", l.mutex.Name(), lock.ErrNotHeld)
	}
	return nil
}
