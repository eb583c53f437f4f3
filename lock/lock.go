// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotHeld is returned when unlocking a handle that does not hold its lock.
var ErrNotHeld = errors.New("lock not held")

// Lock is one handle on a named lock. Handles created for the same id by the
// same Provider exclude each other. Locks are not reentrant: a holder must not
// acquire a handle for an id it already holds.
type Lock interface {
	// Lock blocks until the lock is acquired or ctx is done.
	Lock(ctx context.Context) error
	// Unlock releases a lock acquired through this handle.
	Unlock(ctx context.Context) error
}

// Provider creates lock handles. Implementations may return a fresh handle on
// every call; callers must not cache handles across operations.
type Provider interface {
	NewLock(id string) Lock
}

// LocalProvider provides locks that exclude goroutines of the same process.
// The zero value is ready to use.
type LocalProvider struct {
	sems sync.Map // id -> chan struct{}
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider returns an empty LocalProvider.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

// NewLock returns a new handle on the process-wide lock for id.
func (p *LocalProvider) NewLock(id string) Lock {
	sem, _ := p.sems.LoadOrStore(id, make(chan struct{}, 1))
	return &localLock{sem: sem.(chan struct{})}
}

type localLock struct {
	sem  chan struct{}
	mu   sync.Mutex
	held bool
}

func (l *localLock) Lock(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	l.mu.Lock()
	l.held = true
	l.mu.Unlock()
	return nil
}

func (l *localLock) Unlock(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return ErrNotHeld
	}
	l.held = false
	<-l.sem
	return nil
}
