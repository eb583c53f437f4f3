// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"fmt"
	"sync"
)

// Store holds resource owner contexts keyed by transformed owner id.
//
// Implementations must be safe for concurrent use and must not retain or
// hand out the caller's values: Get returns a context the caller owns, and
// Put stores a copy. Get reports false, with a nil error, for a missing key.
// Delete of a missing key is not an error. Custom parameters come back in
// the form NormalizeParams gives them, whatever the store.
type Store interface {
	Get(ctx context.Context, key string) (*ResourceOwnerContext, bool, error)
	Put(ctx context.Context, key string, rc *ResourceOwnerContext) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	contexts map[string]*ResourceOwnerContext
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{contexts: make(map[string]*ResourceOwnerContext)}
}

// Get returns a copy of the context stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) (*ResourceOwnerContext, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rc, ok := s.contexts[key]
	if !ok {
		return nil, false, nil
	}
	out := rc.Clone()
	out.refreshLock = nil
	return out, true, nil
}

// Put stores a copy of rc under key. The custom parameters are normalized
// the way the JSON-backed stores persist them.
func (s *MemoryStore) Put(_ context.Context, key string, rc *ResourceOwnerContext) error {
	params, err := NormalizeParams(rc.CustomResponseParameters)
	if err != nil {
		return fmt.Errorf("encoding custom parameters of %s: %w", key, err)
	}
	stored := rc.Clone()
	stored.CustomResponseParameters = params
	stored.refreshLock = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[key] = stored
	return nil
}

// Delete removes the context stored under key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, key)
	return nil
}

// Len returns the number of stored contexts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts)
}
