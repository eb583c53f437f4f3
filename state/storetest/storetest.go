// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package storetest provides the behaviour tests every state.Store
// implementation must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-oauth/state"
)

// Run exercises the store returned by newStore. newStore is called once per
// subtest and must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) state.Store) {
	t.Helper()

	t.Run("missing key", func(t *testing.T) {
		s := newStore(t)
		rc, ok, err := s.Get(context.Background(), "nobody")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, rc)
	})

	t.Run("round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		in := Sample("alice")
		require.NoError(t, s.Put(ctx, "alice", in))

		out, ok, err := s.Get(ctx, "alice")
		require.NoError(t, err)
		require.True(t, ok)
		AssertSameData(t, in, out)
		assert.Nil(t, out.RefreshLock())
	})

	t.Run("normalizes custom parameters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		in := Sample("alice")
		in.CustomResponseParameters["expires_at"] = int64(1767225600)
		in.CustomResponseParameters["groups"] = []string{"admin", "dev"}
		in.CustomResponseParameters["claims"] = map[string]string{"sub": "alice"}
		require.NoError(t, s.Put(ctx, "alice", in))

		out, ok, err := s.Get(ctx, "alice")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, float64(1767225600), out.CustomResponseParameters["expires_at"])
		assert.Equal(t, []any{"admin", "dev"}, out.CustomResponseParameters["groups"])
		assert.Equal(t, map[string]any{"sub": "alice"}, out.CustomResponseParameters["claims"])
		assert.Equal(t, "jwt-alice", out.CustomResponseParameters["id_token"])

		// The caller's value is left as it was.
		assert.Equal(t, int64(1767225600), in.CustomResponseParameters["expires_at"])
	})

	t.Run("rejects parameters JSON cannot hold", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		in := Sample("alice")
		in.CustomResponseParameters["callback"] = func() {}
		require.Error(t, s.Put(ctx, "alice", in))
	})

	t.Run("overwrite", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rc := Sample("alice")
		require.NoError(t, s.Put(ctx, "alice", rc))
		rc.AccessToken = "rotated"
		rc.RefreshToken = ""
		require.NoError(t, s.Put(ctx, "alice", rc))

		out, ok, err := s.Get(ctx, "alice")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "rotated", out.AccessToken)
		assert.Empty(t, out.RefreshToken)
	})

	t.Run("returns copies", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		rc := Sample("alice")
		require.NoError(t, s.Put(ctx, "alice", rc))
		rc.AccessToken = "changed after put"

		first, _, err := s.Get(ctx, "alice")
		require.NoError(t, err)
		first.CustomResponseParameters["id_token"] = "changed after get"

		second, _, err := s.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "access-alice", second.AccessToken)
		assert.Equal(t, "jwt-alice", second.CustomResponseParameters["id_token"])
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, "alice", Sample("alice")))
		require.NoError(t, s.Delete(ctx, "alice"))
		_, ok, err := s.Get(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.Delete(ctx, "never-stored"))
	})

	t.Run("concurrent writers", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := range 10 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				owner := fmt.Sprintf("owner-%d", i)
				assert.NoError(t, s.Put(ctx, owner, Sample(owner)))
				_, ok, err := s.Get(ctx, owner)
				assert.NoError(t, err)
				assert.True(t, ok)
			}(i)
		}
		wg.Wait()
	})
}

// Sample returns a fully populated context for owner.
func Sample(owner string) *state.ResourceOwnerContext {
	rc := state.NewResourceOwnerContext(owner, nil)
	rc.AccessToken = "access-" + owner
	rc.RefreshToken = "refresh-" + owner
	rc.ExpiresIn = "3600"
	rc.State = "state-" + owner
	rc.CustomResponseParameters["id_token"] = "jwt-" + owner
	rc.CustomResponseParameters["scopes"] = []any{"read", "write"}
	return rc
}

// AssertSameData asserts that two contexts carry the same persisted fields.
func AssertSameData(t *testing.T, want, got *state.ResourceOwnerContext) {
	t.Helper()

	assert.Equal(t, want.ResourceOwnerID, got.ResourceOwnerID)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.Equal(t, want.ExpiresIn, got.ExpiresIn)
	assert.Equal(t, want.State, got.State)
	assert.Equal(t, want.CustomResponseParameters, got.CustomResponseParameters)
}
