// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-oauth/state"
	"github.com/stacklok/toolhive-oauth/state/redisstore"
	"github.com/stacklok/toolhive-oauth/state/storetest"
)

func newClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestStore(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T) state.Store {
		client, _ := newClient(t)
		return redisstore.New(client)
	})
}

func TestStore_KeyLayout(t *testing.T) {
	t.Parallel()

	client, mr := newClient(t)
	s := redisstore.New(client, redisstore.WithKeyPrefix("tenant-a:"), redisstore.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Put(ctx, "alice", storetest.Sample("alice")))

	raw, err := mr.Get("tenant-a:alice")
	require.NoError(t, err)
	assert.Contains(t, raw, `"accessToken":"access-alice"`)
	assert.Equal(t, time.Minute, mr.TTL("tenant-a:alice"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CorruptValue(t *testing.T) {
	t.Parallel()

	client, mr := newClient(t)
	require.NoError(t, mr.Set(redisstore.DefaultKeyPrefix+"alice", "{not json"))

	_, _, err := redisstore.New(client).Get(context.Background(), "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding context")
}

func TestStore_Unavailable(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	client := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	s := redisstore.New(client)
	require.Error(t, s.Ping(context.Background()))
	_, _, err = s.Get(context.Background(), "alice")
	require.Error(t, err)
}
