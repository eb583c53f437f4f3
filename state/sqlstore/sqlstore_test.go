// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-oauth/state"
	"github.com/stacklok/toolhive-oauth/state/sqlstore"
	"github.com/stacklok/toolhive-oauth/state/storetest"
)

func openSQLite(t *testing.T, path string, opts ...sqlstore.Option) *sqlstore.Store {
	t.Helper()

	s, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SQLite(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T) state.Store {
		return openSQLite(t, filepath.Join(t.TempDir(), "tokens.db"))
	})
}

func TestStore_SurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tokens.db")
	ctx := context.Background()

	first, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, path, sqlstore.WithTable("dancer_state"))
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, "alice", storetest.Sample("alice")))
	require.NoError(t, first.Close())

	second := openSQLite(t, path, sqlstore.WithTable("dancer_state"))
	rc, ok, err := second.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	storetest.AssertSameData(t, storetest.Sample("alice"), rc)
}

func TestOpen_Errors(t *testing.T) {
	t.Parallel()

	_, err := sqlstore.Open(context.Background(), "mysql", "dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")

	_, err = sqlstore.Open(context.Background(), sqlstore.DriverSQLite,
		filepath.Join(t.TempDir(), "x.db"), sqlstore.WithTable("bad;name"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}
