// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sqlstore provides a state.Store persisted in a SQL database.
// SQLite (through mattn/go-sqlite3) and PostgreSQL (through the pgx stdlib
// driver) are supported. Each context is one row holding its JSON encoding.
//
// # Stability
//
// This package is Alpha stability. The API may change without notice.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver

	"github.com/stacklok/toolhive-oauth/state"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// DefaultTable is the table contexts are stored in.
const DefaultTable = "oauth_contexts"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is a SQL-backed state.Store.
type Store struct {
	db     *sql.DB
	driver string
	table  string
	now    func() time.Time

	getQuery    string
	putQuery    string
	deleteQuery string
}

var _ state.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTable sets the table name. The default is DefaultTable.
func WithTable(name string) Option {
	return func(s *Store) {
		s.table = name
	}
}

// Open connects to the database, creates the table if needed and returns a
// Store that owns the connection.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}

	s, err := New(ctx, db, driver, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New returns a Store over an existing connection, creating the table if
// needed. The caller keeps ownership of db.
func New(ctx context.Context, db *sql.DB, driver string, opts ...Option) (*Store, error) {
	s := &Store{db: db, driver: driver, table: DefaultTable, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if !tableNamePattern.MatchString(s.table) {
		return nil, fmt.Errorf("invalid table name %q", s.table)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	s.prepareQueries()
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	owner_key  TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`, s.table))
	return err
}

func (s *Store) prepareQueries() {
	p1, p2, p3 := "?", "?", "?"
	if s.driver == DriverPostgres {
		p1, p2, p3 = "$1", "$2", "$3"
	}
	s.getQuery = fmt.Sprintf(`SELECT data FROM %s WHERE owner_key = %s`, s.table, p1)
	s.putQuery = fmt.Sprintf(`INSERT INTO %s (owner_key, data, updated_at) VALUES (%s, %s, %s)
ON CONFLICT (owner_key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`, s.table, p1, p2, p3)
	s.deleteQuery = fmt.Sprintf(`DELETE FROM %s WHERE owner_key = %s`, s.table, p1)
}

// Get loads the context stored under key.
func (s *Store) Get(ctx context.Context, key string) (*state.ResourceOwnerContext, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.getQuery, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading context %q: %w", key, err)
	}

	rc, err := state.Unmarshal([]byte(data))
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
	if _, err := s.db.ExecContext(ctx, s.putQuery, key, string(data), s.now().UTC()); err != nil {
		return fmt.Errorf("storing context %q: %w", key, err)
	}
	return nil
}

// Delete removes the context stored under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.deleteQuery, key); err != nil {
		return fmt.Errorf("deleting context %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}
