// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package dancer_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-oauth/lock"
	"github.com/stacklok/toolhive-oauth/state"
)

// tokenEndpoint is an httptest token endpoint that records requests and the
// highest number of requests it served at once.
type tokenEndpoint struct {
	*httptest.Server

	mu       sync.Mutex
	requests []url.Values
	headers  []http.Header
	respond  func(form url.Values) (int, string)

	active    atomic.Int32
	maxActive atomic.Int32
	hold      func(form url.Values)
}

func newTokenEndpoint(t *testing.T) *tokenEndpoint {
	t.Helper()

	te := &tokenEndpoint{}
	te.respond = func(url.Values) (int, string) {
		return http.StatusOK, fmt.Sprintf(`{"access_token":"token-%d","expires_in":3600}`, te.count())
	}
	te.Server = httptest.NewServer(http.HandlerFunc(te.serve))
	t.Cleanup(te.Close)
	return te
}

func (te *tokenEndpoint) serve(w http.ResponseWriter, r *http.Request) {
	n := te.active.Add(1)
	defer te.active.Add(-1)
	for {
		m := te.maxActive.Load()
		if n <= m || te.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	body, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(body))

	te.mu.Lock()
	te.requests = append(te.requests, form)
	te.headers = append(te.headers, r.Header.Clone())
	respond, hold := te.respond, te.hold
	te.mu.Unlock()

	if hold != nil {
		hold(form)
	}
	status, payload := respond(form)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, payload)
}

func (te *tokenEndpoint) setResponse(fn func(form url.Values) (int, string)) {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.respond = fn
}

func (te *tokenEndpoint) setHold(fn func(form url.Values)) {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.hold = fn
}

func (te *tokenEndpoint) count() int {
	te.mu.Lock()
	defer te.mu.Unlock()
	return len(te.requests)
}

func (te *tokenEndpoint) lastForm(t *testing.T) url.Values {
	t.Helper()

	te.mu.Lock()
	defer te.mu.Unlock()
	require.NotEmpty(t, te.requests)
	return te.requests[len(te.requests)-1]
}

func (te *tokenEndpoint) lastHeader(t *testing.T) http.Header {
	t.Helper()

	te.mu.Lock()
	defer te.mu.Unlock()
	require.NotEmpty(t, te.headers)
	return te.headers[len(te.headers)-1]
}

// recordingLocks records the ids of the locks it hands out.
type recordingLocks struct {
	lock.LocalProvider

	mu  sync.Mutex
	ids []string
}

func (p *recordingLocks) NewLock(id string) lock.Lock {
	p.mu.Lock()
	p.ids = append(p.ids, id)
	p.mu.Unlock()
	return p.LocalProvider.NewLock(id)
}

func (p *recordingLocks) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}

var errStoreDown = errors.New("store down")

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (*state.ResourceOwnerContext, bool, error) {
	return nil, false, errStoreDown
}

func (failingStore) Put(context.Context, string, *state.ResourceOwnerContext) error {
	return errStoreDown
}

func (failingStore) Delete(context.Context, string) error {
	return errStoreDown
}

// events records listener notifications.
type events struct {
	mu   sync.Mutex
	list []string
}

func (e *events) add(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, fmt.Sprintf(format, args...))
}

func (e *events) get() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}
