// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-oauth/transport"
)

func startedClient(t *testing.T) *transport.HTTPClient {
	t.Helper()

	c := transport.NewHTTPClient()
	require.NoError(t, c.Start())
	t.Cleanup(func() { _ = c.Stop() })
	return c
}

func post(t *testing.T, url string) *http.Request {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader("grant_type=client_credentials"))
	require.NoError(t, err)
	return req
}

func TestHTTPClient_SendAsync(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("echo:" + string(body)))
	}))
	defer srv.Close()

	resp, err := startedClient(t).SendAsync(context.Background(), post(t, srv.URL), transport.Options{}).Result()
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "echo:grant_type=client_credentials", string(body))
}

func TestHTTPClient_Redirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := startedClient(t)

	resp, err := c.SendAsync(context.Background(), post(t, srv.URL+"/old"), transport.Options{FollowRedirects: true}).Result()
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "grant_type=client_credentials", string(body))

	resp, err = c.SendAsync(context.Background(), post(t, srv.URL+"/old"), transport.Options{}).Result()
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
}

func TestHTTPClient_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := startedClient(t).SendAsync(context.Background(), post(t, srv.URL),
		transport.Options{Timeout: 50 * time.Millisecond}).Result()
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHTTPClient_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := startedClient(t).SendAsync(context.Background(), post(t, url), transport.Options{}).Result()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POST")
}

func TestHTTPClient_Lifecycle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := transport.NewHTTPClient()
	_, err := c.SendAsync(context.Background(), post(t, srv.URL), transport.Options{}).Result()
	require.ErrorIs(t, err, transport.ErrNotStarted)

	require.NoError(t, c.Start())
	require.NoError(t, c.Start())
	resp, err := c.SendAsync(context.Background(), post(t, srv.URL), transport.Options{}).Result()
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
	_, err = c.SendAsync(context.Background(), post(t, srv.URL), transport.Options{}).Result()
	require.ErrorIs(t, err, transport.ErrStopped)
	require.ErrorIs(t, c.Start(), transport.ErrStopped)
}
