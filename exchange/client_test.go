// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package exchange_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-oauth/cel"
	"github.com/stacklok/toolhive-oauth/exchange"
	"github.com/stacklok/toolhive-oauth/expression"
	"github.com/stacklok/toolhive-oauth/oauth"
	"github.com/stacklok/toolhive-oauth/transport"
)

type recordedRequest struct {
	header http.Header
	form   url.Values
	body   string
}

type tokenServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

func newTokenServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *tokenServer {
	t.Helper()

	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{header: r.Header.Clone(), form: form, body: string(body)})
		ts.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) last(t *testing.T) recordedRequest {
	t.Helper()

	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.NotEmpty(t, ts.requests)
	return ts.requests[len(ts.requests)-1]
}

func jsonHandler(status int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newClient(t *testing.T, exprs exchange.Expressions) *exchange.Client {
	t.Helper()

	tr := transport.NewHTTPClient()
	require.NoError(t, tr.Start())
	t.Cleanup(func() { _ = tr.Stop() })
	return exchange.NewClient(tr, expression.NewExtractor(cel.NewEvaluator()), exprs)
}

func TestClient_Exchange(t *testing.T) {
	t.Parallel()

	srv := newTokenServer(t, jsonHandler(http.StatusOK,
		`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600,"scope":"read write"}`))

	exprs := exchange.DefaultExpressions()
	exprs.CustomParameters = map[string]string{
		"scope":  "#[payload.scope]",
		"absent": "#[payload.missing]",
		"static": "fixed",
	}
	c := newClient(t, exprs)

	resp, err := c.Exchange(context.Background(), exchange.Request{
		TokenURL: srv.URL,
		Form: map[string]string{
			oauth.ParamGrantType: oauth.GrantTypeClientCredentials,
			oauth.ParamScope:     "read write",
		},
		Authorization:        exchange.BasicAuthorization("client", "s3cret"),
		Headers:              map[string]string{"X-Tenant": "acme"},
		RetrieveRefreshToken: true,
	}).Result()
	require.NoError(t, err)

	assert.Equal(t, "at-1", resp.AccessToken)
	assert.Equal(t, "rt-1", resp.RefreshToken)
	assert.Equal(t, "3600", resp.ExpiresIn)
	assert.Equal(t, map[string]any{"scope": "read write", "static": "fixed"}, resp.CustomResponseParameters)

	got := srv.last(t)
	assert.Equal(t, "Basic Y2xpZW50OnMzY3JldA==", got.header.Get("Authorization"))
	assert.Equal(t, "acme", got.header.Get("X-Tenant"))
	assert.Equal(t, "application/x-www-form-urlencoded; charset=UTF-8", got.header.Get("Content-Type"))
	assert.Equal(t, "grant_type=client_credentials&scope=read+write", got.body)
}

func TestClient_Exchange_CredentialsInBody(t *testing.T) {
	t.Parallel()

	srv := newTokenServer(t, jsonHandler(http.StatusOK, `{"access_token":"at"}`))
	c := newClient(t, exchange.DefaultExpressions())

	resp, err := c.Exchange(context.Background(), exchange.Request{
		TokenURL: srv.URL,
		Form: map[string]string{
			oauth.ParamGrantType:    oauth.GrantTypeClientCredentials,
			oauth.ParamClientID:     "client",
			oauth.ParamClientSecret: "s3cret",
		},
	}).Result()
	require.NoError(t, err)
	assert.Equal(t, "at", resp.AccessToken)
	assert.Empty(t, resp.RefreshToken)
	assert.Nil(t, resp.CustomResponseParameters)

	got := srv.last(t)
	assert.Empty(t, got.header.Get("Authorization"))
	assert.Equal(t, "client", got.form.Get(oauth.ParamClientID))
	assert.Equal(t, "s3cret", got.form.Get(oauth.ParamClientSecret))
}

func TestClient_Exchange_RefreshTokenNotRequested(t *testing.T) {
	t.Parallel()

	srv := newTokenServer(t, jsonHandler(http.StatusOK, `{"access_token":"at","refresh_token":"rt"}`))
	c := newClient(t, exchange.DefaultExpressions())

	resp, err := c.Exchange(context.Background(), exchange.Request{TokenURL: srv.URL}).Result()
	require.NoError(t, err)
	assert.Empty(t, resp.RefreshToken)
}

func TestClient_Exchange_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		kind     oauth.ErrKind
		sentinel error
		inBody   string
	}{
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `{"error":"server_error"}`,
			kind:     oauth.ErrKindTokenURLResponse,
			sentinel: oauth.ErrTokenURLResponse,
			inBody:   "server_error",
		},
		{
			name:     "bad request",
			status:   http.StatusBadRequest,
			body:     `{"error":"invalid_client"}`,
			kind:     oauth.ErrKindTokenURLResponse,
			sentinel: oauth.ErrTokenURLResponse,
			inBody:   "invalid_client",
		},
		{
			name:     "no access token",
			status:   http.StatusOK,
			body:     `{"token_type":"bearer"}`,
			kind:     oauth.ErrKindTokenNotFound,
			sentinel: oauth.ErrTokenNotFound,
			inBody:   "bearer",
		},
		{
			name:     "empty access token",
			status:   http.StatusOK,
			body:     `{"access_token":""}`,
			kind:     oauth.ErrKindTokenNotFound,
			sentinel: oauth.ErrTokenNotFound,
		},
		{
			name:     "not json",
			status:   http.StatusOK,
			body:     `<html>hello</html>`,
			kind:     oauth.ErrKindTokenNotFound,
			sentinel: oauth.ErrTokenNotFound,
			inBody:   "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newTokenServer(t, jsonHandler(tt.status, tt.body))
			c := newClient(t, exchange.DefaultExpressions())

			_, err := c.Exchange(context.Background(), exchange.Request{TokenURL: srv.URL}).Result()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var te *oauth.TokenError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.kind, te.Kind)
			assert.Equal(t, tt.status, te.StatusCode)
			assert.Equal(t, srv.URL, te.URL)
			assert.Contains(t, te.Body, tt.inBody)
		})
	}
}

func TestClient_Exchange_FieldExtractionFailures(t *testing.T) {
	t.Parallel()

	body := `{"access_token":"at","refresh_token":{"nested":true},"expires_in":3600}`
	tests := []struct {
		name   string
		exprs  func(*exchange.Expressions)
		field  string
		target error
	}{
		{
			name: "expires in evaluation error",
			exprs: func(e *exchange.Expressions) {
				e.RefreshToken = "#[payload.access_token]"
				e.ExpiresIn = `#[payload.expires_in + "s"]`
			},
			field:  "expires in",
			target: cel.ErrEvaluation,
		},
		{
			name:   "refresh token not a string",
			exprs:  func(*exchange.Expressions) {},
			field:  "refresh token",
			target: expression.ErrNotAString,
		},
		{
			name: "custom parameter evaluation error",
			exprs: func(e *exchange.Expressions) {
				e.RefreshToken = "#[payload.access_token]"
				e.CustomParameters = map[string]string{"bad": "#[payload.access_token * 2]"}
			},
			field:  "custom parameters",
			target: cel.ErrEvaluation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newTokenServer(t, jsonHandler(http.StatusOK, body))
			exprs := exchange.DefaultExpressions()
			tt.exprs(&exprs)
			c := newClient(t, exprs)

			_, err := c.Exchange(context.Background(), exchange.Request{
				TokenURL:             srv.URL,
				RetrieveRefreshToken: true,
			}).Result()
			require.ErrorIs(t, err, oauth.ErrTokenURLResponse)
			require.ErrorIs(t, err, tt.target)

			var te *oauth.TokenError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.field, te.Field)
			assert.Equal(t, http.StatusOK, te.StatusCode)
			assert.Equal(t, body, te.Body)
			assert.Contains(t, err.Error(), "cannot extract "+tt.field)
		})
	}
}

func TestClient_Exchange_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	tokenURL := srv.URL
	srv.Close()

	c := newClient(t, exchange.DefaultExpressions())
	_, err := c.Exchange(context.Background(), exchange.Request{TokenURL: tokenURL}).Result()
	require.ErrorIs(t, err, oauth.ErrTokenURLUnreachable)

	kind, ok := oauth.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, oauth.ErrKindTokenURLUnreachable, kind)
}

func TestClient_Exchange_NotStartedIsUnreachable(t *testing.T) {
	t.Parallel()

	srv := newTokenServer(t, jsonHandler(http.StatusOK, `{"access_token":"at"}`))
	c := exchange.NewClient(transport.NewHTTPClient(), expression.NewExtractor(cel.NewEvaluator()), exchange.DefaultExpressions())

	_, err := c.Exchange(context.Background(), exchange.Request{TokenURL: srv.URL}).Result()
	require.ErrorIs(t, err, oauth.ErrTokenURLUnreachable)
	assert.ErrorIs(t, err, transport.ErrNotStarted)
}

func TestClient_Exchange_FollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/v2/token", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/v2/token", jsonHandler(http.StatusOK, `{"access_token":"moved"}`))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClient(t, exchange.DefaultExpressions())
	resp, err := c.Exchange(context.Background(), exchange.Request{TokenURL: srv.URL + "/token"}).Result()
	require.NoError(t, err)
	assert.Equal(t, "moved", resp.AccessToken)
}

func TestClient_Exchange_FormAndHeaderResponses(t *testing.T) {
	t.Parallel()

	srv := newTokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		w.Header().Set("X-Expires", "120")
		_, _ = io.WriteString(w, "access_token=form-token&refresh_token=form-refresh")
	})

	c := newClient(t, exchange.Expressions{
		AccessToken:  exchange.DefaultAccessTokenExpr,
		RefreshToken: exchange.DefaultRefreshTokenExpr,
		ExpiresIn:    "#[attributes.headers['x-expires']]",
	})
	resp, err := c.Exchange(context.Background(), exchange.Request{TokenURL: srv.URL, RetrieveRefreshToken: true}).Result()
	require.NoError(t, err)
	assert.Equal(t, "form-token", resp.AccessToken)
	assert.Equal(t, "form-refresh", resp.RefreshToken)
	assert.Equal(t, "120", resp.ExpiresIn)
}

func TestClient_Exchange_QueryParams(t *testing.T) {
	t.Parallel()

	srv := newTokenServer(t, jsonHandler(http.StatusOK, `{"access_token":"at"}`))
	c := newClient(t, exchange.Expressions{
		AccessToken: exchange.DefaultAccessTokenExpr,
		CustomParameters: map[string]string{
			"tenant": "#[attributes.queryParams.tenant]",
		},
	})

	resp, err := c.Exchange(context.Background(), exchange.Request{
		TokenURL:    srv.URL,
		QueryParams: url.Values{"tenant": {"acme"}, "code": {"abc"}},
	}).Result()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"tenant": "acme"}, resp.CustomResponseParameters)
}

func TestClient_Exchange_Encoding(t *testing.T) {
	t.Parallel()

	srv := newTokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=ISO-8859-1")
		// "café" in Latin-1.
		_, _ = w.Write([]byte("{\"access_token\":\"caf\xe9\"}"))
	})
	c := newClient(t, exchange.DefaultExpressions())

	resp, err := c.Exchange(context.Background(), exchange.Request{
		TokenURL: srv.URL,
		Form:     map[string]string{"name": "café"},
		Encoding: "ISO-8859-1",
	}).Result()
	require.NoError(t, err)
	assert.Equal(t, "café", resp.AccessToken)

	got := srv.last(t)
	assert.Equal(t, "name=caf%E9", got.body)
	assert.Equal(t, "application/x-www-form-urlencoded; charset=ISO-8859-1", got.header.Get("Content-Type"))
}

func TestClient_Exchange_UnsupportedEncoding(t *testing.T) {
	t.Parallel()

	c := newClient(t, exchange.DefaultExpressions())
	_, err := c.Exchange(context.Background(), exchange.Request{
		TokenURL: "http://127.0.0.1:1/token",
		Form:     map[string]string{"a": "b"},
		Encoding: "not-a-charset",
	}).Result()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported encoding")
	_, isTokenErr := oauth.KindOf(err)
	assert.False(t, isTokenErr)
}

func TestClient_Exchange_BodyTooLarge(t *testing.T) {
	t.Parallel()

	srv := newTokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, strings.Repeat("x", exchange.MaxResponseBodySize+10))
	})
	c := newClient(t, exchange.DefaultExpressions())

	_, err := c.Exchange(context.Background(), exchange.Request{TokenURL: srv.URL}).Result()
	require.ErrorIs(t, err, oauth.ErrTokenURLResponse)
	assert.ErrorIs(t, err, exchange.ErrResponseTooLarge)
}
