// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package callback_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-oauth/async"
	"github.com/stacklok/toolhive-oauth/callback"
	"github.com/stacklok/toolhive-oauth/dancer"
	"github.com/stacklok/toolhive-oauth/expression/mocks"
	"github.com/stacklok/toolhive-oauth/logging"
	"github.com/stacklok/toolhive-oauth/oauth"
	"github.com/stacklok/toolhive-oauth/state"
)

type stubAuthorizer struct {
	mu     sync.Mutex
	owners []string
	err    error
}

func (s *stubAuthorizer) AuthorizationURL(ownerID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners = append(s.owners, ownerID)
	if s.err != nil {
		return "", s.err
	}
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(dancer.EncodeState("st", ownerID)), nil
}

type stubExchanger func(ctx context.Context, cb dancer.CallbackRequest) *async.Future[*state.ResourceOwnerContext]

func (f stubExchanger) HandleCallback(ctx context.Context, cb dancer.CallbackRequest) *async.Future[*state.ResourceOwnerContext] {
	return f(ctx, cb)
}

func failWith(err error) stubExchanger {
	return func(context.Context, dancer.CallbackRequest) *async.Future[*state.ResourceOwnerContext] {
		return async.Failed[*state.ResourceOwnerContext](err)
	}
}

func serve(h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthorizeHandler_Redirects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		opts      []callback.Option
		target    string
		header    http.Header
		wantOwner string
	}{
		{
			name:      "owner from query",
			target:    "/authorize?resourceOwnerId=alice",
			wantOwner: "alice",
		},
		{
			name:      "no owner",
			target:    "/authorize",
			wantOwner: "",
		},
		{
			name:      "owner from header",
			opts:      []callback.Option{callback.WithResourceOwnerExpression("#[attributes.headers['x-user']]")},
			target:    "/authorize",
			header:    http.Header{"X-User": {"bob"}},
			wantOwner: "bob",
		},
		{
			name:      "literal owner",
			opts:      []callback.Option{callback.WithResourceOwnerExpression("service-account")},
			target:    "/authorize?resourceOwnerId=alice",
			wantOwner: "service-account",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := &stubAuthorizer{}
			rec := serve(callback.NewAuthorizeHandler(a, tt.opts...), http.MethodGet, tt.target, tt.header)

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, []string{tt.wantOwner}, a.owners)
			assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "https://idp.example.com/authorize?"))
		})
	}
}

func TestAuthorizeHandler_Errors(t *testing.T) {
	t.Parallel()

	t.Run("invalid owner", func(t *testing.T) {
		t.Parallel()
		a := &stubAuthorizer{err: fmt.Errorf("%w: empty key", dancer.ErrInvalidResourceOwner)}
		rec := serve(callback.NewAuthorizeHandler(a), http.MethodGet, "/authorize?resourceOwnerId=x", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid resource owner")
	})

	t.Run("authorization URL failure", func(t *testing.T) {
		t.Parallel()
		a := &stubAuthorizer{err: errors.New("parsing authorization URL")}
		rec := serve(callback.NewAuthorizeHandler(a), http.MethodGet, "/authorize", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Internal Server Error\n", rec.Body.String())
	})

	t.Run("expression failure", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		evaluator := mocks.NewMockEvaluator(ctrl)
		evaluator.EXPECT().IsExpression(callback.DefaultResourceOwnerExpr).Return(true)
		evaluator.EXPECT().Evaluate(callback.DefaultResourceOwnerExpr, gomock.Any()).Return(nil, errors.New("no such overload"))

		a := &stubAuthorizer{}
		rec := serve(callback.NewAuthorizeHandler(a, callback.WithEvaluator(evaluator)), http.MethodGet, "/authorize", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Empty(t, a.owners)
	})

	t.Run("method not allowed", func(t *testing.T) {
		t.Parallel()
		rec := serve(callback.NewAuthorizeHandler(&stubAuthorizer{}), http.MethodPost, "/authorize", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
	})
}

func TestCallbackHandler_PassesQuery(t *testing.T) {
	t.Parallel()

	var got dancer.CallbackRequest
	e := stubExchanger(func(_ context.Context, cb dancer.CallbackRequest) *async.Future[*state.ResourceOwnerContext] {
		got = cb
		rc := state.NewResourceOwnerContext("alice", nil)
		rc.AccessToken = "at"
		return async.Completed(rc)
	})

	var logs bytes.Buffer
	h := callback.NewCallbackHandler(e, callback.WithLogger(logging.New(logging.WithOutput(&logs))))
	rec := serve(h, http.MethodGet, "/callback?code=abc&state=st%3AresourceOwnerId%3Dalice&session_state=s1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authorization completed")
	assert.Equal(t, "abc", got.Code)
	assert.Equal(t, "st:resourceOwnerId=alice", got.State)
	assert.Equal(t, "s1", got.QueryParams.Get("session_state"))
	assert.Contains(t, logs.String(), `"resource_owner":"alice"`)
}

func TestCallbackHandler_CustomSuccess(t *testing.T) {
	t.Parallel()

	e := stubExchanger(func(context.Context, dancer.CallbackRequest) *async.Future[*state.ResourceOwnerContext] {
		return async.Completed(state.NewResourceOwnerContext("alice", nil))
	})
	h := callback.NewCallbackHandler(e, callback.WithSuccess(func(w http.ResponseWriter, r *http.Request, rc *state.ResourceOwnerContext) {
		http.Redirect(w, r, "/done?owner="+rc.ResourceOwnerID, http.StatusSeeOther)
	}))

	rec := serve(h, http.MethodGet, "/callback?code=abc", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/done?owner=alice", rec.Header().Get("Location"))
}

func TestCallbackHandler_Errors(t *testing.T) {
	t.Parallel()

	tokenURL := "https://idp.example.com/token"
	resp := &http.Response{StatusCode: http.StatusBadRequest, Header: http.Header{}}

	tests := []struct {
		name     string
		exchange stubExchanger
		target   string
		method   string
		wantCode int
		wantBody string
	}{
		{
			name:     "authorization denied",
			exchange: failWith(errors.New("must not be called")),
			target:   "/callback?error=access_denied&error_description=user+said+no",
			wantCode: http.StatusBadRequest,
			wantBody: "authorization denied: access_denied: user said no\n",
		},
		{
			name:     "missing code",
			exchange: failWith(dancer.ErrMissingAuthorizationCode),
			target:   "/callback?state=x",
			wantCode: http.StatusBadRequest,
			wantBody: "authorization code missing from callback\n",
		},
		{
			name:     "invalid state",
			exchange: failWith(fmt.Errorf("%w: got %q", dancer.ErrInvalidState, "forged")),
			target:   "/callback?code=abc&state=forged",
			wantCode: http.StatusBadRequest,
			wantBody: "invalid state in callback: got \"forged\"\n",
		},
		{
			name:     "token endpoint failure",
			exchange: failWith(oauth.NewTokenURLResponseError(tokenURL, resp, `{"error":"invalid_grant"}`, nil)),
			target:   "/callback?code=abc",
			wantCode: http.StatusBadGateway,
			wantBody: "Bad Gateway\n",
		},
		{
			name:     "before dance failure",
			exchange: failWith(errors.New("before dance callback: tenant disabled")),
			target:   "/callback?code=abc",
			wantCode: http.StatusInternalServerError,
			wantBody: "Internal Server Error\n",
		},
		{
			name:     "method not allowed",
			exchange: failWith(errors.New("must not be called")),
			target:   "/callback?code=abc",
			method:   http.MethodPost,
			wantCode: http.StatusMethodNotAllowed,
			wantBody: "method not allowed\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := serve(callback.NewCallbackHandler(tt.exchange), method, tt.target, nil)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestCallbackHandler_RecoversPanics(t *testing.T) {
	t.Parallel()

	e := stubExchanger(func(context.Context, dancer.CallbackRequest) *async.Future[*state.ResourceOwnerContext] {
		panic("broken exchanger")
	})

	var logs bytes.Buffer
	h := callback.NewCallbackHandler(e, callback.WithLogger(logging.New(logging.WithOutput(&logs))))
	rec := serve(h, http.MethodGet, "/callback?code=abc", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logs.String(), "broken exchanger")
}

func TestCallbackHandler_RequestCanceled(t *testing.T) {
	t.Parallel()

	pending, _ := async.New[*state.ResourceOwnerContext]()
	e := stubExchanger(func(context.Context, dancer.CallbackRequest) *async.Future[*state.ResourceOwnerContext] {
		return pending
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/callback?code=abc", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	callback.NewCallbackHandler(e).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestHandlers_EndToEnd(t *testing.T) {
	t.Parallel()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"at-%s","refresh_token":"rt-%s","expires_in":60}`,
			form.Get(oauth.ParamCode), form.Get(oauth.ParamCode))
	}))
	t.Cleanup(tokenServer.Close)

	d, err := dancer.NewAuthorizationCodeDancer(dancer.AuthorizationCodeConfig{
		Config: dancer.Config{
			Name:         "e2e",
			ClientID:     "client",
			ClientSecret: "s3cret",
			TokenURL:     tokenServer.URL,
		},
		AuthorizationURL:    "https://idp.example.com/authorize",
		ExternalCallbackURL: "http://localhost:8080/callback",
	})
	require.NoError(t, err)
	require.NoError(t, d.Start())
	t.Cleanup(func() { _ = d.Stop() })

	rec := serve(callback.NewAuthorizeHandler(d), http.MethodGet, "/authorize?resourceOwnerId=alice", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	st := location.Query().Get(oauth.ParamState)
	require.Contains(t, st, ":resourceOwnerId=alice")

	target := "/callback?" + url.Values{oauth.ParamCode: {"abc"}, oauth.ParamState: {st}}.Encode()
	rec = serve(callback.NewCallbackHandler(d), http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	token, err := d.AccessToken(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "at-abc", token)
}
