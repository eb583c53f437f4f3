// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stacklok/toolhive-oauth/async"
	"github.com/stacklok/toolhive-oauth/expression"
	"github.com/stacklok/toolhive-oauth/oauth"
	"github.com/stacklok/toolhive-oauth/transport"
)

// MaxResponseBodySize caps the token endpoint response body that is read.
const MaxResponseBodySize = 1 << 20

// Default extraction expressions for RFC 6749 JSON token responses.
const (
	DefaultAccessTokenExpr  = "#[payload.access_token]"
	DefaultRefreshTokenExpr = "#[payload.refresh_token]"
	DefaultExpiresInExpr    = "#[payload.expires_in]"
)

// ErrResponseTooLarge is the cause of a failure to read an oversized response body.
var ErrResponseTooLarge = errors.New("token response body too large")

// Expressions configure how fields are extracted from token responses.
type Expressions struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    string

	// CustomParameters maps the key stored in the context's custom response
	// parameters to the expression that extracts it.
	CustomParameters map[string]string
}

// DefaultExpressions returns the expressions for standard JSON token responses.
func DefaultExpressions() Expressions {
	return Expressions{
		AccessToken:  DefaultAccessTokenExpr,
		RefreshToken: DefaultRefreshTokenExpr,
		ExpiresIn:    DefaultExpiresInExpr,
	}
}

// Request is one call to a token endpoint.
type Request struct {
	TokenURL string
	Form     map[string]string

	// Authorization is sent as the Authorization header when not empty.
	Authorization string
	Headers       map[string]string

	// RetrieveRefreshToken extracts a refresh token from the response.
	RetrieveRefreshToken bool

	// Encoding is the charset of the form body. Empty selects DefaultEncoding.
	Encoding string

	// QueryParams are the callback query parameters of an authorization code
	// exchange, made available to the extraction expressions.
	QueryParams url.Values
}

// TokenResponse holds the fields extracted from a successful exchange.
type TokenResponse struct {
	AccessToken              string
	RefreshToken             string
	ExpiresIn                string
	CustomResponseParameters map[string]any
}

// Client performs token exchanges.
type Client struct {
	transport transport.Client
	extractor *expression.Extractor
	exprs     Expressions
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTimeout overrides the exchange timeout. The default is transport.DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient returns a Client sending requests through t and extracting
// fields with x according to exprs.
func NewClient(t transport.Client, x *expression.Extractor, exprs Expressions, opts ...Option) *Client {
	c := &Client{
		transport: t,
		extractor: x,
		exprs:     exprs,
		timeout:   transport.DefaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange posts req to its token endpoint. The Future fails with an
// *oauth.TokenError when the endpoint cannot be reached, answers with a
// status of 400 or above, or answers without an access token.
func (c *Client) Exchange(ctx context.Context, req Request) *async.Future[*TokenResponse] {
	httpReq, err := newHTTPRequest(ctx, req)
	if err != nil {
		return async.Failed[*TokenResponse](err)
	}

	c.logger.Debug("sending token request", "token_url", req.TokenURL, "grant_type", req.Form[oauth.ParamGrantType])
	sent := c.transport.SendAsync(ctx, httpReq, transport.Options{Timeout: c.timeout, FollowRedirects: true})

	return async.Go(func() (*TokenResponse, error) {
		resp, err := sent.Result()
		if err != nil {
			return nil, oauth.NewTokenURLUnreachableError(req.TokenURL, err)
		}
		return c.handleResponse(req, resp)
	})
}

func newHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	encoding := req.Encoding
	if encoding == "" {
		encoding = DefaultEncoding
	}
	body, err := EncodeForm(req.Form, encoding)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.TokenURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building token request for %s: %w", req.TokenURL, err)
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}
	httpReq.Header.Set("Content-Type", oauth.ContentTypeForm+"; charset="+encoding)
	if req.Authorization != "" {
		httpReq.Header.Set("Authorization", req.Authorization)
	}
	return httpReq, nil
}

func (c *Client) handleResponse(req Request, resp *http.Response) (*TokenResponse, error) {
	defer resp.Body.Close()

	mediaType := expression.ParseMediaType(resp.Header.Get("Content-Type"))
	charset := mediaType.Charset()
	if charset == "" {
		charset = req.Encoding
	}
	body, readErr := readBody(resp.Body, charset)

	if resp.StatusCode >= http.StatusBadRequest || readErr != nil {
		c.logger.Debug("token request failed", "token_url", req.TokenURL, "status", resp.StatusCode)
		return nil, oauth.NewTokenURLResponseError(req.TokenURL, resp, body, readErr)
	}

	in := &expression.Input{
		Body:        body,
		Header:      resp.Header,
		MediaType:   mediaType,
		QueryParams: req.QueryParams,
	}

	accessToken, ok, err := c.extractor.ExtractString(c.exprs.AccessToken, in)
	if err != nil || !ok {
		return nil, oauth.NewTokenNotFoundError(req.TokenURL, resp, body, err)
	}
	tr := &TokenResponse{AccessToken: accessToken}

	if req.RetrieveRefreshToken {
		if tr.RefreshToken, _, err = c.extractor.ExtractString(c.exprs.RefreshToken, in); err != nil {
			return nil, oauth.NewResponseFieldError(req.TokenURL, resp, body, "refresh token", err)
		}
	}
	if tr.ExpiresIn, _, err = c.extractor.ExtractString(c.exprs.ExpiresIn, in); err != nil {
		return nil, oauth.NewResponseFieldError(req.TokenURL, resp, body, "expires in", err)
	}
	if len(c.exprs.CustomParameters) > 0 {
		if tr.CustomResponseParameters, err = c.extractor.ExtractAll(c.exprs.CustomParameters, in); err != nil {
			return nil, oauth.NewResponseFieldError(req.TokenURL, resp, body, "custom parameters", err)
		}
	}

	c.logger.Debug("token request succeeded", "token_url", req.TokenURL, "status", resp.StatusCode)
	return tr, nil
}

// readBody reads at most MaxResponseBodySize bytes and decodes them from
// charset. What was read is returned even when reading fails.
func readBody(r io.Reader, charset string) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxResponseBodySize+1))
	if err != nil {
		return string(raw), fmt.Errorf("reading token response: %w", err)
	}
	if len(raw) > MaxResponseBodySize {
		return string(raw[:MaxResponseBodySize]), ErrResponseTooLarge
	}

	decoder, err := decodeText(strings.NewReader(string(raw)), charset)
	if err != nil {
		// Unknown response charsets fall back to the raw bytes.
		return string(raw), nil
	}
	text, err := io.ReadAll(decoder)
	if err != nil {
		return string(raw), fmt.Errorf("decoding token response: %w", err)
	}
	return string(text), nil
}
