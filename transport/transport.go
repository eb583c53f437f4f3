// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/stacklok/toolhive-oauth/async"
)

// DefaultTimeout bounds a token exchange from sending the request to reading
// the last byte of the response.
const DefaultTimeout = 60 * time.Second

var (
	// ErrNotStarted is returned by SendAsync before Start has been called.
	ErrNotStarted = errors.New("transport not started")
	// ErrStopped is returned by SendAsync after Stop has been called.
	ErrStopped = errors.New("transport stopped")
)

// Options control a single request.
type Options struct {
	// Timeout bounds the whole exchange. Zero selects DefaultTimeout.
	Timeout time.Duration
	// FollowRedirects makes the client follow 3xx responses.
	FollowRedirects bool
}

// Client sends HTTP requests asynchronously. The dancers call Start and Stop
// from their own lifecycle.
type Client interface {
	Start() error
	Stop() error
	// SendAsync sends req and returns a Future for the response. The caller
	// must close the response body. Transport failures, including timeouts,
	// fail the Future.
	SendAsync(ctx context.Context, req *http.Request, opts Options) *async.Future[*http.Response]
}

// HTTPClient is the Client implementation over net/http.
type HTTPClient struct {
	base   *http.Client
	logger *slog.Logger

	mu       sync.Mutex
	started  bool
	stopped  bool
	inFlight sync.WaitGroup
}

var _ Client = (*HTTPClient)(nil)

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient sets the underlying client. Its Timeout and CheckRedirect
// are overridden per request.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) {
		h.base = c
	}
}

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(h *HTTPClient) {
		h.logger = l
	}
}

// NewHTTPClient returns a stopped HTTPClient.
func NewHTTPClient(opts ...Option) *HTTPClient {
	h := &HTTPClient{
		base:   &http.Client{Transport: http.DefaultTransport},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start allows requests to be sent. Starting a started client is a no-op.
func (h *HTTPClient) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return ErrStopped
	}
	h.started = true
	return nil
}

// Stop rejects new requests, waits for requests in flight to receive their
// responses and closes idle connections.
func (h *HTTPClient) Stop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil
	}
	h.stopped = true
	h.mu.Unlock()

	h.inFlight.Wait()
	h.base.CloseIdleConnections()
	return nil
}

// SendAsync sends req on a new goroutine. The deadline of the exchange also
// covers reading the body; closing the body releases it.
func (h *HTTPClient) SendAsync(ctx context.Context, req *http.Request, opts Options) *async.Future[*http.Response] {
	if err := h.acquire(); err != nil {
		return async.Failed[*http.Response](err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := h.clientFor(opts)

	return async.Go(func() (*http.Response, error) {
		defer h.inFlight.Done()

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		resp, err := client.Do(req.WithContext(reqCtx))
		if err != nil {
			cancel()
			h.logger.Debug("request failed", "method", req.Method, "url", req.URL.Redacted(), "error", err)
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
		}
		h.logger.Debug("request completed",
			"method", req.Method,
			"url", req.URL.Redacted(),
			"status", resp.StatusCode,
			"duration", time.Since(start),
		)
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	})
}

func (h *HTTPClient) acquire() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.stopped:
		return ErrStopped
	case !h.started:
		return ErrNotStarted
	}
	h.inFlight.Add(1)
	return nil
}

func (h *HTTPClient) clientFor(opts Options) *http.Client {
	c := *h.base
	c.Timeout = 0
	if opts.FollowRedirects {
		c.CheckRedirect = nil
	} else {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return &c
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.once.Do(c.cancel)
	return err
}
