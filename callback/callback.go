// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stacklok/toolhive-oauth/async"
	"github.com/stacklok/toolhive-oauth/cel"
	"github.com/stacklok/toolhive-oauth/dancer"
	"github.com/stacklok/toolhive-oauth/expression"
	"github.com/stacklok/toolhive-oauth/httperr"
	"github.com/stacklok/toolhive-oauth/oauth"
	"github.com/stacklok/toolhive-oauth/recovery"
	"github.com/stacklok/toolhive-oauth/state"
)

// DefaultResourceOwnerExpr reads the resource owner id from the
// resourceOwnerId query parameter of the authorize request.
const DefaultResourceOwnerExpr = "#[attributes.queryParams.resourceOwnerId]"

// ErrAuthorizationDenied is returned when the authorization server redirects
// back with an error instead of a code.
var ErrAuthorizationDenied = errors.New("authorization denied")

// Authorizer builds authorization URLs for resource owners.
type Authorizer interface {
	AuthorizationURL(ownerID string) (string, error)
}

// Exchanger completes authorizations from callbacks.
type Exchanger interface {
	HandleCallback(ctx context.Context, cb dancer.CallbackRequest) *async.Future[*state.ResourceOwnerContext]
}

// SuccessFunc writes the response for a completed authorization.
type SuccessFunc func(w http.ResponseWriter, r *http.Request, rc *state.ResourceOwnerContext)

type options struct {
	logger    *slog.Logger
	ownerExpr string
	extractor *expression.Extractor
	success   SuccessFunc
}

// Option configures the handlers.
type Option func(*options)

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithResourceOwnerExpression sets the expression resolving the resource
// owner id of an authorize request. The default is DefaultResourceOwnerExpr.
func WithResourceOwnerExpression(expr string) Option {
	return func(o *options) {
		o.ownerExpr = expr
	}
}

// WithEvaluator sets the evaluator of the resource owner expression. The
// default is a CEL evaluator.
func WithEvaluator(e expression.Evaluator) Option {
	return func(o *options) {
		o.extractor = expression.NewExtractor(e)
	}
}

// WithSuccess sets the response written after a completed authorization.
// The default answers 200 with a short plain text message.
func WithSuccess(fn SuccessFunc) Option {
	return func(o *options) {
		o.success = fn
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		ownerExpr: DefaultResourceOwnerExpr,
		success:   writeSuccess,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.extractor == nil {
		o.extractor = expression.NewExtractor(cel.NewEvaluator())
	}
	return o
}

// NewAuthorizeHandler returns a handler that redirects the resource owner to
// the authorization server. The owner id is resolved from the request query
// and headers; a request naming no owner authorizes
// state.DefaultResourceOwnerID.
func NewAuthorizeHandler(a Authorizer, opts ...Option) http.Handler {
	o := newOptions(opts)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			httperr.Write(w, httperr.New("method not allowed", http.StatusMethodNotAllowed))
			return
		}

		in := &expression.Input{Header: r.Header, QueryParams: r.URL.Query()}
		owner, _, err := o.extractor.ExtractString(o.ownerExpr, in)
		if err != nil {
			o.logger.Error("failed to resolve resource owner", "error", err)
			httperr.Write(w, err)
			return
		}

		target, err := a.AuthorizationURL(owner)
		if err != nil {
			if errors.Is(err, dancer.ErrInvalidResourceOwner) {
				err = httperr.WithCode(err, http.StatusBadRequest)
			}
			o.logger.Warn("failed to build authorization URL", "resource_owner", owner, "error", err)
			httperr.Write(w, err)
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
	})
	return recovery.Middleware(o.logger, h)
}

// NewCallbackHandler returns the handler of the redirect URI. It exchanges
// the authorization code and waits for the tokens to be stored before
// answering.
func NewCallbackHandler(e Exchanger, opts ...Option) http.Handler {
	o := newOptions(opts)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			httperr.Write(w, httperr.New("method not allowed", http.StatusMethodNotAllowed))
			return
		}

		query := r.URL.Query()
		if code := query.Get(oauth.ParamError); code != "" {
			err := fmt.Errorf("%w: %s", ErrAuthorizationDenied, code)
			if desc := query.Get(oauth.ParamErrorDescription); desc != "" {
				err = fmt.Errorf("%w: %s", err, desc)
			}
			o.logger.Warn("authorization server returned an error", "error", err)
			httperr.Write(w, httperr.WithCode(err, http.StatusBadRequest))
			return
		}

		rc, err := e.HandleCallback(r.Context(), dancer.CallbackRequest{
			Code:        query.Get(oauth.ParamCode),
			State:       query.Get(oauth.ParamState),
			QueryParams: query,
		}).Await(r.Context())
		if err != nil {
			err = classify(err)
			o.logger.Warn("authorization callback failed", "status", httperr.Code(err), "error", err)
			httperr.Write(w, err)
			return
		}

		o.logger.Info("authorization completed", "resource_owner", rc.ResourceOwnerID)
		o.success(w, r, rc)
	})
	return recovery.Middleware(o.logger, h)
}

// classify attaches a status to callback errors that are the client's fault.
// Token errors carry their own status.
func classify(err error) error {
	switch {
	case errors.Is(err, dancer.ErrMissingAuthorizationCode),
		errors.Is(err, dancer.ErrInvalidState),
		errors.Is(err, dancer.ErrInvalidResourceOwner):
		return httperr.WithCode(err, http.StatusBadRequest)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return httperr.WithCode(err, http.StatusGatewayTimeout)
	default:
		return err
	}
}

func writeSuccess(w http.ResponseWriter, _ *http.Request, _ *state.ResourceOwnerContext) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Authorization completed. You can close this window.\n"))
}
