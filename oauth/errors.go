// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the token endpoint failure kinds. A *TokenError matches
// the sentinel of its kind with errors.Is.
var (
	// ErrTokenURLUnreachable is returned when the token endpoint could not be reached.
	ErrTokenURLUnreachable = errors.New("token URL unreachable")

	// ErrTokenURLResponse is returned when the token endpoint answered with an error status.
	ErrTokenURLResponse = errors.New("token URL returned an error response")

	// ErrTokenNotFound is returned when a successful token endpoint response carries no access token.
	ErrTokenNotFound = errors.New("access token not found in token URL response")
)

// ErrKind identifies the kind of a token endpoint failure.
type ErrKind string

const (
	// ErrKindTokenURLUnreachable marks network or transport failures, including timeouts.
	ErrKindTokenURLUnreachable ErrKind = "token_url_unreachable"
	// ErrKindTokenURLResponse marks responses with a status code of 400 or
	// above, and successful responses a field other than the access token
	// cannot be extracted from.
	ErrKindTokenURLResponse ErrKind = "token_url_response"
	// ErrKindTokenNotFound marks 2xx responses from which no access token could be extracted.
	ErrKindTokenNotFound ErrKind = "token_not_found"
)

func (k ErrKind) sentinel() error {
	switch k {
	case ErrKindTokenURLUnreachable:
		return ErrTokenURLUnreachable
	case ErrKindTokenURLResponse:
		return ErrTokenURLResponse
	case ErrKindTokenNotFound:
		return ErrTokenNotFound
	default:
		return nil
	}
}

// TokenError is the failure of a token exchange. Kind tells transport failures,
// error responses and responses without a token apart; the underlying cause,
// when there is one, is available through errors.Unwrap.
type TokenError struct {
	Kind ErrKind
	URL  string

	// StatusCode, Header and Body describe the response. They are empty for
	// ErrKindTokenURLUnreachable.
	StatusCode int
	Header     http.Header
	Body       string

	// Field names the response field that could not be extracted.
	Field string

	cause error
}

// NewTokenURLUnreachableError reports that url could not be reached.
func NewTokenURLUnreachableError(url string, cause error) *TokenError {
	return &TokenError{Kind: ErrKindTokenURLUnreachable, URL: url, cause: cause}
}

// NewTokenURLResponseError reports an error status from url. cause is set when
// the response body itself could not be read.
func NewTokenURLResponseError(url string, resp *http.Response, body string, cause error) *TokenError {
	return newResponseError(ErrKindTokenURLResponse, url, resp, body, cause)
}

// NewTokenNotFoundError reports a successful response from url without an access token.
func NewTokenNotFoundError(url string, resp *http.Response, body string, cause error) *TokenError {
	return newResponseError(ErrKindTokenNotFound, url, resp, body, cause)
}

// NewResponseFieldError reports a successful response from url from which
// field could not be extracted.
func NewResponseFieldError(url string, resp *http.Response, body, field string, cause error) *TokenError {
	e := newResponseError(ErrKindTokenURLResponse, url, resp, body, cause)
	e.Field = field
	return e
}

func newResponseError(kind ErrKind, url string, resp *http.Response, body string, cause error) *TokenError {
	e := &TokenError{Kind: kind, URL: url, Body: body, cause: cause}
	if resp != nil {
		e.StatusCode = resp.StatusCode
		e.Header = resp.Header.Clone()
	}
	return e
}

// Error implements the error interface.
func (e *TokenError) Error() string {
	var msg string
	switch e.Kind {
	case ErrKindTokenURLUnreachable:
		msg = fmt.Sprintf("token URL %s unreachable", e.URL)
	case ErrKindTokenURLResponse:
		if e.Field != "" {
			msg = fmt.Sprintf("cannot extract %s from response of token URL %s", e.Field, e.URL)
			break
		}
		msg = fmt.Sprintf("token URL %s returned status %d", e.URL, e.StatusCode)
		if e.Body != "" {
			msg += ": " + e.Body
		}
	case ErrKindTokenNotFound:
		msg = fmt.Sprintf("no access token found in response from token URL %s", e.URL)
	default:
		msg = fmt.Sprintf("token URL %s failed", e.URL)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *TokenError) Unwrap() error {
	return e.cause
}

// Is reports whether target is the sentinel error of e's kind.
func (e *TokenError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

// HTTPCode returns the status a server proxying this failure should answer with.
func (*TokenError) HTTPCode() int {
	return http.StatusBadGateway
}

// KindOf returns the kind of the first TokenError in err's chain.
func KindOf(err error) (ErrKind, bool) {
	var te *TokenError
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}
