// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package httperr

import (
	"errors"
	"net/http"
)

// Coder is implemented by errors that know the HTTP status they should be
// answered with, such as *oauth.TokenError.
type Coder interface {
	HTTPCode() int
}

// CodedError wraps an error with an HTTP status code.
type CodedError struct {
	err  error
	code int
}

var _ Coder = (*CodedError)(nil)

// Error implements the error interface.
func (e *CodedError) Error() string {
	return e.err.Error()
}

// Unwrap returns the underlying error.
func (e *CodedError) Unwrap() error {
	return e.err
}

// HTTPCode implements Coder.
func (e *CodedError) HTTPCode() int {
	return e.code
}

// WithCode wraps err with code. It returns nil when err is nil.
func WithCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return &CodedError{err: err, code: code}
}

// New returns an error with message and code.
func New(message string, code int) error {
	return &CodedError{err: errors.New(message), code: code}
}

// Code returns the status of the first Coder in err's chain. It returns
// http.StatusOK for a nil error and http.StatusInternalServerError when no
// error in the chain carries a code.
func Code(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var coder Coder
	if errors.As(err, &coder) {
		return coder.HTTPCode()
	}

	return http.StatusInternalServerError
}

// Write answers the request with err's status. Server errors are answered
// with the status text only so that upstream details stay in the logs.
func Write(w http.ResponseWriter, err error) {
	code := Code(err)
	msg := http.StatusText(code)
	if code < http.StatusInternalServerError && err != nil {
		msg = err.Error()
	}
	http.Error(w, msg, code)
}
