// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Limits applied to custom headers sent to token endpoints.
const (
	MaxHeaderNameLength  = 256
	MaxHeaderValueLength = 8192
)

// ErrInvalidHeader is wrapped by every header validation failure.
var ErrInvalidHeader = errors.New("invalid HTTP header")

// ErrInvalidEndpoint is wrapped by every endpoint URL validation failure.
var ErrInvalidEndpoint = errors.New("invalid endpoint URL")

// reservedHeaders are set by the token exchange itself and cannot be overridden.
var reservedHeaders = []string{"Content-Type", "Content-Length", "Host"}

// ValidateHeaderName checks that name is an RFC 7230 token of bounded length.
func ValidateHeaderName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidHeader)
	case len(name) > MaxHeaderNameLength:
		return fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidHeader, MaxHeaderNameLength)
	case !httpguts.ValidHeaderFieldName(name):
		return fmt.Errorf("%w: name %q contains invalid characters", ErrInvalidHeader, name)
	}
	return nil
}

// ValidateHeaderValue checks that value has no control characters and is of
// bounded length. Empty values are accepted.
func ValidateHeaderValue(value string) error {
	switch {
	case len(value) > MaxHeaderValueLength:
		return fmt.Errorf("%w: value exceeds %d bytes", ErrInvalidHeader, MaxHeaderValueLength)
	case !httpguts.ValidHeaderFieldValue(value):
		return fmt.Errorf("%w: value contains control characters", ErrInvalidHeader)
	}
	return nil
}

// ValidateHeaders validates every header in headers and rejects the headers a
// token request sets on its own.
func ValidateHeaders(headers map[string]string) error {
	for name, value := range headers {
		if err := ValidateHeaderName(name); err != nil {
			return err
		}
		if slices.ContainsFunc(reservedHeaders, func(r string) bool { return strings.EqualFold(r, name) }) {
			return fmt.Errorf("%w: %s is reserved", ErrInvalidHeader, name)
		}
		if err := ValidateHeaderValue(value); err != nil {
			return fmt.Errorf("header %s: %w", name, err)
		}
	}
	return nil
}

// ValidateEndpointURL checks that raw is an absolute http or https URL with a
// host and no fragment, as required for OAuth authorization and token
// endpoints (RFC 6749 Section 3.1).
func ValidateEndpointURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidEndpoint)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	switch {
	case parsed.Scheme != "http" && parsed.Scheme != "https":
		return fmt.Errorf("%w: %s must use http or https", ErrInvalidEndpoint, raw)
	case parsed.Host == "":
		return fmt.Errorf("%w: %s has no host", ErrInvalidEndpoint, raw)
	case parsed.Fragment != "":
		return fmt.Errorf("%w: %s must not contain a fragment", ErrInvalidEndpoint, raw)
	}
	return nil
}
