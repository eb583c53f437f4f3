// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/ory/fosite"
)

// MaxRedirectURILength bounds the redirect URIs accepted for parsing.
const MaxRedirectURILength = 2048

// ErrInvalidRedirectURI is wrapped by every redirect URI validation failure.
var ErrInvalidRedirectURI = errors.New("invalid redirect_uri")

// RedirectURIPolicy selects which schemes a redirect URI may use.
type RedirectURIPolicy int

const (
	// RedirectURIPolicyStrict accepts https, and http only for loopback hosts (RFC 8252 Section 8.4).
	RedirectURIPolicyStrict RedirectURIPolicy = iota

	// RedirectURIPolicyAllowPrivateSchemes additionally accepts private-use schemes
	// such as myapp:// (RFC 8252 Section 7.1).
	RedirectURIPolicyAllowPrivateSchemes
)

// String returns the configuration name of the policy.
func (p RedirectURIPolicy) String() string {
	switch p {
	case RedirectURIPolicyStrict:
		return "strict"
	case RedirectURIPolicyAllowPrivateSchemes:
		return "allow_private_schemes"
	default:
		return fmt.Sprintf("RedirectURIPolicy(%d)", int(p))
	}
}

// ParseRedirectURIPolicy maps a configuration name to a policy.
// The empty string selects RedirectURIPolicyStrict.
func ParseRedirectURIPolicy(name string) (RedirectURIPolicy, error) {
	switch name {
	case "", "strict":
		return RedirectURIPolicyStrict, nil
	case "allow_private_schemes":
		return RedirectURIPolicyAllowPrivateSchemes, nil
	default:
		return 0, fmt.Errorf("unknown redirect URI policy %q", name)
	}
}

// ValidateRedirectURI checks the URI the authorization server redirects back to
// once the resource owner has approved access (RFC 6749 Section 3.1.2). The URI
// must be absolute, carry no fragment, and use a scheme the policy allows.
func ValidateRedirectURI(uri string, policy RedirectURIPolicy) error {
	if len(uri) > MaxRedirectURILength {
		return fmt.Errorf("%w: too long (maximum %d characters)", ErrInvalidRedirectURI, MaxRedirectURILength)
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRedirectURI, err)
	}

	if !fosite.IsValidRedirectURI(parsed) {
		return fmt.Errorf("%w: must be an absolute URI without a fragment", ErrInvalidRedirectURI)
	}

	var secure bool
	switch policy {
	case RedirectURIPolicyStrict:
		secure = fosite.IsRedirectURISecureStrict(context.Background(), parsed)
	case RedirectURIPolicyAllowPrivateSchemes:
		secure = fosite.IsRedirectURISecure(context.Background(), parsed)
	default:
		return fmt.Errorf("%w: unknown policy %s", ErrInvalidRedirectURI, policy)
	}
	if !secure {
		return fmt.Errorf("%w: scheme %q is not allowed by the %s policy", ErrInvalidRedirectURI, parsed.Scheme, policy)
	}

	return nil
}
