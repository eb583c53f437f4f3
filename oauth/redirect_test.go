// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRedirectURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		uri        string
		strictErr  string // empty means accepted
		privateErr string // empty means accepted
	}{
		{name: "https callback", uri: "https://app.example.com/oauth/callback"},
		{name: "https with query", uri: "https://app.example.com/callback?tenant=a"},
		{name: "loopback callback", uri: "http://localhost:8081/callback"},
		{name: "loopback ip", uri: "http://127.0.0.1:9090/callback"},
		{
			name:      "private scheme",
			uri:       "myapp://oauth/redirect",
			strictErr: "not allowed by the strict policy",
		},
		{
			name:       "fragment",
			uri:        "https://app.example.com/callback#frag",
			strictErr:  "without a fragment",
			privateErr: "without a fragment",
		},
		{
			name:       "plain http host",
			uri:        "http://app.example.com/callback",
			strictErr:  "not allowed by the strict policy",
			privateErr: "not allowed by the allow_private_schemes policy",
		},
		{
			name:       "relative",
			uri:        "/callback",
			strictErr:  "without a fragment",
			privateErr: "without a fragment",
		},
		{
			name:       "too long",
			uri:        "https://app.example.com/" + strings.Repeat("a", MaxRedirectURILength),
			strictErr:  "too long",
			privateErr: "too long",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/strict", func(t *testing.T) {
			t.Parallel()
			assertRedirectValidation(t, tt.uri, RedirectURIPolicyStrict, tt.strictErr)
		})
		t.Run(tt.name+"/private", func(t *testing.T) {
			t.Parallel()
			assertRedirectValidation(t, tt.uri, RedirectURIPolicyAllowPrivateSchemes, tt.privateErr)
		})
	}
}

func assertRedirectValidation(t *testing.T, uri string, policy RedirectURIPolicy, wantErr string) {
	t.Helper()

	err := ValidateRedirectURI(uri, policy)
	if wantErr == "" {
		assert.NoError(t, err)
		return
	}
	require.ErrorIs(t, err, ErrInvalidRedirectURI)
	assert.Contains(t, err.Error(), wantErr)
}

func TestParseRedirectURIPolicy(t *testing.T) {
	t.Parallel()

	p, err := ParseRedirectURIPolicy("")
	require.NoError(t, err)
	assert.Equal(t, RedirectURIPolicyStrict, p)

	p, err = ParseRedirectURIPolicy("allow_private_schemes")
	require.NoError(t, err)
	assert.Equal(t, RedirectURIPolicyAllowPrivateSchemes, p)
	assert.Equal(t, "allow_private_schemes", p.String())

	_, err = ParseRedirectURIPolicy("lenient")
	require.Error(t, err)
}
