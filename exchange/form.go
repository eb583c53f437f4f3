// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package exchange

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultEncoding is the charset used for form bodies when none is configured.
const DefaultEncoding = "UTF-8"

// BasicAuthorization returns the HTTP Basic Authorization header value for
// the client credentials.
func BasicAuthorization(clientID, clientSecret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(clientID+":"+clientSecret))
}

// EncodeForm encodes form as application/x-www-form-urlencoded, with keys in
// sorted order. Keys and values are converted to charset before being
// percent-encoded.
func EncodeForm(form map[string]string, charset string) (string, error) {
	enc, err := lookupEncoding(charset)
	if err != nil {
		return "", err
	}

	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for i, k := range keys {
		key, err := encodeComponent(k, enc)
		if err != nil {
			return "", fmt.Errorf("encoding form key %q: %w", k, err)
		}
		value, err := encodeComponent(form[k], enc)
		if err != nil {
			return "", fmt.Errorf("encoding form value of %q: %w", k, err)
		}
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value)
	}
	return b.String(), nil
}

func encodeComponent(s string, enc encoding.Encoding) (string, error) {
	if enc != nil {
		converted, err := enc.NewEncoder().String(s)
		if err != nil {
			return "", err
		}
		s = converted
	}
	return url.QueryEscape(s), nil
}

// decodeText converts r from charset to UTF-8.
func decodeText(r io.Reader, charset string) (io.Reader, error) {
	enc, err := lookupEncoding(charset)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return r, nil
	}
	return enc.NewDecoder().Reader(r), nil
}

// lookupEncoding resolves an IANA charset name. UTF-8 and the empty name
// resolve to nil, meaning no conversion.
func lookupEncoding(charset string) (encoding.Encoding, error) {
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8") {
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", charset, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", charset)
	}
	return enc, nil
}
