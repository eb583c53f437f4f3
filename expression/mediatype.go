// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package expression

import (
	"mime"
	"strings"
)

// AnyMimeType is used when a response declares no usable Content-Type.
const AnyMimeType = "*/*"

// MediaType is a parsed Content-Type value.
type MediaType struct {
	MimeType string
	Params   map[string]string
}

// ParseMediaType parses a Content-Type header value. An empty or malformed
// value yields the "*/*" media type.
func ParseMediaType(contentType string) MediaType {
	if strings.TrimSpace(contentType) == "" {
		return MediaType{MimeType: AnyMimeType}
	}
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return MediaType{MimeType: AnyMimeType}
	}
	return MediaType{MimeType: mt, Params: params}
}

// Charset returns the charset parameter, or the empty string.
func (m MediaType) Charset() string {
	return m.Params["charset"]
}

// IsJSON reports whether the media type is application/json or a +json suffix type.
func (m MediaType) IsJSON() bool {
	return m.MimeType == "application/json" || strings.HasSuffix(m.MimeType, "+json")
}

// IsForm reports whether the media type is application/x-www-form-urlencoded.
func (m MediaType) IsForm() bool {
	return m.MimeType == "application/x-www-form-urlencoded"
}

// String formats the media type back into a Content-Type value.
func (m MediaType) String() string {
	if m.MimeType == "" {
		return AnyMimeType
	}
	return mime.FormatMediaType(m.MimeType, m.Params)
}
