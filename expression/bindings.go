// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package expression

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Names of the variables an expression can refer to.
const (
	// VarPayload is the response body, decoded according to its media type.
	VarPayload = "payload"
	// VarAttributes holds the response headers and, for callbacks, the query parameters.
	VarAttributes = "attributes"
	// VarDataType describes the media type of the payload.
	VarDataType = "dataType"
)

// Keys of the VarAttributes and VarDataType maps.
const (
	AttrHeaders     = "headers"
	AttrAllHeaders  = "allHeaders"
	AttrQueryParams = "queryParams"

	DataTypeMediaType = "mediaType"
	DataTypeMimeType  = "mimeType"
	DataTypeCharset   = "charset"
)

// Bindings is the set of variables an expression is evaluated against.
type Bindings map[string]any

// Input is a response, or callback request, that fields are extracted from.
// The bindings derived from it are computed once and shared by every
// expression evaluated against the same Input.
type Input struct {
	Body      string
	Header    http.Header
	MediaType MediaType

	// QueryParams is set only when extracting from an authorization code
	// callback; attributes.queryParams is bound only when it is non-nil.
	QueryParams url.Values

	once     sync.Once
	bindings Bindings
}

// Bindings returns the variables for in.
func (in *Input) Bindings() Bindings {
	in.once.Do(func() {
		in.bindings = newBindings(in)
	})
	return in.bindings
}

func newBindings(in *Input) Bindings {
	attributes := map[string]any{
		AttrHeaders:    firstValues(in.Header, true),
		AttrAllHeaders: allValues(in.Header),
	}
	if in.QueryParams != nil {
		attributes[AttrQueryParams] = firstValues(in.QueryParams, false)
	}

	return Bindings{
		VarPayload:    decodePayload(in.Body, in.MediaType),
		VarAttributes: attributes,
		VarDataType: map[string]string{
			DataTypeMediaType: in.MediaType.String(),
			DataTypeMimeType:  in.MediaType.MimeType,
			DataTypeCharset:   in.MediaType.Charset(),
		},
	}
}

// decodePayload types the body according to mt. Bodies that do not parse as
// their declared type are bound as text.
func decodePayload(body string, mt MediaType) any {
	switch {
	case mt.IsJSON():
		var v any
		if err := json.Unmarshal([]byte(body), &v); err == nil {
			return v
		}
	case mt.IsForm():
		if values, err := url.ParseQuery(body); err == nil {
			form := make(map[string]any, len(values))
			for k, vs := range values {
				if len(vs) > 0 {
					form[k] = vs[0]
				}
			}
			return form
		}
	}
	return body
}

// firstValues flattens a multi-valued map to its first values. Header names
// are lower-cased so expressions do not depend on the server's casing.
func firstValues(m map[string][]string, lower bool) map[string]string {
	out := make(map[string]string, len(m))
	for k, vs := range m {
		if len(vs) == 0 {
			continue
		}
		if lower {
			k = strings.ToLower(k)
		}
		if _, seen := out[k]; !seen {
			out[k] = vs[0]
		}
	}
	return out
}

func allValues(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, vs := range h {
		k = strings.ToLower(k)
		out[k] = append(out[k], vs...)
	}
	return out
}
