// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package env

//go:generate mockgen -copyright_file=../.github/license-header.txt -source=env.go -destination=mocks/mock_reader.go -package=mocks Reader

import (
	"os"
	"strings"
)

// Reader defines an interface for environment variable access
type Reader interface {
	Getenv(key string) string
}

// OSReader implements Reader using the standard os package
type OSReader struct{}

// Getenv returns the value of the environment variable named by the key
func (*OSReader) Getenv(key string) string {
	return os.Getenv(key)
}

// Map is a Reader over a fixed set of variables.
type Map map[string]string

// Getenv returns the value stored under key.
func (m Map) Getenv(key string) string {
	return m[key]
}

// Prefixed reads every key from R with Prefix prepended, so that
// Getenv("CLIENT_ID") on a Prefixed{R, "TOOLHIVE_OAUTH_"} reads
// TOOLHIVE_OAUTH_CLIENT_ID.
type Prefixed struct {
	R      Reader
	Prefix string
}

// Getenv returns the value of Prefix+key.
func (p Prefixed) Getenv(key string) string {
	return p.R.Getenv(p.Prefix + key)
}

// Override returns the trimmed value of key, or current when the variable is
// unset or blank.
func Override(r Reader, key, current string) string {
	if v := strings.TrimSpace(r.Getenv(key)); v != "" {
		return v
	}
	return current
}
