// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Format represents the log output format.
type Format int

const (
	// FormatJSON produces JSON output using [log/slog.JSONHandler]. This is
	// the default.
	FormatJSON Format = iota

	// FormatText produces key=value output using [log/slog.TextHandler].
	FormatText
)

// String returns the configuration name of the format.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatText:
		return "text"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat maps a configuration name to a Format. The empty string
// selects [FormatJSON].
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	default:
		return 0, fmt.Errorf("unknown log format %q", name)
	}
}

// ParseLevel maps a level name such as "debug" or "WARN" to a [log/slog.Level].
// The empty string selects [log/slog.LevelInfo].
func ParseLevel(name string) (slog.Level, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", name)
	}
	return l, nil
}

// Redacted replaces the value of attributes whose key is redacted.
const Redacted = "[REDACTED]"

// DefaultRedactedKeys are the attribute keys whose values are never written.
var DefaultRedactedKeys = []string{
	"access_token",
	"refresh_token",
	"client_secret",
	"authorization",
	"code",
}

type config struct {
	format   Format
	level    slog.Leveler
	output   io.Writer
	redacted map[string]bool
}

// Option configures the handler created by [New] and [NewHandler].
type Option func(*config)

// WithFormat sets the output format. The default is [FormatJSON].
func WithFormat(f Format) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithLevel sets the minimum log level. The default is [log/slog.LevelInfo].
// A [*log/slog.LevelVar] allows changing the level at runtime.
func WithLevel(l slog.Leveler) Option {
	return func(c *config) {
		c.level = l
	}
}

// WithOutput sets the destination writer. The default is [os.Stderr].
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		c.output = w
	}
}

// WithRedactedKeys adds attribute keys, matched case-insensitively, whose
// values are replaced with [Redacted] in addition to [DefaultRedactedKeys].
func WithRedactedKeys(keys ...string) Option {
	return func(c *config) {
		for _, k := range keys {
			c.redacted[strings.ToLower(k)] = true
		}
	}
}

// New returns a logger writing through [NewHandler].
func New(opts ...Option) *slog.Logger {
	return slog.New(NewHandler(opts...))
}

// NewHandler returns the handler behind [New], for callers that wrap it:
// JSON by default, INFO level, written to [os.Stderr], RFC3339 timestamps.
func NewHandler(opts ...Option) slog.Handler {
	cfg := &config{
		format: FormatJSON,
		level:  slog.LevelInfo,
		output: os.Stderr,
	}
	cfg.redacted = make(map[string]bool, len(DefaultRedactedKeys))
	for _, k := range DefaultRedactedKeys {
		cfg.redacted[k] = true
	}
	for _, opt := range opts {
		opt(cfg)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       cfg.level,
		ReplaceAttr: cfg.replaceAttr,
	}
	if cfg.format == FormatText {
		return slog.NewTextHandler(cfg.output, handlerOpts)
	}
	return slog.NewJSONHandler(cfg.output, handlerOpts)
}

func (c *config) replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if c.redacted[strings.ToLower(a.Key)] {
		return slog.String(a.Key, Redacted)
	}
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.Format(time.RFC3339))
		}
	}
	return a
}
