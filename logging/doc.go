// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package logging creates the [log/slog.Logger] handed to dancers, transports
and callback handlers.

Loggers write JSON ([FormatJSON]) at INFO to [os.Stderr] with [time.RFC3339]
timestamps unless configured otherwise:

	logger := logging.New()
	logger.Info("token refreshed", "resource_owner", "alice")

The values of token and credential attributes ([DefaultRedactedKeys]) are
written as [Redacted]; more keys can be added with [WithRedactedKeys].

[ParseFormat] and [ParseLevel] read the names used in configuration files:

	format, err := logging.ParseFormat(cfg.Logging.Format) // "json" or "text"
	level, err := logging.ParseLevel(cfg.Logging.Level)    // "debug", "info", ...
	logger := logging.New(logging.WithFormat(format), logging.WithLevel(level))

A [*log/slog.LevelVar] passed to [WithLevel] changes the level at runtime, and
[NewHandler] returns the handler for callers that wrap it. Tests capture
output with [WithOutput]:

	var buf bytes.Buffer
	logger := logging.New(logging.WithOutput(&buf))

# Stability

This package is Alpha stability. The API may change without notice.
*/
package logging
