// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package recovery provides panic recovery middleware for HTTP handlers.
//
// A panicking request is answered with 500 Internal Server Error and the
// panic is logged with its stack trace, instead of crashing the server.
//
//	mux := http.NewServeMux()
//	mux.Handle("/oauth/callback", callback.NewCallbackHandler(d))
//	http.ListenAndServe(":8080", recovery.Middleware(logger, mux))
//
// # Stability
//
// This package is Beta stability. The API may have minor changes before
// reaching stable status in v1.0.0.
package recovery
