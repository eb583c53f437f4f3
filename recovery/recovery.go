// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package recovery

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Middleware recovers from panics in next, logs the panic value and stack
// trace to logger and answers 500 Internal Server Error. A nil logger
// selects slog.Default.
//
// http.ErrAbortHandler is re-panicked so that net/http can abort the
// response as the handler asked.
func Middleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // panic values are compared, not unwrapped
				panic(rec)
			}
			logger.Error("panic in HTTP handler",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}
