// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package httperr maps errors to HTTP status codes at the edge of the callback
handlers.

An error carries its status either by being wrapped with [WithCode] or by
implementing [Coder] itself, as *oauth.TokenError does (502 Bad Gateway):

	err := httperr.WithCode(dancer.ErrMissingAuthorizationCode, http.StatusBadRequest)

	code := httperr.Code(err)
	// the code of the first Coder in the chain,
	// 500 when there is none, 200 for a nil error

[Write] answers a request with the error's status. Messages of client errors
are included in the body; server errors expose only the status text.

	if err != nil {
		logger.Warn("callback failed", "error", err)
		httperr.Write(w, err)
		return
	}

# Stability

This package is Beta stability. The API may have minor changes before
reaching stable status in v1.0.0.
*/
package httperr
