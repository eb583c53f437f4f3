// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package async provides a small generic Future type used to hand the result of
token exchanges and refreshes back to callers without blocking them.

A Future is created pending and completed exactly once:

	f := async.Go(func() (string, error) {
	    return fetchToken()
	})

	token, err := f.Await(ctx)

Await gives up waiting when ctx is done but never cancels the work itself;
the operation keeps running and later waiters still observe its result.

Futures compose with Then:

	length := async.Then(f, func(s string) (int, error) { return len(s), nil })

# Stability

This package is Beta stability. The API may have minor changes before
reaching stable status in v1.0.0.
*/
package async
