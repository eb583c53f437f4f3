// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package transport defines the asynchronous HTTP capability the token exchange
client is built on, and its net/http implementation.

	c := transport.NewHTTPClient(transport.WithHTTPClient(&http.Client{
	    Transport: myTransport, // TLS, proxies, pooling
	}))
	if err := c.Start(); err != nil {
	    return err
	}
	defer c.Stop()

	resp, err := c.SendAsync(ctx, req, transport.Options{
	    Timeout:         transport.DefaultTimeout,
	    FollowRedirects: true,
	}).Await(ctx)

Each request runs on its own goroutine. The timeout covers reading the
response body, so callers must close the body once they are done with it.

# Stability

This package is Beta stability. The API may have minor changes before
reaching stable status in v1.0.0.
*/
package transport
