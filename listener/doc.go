// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package listener provides best-effort fan-out of token lifecycle events.

A Notifier holds an ordered, copy-on-write set of listeners. Notify runs an
action for each of them; a listener that fails, by returning an error or by
panicking, is logged at warn level and the remaining listeners still run.
The operation that triggered the notification never sees the failure.

	n := listener.NewNotifier[MyListener](logger)
	remove := n.Add(l)
	defer remove()

	n.Notify("token_refreshed", func(l MyListener) error {
	    l.OnTokenRefreshed(ctx)
	    return nil
	})

Listeners are compared with == for removal, so register pointers or other
comparable values.

# Stability

This package is Beta stability. The API may have minor changes before
reaching stable status in v1.0.0.
*/
package listener
