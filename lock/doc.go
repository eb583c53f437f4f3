// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package lock defines the lock provider used to serialize token refreshes per
resource owner, and an in-process implementation.

A Provider hands out Lock handles by id. Callers ask for a new handle every
time they need one, which lets distributed implementations (see the redislock
subpackage) return fresh handles bound to a shared key:

	l := provider.NewLock("my-dancer-alice")
	if err := l.Lock(ctx); err != nil {
	    return err
	}
	defer l.Unlock(ctx)

Handles may be unlocked from a different goroutine than the one that locked
them, so a lock can be held across an asynchronous token exchange.

# Stability

This package is Beta stability. The API may have minor changes before
reaching stable status in v1.0.0.
*/
package lock
