// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package state defines the per resource owner OAuth context and the Store
that holds it.

A ResourceOwnerContext carries the tokens, the expiry as reported by the
server, the authorization state and any custom response parameters of one
resource owner, plus the lock that serializes changes to them. The lock is
runtime state only: it is never persisted and is replaced each time the
context is fetched.

Stores are shared by every caller of a dancer and may be shared between
dancers and processes. MemoryStore keeps contexts in memory; the redisstore
and sqlstore subpackages persist them so they survive restarts. All stores
exchange copies, so a context obtained from a Store can be modified freely
and written back with Put.

# Stability

This package is Beta stability. The API may have minor changes before
reaching stable status in v1.0.0.
*/
package state
