// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package async

import "errors"

// ErrPanic is wrapped by the error of a Future whose function panicked.
var ErrPanic = errors.New("async operation panicked")
