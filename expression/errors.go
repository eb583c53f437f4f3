// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package expression

import "errors"

// ErrNotAString is returned when a field that must be text evaluates to a
// list, map, or other non-scalar value.
var ErrNotAString = errors.New("expression did not produce a string")
