// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package listener

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
)

// ErrListenerPanicked is wrapped by the InvocationError of a listener that panicked.
var ErrListenerPanicked = errors.New("listener panicked")

// InvocationError describes a listener that failed during a notification.
// It is logged and never returned to the operation that triggered the
// notification.
type InvocationError struct {
	Event string
	Index int
	cause error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("listener %d failed on %s: %s", e.Index, e.Event, e.cause)
}

// Unwrap returns the listener's error.
func (e *InvocationError) Unwrap() error {
	return e.cause
}

// Notifier fans events out to registered listeners.
//
// Registrations are copy-on-write: Add and Remove may be called at any time,
// including from a listener during a notification. A notification in progress
// keeps iterating the snapshot it started with.
type Notifier[L comparable] struct {
	mu        sync.Mutex
	listeners atomic.Pointer[[]L]
	logger    *slog.Logger
}

// NewNotifier returns a Notifier without listeners. A nil logger selects
// slog.Default.
func NewNotifier[L comparable](logger *slog.Logger) *Notifier[L] {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier[L]{logger: logger}
	n.listeners.Store(&[]L{})
	return n
}

// Add registers l and returns a function that removes this registration.
func (n *Notifier[L]) Add(l L) (remove func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	next := append(slices.Clone(*n.listeners.Load()), l)
	n.listeners.Store(&next)
	return func() { n.Remove(l) }
}

// Remove unregisters the first registration of l. It reports whether l was registered.
func (n *Notifier[L]) Remove(l L) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	current := *n.listeners.Load()
	i := slices.Index(current, l)
	if i < 0 {
		return false
	}
	next := slices.Delete(slices.Clone(current), i, i+1)
	n.listeners.Store(&next)
	return true
}

// Len returns the number of registrations.
func (n *Notifier[L]) Len() int {
	return len(*n.listeners.Load())
}

// Notify applies action to every registered listener in registration order.
// A listener that returns an error or panics is logged and skipped.
func (n *Notifier[L]) Notify(event string, action func(L) error) {
	for i, l := range *n.listeners.Load() {
		if err := invoke(l, action); err != nil {
			n.logger.Warn("listener invocation failed",
				"event", event,
				"error", &InvocationError{Event: event, Index: i, cause: err},
			)
		}
	}
}

func invoke[L any](l L, action func(L) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrListenerPanicked, r, debug.Stack())
		}
	}()
	return action(l)
}
