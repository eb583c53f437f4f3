// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package async

import (
	"context"
	"fmt"
	"sync"
)

// Future is the eventual result of an asynchronous operation.
// A Future completes exactly once, with either a value or an error.
// It is safe for concurrent use; any number of goroutines may wait on it.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// Completer resolves the Future it was created with.
// Only the first call has any effect.
type Completer[T any] func(value T, err error)

// New returns a pending Future and the function that completes it.
func New[T any]() (*Future[T], Completer[T]) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.complete
}

// Go runs fn in a new goroutine and returns a Future for its result.
// A panic in fn fails the Future instead of crashing the process.
func Go[T any](fn func() (T, error)) *Future[T] {
	f, complete := New[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				complete(zero, fmt.Errorf("%w: %v", ErrPanic, r))
			}
		}()
		complete(fn())
	}()
	return f
}

// Completed returns a Future that already holds value.
func Completed[T any](value T) *Future[T] {
	f, complete := New[T]()
	complete(value, nil)
	return f
}

// Failed returns a Future that already holds err.
func Failed[T any](err error) *Future[T] {
	f, complete := New[T]()
	var zero T
	complete(zero, err)
	return f
}

// Then returns a Future for fn applied to the value of f.
// If f fails, the returned Future fails with the same error and fn is not called.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	return Go(func() (U, error) {
		v, err := f.Result()
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(v)
	})
}

func (f *Future[T]) complete(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done returns a channel that is closed once the Future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the Future completes and returns its outcome.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}

// Await waits for the Future or for ctx to be done, whichever comes first.
// Abandoning a Future through ctx does not stop the underlying operation.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
