// File: internal/concurrency/future.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-shot future backed by its own goroutine.

package concurrency

import "time"

// Future holds the eventual result of an asynchronously launched function.
type Future[T any] struct {
	done  chan struct{}
	value T
	panic any
}

// Go runs fn on a new goroutine and returns a Future for its result.
// A panic in fn resolves the future with the zero value; Panic reports it.
func Go[T any](fn func() T) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.panic = r
			}
		}()
		f.value = fn()
	}()
	return f
}

// Ready reports whether the result is available without waiting.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// WaitFor waits at most d for the result. ok is false on timeout.
func (f *Future[T]) WaitFor(d time.Duration) (value T, ok bool) {
	if f.Ready() {
		return f.value, true
	}
	if d <= 0 {
		return value, false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-f.done:
		return f.value, true
	case <-t.C:
		return value, false
	}
}

// Get blocks until the result is available.
func (f *Future[T]) Get() T {
	<-f.done
	return f.value
}

// Panic returns the recovered panic value, if fn panicked. Only meaningful
// once the future is ready.
func (f *Future[T]) Panic() any {
	if !f.Ready() {
		return nil
	}
	return f.panic
}
