// Package dispatch provides the execution contexts that notification handlers
// run on.
//
// A Queue accepts a callback and decides where it runs. Inline runs it on the
// caller's goroutine, which is the default when no queue is supplied.
// OperationQueue runs callbacks on a bounded pool of worker goroutines.
package dispatch

import (
	"errors"
	"runtime/debug"

	"github.com/zjrosen/observerkit/internal/log"
)

// ErrStopped is returned when stopping a queue that is already stopped.
var ErrStopped = errors.New("dispatch: queue stopped")

// Queue is an execution context for handler callbacks.
type Queue interface {
	// Dispatch schedules fn. It reports false when fn was refused (queue
	// full or stopped) and will never run.
	Dispatch(fn func()) bool
}

// QueueFunc adapts a function to the Queue interface.
type QueueFunc func(fn func()) bool

// Dispatch calls f(fn).
func (f QueueFunc) Dispatch(fn func()) bool {
	return f(fn)
}

type inline struct{}

// Dispatch runs fn synchronously on the calling goroutine.
func (inline) Dispatch(fn func()) bool {
	run(fn)
	return true
}

// Inline runs callbacks synchronously on the posting goroutine.
var Inline Queue = inline{}

// OrInline returns q, or Inline when q is nil.
func OrInline(q Queue) Queue {
	if q == nil {
		return Inline
	}
	return q
}

// run executes fn and recovers a panic so one misbehaving handler does not
// take down the poster or a worker goroutine.
func run(fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			log.Error(log.CatDispatch, "handler panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
	return false
}
