package notify

import (
	"github.com/zjrosen/observerkit/pkg/center"
	"github.com/zjrosen/observerkit/pkg/dispatch"
)

const defaultBufferSize = 64

type options struct {
	center *center.Center
	queue  dispatch.Queue
	buffer int
	mw     []center.Middleware
}

// Option configures posting and observing.
type Option func(*options)

// WithCenter selects the center to post to or register with.
// A nil center keeps the default.
func WithCenter(c *center.Center) Option {
	return func(o *options) {
		if c != nil {
			o.center = c
		}
	}
}

// WithQueue runs the observer's handler on q instead of the posting goroutine.
func WithQueue(q dispatch.Queue) Option {
	return func(o *options) {
		o.queue = q
	}
}

// WithBuffer sets the channel capacity used by Subscribe.
func WithBuffer(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.buffer = size
		}
	}
}

// WithMiddleware wraps the observer's handler. The first middleware is the
// outermost.
func WithMiddleware(mw ...center.Middleware) Option {
	return func(o *options) {
		o.mw = append(o.mw, mw...)
	}
}

func buildOptions(opts []Option) options {
	o := options{buffer: defaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.center == nil {
		o.center = center.Default()
	}
	return o
}
