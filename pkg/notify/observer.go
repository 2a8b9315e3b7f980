package notify

import (
	"context"
	"reflect"
	"sync/atomic"

	"github.com/zjrosen/observerkit/internal/log"
	"github.com/zjrosen/observerkit/pkg/box"
	"github.com/zjrosen/observerkit/pkg/center"
)

// Handler receives a decoded value and the sender that posted it.
// sender is nil when the post had no sender or one of another type.
type Handler[V any, S any] func(value V, sender *S)

// Observer owns one registration with a center. It is registered when
// constructed and unregistered by Dispose.
type Observer[V any, S any] struct {
	notification Notification[V, S]
	center       *center.Center
	token        center.Token
	disposed     atomic.Bool
	done         chan struct{}
}

// NewObserver registers handler for n. The handler runs only for posts whose
// payload decodes as V; anything else posted under the same name is ignored.
func NewObserver[V any, S any](n Notification[V, S], handler Handler[V, S], opts ...Option) *Observer[V, S] {
	return NewRawObserver(n, decoding(handler), opts...)
}

// NewRawObserver registers handler for n and passes it every matching
// envelope undecoded. Use it for notifications posted with PostUserInfo or
// by code that does not use this package.
func NewRawObserver[V any, S any](n Notification[V, S], handler center.Handler, opts ...Option) *Observer[V, S] {
	o := buildOptions(opts)
	obs := &Observer[V, S]{
		notification: n,
		center:       o.center,
		done:         make(chan struct{}),
	}
	obs.token = o.center.Register(n.name, n.senderAny(), o.queue, center.Chain(handler, o.mw...))
	log.Debug(log.CatObserver, "observer registered", "name", n.name, "token", obs.token)
	return obs
}

// Observe is NewObserver bound to ctx: the observer disposes itself when ctx
// is done. Dispose may still be called earlier.
func Observe[V any, S any](ctx context.Context, n Notification[V, S], handler Handler[V, S], opts ...Option) *Observer[V, S] {
	obs := NewObserver(n, handler, opts...)
	go func() {
		select {
		case <-ctx.Done():
			obs.Dispose()
		case <-obs.done:
		}
	}()
	return obs
}

// Dispose unregisters the observer. Calling it again is a no-op.
// A handler already running when Dispose is called finishes; no later
// delivery reaches it.
func (o *Observer[V, S]) Dispose() {
	if !o.disposed.CompareAndSwap(false, true) {
		return
	}
	o.center.Unregister(o.token)
	close(o.done)
	log.Debug(log.CatObserver, "observer disposed", "name", o.notification.name, "token", o.token)
}

// Active reports whether the observer is still registered.
func (o *Observer[V, S]) Active() bool {
	return !o.disposed.Load()
}

// Done returns a channel closed once the observer is disposed.
func (o *Observer[V, S]) Done() <-chan struct{} {
	return o.done
}

// ID returns the center registration token.
func (o *Observer[V, S]) ID() center.Token {
	return o.token
}

// Notification returns the notification the observer is registered for.
func (o *Observer[V, S]) Notification() Notification[V, S] {
	return o.notification
}

// decoding wraps a typed handler as a raw one. Posts that do not carry a
// *box.Box[V] are logged at debug level and ignored.
func decoding[V any, S any](handler Handler[V, S]) center.Handler {
	return decodingEnvelope(func(_ center.Envelope, value V, sender *S) {
		handler(value, sender)
	})
}

// decodingEnvelope is decoding for handlers that also need the envelope.
func decodingEnvelope[V any, S any](handler func(env center.Envelope, value V, sender *S)) center.Handler {
	return func(env center.Envelope) {
		value, ok := box.Decode[V](env.UserInfo)
		if !ok {
			log.Debug(log.CatObserver, "payload type mismatch, ignoring",
				"name", env.Name, "want", reflect.TypeFor[V]().String())
			return
		}
		sender, _ := env.Sender.(*S)
		handler(env, value, sender)
	}
}
