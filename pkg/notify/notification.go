// Package notify provides typed notifications on top of a notification center.
//
// A Notification[V, S] names a channel and fixes, at compile time, the payload
// type V that may be posted through it and the sender type S that may post
// it. Observers register handlers for a notification and stay registered
// until disposed:
//
//	var Saved = notify.New[Document, Editor]("editor.saved")
//
//	obs := notify.NewObserver(Saved, func(doc Document, ed *Editor) {
//		...
//	})
//	defer obs.Dispose()
//
//	Saved.WithSender(editor).Post(ctx, doc)
//
// Go has no destructors, so an observer that is neither disposed nor bound to
// a context with Observe stays registered for the life of its center.
package notify

import (
	"context"
	"reflect"

	"github.com/zjrosen/observerkit/internal/log"
	"github.com/zjrosen/observerkit/pkg/box"
)

// Notification is an immutable descriptor for a named notification channel.
// V is the payload type and S the sender type; neither is stored, they only
// constrain Post and the observer handlers.
//
// Senders are matched by pointer identity. Go may give distinct values of a
// zero-size type (such as struct{}) the same address, so senders of such a
// type cannot be told apart; scoping to one also accepts posts from the
// others. Give S at least one field when sender filtering matters.
type Notification[V any, S any] struct {
	name   string
	sender *S
}

// New returns a notification with the given name and no sender.
func New[V any, S any](name string) Notification[V, S] {
	return Notification[V, S]{name: name}
}

// NewWithSender returns a notification scoped to sender.
func NewWithSender[V any, S any](name string, sender *S) Notification[V, S] {
	warnZeroSizeSender(name, sender)
	return Notification[V, S]{name: name, sender: sender}
}

// Name returns the notification name.
func (n Notification[V, S]) Name() string {
	return n.name
}

// Sender returns the sender the notification is scoped to, or nil.
func (n Notification[V, S]) Sender() *S {
	return n.sender
}

// HasSender reports whether the notification is scoped to a sender.
func (n Notification[V, S]) HasSender() bool {
	return n.sender != nil
}

// WithSender returns a copy of n with the same name and the given sender.
// n itself is left unchanged.
func (n Notification[V, S]) WithSender(sender *S) Notification[V, S] {
	warnZeroSizeSender(n.name, sender)
	return Notification[V, S]{name: n.name, sender: sender}
}

// Post boxes value and posts it under the notification's name and sender.
// Without WithCenter the process-wide default center is used. Posting with
// no observers does nothing.
func (n Notification[V, S]) Post(ctx context.Context, value V, opts ...Option) {
	o := buildOptions(opts)
	o.center.Post(ctx, n.name, n.senderAny(), box.Encode(value))
}

// PostUserInfo posts info as-is, without boxing. Raw observers receive it
// unchanged; typed observers ignore it unless it carries a matching box.
func (n Notification[V, S]) PostUserInfo(ctx context.Context, info box.UserInfo, opts ...Option) {
	o := buildOptions(opts)
	o.center.Post(ctx, n.name, n.senderAny(), info)
}

// senderAny converts the sender to an interface value, keeping a nil
// sender a nil interface rather than a typed nil pointer.
func (n Notification[V, S]) senderAny() any {
	if n.sender == nil {
		return nil
	}
	return n.sender
}

// warnZeroSizeSender logs when sender's type has no size, since identity
// filtering cannot distinguish such senders.
func warnZeroSizeSender[S any](name string, sender *S) {
	if sender == nil {
		return
	}
	if t := reflect.TypeFor[S](); t.Size() == 0 {
		log.Warn(log.CatObserver, "zero-size sender type, distinct senders may share an address",
			"name", name, "type", t.String())
	}
}
