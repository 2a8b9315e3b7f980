// Package center implements the notification center: a name-indexed registry
// that matches posted envelopes to registrations and hands each match to the
// registration's execution queue.
//
// The center knows nothing about payload types. Typed delivery is layered on
// top by package notify, which wraps typed handlers as raw Handlers.
package center

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/observerkit/internal/log"
	"github.com/zjrosen/observerkit/pkg/box"
	"github.com/zjrosen/observerkit/pkg/dispatch"
)

// AnyName registers for every notification name.
const AnyName = ""

// Token identifies a single registration.
type Token uuid.UUID

// String returns the token in canonical UUID form.
func (t Token) String() string {
	return uuid.UUID(t).String()
}

// IsZero reports whether t is the zero token.
func (t Token) IsZero() bool {
	return t == Token{}
}

// Envelope is the untyped event delivered to raw handlers.
type Envelope struct {
	Name     string
	Sender   any
	UserInfo box.UserInfo
	PostedAt time.Time

	// SpanContext is the span active when the envelope was posted, the
	// center's post span when it traces. Zero when nothing was recording.
	SpanContext trace.SpanContext
}

// Handler receives envelopes for a registration.
type Handler func(env Envelope)

// Middleware wraps a Handler, for example to trace or time deliveries.
type Middleware func(next Handler) Handler

// Chain applies mw to h so that mw[0] is the outermost wrapper.
func Chain(h Handler, mw ...Middleware) Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] != nil {
			h = mw[i](h)
		}
	}
	return h
}

type registration struct {
	token   Token
	name    string
	sender  any
	queue   dispatch.Queue
	handler Handler
	seq     uint64
	active  atomic.Bool
}

// Center is a notification center. The zero value is not usable; use New or Default.
type Center struct {
	mu      sync.RWMutex
	byName  map[string][]*registration
	byToken map[Token]*registration
	seq     uint64

	tracer trace.Tracer

	posts     atomic.Uint64
	delivered atomic.Uint64
	filtered  atomic.Uint64
	dropped   atomic.Uint64
	skipped   atomic.Uint64
}

// Option configures a Center.
type Option func(*Center)

// WithTracer records a span for every Post.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Center) {
		c.tracer = tracer
	}
}

// New creates an empty Center.
func New(opts ...Option) *Center {
	c := &Center{
		byName:  make(map[string][]*registration),
		byToken: make(map[Token]*registration),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	defaultCenter *Center
	defaultOnce   sync.Once
	defaultMu     sync.RWMutex
)

// Default returns the process-wide center, creating it on first use.
// It is never torn down.
func Default() *Center {
	defaultOnce.Do(func() {
		defaultMu.Lock()
		if defaultCenter == nil {
			defaultCenter = New()
		}
		defaultMu.Unlock()
	})
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultCenter
}

// SetDefault replaces the process-wide center and returns a function that
// restores the previous one. Intended for tests and for installing a traced
// center at startup.
func SetDefault(c *Center) (restore func()) {
	prev := Default()
	defaultMu.Lock()
	defaultCenter = c
	defaultMu.Unlock()
	return func() {
		defaultMu.Lock()
		defaultCenter = prev
		defaultMu.Unlock()
	}
}

// Register adds a registration for name. A non-nil sender restricts delivery
// to posts whose sender is identical (see SameSender). A nil queue runs the
// handler inline on the posting goroutine.
//
// The registration is visible to every Post that starts after Register returns.
func (c *Center) Register(name string, sender any, q dispatch.Queue, h Handler) Token {
	reg := &registration{
		token:   Token(uuid.New()),
		name:    name,
		sender:  sender,
		queue:   dispatch.OrInline(q),
		handler: h,
	}
	reg.active.Store(true)

	c.mu.Lock()
	c.seq++
	reg.seq = c.seq
	c.byName[name] = append(c.byName[name], reg)
	c.byToken[reg.token] = reg
	c.mu.Unlock()

	log.Debug(log.CatCenter, "registered", "name", name, "token", reg.token, "sender_filter", sender != nil)
	return reg.token
}

// Unregister removes the registration identified by tok.
// It reports whether a registration was removed; unknown or already removed
// tokens are a no-op.
func (c *Center) Unregister(tok Token) bool {
	c.mu.Lock()
	reg, ok := c.byToken[tok]
	if !ok {
		c.mu.Unlock()
		return false
	}
	// Flip before releasing the lock so no dispatch started after this point
	// can invoke the handler.
	reg.active.Store(false)
	delete(c.byToken, tok)

	regs := c.byName[reg.name]
	for i, r := range regs {
		if r == reg {
			// Copy so snapshots taken by in-flight posts stay intact.
			next := make([]*registration, 0, len(regs)-1)
			next = append(next, regs[:i]...)
			next = append(next, regs[i+1:]...)
			regs = next
			break
		}
	}
	if len(regs) == 0 {
		delete(c.byName, reg.name)
	} else {
		c.byName[reg.name] = regs
	}
	c.mu.Unlock()

	log.Debug(log.CatCenter, "unregistered", "name", reg.name, "token", tok)
	return true
}

// Post delivers an envelope for name to every matching registration, in
// registration order. Posting with no registrations is a no-op.
func (c *Center) Post(ctx context.Context, name string, sender any, info box.UserInfo) {
	c.posts.Add(1)

	var span trace.Span
	if c.tracer != nil {
		ctx, span = c.tracer.Start(ctx, SpanPost,
			trace.WithSpanKind(trace.SpanKindProducer),
			trace.WithAttributes(
				attribute.String(AttrName, name),
				attribute.Bool(AttrHasSender, sender != nil),
			))
		defer span.End()
	}

	matches := c.snapshot(name)
	env := Envelope{
		Name:        name,
		Sender:      sender,
		UserInfo:    info,
		PostedAt:    time.Now(),
		SpanContext: trace.SpanContextFromContext(ctx),
	}

	var queued, filtered int
	for _, reg := range matches {
		if !SameSender(reg.sender, sender) {
			filtered++
			c.filtered.Add(1)
			continue
		}
		reg := reg
		ok := reg.queue.Dispatch(func() {
			// The registration may have been removed while this callback
			// waited on its queue.
			if !reg.active.Load() {
				c.skipped.Add(1)
				return
			}
			c.delivered.Add(1)
			reg.handler(env)
		})
		if !ok {
			c.dropped.Add(1)
			log.Warn(log.CatCenter, "queue refused delivery", "name", name, "token", reg.token)
			continue
		}
		queued++
	}

	if span != nil {
		span.SetAttributes(
			attribute.Int(AttrMatched, len(matches)),
			attribute.Int(AttrQueued, queued),
			attribute.Int(AttrFiltered, filtered),
		)
	}
	log.Debug(log.CatCenter, "posted", "name", name, "matched", len(matches), "queued", queued, "filtered", filtered)
}

// snapshot returns the active registrations for name plus the wildcard
// registrations, ordered by registration sequence.
func (c *Center) snapshot(name string) []*registration {
	c.mu.RLock()
	named := c.byName[name]
	var wildcard []*registration
	if name != AnyName {
		wildcard = c.byName[AnyName]
	}
	c.mu.RUnlock()

	if len(wildcard) == 0 {
		return named
	}
	if len(named) == 0 {
		return wildcard
	}

	merged := make([]*registration, 0, len(named)+len(wildcard))
	merged = append(merged, named...)
	merged = append(merged, wildcard...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].seq < merged[j].seq })
	return merged
}

// Len returns the number of live registrations.
func (c *Center) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byToken)
}

// Count returns the number of live registrations for name. Wildcard
// registrations are only counted for AnyName.
func (c *Center) Count(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byName[name])
}

// Registered reports whether tok is a live registration.
func (c *Center) Registered(tok Token) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byToken[tok]
	return ok
}

// Stats is a snapshot of center counters.
type Stats struct {
	Posts     uint64 // Post calls
	Delivered uint64 // handler invocations
	Filtered  uint64 // matches withheld by sender filter
	Dropped   uint64 // deliveries refused by a queue
	Skipped   uint64 // queued deliveries whose registration was removed first
	Active    int    // live registrations
}

// Stats returns the current counters.
func (c *Center) Stats() Stats {
	return Stats{
		Posts:     c.posts.Load(),
		Delivered: c.delivered.Load(),
		Filtered:  c.filtered.Load(),
		Dropped:   c.dropped.Load(),
		Skipped:   c.skipped.Load(),
		Active:    c.Len(),
	}
}
