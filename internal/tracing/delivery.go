package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/observerkit/pkg/center"
)

// Span names and attribute keys for delivery spans.
const (
	SpanDeliver = "notification.deliver"

	AttrDelayMs  = "notification.delay_ms"
	AttrPanicked = "notification.panicked"
)

// DeliveryMiddleware returns middleware that records one consumer span per
// handler invocation. A nil tracer yields a pass-through.
//
// A panicking handler marks its span as an error and keeps panicking so the
// queue's own recovery still runs.
func DeliveryMiddleware(tracer trace.Tracer) center.Middleware {
	if tracer == nil {
		return func(next center.Handler) center.Handler {
			return next
		}
	}

	return func(next center.Handler) center.Handler {
		return func(env center.Envelope) {
			attrs := []attribute.KeyValue{
				attribute.String(center.AttrName, env.Name),
				attribute.Bool(center.AttrHasSender, env.Sender != nil),
			}
			if !env.PostedAt.IsZero() {
				attrs = append(attrs, attribute.Int64(AttrDelayMs, time.Since(env.PostedAt).Milliseconds()))
			}
			_, span := tracer.Start(restoreSpanContext(env), SpanDeliver,
				trace.WithSpanKind(trace.SpanKindConsumer),
				trace.WithAttributes(attrs...),
			)

			completed := false
			defer func() {
				if completed {
					span.SetStatus(codes.Ok, "")
					span.End()
					return
				}
				r := recover()
				if r == nil {
					// runtime.Goexit: let the goroutine keep unwinding.
					span.SetStatus(codes.Error, "handler exited")
					span.End()
					return
				}
				span.SetAttributes(attribute.Bool(AttrPanicked, true))
				span.SetStatus(codes.Error, fmt.Sprint(r))
				span.End()
				panic(r)
			}()

			next(env)
			completed = true
		}
	}
}

// restoreSpanContext parents the delivery span on the span that was active
// when the envelope was posted, which may have been on another goroutine.
func restoreSpanContext(env center.Envelope) context.Context {
	ctx := context.Background()
	if env.SpanContext.IsValid() {
		return trace.ContextWithRemoteSpanContext(ctx, env.SpanContext)
	}
	return ctx
}
