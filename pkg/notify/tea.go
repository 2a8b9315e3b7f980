package notify

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// ListenCmd creates a Bubble Tea command that waits for the next delivery on ch.
// The delivery is returned as the tea.Msg; nil is returned once ctx is done or
// ch is closed.
func ListenCmd[V any, S any](ctx context.Context, ch <-chan Delivery[V, S]) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-ch:
			if !ok {
				return nil
			}
			return d
		}
	}
}

// ContinuousListener keeps a subscription alive across Bubble Tea update
// cycles. Call Listen again after handling each delivery.
type ContinuousListener[V any, S any] struct {
	ctx context.Context
	ch  <-chan Delivery[V, S]
}

// NewContinuousListener subscribes to n for the lifetime of ctx.
func NewContinuousListener[V any, S any](ctx context.Context, n Notification[V, S], opts ...Option) *ContinuousListener[V, S] {
	return &ContinuousListener[V, S]{
		ctx: ctx,
		ch:  Subscribe(ctx, n, opts...),
	}
}

// Listen returns a tea.Cmd that waits for the next delivery.
func (l *ContinuousListener[V, S]) Listen() tea.Cmd {
	return ListenCmd(l.ctx, l.ch)
}
