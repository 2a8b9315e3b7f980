package notify

import (
	"context"
	"sync"
	"time"

	"github.com/zjrosen/observerkit/internal/log"
	"github.com/zjrosen/observerkit/pkg/center"
)

// Delivery is a decoded notification received through Subscribe.
type Delivery[V any, S any] struct {
	Name     string
	Value    V
	Sender   *S
	PostedAt time.Time
}

// Subscribe observes n and returns a buffered channel of deliveries.
// Sends never block the poster: when the buffer is full the delivery is
// dropped. The observer is disposed and the channel closed when ctx is done.
func Subscribe[V any, S any](ctx context.Context, n Notification[V, S], opts ...Option) <-chan Delivery[V, S] {
	o := buildOptions(opts)
	ch := make(chan Delivery[V, S], o.buffer)

	var (
		mu     sync.Mutex
		closed bool
	)
	handler := decodingEnvelope(func(env center.Envelope, value V, sender *S) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- Delivery[V, S]{Name: env.Name, Value: value, Sender: sender, PostedAt: env.PostedAt}:
		default:
			log.Warn(log.CatObserver, "subscriber buffer full, dropping", "name", env.Name)
		}
	})

	obs := NewRawObserver(n, handler, opts...)

	// Cleanup goroutine
	go func() {
		<-ctx.Done()
		obs.Dispose()

		mu.Lock()
		defer mu.Unlock()
		closed = true
		close(ch)
	}()

	return ch
}
