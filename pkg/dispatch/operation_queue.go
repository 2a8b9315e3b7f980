package dispatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zjrosen/observerkit/internal/log"
)

const (
	// DefaultQueueSize is the default number of callbacks an OperationQueue buffers.
	DefaultQueueSize = 1024

	// DefaultWorkers is the default worker count. One worker keeps callbacks
	// in FIFO order.
	DefaultWorkers = 1
)

// OperationQueue runs callbacks asynchronously on a fixed pool of workers.
// It is started by NewOperationQueue and accepts work until Stop.
type OperationQueue struct {
	name        string
	queueSize   int
	workerCount int

	mu      sync.RWMutex // guards tasks against close while sending
	tasks   chan func()
	running atomic.Bool
	wg      sync.WaitGroup

	enqueued  atomic.Uint64
	processed atomic.Uint64
	dropped   atomic.Uint64
	panicked  atomic.Uint64
}

// Option configures an OperationQueue.
type Option func(*OperationQueue)

// WithQueueSize sets the callback buffer size.
func WithQueueSize(size int) Option {
	return func(q *OperationQueue) {
		if size > 0 {
			q.queueSize = size
		}
	}
}

// WithWorkers sets the number of worker goroutines.
func WithWorkers(count int) Option {
	return func(q *OperationQueue) {
		if count > 0 {
			q.workerCount = count
		}
	}
}

// WithName labels the queue in logs.
func WithName(name string) Option {
	return func(q *OperationQueue) {
		q.name = name
	}
}

// NewOperationQueue creates and starts an OperationQueue.
func NewOperationQueue(opts ...Option) *OperationQueue {
	q := &OperationQueue{
		name:        "operation-queue",
		queueSize:   DefaultQueueSize,
		workerCount: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(q)
	}

	q.tasks = make(chan func(), q.queueSize)
	q.running.Store(true)
	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	log.Debug(log.CatDispatch, "operation queue started",
		"name", q.name, "workers", q.workerCount, "size", q.queueSize)
	return q
}

// Dispatch enqueues fn without blocking.
// Returns false when the buffer is full or the queue has been stopped.
func (q *OperationQueue) Dispatch(fn func()) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.running.Load() {
		q.dropped.Add(1)
		return false
	}

	select {
	case q.tasks <- fn:
		q.enqueued.Add(1)
		return true
	default:
		q.dropped.Add(1)
		log.Warn(log.CatDispatch, "queue full, dropping callback", "name", q.name)
		return false
	}
}

// Stop stops accepting callbacks and waits for queued ones to finish,
// or until ctx is done.
func (q *OperationQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running.Swap(false) {
		q.mu.Unlock()
		return ErrStopped
	}
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug(log.CatDispatch, "operation queue stopped", "name", q.name)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the queue accepts callbacks.
func (q *OperationQueue) Running() bool {
	return q.running.Load()
}

// Len returns the number of callbacks waiting to run.
func (q *OperationQueue) Len() int {
	return len(q.tasks)
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Enqueued  uint64
	Processed uint64
	Dropped   uint64
	Panicked  uint64
}

// Stats returns the current counters.
func (q *OperationQueue) Stats() Stats {
	return Stats{
		Enqueued:  q.enqueued.Load(),
		Processed: q.processed.Load(),
		Dropped:   q.dropped.Load(),
		Panicked:  q.panicked.Load(),
	}
}

func (q *OperationQueue) worker() {
	defer q.wg.Done()
	for fn := range q.tasks {
		if run(fn) {
			q.panicked.Add(1)
		}
		q.processed.Add(1)
	}
}
