package bus

import (
	"context"
	"errors"
	"sync/atomic"

	"main/internal/adapter/enum"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Event is the unit passed through the in-memory bus.
type Event struct {
	Type    enum.EventType
	Venue   enum.Venue
	Payload any
}

// Queue is a bounded, non-blocking event queue. The event channel itself is
// never closed: a publisher that races Close lands its event in the buffer
// instead of panicking, and consumers watch Done for shutdown.
type Queue struct {
	ch     chan Event
	done   chan struct{}
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch:   make(chan Event, capacity),
		done: make(chan struct{}),
	}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// C exposes the receive side for consumers that select over several sources.
func (q *Queue) C() <-chan Event {
	return q.ch
}

// Done is closed once the queue stops accepting new events.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.done)
	}
}

// Run consumes events until the context is done or the queue is closed.
// Events already buffered at close time are still delivered.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			for {
				select {
				case e := <-q.ch:
					handler(e)
				default:
					return
				}
			}
		case e := <-q.ch:
			handler(e)
		}
	}
}
