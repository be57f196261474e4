package bus

import (
	"sync"
	"sync/atomic"
)

const defaultSubscriberCap = 256

// Hub fans events out to per-subscriber bounded queues. Publishing never
// blocks; a full subscriber queue drops that subscriber's event and bumps
// the drop counter instead of stalling ingestion.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]*Queue
	nextID uint64
	drops  atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Queue)}
}

// Register creates a subscriber queue and returns its id with the queue.
func (h *Hub) Register(capacity int) (uint64, *Queue) {
	if capacity <= 0 {
		capacity = defaultSubscriberCap
	}
	q := NewQueue(capacity)
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = q
	h.mu.Unlock()
	return id, q
}

// Unregister removes and closes the subscriber queue.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	q := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if q != nil {
		q.Close()
	}
}

// Publish delivers the event to every subscriber, best-effort.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	queues := make([]*Queue, 0, len(h.subs))
	for _, q := range h.subs {
		queues = append(queues, q)
	}
	h.mu.Unlock()

	for _, q := range queues {
		if err := q.TryPublish(e); err != nil {
			h.drops.Add(1)
		}
	}
}

// Drops returns the number of per-subscriber events dropped so far.
func (h *Hub) Drops() uint64 {
	return h.drops.Load()
}

// Close closes all subscriber queues.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*Queue)
	h.mu.Unlock()
	for _, q := range subs {
		q.Close()
	}
}
