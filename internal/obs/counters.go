package obs

import "sync"

// Counters collects the health numbers embedded in account events. All
// methods are safe for concurrent use and are nil-tolerant so callers can
// run without observability wired.
type Counters struct {
	mu            sync.Mutex
	restFallbacks map[string]int
	handoffDrops  uint64
}

func NewCounters() *Counters {
	return &Counters{restFallbacks: make(map[string]int)}
}

// IncRestFallback records that a REST failure was served from cache.
func (c *Counters) IncRestFallback(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.restFallbacks[kind]++
	c.mu.Unlock()
}

// IncHandoffDrop records a dropped event on the WS-to-loop handoff queue.
func (c *Counters) IncHandoffDrop() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.handoffDrops++
	c.mu.Unlock()
}

// RestFallbacks returns a copy of the fallback counters.
func (c *Counters) RestFallbacks() map[string]int {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.restFallbacks))
	for k, v := range c.restFallbacks {
		out[k] = v
	}
	return out
}

// HandoffDrops returns the dropped-event count.
func (c *Counters) HandoffDrops() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handoffDrops
}

// Reset clears all counters (venue deactivation).
func (c *Counters) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.restFallbacks = make(map[string]int)
	c.handoffDrops = 0
	c.mu.Unlock()
}
