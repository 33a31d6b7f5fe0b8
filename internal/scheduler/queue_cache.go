package scheduler

import (
	"sync"
	"time"
)

// QueueLengthCache is the contract a queue-length cache backend must satisfy
// (spec.md §4.6). The in-memory implementation below is the default; a
// Redis-backed alternative lives in internal/store for deployments sharing a
// cache across scheduler instances.
type QueueLengthCache interface {
	// Get returns the stored value only if it is still fresh
	// (now - lastUpdated < staleness); otherwise it returns (0, false) and
	// does not mutate anything.
	Get(replicaID string) (int, bool)

	// Update sets (queueLen, now) unconditionally.
	Update(replicaID string, queueLen int)

	// RemoveInactive deletes every entry whose key is not in active.
	RemoveInactive(active map[string]struct{})
}

type cacheEntry struct {
	queueLen    int
	lastUpdated time.Time
}

// InMemoryQueueLengthCache is a concurrency-safe map-backed QueueLengthCache
// (spec.md §4.6 state machine: absent -> fresh -> stale -> fresh -> absent).
type InMemoryQueueLengthCache struct {
	mu        sync.Mutex
	entries   map[string]cacheEntry
	staleness time.Duration
	clock     Clock
}

// NewInMemoryQueueLengthCache builds a cache with the given staleness
// timeout, reading time through clk exclusively.
func NewInMemoryQueueLengthCache(staleness time.Duration, clk Clock) *InMemoryQueueLengthCache {
	return &InMemoryQueueLengthCache{
		entries:   make(map[string]cacheEntry),
		staleness: staleness,
		clock:     clk,
	}
}

func (c *InMemoryQueueLengthCache) Get(replicaID string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[replicaID]
	if !ok {
		return 0, false
	}
	if c.clock.Since(e.lastUpdated) >= c.staleness {
		return 0, false
	}
	return e.queueLen, true
}

func (c *InMemoryQueueLengthCache) Update(replicaID string, queueLen int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[replicaID] = cacheEntry{
		queueLen:    queueLen,
		lastUpdated: c.clock.Now(),
	}
}

func (c *InMemoryQueueLengthCache) RemoveInactive(active map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.entries {
		if _, ok := active[id]; !ok {
			delete(c.entries, id)
		}
	}
}
