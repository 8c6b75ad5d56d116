package utils

import (
	"sync"
	"time"
)

// StateCache is a small in-memory TTL cache for per-device connectivity
// states, keyed by device id. It sits in front of the history table so the
// poller's change detection does not hit SQLite on every pass. Thread-safe.
type StateCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	data map[int]entry
}

type entry struct {
	state int
	at    time.Time
}

// NewStateCache creates a cache with the given TTL. If ttl <= 0, it defaults
// to 1h.
func NewStateCache(ttl time.Duration) *StateCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &StateCache{ttl: ttl, data: make(map[int]entry, 64)}
}

// Get returns the cached state if present and not expired.
func (c *StateCache) Get(id int) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[id]
	if !ok {
		return 0, false
	}
	if time.Since(e.at) > c.ttl {
		delete(c.data, id)
		return 0, false
	}
	return e.state, true
}

// Set stores the state with the current timestamp.
func (c *StateCache) Set(id, state int) {
	c.mu.Lock()
	c.data[id] = entry{state: state, at: time.Now()}
	c.mu.Unlock()
}
