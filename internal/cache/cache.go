package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	val V
	exp time.Time
}

// Memory is a TTL map. A zero TTL disables caching: Set becomes a no-op.
type Memory[V any] struct {
	mu  sync.RWMutex
	m   map[string]entry[V]
	ttl time.Duration
	now func() time.Time
	gen uint64
}

func NewMemory[V any](ttl time.Duration) *Memory[V] {
	return &Memory[V]{m: make(map[string]entry[V]), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (c *Memory[V]) WithClock(now func() time.Time) *Memory[V] {
	c.now = now
	return c
}

func (c *Memory[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.m[key]
	if !ok || !c.now().Before(e.exp) {
		var zero V
		return zero, false
	}
	return e.val, true
}

func (c *Memory[V]) Set(key string, val V) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = entry[V]{val: val, exp: c.now().Add(c.ttl)}
}

// Generation changes on every Delete and Purge. Read it before loading a
// value and store the value with SetIfCurrent, so a load that raced an
// invalidation is dropped instead of cached.
func (c *Memory[V]) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// SetIfCurrent stores val only if no invalidation happened since gen was
// read. It reports whether the value was stored.
func (c *Memory[V]) SetIfCurrent(key string, val V, gen uint64) bool {
	if c.ttl <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.m[key] = entry[V]{val: val, exp: c.now().Add(c.ttl)}
	return true
}

func (c *Memory[V]) Delete(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for _, k := range keys {
		delete(c.m, k)
	}
}

func (c *Memory[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.m = make(map[string]entry[V])
}
