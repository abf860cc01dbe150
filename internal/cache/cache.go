// Package cache implements the process-wide LRU cache with TTL and
// stale-while-revalidate semantics described in spec.md §4.4 (C4).
//
// The bounded-LRU container itself is github.com/hashicorp/golang-lru/v2,
// already present in the teacher's dependency graph (pulled in transitively
// via hashicorp/consul/api) and promoted here to a direct, exercised
// dependency; the TTL/staleness bookkeeping is layered on top the way
// internal/bigsegments layers freshness tracking over a raw store.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is the fixed LRU bound used when a Cache is constructed
// with New, matching spec.md §4.4's "fixed bound N in implementation, e.g., 100".
const DefaultCapacity = 100

type entry struct {
	data      interface{}
	timestamp time.Time
}

// Result is returned by Get on a hit.
type Result struct {
	Data  interface{}
	Stale bool
}

// Cache is a shared, string-keyed LRU cache with per-read TTL evaluation.
// The TTL is supplied at Get time (not at Set time) because, per spec.md
// §4.4, the cache itself is blind to entity identity or policy; the store
// coordinator decides how long each key's data should live.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, *entry]
	now func() time.Time
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithClock overrides the time source; used by tests to simulate TTL expiry
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache bounded at DefaultCapacity entries.
func New(opts ...Option) *Cache {
	return NewWithCapacity(DefaultCapacity, opts...)
}

// NewWithCapacity creates a Cache bounded at capacity entries.
func NewWithCapacity(capacity int, opts ...Option) *Cache {
	underlying, err := lru.New[string, *entry](capacity)
	if err != nil {
		// Only returns an error for capacity <= 0; the engine always supplies
		// a positive capacity, so this is unreachable in practice.
		panic(err)
	}
	c := &Cache{lru: underlying, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key if it has not expired, moving it to
// most-recently-used. Stale is set when the entry's age lies in
// (ttl/2, ttl); an entry whose age is ttl or more is evicted and Get returns
// (Result{}, false), per spec.md invariant 4.
func (c *Cache) Get(key string, ttl time.Duration) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return Result{}, false
	}

	age := c.now().Sub(e.timestamp)
	if age >= ttl {
		c.lru.Remove(key)
		return Result{}, false
	}

	return Result{Data: e.data, Stale: age > ttl/2}, true
}

// Set inserts or refreshes key's timestamp, evicting the least-recently-used
// entry first if the cache is at capacity.
func (c *Cache) Set(key string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, &entry{data: data, timestamp: c.now()})
}

// Clear removes one entry.
func (c *Cache) Clear(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// ClearPrefix removes every entry whose key begins with prefix, used for
// cross-key invalidation after a write (spec.md §4.4).
func (c *Cache) ClearPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.lru.Keys() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			c.lru.Remove(key)
		}
	}
}

// Len reports the number of entries currently cached, for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
