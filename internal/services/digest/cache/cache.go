// Package cache keeps recent adapter results so repeated fetches inside one
// dispatch pass, or across subscribers, reuse a single provider call.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/louisbranch/onepaper/internal/platform/metrics"
	"github.com/louisbranch/onepaper/internal/services/digest/domain"
)

const (
	// DefaultTTL is how long a stored result stays fresh.
	DefaultTTL = time.Hour
	// DefaultCapacity bounds the number of stored keys.
	DefaultCapacity = 100
)

// Lookup result label values.
const (
	resultHit  = "hit"
	resultMiss = "miss"
)

// FetchFunc produces the items for one key on a miss.
type FetchFunc func(ctx context.Context) ([]domain.NewsItem, error)

type entry struct {
	items      []domain.NewsItem
	insertedAt time.Time
}

// Cache is a TTL cache of adapter results keyed by source name.
type Cache struct {
	ttl      time.Duration
	capacity int
	clock    func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group
}

// Option customizes a cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCapacity overrides DefaultCapacity. Non-positive values are ignored.
func WithCapacity(capacity int) Option {
	return func(c *Cache) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// WithClock injects the time source.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New builds an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:      DefaultTTL,
		capacity: DefaultCapacity,
		clock:    time.Now,
		entries:  make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL reports the freshness window.
func (c *Cache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// Get returns the items stored for key when they are still fresh.
func (c *Cache) Get(key string) ([]domain.NewsItem, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock().Sub(e.insertedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.items, true
}

// Put stores items for key, replacing any earlier entry. When the cache is
// full the oldest entry is evicted.
func (c *Cache) Put(key string, items []domain.NewsItem) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	c.entries[key] = entry{items: items, insertedAt: c.clock()}
}

// Len reports the number of stored entries, fresh or not.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetOrFetch returns the fresh entry for key or calls fetch and stores a
// successful result. Concurrent misses on one key share a single fetch.
// Errors are returned to every waiter and never stored.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch FetchFunc) ([]domain.NewsItem, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c == nil {
		return fetch(ctx)
	}
	if items, ok := c.Get(key); ok {
		metrics.CacheLookupsTotal.WithLabelValues(resultHit).Inc()
		return items, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues(resultMiss).Inc()

	value, err, _ := c.group.Do(key, func() (any, error) {
		if items, ok := c.Get(key); ok {
			return items, nil
		}
		items, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(key, items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]domain.NewsItem), nil
}

func (c *Cache) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for key, e := range c.entries {
		if !found || e.insertedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = key, e.insertedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}
