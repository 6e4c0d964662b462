// Package cache is a short-TTL result cache keyed by structured
// (operation, parameters) tuples, so distinct queries can never collide the
// way ad hoc string keys can.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const defaultTTL = 5 * time.Minute

// Key identifies one cached computation.
type Key struct {
	Op     string
	Tenant string
	Start  time.Time
	End    time.Time
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%d|%d", k.Op, k.Tenant, k.Start.UnixNano(), k.End.UnixNano())
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// ResultCache caches computed values for a fixed TTL. Entries are replaced
// wholesale; a concurrent reader sees either the old value or the new one,
// never a partial write.
type ResultCache[V any] struct {
	mu      sync.RWMutex
	entries map[Key]entry[V]

	ttl time.Duration
	now func() time.Time

	group singleflight.Group
}

// Option applies a configuration option to a ResultCache.
type Option func(*settings)

type settings struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a result cache with configuration options.
func New[V any](opts ...Option) *ResultCache[V] {
	s := settings{
		ttl: defaultTTL,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(&s)
	}

	return &ResultCache[V]{
		entries: make(map[Key]entry[V]),
		ttl:     s.ttl,
		now:     s.now,
	}
}

// Get returns the cached value for key if it is still fresh.
func (c *ResultCache[V]) Get(ctx context.Context, key Key) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		var zero V
		return zero, false
	}

	return e.value, true
}

// Set stores a value under key with the current timestamp.
func (c *ResultCache[V]) Set(ctx context.Context, key Key, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
	size := len(c.entries)
	c.mu.Unlock()

	metrics.UpdateCacheEntries(size)
}

// GetOrCompute returns the fresh cached value for key, or invokes compute
// exactly once across concurrent callers, stores its result, and returns
// it. A failed compute stores nothing, so the next caller tries again.
func (c *ResultCache[V]) GetOrCompute(ctx context.Context, key Key, compute func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(ctx, key); ok {
		metrics.RecordCacheHit()
		return v, nil
	}

	result, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		// A concurrent caller may have filled the slot while we queued.
		if v, ok := c.Get(ctx, key); ok {
			metrics.RecordCacheHit()
			return v, nil
		}

		metrics.RecordCacheMiss()
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		c.Set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	value, ok := result.(V)
	if !ok {
		var zero V
		return zero, fmt.Errorf("unexpected cached value type %T", result)
	}

	return value, nil
}

// Invalidate drops the entry for key, if any.
func (c *ResultCache[V]) Invalidate(key Key) {
	c.mu.Lock()
	delete(c.entries, key)
	size := len(c.entries)
	c.mu.Unlock()

	metrics.UpdateCacheEntries(size)
}

// InvalidateTenant drops every entry belonging to one tenant. Used when a
// tenant disconnects.
func (c *ResultCache[V]) InvalidateTenant(tenant string) {
	c.mu.Lock()
	for k := range c.entries {
		if k.Tenant == tenant {
			delete(c.entries, k)
		}
	}
	size := len(c.entries)
	c.mu.Unlock()

	metrics.UpdateCacheEntries(size)
}

// Len returns the number of entries, fresh or expired.
func (c *ResultCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Sweep removes expired entries. Call it periodically to bound memory; the
// cache stays correct without it because Get checks freshness.
func (c *ResultCache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	cutoff := c.now()
	for k, e := range c.entries {
		if cutoff.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, k)
			removed++
		}
	}

	metrics.UpdateCacheEntries(len(c.entries))

	return removed
}
