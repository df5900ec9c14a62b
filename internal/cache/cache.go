package cache

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Cache is a process-local TTL key/value store used to avoid repeated
// store lookups (account status, authorization checks). It is advisory
// only: a miss always recomputes from the authoritative store, and no
// instance shares it.
//
// The sweep goroutine is owned by the caller via Start/Stop; nothing here
// self-starts, so tests drive expiry through the injected clock alone.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	nowFunc    func() time.Time
	logger     zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Stats is a point-in-time snapshot of cache contents.
type Stats struct {
	Size int
	Keys []string
}

type Option func(*Cache)

// WithNowFunc sets the time source (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(c *Cache) {
		c.nowFunc = now
	}
}

// WithDefaultTTL sets the TTL applied when SetDefault is used
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.defaultTTL = ttl
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func New(options ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]entry),
		defaultTTL: 5 * time.Minute,
		nowFunc:    time.Now,
		logger:     zerolog.Nop(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Get returns the cached value, or (nil, false) on a miss or an expired
// entry. Expired entries are dropped lazily here and eagerly by the sweep.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expiresAt.After(c.nowFunc()) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores the value with the given TTL.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		value:     value,
		expiresAt: c.nowFunc().Add(ttl),
	}
}

// SetDefault stores the value with the cache's default TTL.
func (c *Cache) SetDefault(key string, value any) {
	c.Set(key, value, c.defaultTTL)
}

// Del removes a single key.
func (c *Cache) Del(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// DelPattern removes every key matching the glob pattern (e.g. "user:*")
// and returns how many were removed. Used to bust grouped entries when
// ban/suspend/role state changes.
func (c *Cache) DelPattern(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	deleted := 0
	for key := range c.entries {
		if matched, err := path.Match(pattern, key); err == nil && matched {
			delete(c.entries, key)
			deleted++
		}
	}
	return deleted
}

// GetOrCompute returns the cached value or computes, caches and returns a
// fresh one. Errors from compute are returned without caching.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (any, error)) (any, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	c.Set(key, value, ttl)
	return value, nil
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// GetStats returns a snapshot of the live (unexpired) contents.
func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.nowFunc()
	stats := Stats{Keys: make([]string, 0, len(c.entries))}
	for key, e := range c.entries {
		if e.expiresAt.After(now) {
			stats.Keys = append(stats.Keys, key)
			stats.Size++
		}
	}
	return stats
}

// Start launches the background sweep removing expired entries at the
// given interval. Call Stop to shut it down.
func (c *Cache) Start(interval time.Duration) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				removed := c.sweep()
				if removed > 0 {
					c.logger.Debug().Int("removed", removed).Msg("cache sweep")
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep goroutine. Safe to call more than once, and
// safe without a prior Start.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Cache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	removed := 0
	for key, e := range c.entries {
		if !e.expiresAt.After(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
