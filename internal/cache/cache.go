// Package cache provides a process-local read-through cache with per-entry
// TTL, lazy and periodic eviction, and daily hit/miss accounting. Each
// process owns its own cache; there is no cross-instance coherence.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/spotsng/discovery-be/internal/metrics"
	"github.com/spotsng/discovery-be/shared/clock"
)

const (
	// DefaultTTL applies when no explicit TTL is given
	DefaultTTL = 5 * time.Minute
	// DefaultCleanupInterval is how often the periodic sweep runs
	DefaultCleanupInterval = 10 * time.Minute
)

type entry[T any] struct {
	data      T
	timestamp time.Time
	ttl       time.Duration
}

// valid reports whether the entry is still live at the given instant.
func (e entry[T]) valid(now time.Time) bool {
	return now.Sub(e.timestamp) <= e.ttl
}

// Stats is a point-in-time snapshot of cache state and daily counters
type Stats struct {
	Hits    int64    `json:"hits"`
	Misses  int64    `json:"misses"`
	Entries int      `json:"entries"`
	Keys    []string `json:"keys"`
}

// Config holds cache construction options
type Config struct {
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
	Clock           clock.Clock
	Logger          *slog.Logger
	Metrics         *metrics.Collector
}

// Cache is a mutex-guarded TTL cache. Hit/miss counters reset at each
// UTC day boundary.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]

	defaultTTL      time.Duration
	cleanupInterval time.Duration
	clock           clock.Clock
	logger          *slog.Logger
	metrics         *metrics.Collector

	hits     int64
	misses   int64
	statsDay string

	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

// New creates a new Cache
func New[T any](cfg Config) *Cache[T] {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Cache[T]{
		entries:         make(map[string]entry[T]),
		defaultTTL:      cfg.DefaultTTL,
		cleanupInterval: cfg.CleanupInterval,
		clock:           cfg.Clock,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		stopChan:        make(chan struct{}),
	}
	c.statsDay = dayOf(c.clock.Now())

	return c
}

// Get returns the cached value for key if present and unexpired. Expired
// entries are removed on the spot and counted as misses.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.rollCounters(now)

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		if c.metrics != nil {
			c.metrics.RecordCacheMiss()
		}
		var zero T
		return zero, false
	}

	if !e.valid(now) {
		delete(c.entries, key)
		c.misses++
		if c.metrics != nil {
			c.metrics.RecordCacheMiss()
		}
		var zero T
		return zero, false
	}

	c.hits++
	if c.metrics != nil {
		c.metrics.RecordCacheHit()
	}

	return e.data, true
}

// Set stores a value under key with the default TTL, overwriting any
// prior entry.
func (c *Cache[T]) Set(key string, data T) {
	c.SetTTL(key, data, c.defaultTTL)
}

// SetTTL stores a value under key with an explicit TTL
func (c *Cache[T]) SetTTL(key string, data T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[T]{
		data:      data,
		timestamp: c.clock.Now(),
		ttl:       ttl,
	}
}

// Delete removes the entry for key, if any
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Clear removes all entries
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry[T])
}

// Cleanup eagerly removes all expired entries, regardless of whether they
// were ever read. Bounds memory growth from keys that are never re-read.
func (c *Cache[T]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0

	for key, e := range c.entries {
		if !e.valid(now) {
			delete(c.entries, key)
			removed++
		}
	}

	return removed
}

// Stats returns current entry count, key set, and the daily hit/miss
// counters.
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollCounters(c.clock.Now())

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}

	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Entries: len(c.entries),
		Keys:    keys,
	}
}

// Start launches the periodic cleanup task. Safe to call once per cache.
func (c *Cache[T]) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.cleanupLoop(ctx)
}

// Stop terminates the periodic cleanup task and waits for it to exit
func (c *Cache[T]) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	close(c.stopChan)
	c.wg.Wait()
}

func (c *Cache[T]) cleanupLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := c.Cleanup()
			if removed > 0 {
				c.logger.Debug("Cache cleanup removed expired entries",
					slog.Int("removed", removed),
				)
			}
		}
	}
}

// rollCounters resets hit/miss counters when the UTC day changes.
// Callers must hold c.mu.
func (c *Cache[T]) rollCounters(now time.Time) {
	day := dayOf(now)
	if day != c.statsDay {
		c.hits = 0
		c.misses = 0
		c.statsDay = day
	}
}

func dayOf(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
