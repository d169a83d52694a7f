// Package cache memoizes hot read-path results with class-based TTLs,
// prefix invalidation and stale fail-open on recompute failure.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"launchpad-indexer/internal/observability"
)

// Class selects the TTL band of an entry.
type Class string

// TTL classes.
const (
	ClassTick    Class = "tick"    // near-real-time reads, seconds
	ClassListing Class = "listing" // paginated listings, low minutes
	ClassStats   Class = "stats"   // platform aggregates, minutes
)

// Default configuration values.
const (
	DefaultTickTTL       = 2 * time.Second
	DefaultListingTTL    = 2 * time.Minute
	DefaultStatsTTL      = 5 * time.Minute
	DefaultSweepInterval = time.Minute

	// staleGrace is how long an expired entry stays usable for
	// fail-open before the sweeper discards it.
	staleGrace = 10 * time.Minute
)

// Config sets per-class TTLs and the sweep cadence.
type Config struct {
	TickTTL       time.Duration
	ListingTTL    time.Duration
	StatsTTL      time.Duration
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickTTL <= 0 {
		c.TickTTL = DefaultTickTTL
	}
	if c.ListingTTL <= 0 {
		c.ListingTTL = DefaultListingTTL
	}
	if c.StatsTTL <= 0 {
		c.StatsTTL = DefaultStatsTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return c
}

type entry struct {
	value     any
	class     Class
	expiresAt time.Time
}

// Cache is a process-local TTL cache. It deliberately lives in the same
// process as the read handlers; the data it holds is derivable from
// storage at any time, so there is nothing to share across instances.
type Cache struct {
	cfg    Config
	logger *slog.Logger
	nowFn  func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty cache.
func New(cfg Config, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		cfg:     cfg.withDefaults(),
		logger:  logger.With("component", "cache"),
		nowFn:   time.Now,
		entries: make(map[string]*entry),
	}
}

func (c *Cache) ttl(class Class) time.Duration {
	switch class {
	case ClassTick:
		return c.cfg.TickTTL
	case ClassListing:
		return c.cfg.ListingTTL
	case ClassStats:
		return c.cfg.StatsTTL
	default:
		return c.cfg.TickTTL
	}
}

// GetOrCompute returns the cached value for key, computing and storing
// it on miss or expiry. When recompute fails and an expired value is
// still around, the stale value is served instead of the error.
func (c *Cache) GetOrCompute(ctx context.Context, key string, class Class, fn func(ctx context.Context) (any, error)) (any, error) {
	now := c.nowFn()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && now.Before(e.expiresAt) {
		observability.RecordCacheHit(string(class))
		return e.value, nil
	}
	observability.RecordCacheMiss(string(class))

	value, err := fn(ctx)
	if err != nil {
		if ok {
			observability.RecordCacheStale(string(class))
			c.logger.Warn("serving stale entry, recompute failed",
				"key", key, "error", err)
			return e.value, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = &entry{
		value:     value,
		class:     class,
		expiresAt: now.Add(c.ttl(class)),
	}
	size := len(c.entries)
	c.mu.Unlock()
	observability.UpdateCacheEntries(size)

	return value, nil
}

// Invalidate removes every entry whose key starts with prefix and
// returns the number removed.
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		observability.UpdateCacheEntries(len(c.entries))
	}
	return removed
}

// Len returns the number of live entries, expired included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep discards entries expired past the fail-open grace window and
// returns the number removed. Advisory: correctness never depends on it.
func (c *Cache) Sweep() int {
	cutoff := c.nowFn().Add(-staleGrace)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.expiresAt.Before(cutoff) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		observability.UpdateCacheEntries(len(c.entries))
	}
	return removed
}

// Run sweeps on a ticker until the context is cancelled.
func (c *Cache) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("swept expired entries", "removed", n)
			}
		}
	}
}
