package cache

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amirasaad/storefront/pkg/cache"
)

// MemoryCache implements cache.Cache using in-process storage. Values are
// kept JSON-encoded so readers never share mutable state with writers.
type MemoryCache struct {
	entries map[string]*cacheEntry
	mu      sync.RWMutex
	hits    atomic.Uint64
	misses  atomic.Uint64
	stop    chan struct{}
	once    sync.Once
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
	permanent bool
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryCache creates a new in-memory cache. A positive sweepInterval
// starts a background sweeper that drops expired entries until Close.
func NewMemoryCache(sweepInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*cacheEntry),
		stop:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.cleanup(sweepInterval)
	}
	return c
}

// Get decodes a live entry into dest. Expired entries are removed lazily.
func (c *MemoryCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		c.misses.Add(1)
		return false, nil
	}
	if entry.expired(time.Now()) {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.misses.Add(1)
		return false, nil
	}
	if err := json.Unmarshal(entry.value, dest); err != nil {
		return false, err
	}
	c.hits.Add(1)
	return true, nil
}

// Set stores value with ttl. A zero ttl never expires.
func (c *MemoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration, permanent bool) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := &cacheEntry{value: data, permanent: permanent}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// DeletePattern removes every key matching the glob.
func (c *MemoryCache) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, err
	}
	return c.removeWhere(func(key string, _ *cacheEntry) bool {
		ok, _ := path.Match(pattern, key)
		return ok
	}), nil
}

// ClearExpired removes expired entries.
func (c *MemoryCache) ClearExpired(ctx context.Context) (int, error) {
	now := time.Now()
	return c.removeWhere(func(_ string, e *cacheEntry) bool { return e.expired(now) }), nil
}

// ClearTemporary removes every non-permanent entry.
func (c *MemoryCache) ClearTemporary(ctx context.Context) (int, error) {
	return c.removeWhere(func(_ string, e *cacheEntry) bool { return !e.permanent }), nil
}

// ClearAll empties the cache.
func (c *MemoryCache) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	return nil
}

// Stats reports entry counts and hit ratios.
func (c *MemoryCache) Stats(ctx context.Context) (cache.Stats, error) {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := cache.Stats{
		Backend: "memory",
		Entries: len(c.entries),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
	for _, e := range c.entries {
		if e.permanent {
			st.Permanent++
		}
		if e.expired(now) {
			st.Expired++
		}
	}
	return st, nil
}

// Close stops the background sweeper.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) removeWhere(match func(string, *cacheEntry) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if match(key, entry) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// cleanup removes expired entries from cache
func (c *MemoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			_, _ = c.ClearExpired(context.Background())
		}
	}
}

var _ cache.Cache = (*MemoryCache)(nil)
