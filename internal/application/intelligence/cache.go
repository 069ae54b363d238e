package intelligence

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// CacheEntry is one stored analysis, the moment it was computed and the
// user's cache generation when its computation began.
type CacheEntry struct {
	Analysis   *CollectionAnalysis `json:"analysis"`
	CreatedAt  time.Time           `json:"created_at"`
	Generation int64               `json:"generation"`
}

// AnalysisCache stores at most one entry per user. Get returns (nil, nil) on
// a miss; freshness is judged by the engine against its own clock.
//
// Invalidate advances the user's generation. Put drops an entry whose
// Generation is behind it and Get never returns one, so a computation that
// raced an invalidation cannot repopulate the cache.
type AnalysisCache interface {
	Get(ctx context.Context, userID string) (*CacheEntry, error)
	Put(ctx context.Context, userID string, entry *CacheEntry) error
	Invalidate(ctx context.Context, userID string) error
	Generation(ctx context.Context, userID string) (int64, error)
}

// MemoryCache is a process-local AnalysisCache. Writes replace.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	gens    map[string]int64
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*CacheEntry), gens: make(map[string]int64)}
}

func (c *MemoryCache) Get(_ context.Context, userID string) (*CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry := c.entries[userID]
	if entry != nil && entry.Generation != c.gens[userID] {
		return nil, nil
	}
	return entry, nil
}

func (c *MemoryCache) Put(_ context.Context, userID string, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry.Generation != c.gens[userID] {
		return nil
	}
	c.entries[userID] = entry
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[userID]++
	delete(c.entries, userID)
	return nil
}

func (c *MemoryCache) Generation(_ context.Context, userID string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[userID], nil
}

// Len reports the number of cached users.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// KeyValueCache is the subset of a distributed cache client DistributedCache
// needs. Get reports a miss with an error satisfying errors.IsNotFound. Incr
// atomically adds one to an integer key, starting from zero.
type KeyValueCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
}

// DistributedCache shares analyses across processes through a KeyValueCache.
// Generations live in their own keys without expiry.
type DistributedCache struct {
	kv  KeyValueCache
	ttl time.Duration
}

// NewDistributedCache wraps kv. Entries expire server-side after ttl.
func NewDistributedCache(kv KeyValueCache, ttl time.Duration) *DistributedCache {
	return &DistributedCache{kv: kv, ttl: ttl}
}

func analysisKey(userID string) string { return "analysis:" + userID }

func generationKey(userID string) string { return "analysis-gen:" + userID }

func (c *DistributedCache) Get(ctx context.Context, userID string) (*CacheEntry, error) {
	var entry CacheEntry
	if err := c.kv.Get(ctx, analysisKey(userID), &entry); err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if entry.Analysis == nil {
		return nil, nil
	}
	gen, err := c.Generation(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entry.Generation != gen {
		return nil, nil
	}
	return &entry, nil
}

func (c *DistributedCache) Put(ctx context.Context, userID string, entry *CacheEntry) error {
	gen, err := c.Generation(ctx, userID)
	if err != nil {
		return err
	}
	if entry.Generation != gen {
		return nil
	}
	return c.kv.Set(ctx, analysisKey(userID), entry, c.ttl)
}

func (c *DistributedCache) Invalidate(ctx context.Context, userID string) error {
	if _, err := c.kv.Incr(ctx, generationKey(userID)); err != nil {
		return err
	}
	return c.kv.Delete(ctx, analysisKey(userID))
}

func (c *DistributedCache) Generation(ctx context.Context, userID string) (int64, error) {
	var gen int64
	if err := c.kv.Get(ctx, generationKey(userID), &gen); err != nil {
		if errors.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return gen, nil
}
