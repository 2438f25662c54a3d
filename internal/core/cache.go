package core

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// minCacheSize and maxCacheSize bound set_max_size per §4.9.
const (
	minCacheSize = 3
	maxCacheSize = 20
)

// Cache is a persistent, MRU-ordered associative store keyed by
// normalize_query_key(phrase), per §4.9. In-memory ordering/eviction uses
// an LRU map (hashicorp/golang-lru/v2); persistence is a single JSON file
// written atomically via temp-file + rename, matching the file layout in
// §6 rather than the donor's Redis-backed L2 store (there is no network
// KV component in this spec's cache design).
type Cache struct {
	mu      sync.RWMutex
	entries *lru.Cache[string, CacheEntry]
	maxSize int
	path    string
	ttl     time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache builds a cache backed by path, loading and pruning any
// existing persisted entries. An unreadable file is logged and the cache
// starts empty (§4.9 failure mode).
func NewCache(path string, maxSize int, ttl time.Duration) *Cache {
	if maxSize < minCacheSize {
		maxSize = minCacheSize
	}
	if maxSize > maxCacheSize {
		maxSize = maxCacheSize
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}

	backing, err := lru.New[string, CacheEntry](maxSize)
	if err != nil {
		// Only returns an error for non-positive size, already clamped above.
		backing, _ = lru.New[string, CacheEntry](minCacheSize)
	}

	c := &Cache{entries: backing, maxSize: maxSize, path: path, ttl: ttl}
	c.load()
	return c
}

func (c *Cache) load() {
	if c.path == "" {
		return
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("cache: unreadable persistence file, starting empty", slog.Any("error", err))
		}
		return
	}

	var files []cacheEntryFile
	if err := json.Unmarshal(data, &files); err != nil {
		slog.Warn("cache: corrupt persistence file, starting empty", slog.Any("error", err))
		return
	}

	now := time.Now()
	// The file lists entries most-recent first; add them oldest first so the
	// in-memory recency order matches what was persisted.
	for i := len(files) - 1; i >= 0; i-- {
		f := files[i]
		createdAt := time.Unix(f.CreatedAtUnixSec, 0)
		ttl := time.Duration(f.TTLSeconds) * time.Second
		if now.After(createdAt.Add(ttl)) {
			continue // expired: pruned on load
		}
		c.entries.Add(f.Query, CacheEntry{
			QueryKey:  f.Query,
			Results:   f.Results,
			CreatedAt: createdAt,
			TTL:       ttl,
		})
	}
}

// Get returns the entry for key if present and non-expired, moving it to
// MRU position. Expired entries are evicted on access.
func (c *Cache) Get(key string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return CacheEntry{}, false
	}
	if time.Now().After(entry.CreatedAt.Add(entry.TTL)) {
		c.entries.Remove(key)
		c.misses.Add(1)
		return CacheEntry{}, false
	}
	c.hits.Add(1)
	return entry, true
}

// Put upserts key→results, possibly evicting the least-recently-used
// entry, then persists atomically.
func (c *Cache) Put(key string, results []SearchResult) {
	c.mu.Lock()
	c.entries.Add(key, CacheEntry{
		QueryKey:  key,
		Results:   results,
		CreatedAt: time.Now(),
		TTL:       c.ttl,
	})
	c.mu.Unlock()
	c.persist()
}

// Remove deletes key.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	c.entries.Remove(key)
	c.mu.Unlock()
	c.persist()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries.Purge()
	c.mu.Unlock()
	c.persist()
}

// SetMaxSize resizes the cache, clamped to [3, 20]; if the current size
// exceeds n, the tail (least-recently-used) is evicted.
func (c *Cache) SetMaxSize(n int) {
	if n < minCacheSize {
		n = minCacheSize
	}
	if n > maxCacheSize {
		n = maxCacheSize
	}
	c.mu.Lock()
	c.maxSize = n
	c.entries.Resize(n)
	c.mu.Unlock()
	c.persist()
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Len()
}

// Stats returns hit/miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// persist atomically writes the entry list (most-recent first) to disk
// via a temp-file + rename; write failures are logged, not raised, per
// §4.9's "write failures: keep in-memory state, surface a warning".
func (c *Cache) persist() {
	if c.path == "" {
		return
	}
	c.mu.RLock()
	keys := c.entries.Keys() // least-recent first
	files := make([]cacheEntryFile, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- { // reverse: most-recent first
		entry, ok := c.entries.Peek(keys[i])
		if !ok {
			continue
		}
		files = append(files, cacheEntryFile{
			Query:            entry.QueryKey,
			Results:          entry.Results,
			CreatedAtUnixSec: entry.CreatedAt.Unix(),
			TTLSeconds:       int64(entry.TTL.Seconds()),
		})
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		slog.Warn("cache: marshal failed", slog.Any("error", err))
		return
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("cache: mkdir failed", slog.String("dir", dir), slog.Any("error", err))
		return
	}
	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		slog.Warn("cache: tempfile create failed", slog.Any("error", err))
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		slog.Warn("cache: write failed", slog.Any("error", err))
		return
	}
	if err := tmp.Close(); err != nil {
		slog.Warn("cache: close failed", slog.Any("error", err))
		return
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		slog.Warn("cache: rename failed", slog.Any("error", err))
	}
}

// DefaultCachePath returns the platform user cache directory's
// website-searcher/cache.json, per §6.
func DefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "website-searcher", "cache.json")
}

// queryCacheKeyHash gives orchestrator.go's search-started log line a
// short, stable identifier for a query without printing the raw text.
func queryCacheKeyHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", sum[:8])
}
