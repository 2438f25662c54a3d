package core

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetPutRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := NewCache(path, 5, time.Hour)

	_, ok := c.Get("elden ring")
	assert.False(t, ok, "expected miss on empty cache")

	want := []SearchResult{{Site: "fitgirl", Title: "Elden Ring", URL: "https://x/1"}}
	c.Put("elden ring", want)

	entry, ok := c.Get("elden ring")
	require.True(t, ok, "expected hit after put")
	assert.Equal(t, want, entry.Results)
}

func TestCacheExpiresEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := NewCache(path, 5, time.Millisecond)
	c.Put("q", []SearchResult{{Site: "a", Title: "t", URL: "u"}})

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("q")
	assert.False(t, ok, "expected expired entry to miss")
}

func TestCachePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c1 := NewCache(path, 5, time.Hour)
	c1.Put("elden ring", []SearchResult{{Site: "fitgirl", Title: "Elden Ring", URL: "https://x/1"}})

	c2 := NewCache(path, 5, time.Hour)
	entry, ok := c2.Get("elden ring")
	require.True(t, ok, "expected second instance to load persisted entry")
	assert.Equal(t, "Elden Ring", entry.Results[0].Title)
}

func TestCacheSetMaxSizeClampedAndEvicts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := NewCache(path, 4, time.Hour)
	c.Put("a", []SearchResult{{Site: "s", Title: "a", URL: "a"}})
	c.Put("b", []SearchResult{{Site: "s", Title: "b", URL: "b"}})
	c.Put("c", []SearchResult{{Site: "s", Title: "c", URL: "c"}})
	c.Put("d", []SearchResult{{Site: "s", Title: "d", URL: "d"}})

	c.SetMaxSize(1)
	assert.Equal(t, minCacheSize, c.Len(), "expected SetMaxSize(1) to clamp to minCacheSize and evict down to it")

	c.SetMaxSize(0)
	if n := c.Len(); n > minCacheSize {
		t.Errorf("expected max size clamp to minCacheSize, len=%d", n)
	}
}

func TestCacheStatsTracksHitsAndMisses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	c := NewCache(path, 5, time.Hour)
	c.Put("q", []SearchResult{{Site: "a", Title: "t", URL: "u"}})

	c.Get("q")
	c.Get("missing")

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}
