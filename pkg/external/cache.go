package external

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheDir is used when no cache directory is configured.
func DefaultCacheDir() string {
	return filepath.Join(os.TempDir(), "dcs-lua-composer-cache")
}

const memoSize = 64

// CacheStats reports cache effectiveness.
type CacheStats struct {
	MemoryHits int
	DiskHits   int
	Misses     int
}

// Cache stores downloaded files on disk, named after the dependency and a
// hash of the URL, with an in-process LRU in front so repeated lookups in one
// run skip the file system.
type Cache struct {
	dir   string
	memo  *lru.Cache[string, string]
	mu    sync.Mutex
	stats CacheStats
}

// NewCache creates the cache directory if needed.
func NewCache(dir string) (*Cache, error) {
	if dir == "" {
		dir = DefaultCacheDir()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	memo, err := lru.New[string, string](memoSize)
	if err != nil {
		return nil, err
	}
	return &Cache{dir: dir, memo: memo}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Path returns the file a URL is cached in: {key}_{sha256(url)[:16]}.cached.
func (c *Cache) Path(key, url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.cached", safeKey(key), hex.EncodeToString(sum[:])[:16]))
}

// Get returns cached content for url.
func (c *Cache) Get(key, url string) (string, bool) {
	path := c.Path(key, url)
	if v, ok := c.memo.Get(path); ok {
		c.count(func(s *CacheStats) { s.MemoryHits++ })
		return v, true
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is built from the cache directory
	if err != nil {
		c.count(func(s *CacheStats) { s.Misses++ })
		return "", false
	}
	c.memo.Add(path, string(data))
	c.count(func(s *CacheStats) { s.DiskHits++ })
	return string(data), true
}

// Put stores content for url.
func (c *Cache) Put(key, url, content string) error {
	path := c.Path(key, url)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	c.memo.Add(path, content)
	return nil
}

// Clean removes every cached file and returns how many were deleted.
func (c *Cache) Clean() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".cached") {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	c.memo.Purge()
	return removed, nil
}

// Stats returns a snapshot of hit and miss counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cache) count(f func(*CacheStats)) {
	c.mu.Lock()
	f(&c.stats)
	c.mu.Unlock()
}

// safeKey keeps cache file names inside the cache directory.
func safeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, key)
}
