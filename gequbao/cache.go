package gequbao

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	// DefaultCacheTTL matches the upstream pages' practical freshness:
	// search results and play URLs stay valid for about a day.
	DefaultCacheTTL = 24 * time.Hour
	cacheDirName    = "musicsearch-http-cache"
)

// RequestCache caches upstream HTTP responses in memory and on disk.
// GET responses are keyed by URL; POST responses by URL plus request body.
// Expired file entries are kept around for one extra TTL so they can be
// served as a stale fallback when the replacing network request fails.
type RequestCache struct {
	mem *cache.Cache
	dir string
	ttl time.Duration
}

// cachedResponse is the on-disk representation of one cached response.
type cachedResponse struct {
	Key       string    `json:"key"`
	Method    string    `json:"method"`
	URL       string    `json:"url"`
	Body      []byte    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRequestCache creates a cache rooted at dir (os.TempDir() when empty)
// with the given TTL (DefaultCacheTTL when non-positive).
func NewRequestCache(dir string, ttl time.Duration) *RequestCache {
	if dir == "" {
		dir = os.TempDir()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cacheDir := filepath.Join(dir, cacheDirName)
	os.MkdirAll(cacheDir, 0755)

	return &RequestCache{
		mem: cache.New(ttl, 2*ttl),
		dir: cacheDir,
		ttl: ttl,
	}
}

// cacheKey hashes method, URL and (for POST) the request body into a short
// filename-safe key.
func cacheKey(method, url, body string) string {
	parts := []string{strings.ToUpper(method), url}
	if strings.EqualFold(method, "POST") && body != "" {
		parts = append(parts, body)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%x", sum)[:16]
}

// Get returns the cached response body for a request. stale reports whether
// the entry has outlived the TTL; callers should only use a stale entry when
// the live request fails.
func (rc *RequestCache) Get(method, url, body string) (data []byte, stale bool, ok bool) {
	key := cacheKey(method, url, body)

	// Memory entries are evicted by go-cache at TTL, so a hit is fresh.
	if cached, found := rc.mem.Get(key); found {
		if entry, ok := cached.(cachedResponse); ok {
			return entry.Body, false, true
		}
	}

	entry, found := rc.readFile(key)
	if !found {
		return nil, false, false
	}
	if time.Since(entry.Timestamp) > rc.ttl {
		return entry.Body, true, true
	}

	// Restore fresh file entries to the memory tier.
	rc.mem.Set(key, entry, cache.DefaultExpiration)
	return entry.Body, false, true
}

// Set stores a response body in both tiers.
func (rc *RequestCache) Set(method, url, body string, data []byte) error {
	key := cacheKey(method, url, body)
	entry := cachedResponse{
		Key:       key,
		Method:    strings.ToUpper(method),
		URL:       url,
		Body:      data,
		Timestamp: time.Now(),
	}

	rc.mem.Set(key, entry, cache.DefaultExpiration)
	return rc.writeFile(key, entry)
}

func (rc *RequestCache) readFile(key string) (cachedResponse, bool) {
	var entry cachedResponse

	data, err := os.ReadFile(filepath.Join(rc.dir, key+".json"))
	if err != nil {
		return entry, false
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, false
	}
	return entry, true
}

func (rc *RequestCache) writeFile(key string, entry cachedResponse) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return os.WriteFile(filepath.Join(rc.dir, key+".json"), data, 0644)
}

// CleanupExpired removes file entries older than twice the TTL. Entries in
// the window between one and two TTLs stay available as stale fallbacks.
func (rc *RequestCache) CleanupExpired() error {
	entries, err := os.ReadDir(rc.dir)
	if err != nil {
		return nil // directory missing or unreadable
	}

	for _, dirEntry := range entries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".json") {
			continue
		}

		filePath := filepath.Join(rc.dir, dirEntry.Name())
		data, err := os.ReadFile(filePath)
		if err != nil {
			continue
		}

		var entry cachedResponse
		if err := json.Unmarshal(data, &entry); err != nil {
			// Unreadable entries are useless either way.
			os.Remove(filePath)
			continue
		}

		if time.Since(entry.Timestamp) > 2*rc.ttl {
			os.Remove(filePath)
		}
	}

	return nil
}

// Stats returns basic cache statistics.
func (rc *RequestCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"memory_items": rc.mem.ItemCount(),
		"cache_dir":    rc.dir,
		"ttl":          rc.ttl.String(),
	}

	if entries, err := os.ReadDir(rc.dir); err == nil {
		stats["file_items"] = len(entries)
	} else {
		stats["file_items"] = 0
	}

	return stats
}

// Dir returns the cache directory path.
func (rc *RequestCache) Dir() string {
	return rc.dir
}
