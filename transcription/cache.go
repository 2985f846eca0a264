package transcription

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// CacheEntry is one cached chunk transcript.
type CacheEntry struct {
	// Provider is the id that produced the text.
	Provider string `json:"provider"`
	Text     string `json:"text"`
	// Timestamps are relative to the chunk start, as the provider
	// returned them.
	Timestamps []Timestamp `json:"timestamps,omitempty"`
}

// Cache stores chunk transcripts keyed by content hash, so re-running a
// job over unchanged audio skips the provider calls. Only ok results
// are cached; degraded and failed chunks always go back to a provider.
type Cache struct {
	path string

	mu      sync.RWMutex
	entries map[string]CacheEntry
}

// NewCache creates an in-memory cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]CacheEntry)}
}

// OpenFileCache creates a cache backed by a JSON file, loading existing
// entries when the file exists. Save persists the current state.
func OpenFileCache(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]CacheEntry)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("transcription: read cache: %w", err)
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("transcription: parse cache: %w", err)
	}
	return c, nil
}

// Key returns the cache key for a chunk payload transcribed under the
// given provider settings. Identical bytes requested with a different
// provider, model or language never share an entry.
func Key(data []byte, provider, model, language string) string {
	h := sha256.New()
	h.Write(data)
	fmt.Fprintf(h, "\x00%s\x00%s\x00%s", provider, model, language)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached entry for a key.
func (c *Cache) Get(key string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Put stores an entry under a key.
func (c *Cache) Put(key string, e CacheEntry) {
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Save writes the cache to its backing file. A no-op for purely
// in-memory caches.
func (c *Cache) Save() error {
	if c.path == "" {
		return nil
	}
	c.mu.RLock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("transcription: encode cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("transcription: write cache: %w", err)
	}
	return nil
}
