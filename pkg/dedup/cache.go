package dedup

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-pkgz/lgr"
)

// Cache persists the dedup index to disk with a build timestamp so a later
// run can skip the full catalog scan when the data is fresh enough.
type Cache struct {
	path   string
	maxAge time.Duration
}

// cacheFile is the on-disk format
type cacheFile struct {
	Timestamp time.Time `json:"timestamp"`
	Entries   []Entry   `json:"entries"`
}

// NewCache creates a cache at the given path with the given freshness window
func NewCache(path string, maxAge time.Duration) *Cache {
	return &Cache{path: path, maxAge: maxAge}
}

// Save writes entries with the current timestamp
func (c *Cache) Save(entries []Entry) error {
	data, err := json.Marshal(cacheFile{Timestamp: time.Now(), Entries: entries})
	if err != nil {
		return fmt.Errorf("marshal dedup cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("write dedup cache: %w", err)
	}
	lgr.Printf("[DEBUG] dedup cache saved to %s, %d entries", c.path, len(entries))
	return nil
}

// Load returns cached entries and true when the cache exists and is younger
// than the max age. A missing file is not an error, just a miss.
func (c *Cache) Load() ([]Entry, bool, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read dedup cache: %w", err)
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, false, fmt.Errorf("parse dedup cache: %w", err)
	}

	age := time.Since(cf.Timestamp)
	if age > c.maxAge {
		lgr.Printf("[INFO] dedup cache expired (%.1fh old), rebuild needed", age.Hours())
		return nil, false, nil
	}

	return cf.Entries, true, nil
}

// Invalidate removes the cache file
func (c *Cache) Invalidate() {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		lgr.Printf("[WARN] failed to remove dedup cache %s: %v", c.path, err)
	}
}
