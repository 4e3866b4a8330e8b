// Package cache implements the bounded LRU+TTL cache tier shared by search
// and context-bundle results, plus the monotonic index fingerprint that is
// folded into every cache key.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rishitank/context-engine-sub000/internal/logging"
)

// entry is one cached value with its insertion/access bookkeeping.
type entry struct {
	Value      json.RawMessage `json:"value"`
	StoredAt   time.Time       `json:"stored_at"`
	lastAccess time.Time
}

// Cache is a bounded, TTL-expiring, LRU-evicted key/value store.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	maxSize int
	ttl     time.Duration
	path    string // on-disk persistence path, empty disables it
	dirty   bool
}

// New constructs a Cache with the given bounds. If path is non-empty and a
// snapshot exists, it is loaded eagerly, discarding TTL-expired entries.
func New(maxSize int, ttl time.Duration, path string) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		maxSize: maxSize,
		ttl:     ttl,
		path:    path,
	}
	if path != "" {
		c.load()
	}
	return c
}

// Key hashes the given parts (query, options, index fingerprint, ...) into a
// stable cache key.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the raw stored value for key if present and unexpired.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(e.StoredAt) > c.ttl {
		delete(c.entries, key)
		c.dirty = true
		return nil, false
	}
	e.lastAccess = time.Now()
	return e.Value, true
}

// Set inserts or overwrites a value, evicting the least-recently-used entry
// if the cache is at capacity.
func (c *Cache) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[key] = &entry{Value: raw, StoredAt: now, lastAccess: now}
	c.dirty = true
	return nil
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, e := range c.entries {
		if first || e.lastAccess.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.lastAccess
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		logging.CacheDebug("evicted oldest entry %s", oldestKey)
	}
}

// Clear removes all entries and, if persistence is enabled, the on-disk file.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.dirty = true
	if c.path != "" {
		os.Remove(c.path)
	}
}

// Len reports the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type onDiskFormat struct {
	Entries map[string]entry `json:"entries"`
}

func (c *Cache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var f onDiskFormat
	if err := json.Unmarshal(data, &f); err != nil {
		logging.CacheWarn("failed to parse cache snapshot %s: %v", c.path, err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range f.Entries {
		if now.Sub(e.StoredAt) > c.ttl {
			continue
		}
		ev := e
		ev.lastAccess = e.StoredAt
		c.entries[k] = &ev
	}
	logging.Cache("loaded %d unexpired entries from %s", len(c.entries), c.path)
}

// Persist writes the current cache to disk via temp-file + rename, matching
// the daemon's atomic-write convention. No-op if persistence is disabled or
// the cache has not changed since the last persist.
func (c *Cache) Persist() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" || !c.dirty {
		return nil
	}

	snapshot := onDiskFormat{Entries: make(map[string]entry, len(c.entries))}
	for k, e := range c.entries {
		snapshot.Entries[k] = *e
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	c.dirty = false
	return nil
}

// Fingerprint tracks the monotonic index fingerprint bumped on every
// successful index run, persisted at .augment-index-fingerprint.json.
type Fingerprint struct {
	mu    sync.Mutex
	path  string
	value int
}

// NewFingerprint loads (or initializes) the fingerprint counter at path.
func NewFingerprint(path string) *Fingerprint {
	fp := &Fingerprint{path: path}
	data, err := os.ReadFile(path)
	if err == nil {
		var v struct {
			Value int `json:"value"`
		}
		if json.Unmarshal(data, &v) == nil {
			fp.value = v.Value
		}
	}
	return fp
}

// Value returns the current fingerprint.
func (f *Fingerprint) Value() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Bump increments the fingerprint and persists it atomically.
func (f *Fingerprint) Bump() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value++

	data, err := json.Marshal(struct {
		Value int `json:"value"`
	}{Value: f.value})
	if err != nil {
		return f.value, err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return f.value, err
	}
	tmp, err := os.CreateTemp(dir, ".fingerprint-*.tmp")
	if err != nil {
		return f.value, err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return f.value, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return f.value, err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return f.value, err
	}
	logging.Cache("index fingerprint bumped to %d", f.value)
	return f.value, nil
}

// DebugSnapshotKeys returns the cache's current keys sorted, for tests/tools.
func (c *Cache) DebugSnapshotKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
