package scan

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Entry is the cached fingerprint for one file, keyed by RelPath.
type Entry struct {
	Size    int64  `json:"size"`
	ModTime int64  `json:"mod_time"`
	Hash    string `json:"hash"`
}

// Cache persists file fingerprints between runs so unchanged files are
// never re-hashed. A missing or corrupt cache file starts empty; the cache
// is an optimization, never a source of truth.
type Cache struct {
	mu      sync.RWMutex
	path    string
	entries map[string]Entry
	dirty   bool
}

// LoadCache opens the cache at path, tolerating a missing or corrupt file.
func LoadCache(path string) *Cache {
	c := &Cache{path: path, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		c.entries = make(map[string]Entry)
	}
	return c
}

// Get returns the cached hash when size and mtime still match.
func (c *Cache) Get(rel string, info os.FileInfo) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[rel]
	if !ok {
		return "", false
	}
	if entry.Size != info.Size() || entry.ModTime != info.ModTime().Unix() {
		return "", false
	}
	return entry.Hash, true
}

// Update records a fresh fingerprint.
func (c *Cache) Update(rel string, info os.FileInfo, hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[rel] = Entry{Size: info.Size(), ModTime: info.ModTime().Unix(), Hash: hash}
	c.dirty = true
}

// Snapshot copies the current entries. Taken before a scan it is the
// "prev" side of a Diff.
func (c *Cache) Snapshot() map[string]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Prune drops entries for files no longer present in next.
func (c *Cache) Prune(next map[string]Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for rel := range c.entries {
		if _, ok := next[rel]; !ok {
			delete(c.entries, rel)
			c.dirty = true
		}
	}
}

// Save writes the cache back to disk if anything changed. The write goes
// through a temp file and rename so a crash never leaves a torn cache.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return err
	}

	c.dirty = false
	return nil
}

// Changes is the delta between two scan indexes.
type Changes struct {
	Added    []string
	Modified []string
	Removed  []string
}

// Empty reports whether nothing changed.
func (ch Changes) Empty() bool {
	return len(ch.Added) == 0 && len(ch.Modified) == 0 && len(ch.Removed) == 0
}

// Diff compares two indexes and returns sorted deltas. A file counts as
// modified when its hash differs, regardless of mtime.
func Diff(prev, next map[string]Entry) Changes {
	var ch Changes

	for rel, entry := range next {
		old, ok := prev[rel]
		switch {
		case !ok:
			ch.Added = append(ch.Added, rel)
		case old.Hash != entry.Hash:
			ch.Modified = append(ch.Modified, rel)
		}
	}
	for rel := range prev {
		if _, ok := next[rel]; !ok {
			ch.Removed = append(ch.Removed, rel)
		}
	}

	sort.Strings(ch.Added)
	sort.Strings(ch.Modified)
	sort.Strings(ch.Removed)
	return ch
}
