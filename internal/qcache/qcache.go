// Package qcache caches completed answers keyed by the normalized question
// and its jurisdiction. One file per entry; entries expire lazily on access.
package qcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// DefaultTTL is how long a cached answer stays valid.
const DefaultTTL = 24 * time.Hour

// Entry is one cached answer as stored on disk.
type Entry struct {
	Timestamp    time.Time       `json:"timestamp"`
	Query        string          `json:"query"`
	Jurisdiction string          `json:"jurisdiction"`
	Result       json.RawMessage `json:"result"`
}

// Cache is a file-per-entry answer cache.
type Cache struct {
	Dir string
	// TTL overrides DefaultTTL when positive.
	TTL time.Duration
	// now is injectable for tests.
	now func() time.Time
}

// New returns a cache rooted at dir.
func New(dir string) *Cache {
	return &Cache{Dir: dir}
}

// KeyFrom derives the cache key for a question within a jurisdiction. The
// question is NFKC-normalized and trimmed first so full-width/half-width and
// composed/decomposed variants of the same CJK text share one entry.
func KeyFrom(query, jurisdiction string) string {
	normalized := norm.NFKC.String(strings.TrimSpace(query))
	h := sha256.Sum256([]byte(normalized + "|" + jurisdiction))
	return hex.EncodeToString(h[:])[:16]
}

func (c *Cache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultTTL
}

func (c *Cache) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *Cache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	return os.MkdirAll(c.Dir, 0o755)
}

func (c *Cache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get returns the cached result for (query, jurisdiction) if a fresh entry
// exists. Expired entries are removed on access.
func (c *Cache) Get(query, jurisdiction string) (json.RawMessage, bool) {
	if err := c.ensureDir(); err != nil {
		return nil, false
	}
	p := c.pathFor(KeyFrom(query, jurisdiction))
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Corrupt entry: drop it rather than fail the query.
		_ = os.Remove(p)
		return nil, false
	}
	if c.clock().Sub(e.Timestamp) > c.ttl() {
		_ = os.Remove(p)
		return nil, false
	}
	return e.Result, true
}

// Set stores result for (query, jurisdiction), overwriting any prior entry.
func (c *Cache) Set(query, jurisdiction string, result json.RawMessage) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	e := Entry{
		Timestamp:    c.clock(),
		Query:        query,
		Jurisdiction: jurisdiction,
		Result:       result,
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return os.WriteFile(c.pathFor(KeyFrom(query, jurisdiction)), raw, 0o644)
}

// Delete removes the entry for (query, jurisdiction) if present.
func (c *Cache) Delete(query, jurisdiction string) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	err := os.Remove(c.pathFor(KeyFrom(query, jurisdiction)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ClearAll removes every entry.
func (c *Cache) ClearAll() (int, error) {
	if err := c.ensureDir(); err != nil {
		return 0, err
	}
	names, err := filepath.Glob(filepath.Join(c.Dir, "*.json"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range names {
		if os.Remove(name) == nil {
			removed++
		}
	}
	return removed, nil
}

// Stats summarizes cache contents without deserializing results.
type Stats struct {
	Entries int
	Expired int
	Bytes   int64
}

// Stat walks the cache and counts live and expired entries.
func (c *Cache) Stat() (Stats, error) {
	var s Stats
	if err := c.ensureDir(); err != nil {
		return s, err
	}
	names, err := filepath.Glob(filepath.Join(c.Dir, "*.json"))
	if err != nil {
		return s, err
	}
	now := c.clock()
	for _, name := range names {
		info, err := os.Stat(name)
		if err != nil {
			continue
		}
		s.Entries++
		s.Bytes += info.Size()
		raw, err := os.ReadFile(name)
		if err != nil {
			continue
		}
		var e Entry
		if json.Unmarshal(raw, &e) == nil && now.Sub(e.Timestamp) > c.ttl() {
			s.Expired++
		}
	}
	return s, nil
}

// List returns all live entries, newest first. Expired entries are skipped
// but not removed; eviction stays on the Get path.
func (c *Cache) List() ([]Entry, error) {
	if err := c.ensureDir(); err != nil {
		return nil, err
	}
	names, err := filepath.Glob(filepath.Join(c.Dir, "*.json"))
	if err != nil {
		return nil, err
	}
	now := c.clock()
	out := make([]Entry, 0, len(names))
	for _, name := range names {
		raw, err := os.ReadFile(name)
		if err != nil {
			continue
		}
		var e Entry
		if json.Unmarshal(raw, &e) != nil {
			continue
		}
		if now.Sub(e.Timestamp) > c.ttl() {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}
