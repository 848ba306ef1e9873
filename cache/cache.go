// Package cache provides the two-tier content-addressable result cache that
// lets the service skip recognition for previously-seen inputs. Results are
// keyed by (input fingerprint, mode) and stored as opaque serialized bytes in
// a bounded in-memory tier backed by a best-effort on-disk tier.
package cache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/danwin47-sys/ocrflow/observability"
)

// Cache is safe for concurrent use. Correctness of serving cached results
// rests on the engine being deterministic for identical (input, mode) pairs;
// with a nondeterministic engine, hits return stale-but-plausible results.
// That assumption is inherited from the system contract, not checked here.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]byte
	order   []string // insertion order, oldest first

	maxEntries int
	dir        string // persistent tier root; empty disables it
	log        observability.Logger

	queries int64
	hits    int64
	misses  int64
}

// Options configures a Cache.
type Options struct {
	// Dir is the persistent-tier directory. Empty keeps the cache
	// memory-only. The directory is created on first use.
	Dir string
	// MaxEntries bounds the in-memory tier. Zero or negative selects
	// DefaultMaxEntries.
	MaxEntries int
	// Logger receives persistent-tier I/O failures, which are swallowed.
	Logger observability.Logger
}

// DefaultMaxEntries bounds the memory tier when Options.MaxEntries is unset.
const DefaultMaxEntries = 256

// New creates a cache. The persistent directory, when configured, is created
// eagerly so later write failures are genuine I/O problems, not setup bugs.
func New(opts Options) (*Cache, error) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger{}
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Cache{
		entries:    make(map[string][]byte),
		maxEntries: opts.MaxEntries,
		dir:        opts.Dir,
		log:        opts.Logger,
	}, nil
}

// Get looks up the serialized result for (fp, mode). The memory tier is
// consulted first; on a miss the persistent tier is read and, when present,
// promoted into memory. The second return reports whether a result was found.
func (c *Cache) Get(fp Fingerprint, mode string) ([]byte, bool) {
	key := Key(fp, mode)

	c.mu.Lock()
	c.queries++
	if data, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return data, true
	}
	c.mu.Unlock()

	if c.dir != "" {
		data, err := os.ReadFile(filepath.Join(c.dir, key))
		if err == nil {
			c.mu.Lock()
			c.hits++
			c.insertLocked(key, data)
			c.mu.Unlock()
			return data, true
		}
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("cache disk read failed",
				observability.String("key", key),
				observability.Error("err", err))
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores the serialized result for (fp, mode) in both tiers. Persistent
// tier failures are logged and swallowed: the cache is best-effort, not a
// system of record.
func (c *Cache) Put(fp Fingerprint, mode string, result []byte) {
	key := Key(fp, mode)

	c.mu.Lock()
	c.insertLocked(key, result)
	c.mu.Unlock()

	if c.dir == "" {
		return
	}
	if err := c.writeFile(key, result); err != nil {
		c.log.Warn("cache disk write failed",
			observability.String("key", key),
			observability.Error("err", err))
	}
}

// insertLocked adds or overwrites a memory-tier entry and enforces the entry
// bound with insertion-order eviction. Overwrites keep the original position.
func (c *Cache) insertLocked(key string, data []byte) {
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = data

	for len(c.entries) > c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// writeFile writes via a temp file and rename so readers never observe a
// partially written record.
func (c *Cache) writeFile(key string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, key+".tmp*")
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
	return os.Rename(tmpName, filepath.Join(c.dir, key))
}

// Stats is a point-in-time snapshot of cache effectiveness counters.
type Stats struct {
	Entries int     `json:"entries"`
	Queries int64   `json:"total_queries"`
	Hits    int64   `json:"cache_hits"`
	Misses  int64   `json:"cache_misses"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns current counters. Queries counts Get calls; hits include
// both tiers.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Entries: len(c.entries),
		Queries: c.queries,
		Hits:    c.hits,
		Misses:  c.misses,
	}
	if s.Queries > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Queries)
	}
	return s
}
