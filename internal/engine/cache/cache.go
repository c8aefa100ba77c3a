// Package cache provides a bounded, least-recently-used cache of decoded
// block contents keyed by block identifier.
//
// The cache is not authoritative; every entry is reconstructible from the
// block store. Its job is to keep the handful of blocks a user is viewing
// or editing decoded while bounding memory for very large documents.
//
// The mutex guards only the lookup/insert/evict bookkeeping and is never
// held across disk I/O, so a slow read of one block never blocks rendering
// from another. Concurrent misses for the same block are collapsed into a
// single store read.
package cache

import (
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/dshills/blockdoc/internal/engine/block"
)

// DefaultCapacity is the default number of decoded blocks kept resident.
const DefaultCapacity = 6

// Loader loads and decodes one block on a cache miss. *block.Store
// satisfies it.
type Loader interface {
	ReadBlock(id block.ID) ([]string, error)
}

type entry struct {
	lines  []string
	access uint64
}

// Cache is a bounded LRU of decoded block contents. Safe for concurrent
// use.
type Cache struct {
	mu      sync.Mutex
	loader  Loader
	cap     int
	entries map[block.ID]*entry
	clock   uint64 // monotonic access counter, guarded by mu

	group singleflight.Group

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithCapacity bounds the number of resident blocks. Values < 1 are
// ignored.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n >= 1 {
			c.cap = n
		}
	}
}

// New returns a cache that fills misses from loader.
func New(loader Loader, opts ...Option) *Cache {
	c := &Cache{
		loader:  loader,
		cap:     DefaultCapacity,
		entries: make(map[block.ID]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BlockLines returns the decoded lines of a block, loading and caching
// them on a miss. A lookup served from the cache, or from another
// goroutine's in-flight load, counts as a hit and marks the entry most
// recently used; only the store read itself counts as a miss. The
// returned slice is shared; callers must treat it as read-only.
//
// BlockLines implements chunk.Resolver.
func (c *Cache) BlockLines(id block.ID) ([]string, error) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		c.clock++
		e.access = c.clock
		c.mu.Unlock()
		c.hits.Add(1)
		return e.lines, nil
	}
	c.mu.Unlock()

	// Load outside the lock; collapse concurrent misses for the same id.
	// loaded stays false on the calls that joined an in-flight load.
	var loaded bool
	v, err, _ := c.group.Do(keyFor(id), func() (any, error) {
		loaded = true
		c.misses.Add(1)
		lines, err := c.loader.ReadBlock(id)
		if err != nil {
			return nil, err
		}
		c.insert(id, lines)
		return lines, nil
	})
	if err != nil {
		return nil, err
	}
	if !loaded {
		c.hits.Add(1)
		c.touch(id)
	}
	return v.([]string), nil
}

// touch marks the entry most recently used, if still resident.
func (c *Cache) touch(id block.ID) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		c.clock++
		e.access = c.clock
	}
	c.mu.Unlock()
}

// Invalidate drops a block's entry, if present. Called when an edit
// supersedes the block so stale lines are never served again.
func (c *Cache) Invalidate(id block.ID) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[block.ID]*entry)
	c.mu.Unlock()
}

// Len returns the number of resident blocks.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()

	return Stats{
		Size:      size,
		Capacity:  c.cap,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   rate,
	}
}

func (c *Cache) insert(id block.ID, lines []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clock++
	c.entries[id] = &entry{lines: lines, access: c.clock}
	for len(c.entries) > c.cap {
		c.evictOldest()
	}
}

// evictOldest removes the least-recently-used entry. Caller holds mu.
func (c *Cache) evictOldest() {
	var (
		oldest block.ID
		best   uint64
		found  bool
	)
	for id, e := range c.entries {
		if !found || e.access < best {
			oldest = id
			best = e.access
			found = true
		}
	}
	if found {
		delete(c.entries, oldest)
		c.evictions.Add(1)
	}
}

func keyFor(id block.ID) string {
	return strconv.Itoa(int(id))
}
