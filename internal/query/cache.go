package query

import (
	"sync"
)

// cacheEntry holds one cached result plus the set of columns the query
// touched, so ingests into those columns can invalidate it.
type cacheEntry struct {
	result  map[string][]interface{}
	columns map[string]struct{}
}

// ResultCache maps query signatures to materialized results. Entries are
// invalidated by column on ingest, never by age.
type ResultCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	maxEntries int

	hits   uint64
	misses uint64
}

// NewResultCache returns a cache bounded to maxEntries; zero or negative
// means unbounded.
func NewResultCache(maxEntries int) *ResultCache {
	return &ResultCache{
		entries:    make(map[string]cacheEntry),
		maxEntries: maxEntries,
	}
}

// Get returns the cached result for a signature. The returned map is a
// fresh shallow copy so callers cannot mutate the cached entry's shape.
func (c *ResultCache) Get(signature string) (map[string][]interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[signature]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	out := make(map[string][]interface{}, len(entry.result))
	for name, values := range entry.result {
		out[name] = values
	}
	return out, true
}

// Put stores a result under its signature, recording the columns it
// depends on. When the cache is full an arbitrary entry is dropped; the
// workload re-derives evicted results on the next miss.
func (c *ResultCache) Put(signature string, result map[string][]interface{}, columns []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[signature]; !exists {
			for key := range c.entries {
				delete(c.entries, key)
				break
			}
		}
	}

	deps := make(map[string]struct{}, len(columns))
	for _, name := range columns {
		deps[name] = struct{}{}
	}
	c.entries[signature] = cacheEntry{result: result, columns: deps}
}

// InvalidateColumns drops every entry whose dependency set intersects the
// ingested columns.
func (c *ResultCache) InvalidateColumns(columns []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for signature, entry := range c.entries {
		for _, name := range columns {
			if _, ok := entry.columns[name]; ok {
				delete(c.entries, signature)
				dropped++
				break
			}
		}
	}
	return dropped
}

// Purge drops all entries.
func (c *ResultCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len reports the number of live entries.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats reports hit and miss counters.
func (c *ResultCache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
