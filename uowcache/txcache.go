package uowcache

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// txCache is the per-transaction entry store with a reverse tag index. It is
// not safe for concurrent use; a unit of work serves one logical operation at
// a time, so no locking is needed.
type txCache struct {
	entries map[string]txEntry
	byTag   map[string]map[string]struct{}
	hits    int
	misses  int
}

type txEntry struct {
	value any
	tags  []string
}

func newTxCache() *txCache {
	return &txCache{
		entries: make(map[string]txEntry),
		byTag:   make(map[string]map[string]struct{}),
	}
}

func (c *txCache) get(key string) (any, bool) {
	e, ok := c.entries[key]
	if ok {
		c.hits++
		return e.value, true
	}
	c.misses++
	return nil, false
}

func (c *txCache) put(key string, value any, tags []string) {
	c.entries[key] = txEntry{value: value, tags: tags}
	for _, tag := range tags {
		keys, ok := c.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

// invalidate drops every entry registered under any of the tags. Matching is
// exact map lookup, never substring comparison.
func (c *txCache) invalidate(tags ...string) int {
	dropped := 0
	for _, tag := range tags {
		for key := range c.byTag[tag] {
			if e, ok := c.entries[key]; ok {
				delete(c.entries, key)
				dropped++
				for _, other := range e.tags {
					if other == tag {
						continue
					}
					delete(c.byTag[other], key)
				}
			}
		}
		delete(c.byTag, tag)
	}
	return dropped
}

func (c *txCache) clear() {
	c.entries = make(map[string]txEntry)
	c.byTag = make(map[string]map[string]struct{})
}

// Stats describes the cache at a point in time. Entries is keyed by entity
// kind, derived from the key's operation prefix.
type Stats struct {
	Entries map[string]int
	Hits    int
	Misses  int
}

func (c *txCache) stats() Stats {
	s := Stats{
		Entries: make(map[string]int),
		Hits:    c.hits,
		Misses:  c.misses,
	}
	for key := range c.entries {
		entity := key
		if i := strings.Index(key, "_"); i > 0 {
			entity = key[:i]
		}
		s.Entries[entity]++
	}
	return s
}

func habitTag(id int64) string { return "habit:" + strconv.FormatInt(id, 10) }
func listTag(id int64) string  { return "list:" + strconv.FormatInt(id, 10) }

func userTag(id uuid.UUID) string { return "user:" + id.String() }
