package pack

import (
	"strings"
	"sync"
)

// cache is a simple in-memory byte cache for extracted files, keyed
// case-insensitively like the archives themselves.
type cache struct {
	mu   sync.RWMutex
	data map[string][]byte

	hits   int
	misses int
}

func newCache() *cache {
	return &cache{data: make(map[string][]byte)}
}

func (c *cache) get(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[cacheKey(path)]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

func (c *cache) set(path string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[cacheKey(path)] = data
}

func (c *cache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

func (c *cache) stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func cacheKey(path string) string {
	return strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
}
