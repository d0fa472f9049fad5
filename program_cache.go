package settings

import "sync"

// MemoryProgramCache is a concurrency-safe ProgramCache with no eviction.
// Rule expressions come from schemas, so the key set is bounded.
type MemoryProgramCache struct {
	mu    sync.RWMutex
	items map[string]any
}

// NewMemoryProgramCache returns an empty cache.
func NewMemoryProgramCache() *MemoryProgramCache {
	return &MemoryProgramCache{items: map[string]any{}}
}

// Get returns the compiled program stored under key.
func (c *MemoryProgramCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.items[key]
	return value, ok
}

// Set stores a compiled program under key.
func (c *MemoryProgramCache) Set(key string, value any) {
	c.mu.Lock()
	c.items[key] = value
	c.mu.Unlock()
}

// Len returns the number of cached programs.
func (c *MemoryProgramCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
