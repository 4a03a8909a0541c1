package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedMemory fronts a Memory with an in-process LRU. Misses are not cached.
type CachedMemory struct {
	next  Memory
	cache *lru.Cache[MemoryKey, string]
}

// NewCachedMemory wraps next with an LRU holding up to size entries.
func NewCachedMemory(next Memory, size int) (*CachedMemory, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[MemoryKey, string](size)
	if err != nil {
		return nil, err
	}
	return &CachedMemory{next: next, cache: cache}, nil
}

func (c *CachedMemory) GetMemory(ctx context.Context, key MemoryKey) (string, bool, error) {
	key.Source = normalizeText(key.Source)
	if v, ok := c.cache.Get(key); ok {
		return v, true, nil
	}
	v, ok, err := c.next.GetMemory(ctx, key)
	if err != nil || !ok {
		return v, ok, err
	}
	c.cache.Add(key, v)
	return v, true, nil
}

func (c *CachedMemory) SaveMemory(ctx context.Context, key MemoryKey, output string) error {
	key.Source = normalizeText(key.Source)
	if err := c.next.SaveMemory(ctx, key, output); err != nil {
		return err
	}
	c.cache.Add(key, output)
	return nil
}

// Purge drops every cached entry.
func (c *CachedMemory) Purge() {
	c.cache.Purge()
}
