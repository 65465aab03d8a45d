package llm

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/xxh3"
)

// CachedGenerator memoizes a TextGenerator by the xxh3 hash of the prompt.
// Only successful replies are cached.
type CachedGenerator struct {
	next  TextGenerator
	cache *lru.Cache[uint64, string]
}

// NewCachedGenerator wraps next with an LRU of the given size.
func NewCachedGenerator(next TextGenerator, size int) (*CachedGenerator, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[uint64, string](size)
	if err != nil {
		return nil, fmt.Errorf("llm: new cache: %w", err)
	}
	return &CachedGenerator{next: next, cache: cache}, nil
}

// Generate returns the cached reply for prompt or asks the wrapped
// generator.
func (c *CachedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	key := xxh3.HashString(prompt)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.next.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, v)
	return v, nil
}

// Len returns the number of cached replies.
func (c *CachedGenerator) Len() int { return c.cache.Len() }
