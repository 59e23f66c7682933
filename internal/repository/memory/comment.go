// Package memory keeps listing caches inside the process.
// It is used when no redis is configured.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Guyuepp/go-comment-engine/domain"
)

type entry struct {
	gen  int64
	rows []domain.CommentRow
}

type commentCache struct {
	cache *gocache.Cache

	mu   sync.Mutex
	gens map[string]int64
}

var _ domain.CommentCache = (*commentCache)(nil)

func NewCommentCache(ttl time.Duration) *commentCache {
	return &commentCache{
		cache: gocache.New(ttl, ttl*2),
		gens:  make(map[string]int64),
	}
}

func (c *commentCache) GetList(_ context.Context, key string) ([]domain.CommentRow, error) {
	cached, found := c.cache.Get(key)
	if !found {
		return nil, domain.ErrCacheMiss
	}
	e, ok := cached.(entry)
	if !ok || e.gen != c.generation(key) {
		c.cache.Delete(key)
		return nil, domain.ErrCacheMiss
	}
	// callers own the returned slice
	return slices.Clone(e.rows), nil
}

func (c *commentCache) Generation(_ context.Context, key string) (int64, error) {
	return c.generation(key), nil
}

func (c *commentCache) SetList(_ context.Context, key string, gen int64, rows []domain.CommentRow) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gens[key] {
		return nil
	}
	c.cache.Set(key, entry{gen: gen, rows: slices.Clone(rows)}, gocache.DefaultExpiration)
	return nil
}

func (c *commentCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.gens[key]++
		c.cache.Delete(key)
	}
	return nil
}

func (c *commentCache) generation(key string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}
