package trending

import (
	"context"
	"strconv"

	"github.com/sydlexius/soundcheck/internal/cache"
)

// ResultCache holds complete responses for the canonical query only: page 1
// at the default limit. Every other query misses and is never stored.
type ResultCache struct {
	store cache.Store[Response]
}

// NewResultCache creates a result cache over store.
func NewResultCache(store cache.Store[Response]) *ResultCache {
	return &ResultCache{store: store}
}

// Cacheable reports whether q may be served from or written to the cache.
func Cacheable(q Query) bool {
	return q.Page == 1 && q.Limit == DefaultLimit
}

func resultKey(q Query) string {
	return q.Genre + "|" + strconv.Itoa(q.Limit) + "|" + strconv.Itoa(q.Page)
}

// Get returns the cached response for q.
func (c *ResultCache) Get(ctx context.Context, q Query) (Response, bool) {
	if !Cacheable(q) {
		return Response{}, false
	}
	return c.store.Get(ctx, resultKey(q))
}

// Set stores resp for q. It is a no-op for non-canonical queries.
func (c *ResultCache) Set(ctx context.Context, q Query, resp Response) {
	if !Cacheable(q) {
		return
	}
	resp.Cached = false
	c.store.Set(ctx, resultKey(q), resp)
}

// Len returns the number of stored responses.
func (c *ResultCache) Len(ctx context.Context) int { return c.store.Len(ctx) }

// Clear drops every stored response.
func (c *ResultCache) Clear(ctx context.Context) { c.store.Clear(ctx) }
