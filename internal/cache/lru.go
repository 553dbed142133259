package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUStore is a size-bounded in-process store. Unlike MemoryStore it evicts
// the least recently used entry when full and sweeps expired entries in the
// background.
type LRUStore[V any] struct {
	lru *expirable.LRU[string, V]
}

// NewLRUStore creates a store holding at most maxEntries values.
// maxEntries <= 0 means no size limit.
func NewLRUStore[V any](maxEntries int, ttl time.Duration) *LRUStore[V] {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &LRUStore[V]{lru: expirable.NewLRU[string, V](maxEntries, nil, ttl)}
}

// Get returns the value for key if present and not expired.
func (s *LRUStore[V]) Get(_ context.Context, key string) (V, bool) {
	return s.lru.Get(key)
}

// Set stores value under key.
func (s *LRUStore[V]) Set(_ context.Context, key string, value V) {
	s.lru.Add(key, value)
}

// Len returns the number of live entries.
func (s *LRUStore[V]) Len(_ context.Context) int {
	return s.lru.Len()
}

// Clear removes every entry.
func (s *LRUStore[V]) Clear(_ context.Context) {
	s.lru.Purge()
}
