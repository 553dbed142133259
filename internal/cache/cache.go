// Package cache provides the TTL key-value stores behind the result and
// catalog caches.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sydlexius/soundcheck/internal/metrics"
)

// Store is a key-value store whose entries expire a fixed TTL after they
// were written. Expired entries read as misses. Implementations are safe for
// concurrent use; concurrent writers to one key are last-writer-wins.
type Store[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V)
	Len(ctx context.Context) int
	Clear(ctx context.Context)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// MemoryStore is an unbounded in-process store. Expiry is checked lazily on
// read and nothing is swept; an expired entry stays until it is overwritten
// or the store is cleared.
type MemoryStore[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore creates an empty store with the given TTL.
func NewMemoryStore[V any](ttl time.Duration) *MemoryStore[V] {
	return &MemoryStore[V]{
		items: make(map[string]entry[V]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (s *MemoryStore[V]) Get(_ context.Context, key string) (V, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || !s.now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, expiring ttl from now.
func (s *MemoryStore[V]) Set(_ context.Context, key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry[V]{value: value, expiresAt: s.now().Add(s.ttl)}
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore[V]) Len(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear removes every entry.
func (s *MemoryStore[V]) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.items)
}

// instrumented counts hits and misses for a named cache.
type instrumented[V any] struct {
	Store[V]
	name string
}

// WithMetrics wraps a store so every Get is recorded as a hit or miss
// under the given cache name.
func WithMetrics[V any](name string, s Store[V]) Store[V] {
	return &instrumented[V]{Store: s, name: name}
}

func (s *instrumented[V]) Get(ctx context.Context, key string) (V, bool) {
	v, ok := s.Store.Get(ctx, key)
	metrics.RecordCacheLookup(s.name, ok)
	return v, ok
}
