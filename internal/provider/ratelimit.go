package provider

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

type limitSpec struct {
	limit rate.Limit
	burst int
}

// Default rate limits per provider. Spotify gets a wide burst because the
// enrichment fan-out issues one search per chart entry at once.
var defaultRateLimits = map[ProviderName]limitSpec{
	NameLastFM:  {limit: 5, burst: 1},
	NameSpotify: {limit: 20, burst: 50},
}

// RateLimiterMap holds one rate.Limiter per provider, created once at startup.
type RateLimiterMap struct {
	mu       sync.RWMutex
	limiters map[ProviderName]*rate.Limiter
}

// NewRateLimiterMap creates all provider rate limiters.
func NewRateLimiterMap() *RateLimiterMap {
	m := &RateLimiterMap{
		limiters: make(map[ProviderName]*rate.Limiter, len(defaultRateLimits)),
	}
	for name, spec := range defaultRateLimits {
		m.limiters[name] = rate.NewLimiter(spec.limit, spec.burst)
	}
	return m
}

// Set replaces the limiter for a provider. Used by tests and by operators
// who hold a higher quota.
func (m *RateLimiterMap) Set(name ProviderName, limit rate.Limit, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = rate.NewLimiter(limit, burst)
}

// Wait blocks until the rate limiter for the given provider allows a request,
// or the context is canceled.
func (m *RateLimiterMap) Wait(ctx context.Context, name ProviderName) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
