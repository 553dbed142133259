package cache

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sydlexius/soundcheck/internal/database"
	"github.com/sydlexius/soundcheck/internal/metrics"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStoreLazyExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	s := NewMemoryStore[payload](time.Hour)
	s.now = clock.Now

	s.Set(ctx, "rock", payload{Name: "rock", Count: 5})
	got, ok := s.Get(ctx, "rock")
	if !ok || got.Count != 5 {
		t.Fatalf("Get = %+v, %v", got, ok)
	}

	clock.Advance(59 * time.Minute)
	if _, ok := s.Get(ctx, "rock"); !ok {
		t.Error("entry expired early")
	}

	clock.Advance(time.Minute)
	if _, ok := s.Get(ctx, "rock"); ok {
		t.Error("entry served at its expiry instant")
	}
	// Expired entries are not swept.
	if n := s.Len(ctx); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}

	s.Set(ctx, "rock", payload{Name: "rock", Count: 7})
	got, ok = s.Get(ctx, "rock")
	if !ok || got.Count != 7 {
		t.Errorf("overwritten entry = %+v, %v", got, ok)
	}
}

func TestMemoryStoreClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[int](time.Minute)
	s.Set(ctx, "a", 1)
	s.Set(ctx, "b", 2)
	s.Clear(ctx)
	if n := s.Len(ctx); n != 0 {
		t.Errorf("Len after Clear = %d", n)
	}
	if _, ok := s.Get(ctx, "a"); ok {
		t.Error("expected miss after Clear")
	}
}

func TestMemoryStoreConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[int](time.Minute)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Set(ctx, "shared", i)
			s.Get(ctx, "shared")
		}()
	}
	wg.Wait()
	if _, ok := s.Get(ctx, "shared"); !ok {
		t.Error("expected shared key present")
	}
}

func TestWithMetrics(t *testing.T) {
	ctx := context.Background()
	s := WithMetrics[int]("cache-test", NewMemoryStore[int](time.Minute))

	hits := testutil.ToFloat64(metrics.CacheHits.WithLabelValues("cache-test"))
	misses := testutil.ToFloat64(metrics.CacheMisses.WithLabelValues("cache-test"))

	s.Get(ctx, "missing")
	s.Set(ctx, "k", 1)
	s.Get(ctx, "k")

	if d := testutil.ToFloat64(metrics.CacheHits.WithLabelValues("cache-test")) - hits; d != 1 {
		t.Errorf("hits delta = %v", d)
	}
	if d := testutil.ToFloat64(metrics.CacheMisses.WithLabelValues("cache-test")) - misses; d != 1 {
		t.Errorf("misses delta = %v", d)
	}
}

func TestLRUStoreBounded(t *testing.T) {
	ctx := context.Background()
	s := NewLRUStore[int](2, time.Hour)
	s.Set(ctx, "a", 1)
	s.Set(ctx, "b", 2)
	s.Set(ctx, "c", 3)

	if _, ok := s.Get(ctx, "a"); ok {
		t.Error("expected oldest entry evicted")
	}
	if v, ok := s.Get(ctx, "c"); !ok || v != 3 {
		t.Errorf("Get(c) = %d, %v", v, ok)
	}
	if n := s.Len(ctx); n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}
	s.Clear(ctx)
	if n := s.Len(ctx); n != 0 {
		t.Errorf("Len after Clear = %d", n)
	}
}

func newSQLStore(t *testing.T, namespace string, ttl time.Duration) (*SQLStore[payload], *testClock) {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewSQLStore[payload](db, namespace, ttl, logger)
	clock := newClock()
	s.now = clock.Now
	return s, clock
}

func TestSQLStoreRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	s, clock := newSQLStore(t, "catalog", 24*time.Hour)

	if _, ok := s.Get(ctx, "ok computer::radiohead"); ok {
		t.Fatal("expected miss on empty table")
	}

	s.Set(ctx, "ok computer::radiohead", payload{Name: "OK Computer", Count: 1})
	s.Set(ctx, "ok computer::radiohead", payload{Name: "OK Computer", Count: 2})
	got, ok := s.Get(ctx, "ok computer::radiohead")
	if !ok || got.Count != 2 {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	if n := s.Len(ctx); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}

	clock.Advance(24 * time.Hour)
	if _, ok := s.Get(ctx, "ok computer::radiohead"); ok {
		t.Error("expected expired entry to miss")
	}

	removed, err := s.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if removed != 1 {
		t.Errorf("PurgeExpired removed %d, want 1", removed)
	}
}

func TestSQLStoreNamespaces(t *testing.T) {
	ctx := context.Background()
	a, _ := newSQLStore(t, "a", time.Hour)
	b := NewSQLStore[payload](a.db, "b", time.Hour, a.logger)

	a.Set(ctx, "k", payload{Name: "from-a"})
	if _, ok := b.Get(ctx, "k"); ok {
		t.Error("namespace b should not see namespace a entries")
	}
	b.Set(ctx, "k", payload{Name: "from-b"})
	a.Clear(ctx)
	if got, ok := b.Get(ctx, "k"); !ok || got.Name != "from-b" {
		t.Errorf("b entry after clearing a = %+v, %v", got, ok)
	}
}
