package trending

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sydlexius/soundcheck/internal/cache"
	"github.com/sydlexius/soundcheck/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeCatalog answers searches from canned matches keyed by album name.
type fakeCatalog struct {
	configured bool
	matches    map[string]provider.AlbumMatch
	errs       map[string]error
	delays     map[string]time.Duration
	// stubborn ignores the context while delayed.
	stubborn bool

	mu    sync.Mutex
	calls map[string]int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		configured: true,
		matches:    make(map[string]provider.AlbumMatch),
		errs:       make(map[string]error),
		delays:     make(map[string]time.Duration),
		calls:      make(map[string]int),
	}
}

func (f *fakeCatalog) Configured(context.Context) bool { return f.configured }

func (f *fakeCatalog) SearchAlbum(ctx context.Context, name, artist string) (*provider.AlbumMatch, error) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()

	if d := f.delays[name]; d > 0 {
		if f.stubborn {
			time.Sleep(d)
		} else {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	m, ok := f.matches[name]
	if !ok {
		return nil, &provider.ErrNotFound{Provider: provider.NameSpotify, ID: name}
	}
	return &m, nil
}

func (f *fakeCatalog) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeCatalog) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func candidate(name, artist string, playcount int) provider.AlbumCandidate {
	return provider.AlbumCandidate{
		Name:      name,
		Artist:    artist,
		URL:       "https://www.last.fm/music/" + strings.ReplaceAll(artist, " ", "+"),
		Playcount: playcount,
		Images: []provider.ImageResult{
			{URL: "https://lastfm.example/300/" + name + ".png", Width: 300, Height: 300},
			{URL: "https://lastfm.example/64/" + name + ".png", Width: 64, Height: 64},
		},
	}
}

func catalogMatch(id, name, artist string) provider.AlbumMatch {
	return provider.AlbumMatch{
		ProviderID:           id,
		Name:                 name,
		Artists:              []provider.ArtistRef{{ID: "artist-" + id, Name: artist}},
		Images:               []provider.ImageResult{{URL: "https://i.scdn.example/" + id + ".jpg", Width: 640, Height: 640}},
		ReleaseDate:          "1997",
		ReleaseDatePrecision: "year",
		URL:                  "https://open.spotify.com/album/" + id,
	}
}

func newTestEnricher(catalog Catalog, timeout time.Duration) (*Enricher, *cache.MemoryStore[Album]) {
	store := cache.NewMemoryStore[Album](24 * time.Hour)
	return NewEnricher(catalog, store, EnricherOptions{LookupTimeout: timeout}, testLogger()), store
}

func TestEnrichUnconfiguredCatalog(t *testing.T) {
	cat := newFakeCatalog()
	cat.configured = false
	e, _ := newTestEnricher(cat, time.Second)

	got := e.Enrich(context.Background(), []provider.AlbumCandidate{
		candidate("OK Computer", "Radiohead", 100),
		candidate("Rumours", "Fleetwood Mac", 50),
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 albums, got %d", len(got))
	}
	a := got[0]
	if a.ID != "lastfm::OK%20Computer::Radiohead" {
		t.Errorf("id = %q", a.ID)
	}
	if a.Popularity != 0 || a.Playcount != 100 || a.Precision != "day" || a.ReleaseDate != "" {
		t.Errorf("fallback fields = %+v", a)
	}
	if len(a.Artists) != 1 || a.Artists[0].Name != "Radiohead" || a.Artists[0].ID != "" {
		t.Errorf("artists = %+v", a.Artists)
	}
	if len(a.Images) != 2 || a.Images[0].Height != 300 {
		t.Errorf("images = %+v", a.Images)
	}
	if cat.totalCalls() != 0 {
		t.Errorf("expected no catalog calls, got %d", cat.totalCalls())
	}
}

func TestEnrichNilCatalog(t *testing.T) {
	e, _ := newTestEnricher(nil, time.Second)
	got := e.Enrich(context.Background(), []provider.AlbumCandidate{candidate("X", "Y", 1)})
	if len(got) != 1 || !strings.HasPrefix(got[0].ID, "lastfm::") {
		t.Errorf("got %+v", got)
	}
}

func TestEnrichMixedOutcomes(t *testing.T) {
	cat := newFakeCatalog()
	cat.matches["OK Computer"] = catalogMatch("okc", "OK Computer", "Radiohead")
	cat.errs["Broken"] = errors.New("connection reset")
	e, store := newTestEnricher(cat, time.Second)

	got := e.Enrich(context.Background(), []provider.AlbumCandidate{
		candidate("OK Computer", "Radiohead", 100),
		candidate("Unknown", "Nobody", 20),
		candidate("Broken", "Someone", 10),
	})

	if got[0].ID != "okc" || got[0].Precision != "year" || got[0].ReleaseDate != "1997" {
		t.Errorf("matched album = %+v", got[0])
	}
	if got[0].Playcount != 100 || got[0].Popularity != 0 {
		t.Errorf("matched counts = playcount %d popularity %d", got[0].Playcount, got[0].Popularity)
	}
	if len(got[0].Images) != 1 || got[0].Images[0].Height != 640 {
		t.Errorf("catalog images not preferred: %+v", got[0].Images)
	}
	if got[0].Artists[0].ID != "artist-okc" {
		t.Errorf("artists = %+v", got[0].Artists)
	}
	if got[1].ID != "lastfm::Unknown::Nobody" || got[2].ID != "lastfm::Broken::Someone" {
		t.Errorf("fallback ids = %q, %q", got[1].ID, got[2].ID)
	}

	// Only the match is cached.
	if n := store.Len(context.Background()); n != 1 {
		t.Errorf("catalog cache entries = %d, want 1", n)
	}
}

func TestEnrichCatalogWithoutImages(t *testing.T) {
	cat := newFakeCatalog()
	m := catalogMatch("bare", "Bare", "Artist")
	m.Images = nil
	cat.matches["Bare"] = m
	e, _ := newTestEnricher(cat, time.Second)

	got := e.Enrich(context.Background(), []provider.AlbumCandidate{candidate("Bare", "Artist", 1)})
	if len(got[0].Images) != 2 || got[0].Images[0].URL != "https://lastfm.example/300/Bare.png" {
		t.Errorf("expected chart images as fallback, got %+v", got[0].Images)
	}
}

func TestEnrichCatalogCacheHit(t *testing.T) {
	cat := newFakeCatalog()
	cat.matches["OK Computer"] = catalogMatch("okc", "OK Computer", "Radiohead")
	e, _ := newTestEnricher(cat, time.Second)
	ctx := context.Background()

	first := e.Enrich(ctx, []provider.AlbumCandidate{candidate("OK Computer", "Radiohead", 100)})
	second := e.Enrich(ctx, []provider.AlbumCandidate{candidate("  ok computer ", "RADIOHEAD", 250)})

	if cat.callCount("OK Computer") != 1 || cat.totalCalls() != 1 {
		t.Errorf("expected one catalog call, got %d", cat.totalCalls())
	}
	if second[0].ID != first[0].ID {
		t.Errorf("cached id = %q, want %q", second[0].ID, first[0].ID)
	}
	if second[0].Playcount != 250 {
		t.Errorf("cached playcount = %d, want current 250", second[0].Playcount)
	}
	if first[0].Playcount != 100 {
		t.Errorf("first result mutated: playcount %d", first[0].Playcount)
	}
}

func TestEnrichFallbackNotCached(t *testing.T) {
	cat := newFakeCatalog()
	e, _ := newTestEnricher(cat, time.Second)
	ctx := context.Background()

	e.Enrich(ctx, []provider.AlbumCandidate{candidate("Unknown", "Nobody", 1)})
	e.Enrich(ctx, []provider.AlbumCandidate{candidate("Unknown", "Nobody", 1)})
	if n := cat.callCount("Unknown"); n != 2 {
		t.Errorf("catalog calls = %d, want 2", n)
	}
}

func TestEnrichSlowLookupFallsBack(t *testing.T) {
	cat := newFakeCatalog()
	names := []string{"A", "B", "C", "D", "E"}
	for _, n := range names {
		cat.matches[n] = catalogMatch("id-"+n, n, "Artist "+n)
	}
	cat.delays["C"] = 2 * time.Second
	e, _ := newTestEnricher(cat, 100*time.Millisecond)

	var in []provider.AlbumCandidate
	for i, n := range names {
		in = append(in, candidate(n, "Artist "+n, 10*(i+1)))
	}

	start := time.Now()
	got := e.Enrich(context.Background(), in)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Enrich took %v, expected the lookup budget to bound it", elapsed)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 albums, got %d", len(got))
	}
	for i, n := range names {
		want := "id-" + n
		if n == "C" {
			want = "lastfm::C::Artist%20C"
		}
		if got[i].ID != want {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestEnrichDeadlineHoldsForStubbornCatalog(t *testing.T) {
	cat := newFakeCatalog()
	cat.stubborn = true
	cat.matches["Slow"] = catalogMatch("slow", "Slow", "Artist")
	cat.delays["Slow"] = 500 * time.Millisecond
	e, _ := newTestEnricher(cat, 50*time.Millisecond)

	start := time.Now()
	got := e.Enrich(context.Background(), []provider.AlbumCandidate{candidate("Slow", "Artist", 1)})
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("Enrich took %v, expected to return at the deadline", elapsed)
	}
	if got[0].ID != "lastfm::Slow::Artist" {
		t.Errorf("id = %q, want fallback", got[0].ID)
	}
}

func TestEnrichDetachedFromCallerCancel(t *testing.T) {
	cat := newFakeCatalog()
	cat.matches["OK Computer"] = catalogMatch("okc", "OK Computer", "Radiohead")
	e, store := newTestEnricher(cat, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := e.Enrich(ctx, []provider.AlbumCandidate{candidate("OK Computer", "Radiohead", 1)})
	if got[0].ID != "okc" {
		t.Errorf("id = %q, want catalog id despite canceled caller", got[0].ID)
	}
	if _, ok := store.Get(context.Background(), CatalogKey("OK Computer", "Radiohead")); !ok {
		t.Error("expected catalog cache populated")
	}
}

func TestEnrichBoundedConcurrency(t *testing.T) {
	cat := newFakeCatalog()
	var in []provider.AlbumCandidate
	for i := range 20 {
		name := string(rune('a' + i))
		cat.matches[name] = catalogMatch("id-"+name, name, "x")
		in = append(in, candidate(name, "x", i))
	}
	store := cache.NewMemoryStore[Album](time.Hour)
	e := NewEnricher(cat, store, EnricherOptions{LookupTimeout: time.Second, Concurrency: 3}, testLogger())

	got := e.Enrich(context.Background(), in)
	for i, a := range got {
		if a.ID != "id-"+in[i].Name {
			t.Errorf("got[%d] = %q, order not preserved", i, a.ID)
		}
	}
}

func TestFallbackID(t *testing.T) {
	tests := []struct {
		name, artist, want string
	}{
		{"OK Computer", "Radiohead", "lastfm::OK%20Computer::Radiohead"},
		{"Back in Black", "AC/DC", "lastfm::Back%20in%20Black::AC%2FDC"},
		{"a::b", "c", "lastfm::a%3A%3Ab::c"},
		{"Mañana", "Ñu", "lastfm::Ma%C3%B1ana::%C3%91u"},
	}
	for _, tt := range tests {
		if got := FallbackID(tt.name, tt.artist); got != tt.want {
			t.Errorf("FallbackID(%q, %q) = %q, want %q", tt.name, tt.artist, got, tt.want)
		}
	}
}

func TestCatalogKey(t *testing.T) {
	if CatalogKey("  OK Computer ", "RadioHead") != "ok computer::radiohead" {
		t.Errorf("CatalogKey = %q", CatalogKey("  OK Computer ", "RadioHead"))
	}
}
