package trending

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sydlexius/soundcheck/internal/cache"
	"github.com/sydlexius/soundcheck/internal/metrics"
	"github.com/sydlexius/soundcheck/internal/provider"
)

// Enrichment defaults.
const (
	DefaultLookupTimeout = 3 * time.Second
	DefaultConcurrency   = MaxLimit
)

// Catalog looks albums up in a secondary catalog.
type Catalog interface {
	Configured(ctx context.Context) bool
	SearchAlbum(ctx context.Context, name, artist string) (*provider.AlbumMatch, error)
}

// Enricher matches chart candidates against the catalog. Each candidate is
// resolved on its own; a failed or slow lookup yields the fallback album
// for that candidate and never affects the others.
type Enricher struct {
	catalog     Catalog
	cache       cache.Store[Album]
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
}

// EnricherOptions tunes an Enricher. Zero values select the defaults.
type EnricherOptions struct {
	LookupTimeout time.Duration
	Concurrency   int
}

// NewEnricher creates an Enricher. catalogCache holds matches keyed by
// normalized name and artist.
func NewEnricher(catalog Catalog, catalogCache cache.Store[Album], opts EnricherOptions, logger *slog.Logger) *Enricher {
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = DefaultLookupTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Enricher{
		catalog:     catalog,
		cache:       catalogCache,
		timeout:     opts.LookupTimeout,
		concurrency: opts.Concurrency,
		logger:      logger.With(slog.String("component", "enricher")),
	}
}

// CatalogKey is the catalog cache key for an album.
func CatalogKey(name, artist string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "::" + strings.ToLower(strings.TrimSpace(artist))
}

// Enrich returns one album per candidate, in candidate order. It never
// fails. Lookups are detached from ctx cancellation so that a lookup in
// flight when the caller goes away still lands in the catalog cache.
func (e *Enricher) Enrich(ctx context.Context, candidates []provider.AlbumCandidate) []Album {
	out := make([]Album, len(candidates))

	if e.catalog == nil || !e.catalog.Configured(ctx) {
		for i, c := range candidates {
			out[i] = fallbackAlbum(c)
		}
		metrics.EnrichmentOutcomes.WithLabelValues(metrics.OutcomeFallback).Add(float64(len(candidates)))
		return out
	}

	detached := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			out[i] = e.enrichOne(detached, c)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

type lookupResult struct {
	match *provider.AlbumMatch
	err   error
}

func (e *Enricher) enrichOne(ctx context.Context, c provider.AlbumCandidate) Album {
	key := CatalogKey(c.Name, c.Artist)
	if hit, ok := e.cache.Get(ctx, key); ok {
		hit.Playcount = c.Playcount
		metrics.EnrichmentOutcomes.WithLabelValues(metrics.OutcomeCached).Inc()
		return hit
	}

	lookupCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// The search runs on its own goroutine so the deadline holds even for a
	// catalog that ignores its context.
	done := make(chan lookupResult, 1)
	go func() {
		m, err := e.catalog.SearchAlbum(lookupCtx, c.Name, c.Artist)
		done <- lookupResult{match: m, err: err}
	}()

	var res lookupResult
	select {
	case res = <-done:
	case <-lookupCtx.Done():
		res.err = lookupCtx.Err()
	}

	if res.err != nil || res.match == nil {
		e.logLookupFailure(c, res.err)
		metrics.EnrichmentOutcomes.WithLabelValues(metrics.OutcomeFallback).Inc()
		return fallbackAlbum(c)
	}

	album := matchedAlbum(*res.match, c)
	e.cache.Set(ctx, key, album)
	metrics.EnrichmentOutcomes.WithLabelValues(metrics.OutcomeCatalog).Inc()
	return album
}

func (e *Enricher) logLookupFailure(c provider.AlbumCandidate, err error) {
	var notFound *provider.ErrNotFound
	switch {
	case err == nil, errors.As(err, &notFound):
		e.logger.Debug("no catalog match", slog.String("album", c.Name), slog.String("artist", c.Artist))
	case errors.Is(err, context.DeadlineExceeded):
		e.logger.Info("catalog lookup timed out",
			slog.String("album", c.Name),
			slog.String("artist", c.Artist),
			slog.Duration("timeout", e.timeout))
	default:
		e.logger.Warn("catalog lookup failed",
			slog.String("album", c.Name),
			slog.String("artist", c.Artist),
			slog.String("error", err.Error()))
	}
}
