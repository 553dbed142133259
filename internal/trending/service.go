package trending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sydlexius/soundcheck/internal/provider"
)

// Source returns chart candidates for a tag.
type Source interface {
	TopAlbumsByTag(ctx context.Context, tag string, limit, page int) ([]provider.AlbumCandidate, error)
}

// Service runs the trending pipeline: cache check, chart fetch, catalog
// enrichment, ranking, cache write.
type Service struct {
	source   Source
	enricher *Enricher
	results  *ResultCache
	logger   *slog.Logger
}

// NewService creates a trending service.
func NewService(source Source, enricher *Enricher, results *ResultCache, logger *slog.Logger) *Service {
	return &Service{
		source:   source,
		enricher: enricher,
		results:  results,
		logger:   logger.With(slog.String("component", "trending")),
	}
}

// Trending returns the ranked albums for q.
func (s *Service) Trending(ctx context.Context, q Query) (*Response, error) {
	if q.Genre == "" {
		return nil, &ValidationError{Field: "genre", Message: "Genre parameter is required"}
	}

	if cached, ok := s.results.Get(ctx, q); ok {
		cached.Cached = true
		s.logger.Debug("result cache hit", slog.String("genre", q.Genre))
		return &cached, nil
	}

	candidates, err := s.source.TopAlbumsByTag(ctx, q.Genre, q.Limit, q.Page)
	if err != nil {
		return nil, sourceError(q.Genre, err)
	}
	if len(candidates) == 0 {
		return nil, &NotFoundError{Genre: q.Genre}
	}

	albums := Rank(s.enricher.Enrich(ctx, candidates))

	resp := Response{
		Genre:   q.Genre,
		Count:   len(albums),
		Items:   albums,
		Page:    q.Page,
		Limit:   q.Limit,
		HasMore: len(albums) == q.Limit,
	}
	s.results.Set(ctx, q, resp)

	s.logger.Debug("trending computed",
		slog.String("genre", q.Genre),
		slog.Int("page", q.Page),
		slog.Int("limit", q.Limit),
		slog.Int("count", resp.Count))
	return &resp, nil
}

// CacheStats reports the number of entries in each cache.
type CacheStats struct {
	ResultEntries  int `json:"result_entries"`
	CatalogEntries int `json:"catalog_entries"`
}

// CacheStats returns the current cache sizes.
func (s *Service) CacheStats(ctx context.Context) CacheStats {
	return CacheStats{
		ResultEntries:  s.results.Len(ctx),
		CatalogEntries: s.enricher.cache.Len(ctx),
	}
}

// ClearCaches empties the result and catalog caches.
func (s *Service) ClearCaches(ctx context.Context) {
	s.results.Clear(ctx)
	s.enricher.cache.Clear(ctx)
	s.logger.Info("caches cleared")
}

// InvalidateResults empties the result cache only. Catalog matches do not
// depend on credentials or config and are kept.
func (s *Service) InvalidateResults(ctx context.Context, reason string) {
	n := s.results.Len(ctx)
	s.results.Clear(ctx)
	s.logger.Info("result cache invalidated", slog.String("reason", reason), slog.Int("entries", n))
}

// sourceError maps a chart provider error onto the trending error types.
func sourceError(genre string, err error) error {
	var authErr *provider.ErrAuthRequired
	var invalid *provider.ErrInvalidInput
	var unavailable *provider.ErrProviderUnavailable
	var upstream *provider.ErrUpstream

	switch {
	case errors.As(err, &authErr):
		return &ConfigurationError{Message: fmt.Sprintf("%s API key not configured", authErr.Provider.DisplayName())}
	case errors.As(err, &invalid):
		return &InvalidGenreError{Genre: genre}
	case errors.As(err, &unavailable):
		reason := "service unavailable"
		if unavailable.Cause != nil {
			reason = unavailable.Cause.Error()
		}
		return &UpstreamError{Genre: genre, Reason: reason, Err: err}
	case errors.As(err, &upstream):
		return &UpstreamError{Genre: genre, Reason: upstream.Message, Err: err}
	default:
		return &UpstreamError{Genre: genre, Reason: err.Error(), Err: err}
	}
}
