package spotify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/sydlexius/soundcheck/internal/metrics"
	"github.com/sydlexius/soundcheck/internal/provider"
)

const (
	defaultAPIBaseURL = "https://api.spotify.com/v1/"

	breakerName        = "spotify-search"
	breakerFailures    = 5
	breakerOpenTimeout = 30 * time.Second
)

// Adapter searches the Spotify catalog using the client-credentials flow.
// The API client is built lazily from the stored credentials and rebuilt
// when they change.
type Adapter struct {
	httpClient *http.Client
	limiter    *provider.RateLimiterMap
	settings   *provider.SettingsService
	logger     *slog.Logger
	apiBaseURL string
	tokenURL   string
	breaker    *gobreaker.CircuitBreaker[*spotifyapi.SearchResult]

	mu        sync.Mutex
	client    *spotifyapi.Client
	clientKey string
}

// New creates a Spotify adapter against the public API.
func New(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, settings, logger, defaultAPIBaseURL, spotifyauth.TokenURL)
}

// NewWithBaseURL creates a Spotify adapter with custom API and token URLs (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger, apiBaseURL, tokenURL string) *Adapter {
	if !strings.HasSuffix(apiBaseURL, "/") {
		apiBaseURL += "/"
	}
	a := &Adapter{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    limiter,
		settings:   settings,
		logger:     logger.With(slog.String("provider", "spotify")),
		apiBaseURL: apiBaseURL,
		tokenURL:   tokenURL,
	}
	a.breaker = gobreaker.NewCircuitBreaker[*spotifyapi.SearchResult](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up, by cancellation or its own deadline, is not a
			// sign of an unhealthy upstream.
			var abandoned *callerAbandonedError
			return err == nil || errors.Is(err, context.Canceled) || errors.As(err, &abandoned)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			a.logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return a
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameSpotify }

// Configured reports whether both client credentials are available.
func (a *Adapter) Configured(ctx context.Context) bool {
	ok, err := a.settings.IsConfigured(ctx, provider.NameSpotify)
	if err != nil {
		a.logger.Warn("checking spotify credentials", slog.String("error", err.Error()))
		return false
	}
	return ok
}

// SearchAlbum returns the first catalog album matching name and artist.
// Returns ErrNotFound when the search comes back empty.
func (a *Adapter) SearchAlbum(ctx context.Context, name, artist string) (*provider.AlbumMatch, error) {
	client, err := a.clientFor(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.limiter.Wait(ctx, provider.NameSpotify); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameSpotify,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	query := albumQuery(name, artist)
	results, err := a.breaker.Execute(func() (*spotifyapi.SearchResult, error) {
		res, err := a.search(ctx, client, query)
		if err != nil && ctx.Err() != nil {
			return nil, &callerAbandonedError{err: err}
		}
		return res, err
	})
	if err != nil {
		return nil, a.classify(err)
	}

	if results == nil || results.Albums == nil || len(results.Albums.Albums) == 0 {
		return nil, &provider.ErrNotFound{Provider: provider.NameSpotify, ID: query}
	}
	match := toMatch(results.Albums.Albums[0])
	return &match, nil
}

// callerAbandonedError marks a search that failed because the caller's
// context ended first, e.g. a per-lookup budget shorter than the upstream's
// response time.
type callerAbandonedError struct {
	err error
}

func (e *callerAbandonedError) Error() string { return e.err.Error() }

func (e *callerAbandonedError) Unwrap() error { return e.err }

// TestConnection exchanges the client credentials for a token and runs a
// minimal search.
func (a *Adapter) TestConnection(ctx context.Context) error {
	client, err := a.clientFor(ctx)
	if err != nil {
		return err
	}
	if _, err := a.search(ctx, client, "album:Abbey Road"); err != nil {
		return a.classify(err)
	}
	return nil
}

func (a *Adapter) search(ctx context.Context, client *spotifyapi.Client, query string) (*spotifyapi.SearchResult, error) {
	a.logger.Debug("searching", slog.String("query", query))
	start := time.Now()
	res, err := client.Search(ctx, query, spotifyapi.SearchTypeAlbum, spotifyapi.Limit(1))
	metrics.ObserveUpstream(string(provider.NameSpotify), start, err)
	return res, err
}

// clientFor returns an API client for the current credentials. A context
// override (used by connection tests) is honored like any other change.
func (a *Adapter) clientFor(ctx context.Context) (*spotifyapi.Client, error) {
	id, err := a.settings.GetCredential(ctx, provider.NameSpotify, provider.FieldClientID)
	if err != nil {
		return nil, fmt.Errorf("getting client id: %w", err)
	}
	secret, err := a.settings.GetCredential(ctx, provider.NameSpotify, provider.FieldClientSecret)
	if err != nil {
		return nil, fmt.Errorf("getting client secret: %w", err)
	}
	if id == "" || secret == "" {
		return nil, &provider.ErrAuthRequired{Provider: provider.NameSpotify}
	}

	key := id + "\x00" + secret
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil && a.clientKey == key {
		return a.client, nil
	}

	cfg := &clientcredentials.Config{
		ClientID:     id,
		ClientSecret: secret,
		TokenURL:     a.tokenURL,
	}
	// The token source outlives the request that built it.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, a.httpClient)
	httpClient := cfg.Client(tokenCtx)
	httpClient.Timeout = a.httpClient.Timeout

	a.client = spotifyapi.New(httpClient,
		spotifyapi.WithRetry(true),
		spotifyapi.WithBaseURL(a.apiBaseURL))
	a.clientKey = key
	a.logger.Debug("spotify client initialized")
	return a.client, nil
}

// classify maps library and transport errors onto provider error types.
func (a *Adapter) classify(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &provider.ErrProviderUnavailable{
			Provider:   provider.NameSpotify,
			Cause:      err,
			RetryAfter: breakerOpenTimeout,
		}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
			return &provider.ErrAuthRequired{Provider: provider.NameSpotify}
		}
		return &provider.ErrProviderUnavailable{Provider: provider.NameSpotify, Cause: err}
	}

	var apiErr spotifyapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
			return &provider.ErrAuthRequired{Provider: provider.NameSpotify}
		case apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests:
			return &provider.ErrProviderUnavailable{Provider: provider.NameSpotify, Cause: err}
		default:
			return &provider.ErrUpstream{Provider: provider.NameSpotify, Code: apiErr.Status, Message: apiErr.Message}
		}
	}

	return &provider.ErrProviderUnavailable{Provider: provider.NameSpotify, Cause: err}
}

// albumQuery builds a field-filtered album search query.
func albumQuery(name, artist string) string {
	return "album:" + strings.TrimSpace(name) + " artist:" + strings.TrimSpace(artist)
}

func toMatch(album spotifyapi.SimpleAlbum) provider.AlbumMatch {
	artists := make([]provider.ArtistRef, 0, len(album.Artists))
	for _, ar := range album.Artists {
		artists = append(artists, provider.ArtistRef{ID: string(ar.ID), Name: ar.Name})
	}
	images := make([]provider.ImageResult, 0, len(album.Images))
	for _, img := range album.Images {
		if img.URL == "" {
			continue
		}
		images = append(images, provider.ImageResult{
			URL:    img.URL,
			Width:  int(img.Width),
			Height: int(img.Height),
			Source: string(provider.NameSpotify),
		})
	}
	url := album.ExternalURLs["spotify"]
	if url == "" && album.ID != "" {
		url = "https://open.spotify.com/album/" + string(album.ID)
	}
	return provider.AlbumMatch{
		ProviderID:           string(album.ID),
		Name:                 album.Name,
		Artists:              artists,
		Images:               images,
		ReleaseDate:          album.ReleaseDate,
		ReleaseDatePrecision: album.ReleaseDatePrecision,
		URL:                  url,
	}
}
