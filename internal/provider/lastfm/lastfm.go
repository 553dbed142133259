package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/soundcheck/internal/metrics"
	"github.com/sydlexius/soundcheck/internal/provider"
)

const defaultBaseURL = "https://ws.audioscrobbler.com/2.0"

// Adapter fetches tag charts from Last.fm.
type Adapter struct {
	client   *http.Client
	limiter  *provider.RateLimiterMap
	settings *provider.SettingsService
	logger   *slog.Logger
	baseURL  string
}

// New creates a Last.fm adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, settings, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Last.fm adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  limiter,
		settings: settings,
		logger:   logger.With(slog.String("provider", "lastfm")),
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider name.
func (a *Adapter) Name() provider.ProviderName { return provider.NameLastFM }

// TopAlbumsByTag returns the chart for a tag, normalized and filtered.
// Entries without a name or an artist are dropped, and the result is capped
// at limit regardless of how many the service returned. An empty slice is
// not an error.
func (a *Adapter) TopAlbumsByTag(ctx context.Context, tag string, limit, page int) ([]provider.AlbumCandidate, error) {
	apiKey, err := a.getAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"method":  {"tag.gettopalbums"},
		"tag":     {tag},
		"limit":   {strconv.Itoa(limit)},
		"page":    {strconv.Itoa(page)},
		"api_key": {apiKey},
		"format":  {"json"},
	}

	resp, err := a.call(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := checkError(resp, tag); err != nil {
		return nil, err
	}

	var raw []RawAlbum
	if resp.Albums != nil {
		raw = resp.Albums.Album
	}

	candidates := make([]provider.AlbumCandidate, 0, len(raw))
	for _, r := range raw {
		c, ok := toCandidate(r)
		if !ok {
			continue
		}
		candidates = append(candidates, c)
	}
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	a.logger.Debug("tag chart fetched",
		slog.String("tag", tag),
		slog.Int("page", page),
		slog.Int("received", len(raw)),
		slog.Int("kept", len(candidates)))

	return candidates, nil
}

// TestConnection verifies the API key is valid.
func (a *Adapter) TestConnection(ctx context.Context) error {
	apiKey, err := a.getAPIKey(ctx)
	if err != nil {
		return err
	}
	params := url.Values{
		"method":  {"tag.gettopalbums"},
		"tag":     {"rock"},
		"limit":   {"1"},
		"api_key": {apiKey},
		"format":  {"json"},
	}
	resp, err := a.call(ctx, params)
	if err != nil {
		return err
	}
	return checkError(resp, "rock")
}

func (a *Adapter) getAPIKey(ctx context.Context) (string, error) {
	apiKey, err := a.settings.GetAPIKey(ctx, provider.NameLastFM)
	if err != nil {
		return "", fmt.Errorf("getting API key: %w", err)
	}
	if apiKey == "" {
		return "", &provider.ErrAuthRequired{Provider: provider.NameLastFM}
	}
	return apiKey, nil
}

// call performs one rate-limited GET and decodes the body. In-band errors
// are left on the response for checkError.
func (a *Adapter) call(ctx context.Context, params url.Values) (*TopAlbumsResponse, error) {
	if err := a.limiter.Wait(ctx, provider.NameLastFM); err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameLastFM,
			Cause:    fmt.Errorf("rate limiter: %w", err),
		}
	}

	reqURL := a.baseURL + "/?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Soundcheck/1.0")
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("method", params.Get("method")), slog.String("tag", params.Get("tag")))

	start := time.Now()
	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from trusted base + API params
	metrics.ObserveUpstream(string(provider.NameLastFM), start, err)
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameLastFM,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameLastFM,
			Cause:    fmt.Errorf("reading body: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Last.fm sometimes pairs a 4xx with an in-band code; an unknown tag
		// must stay distinguishable from an outage.
		var inband TopAlbumsResponse
		if json.Unmarshal(body, &inband) == nil && int(inband.Error) == ErrorCodeInvalidParameters {
			return &inband, nil
		}
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameLastFM,
			Cause:    fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	var out TopAlbumsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing top albums response: %w", err)
	}
	return &out, nil
}

// checkError converts an in-band error code into a typed provider error.
func checkError(resp *TopAlbumsResponse, tag string) error {
	code := int(resp.Error)
	if code == 0 {
		return nil
	}
	if code == ErrorCodeInvalidParameters {
		return &provider.ErrInvalidInput{
			Provider: provider.NameLastFM,
			Input:    tag,
			Message:  resp.Message,
		}
	}
	return &provider.ErrUpstream{
		Provider: provider.NameLastFM,
		Code:     code,
		Message:  resp.Message,
	}
}

// toCandidate normalizes one chart entry. It reports false for entries that
// lack a name or an artist.
func toCandidate(r RawAlbum) (provider.AlbumCandidate, bool) {
	name := strings.TrimSpace(string(r.Name))
	artist := strings.TrimSpace(r.Artist.Name)
	if name == "" || artist == "" {
		return provider.AlbumCandidate{}, false
	}
	return provider.AlbumCandidate{
		Name:      name,
		Artist:    artist,
		URL:       string(r.URL),
		Playcount: parseCount(string(r.Playcount)),
		Images:    convertImages(r.Image),
	}, true
}
