package provider

import (
	"context"
	"fmt"
	"time"
)

// AccessTier classifies a provider's access model.
type AccessTier string

// Access tier constants for classifying a provider's access model.
const (
	TierFree    AccessTier = "free"     // No key, no limit known
	TierFreeKey AccessTier = "free_key" // Free account/sign-up required
)

// RateLimitInfo documents the known rate limits for a provider.
type RateLimitInfo struct {
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
	RequestsPerDay    int     `json:"requests_per_day,omitempty"` // 0 = unknown/unlimited
}

// ProviderCapability describes a provider's access model and documented rate limits.
type ProviderCapability struct {
	Tier      AccessTier     `json:"tier"`
	HelpURL   string         `json:"help_url,omitempty"`
	RateLimit *RateLimitInfo `json:"rate_limit,omitempty"`
}

// ProviderCapabilities returns the known capability metadata for each provider.
func ProviderCapabilities() map[ProviderName]ProviderCapability {
	return map[ProviderName]ProviderCapability{
		NameLastFM: {
			Tier:      TierFreeKey,
			HelpURL:   "https://www.last.fm/api/account/create",
			RateLimit: &RateLimitInfo{RequestsPerSecond: 5},
		},
		NameSpotify: {
			Tier:      TierFreeKey,
			HelpURL:   "https://developer.spotify.com/dashboard",
			RateLimit: &RateLimitInfo{RequestsPerSecond: 20},
		},
	}
}

// ProviderName uniquely identifies a metadata provider.
type ProviderName string

// Known provider names.
const (
	NameLastFM  ProviderName = "lastfm"
	NameSpotify ProviderName = "spotify"
)

// AllProviderNames returns all known provider names in display order.
func AllProviderNames() []ProviderName {
	return []ProviderName{NameLastFM, NameSpotify}
}

// ParseProviderName returns the ProviderName for s, or false if unknown.
func ParseProviderName(s string) (ProviderName, bool) {
	for _, n := range AllProviderNames() {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

// DisplayName returns a human-readable name for the provider.
func (n ProviderName) DisplayName() string {
	switch n {
	case NameLastFM:
		return "Last.fm"
	case NameSpotify:
		return "Spotify"
	default:
		return string(n)
	}
}

// Credential field names stored per provider.
const (
	FieldAPIKey       = "api_key"
	FieldClientID     = "client_id"
	FieldClientSecret = "client_secret"
)

// CredentialFields lists the secrets a provider needs, in display order.
func CredentialFields(n ProviderName) []string {
	switch n {
	case NameLastFM:
		return []string{FieldAPIKey}
	case NameSpotify:
		return []string{FieldClientID, FieldClientSecret}
	default:
		return nil
	}
}

// ImageResult is a single image with known pixel dimensions.
type ImageResult struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Source string `json:"source,omitempty"`
}

// AlbumCandidate is an album entry from a chart provider, already normalized
// into a strongly-typed shape. Images are sorted largest first.
type AlbumCandidate struct {
	Name      string
	Artist    string
	URL       string
	Playcount int
	Images    []ImageResult
}

// ArtistRef is an artist credited on a catalog album.
type ArtistRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// AlbumMatch is the best catalog hit for an album search.
type AlbumMatch struct {
	ProviderID           string
	Name                 string
	Artists              []ArtistRef
	Images               []ImageResult
	ReleaseDate          string
	ReleaseDatePrecision string
	URL                  string
	Popularity           int
}

// TestableProvider is implemented by adapters that can verify their
// credentials against the live service.
type TestableProvider interface {
	Name() ProviderName
	TestConnection(ctx context.Context) error
}

// ErrProviderUnavailable indicates a transient failure (rate-limited, timeout, server error).
type ErrProviderUnavailable struct {
	Provider   ProviderName
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrProviderUnavailable) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the provider has no data for the requested query.
type ErrNotFound struct {
	Provider ProviderName
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("provider %s: %s not found", e.Provider, e.ID)
}

// ErrAuthRequired indicates the provider needs credentials but none are configured.
type ErrAuthRequired struct {
	Provider ProviderName
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("provider %s: API key not configured", e.Provider)
}

// ErrInvalidInput indicates the provider rejected a caller-supplied value,
// such as an unknown tag.
type ErrInvalidInput struct {
	Provider ProviderName
	Input    string
	Message  string
}

func (e *ErrInvalidInput) Error() string {
	return fmt.Sprintf("provider %s rejected %q: %s", e.Provider, e.Input, e.Message)
}

// ErrUpstream is an error reported in-band by the provider's API body.
type ErrUpstream struct {
	Provider ProviderName
	Code     int
	Message  string
}

func (e *ErrUpstream) Error() string {
	return fmt.Sprintf("provider %s error %d: %s", e.Provider, e.Code, e.Message)
}
