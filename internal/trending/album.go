package trending

import (
	"net/url"
	"strings"

	"github.com/sydlexius/soundcheck/internal/provider"
)

// PrecisionDay is the release date precision reported for albums without a
// catalog match.
const PrecisionDay = "day"

// Album is one ranked entry in a trending response.
type Album struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []Artist `json:"artists"`
	Images      []Image  `json:"images"`
	ReleaseDate string   `json:"release_date"`
	Precision   string   `json:"precision"`
	URL         string   `json:"url"`
	Popularity  int      `json:"popularity"`
	Playcount   int      `json:"playcount"`
}

// Artist is an album credit. ID is set only for catalog matches.
type Artist struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Image is a sized album cover.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Response is the envelope returned for a trending request.
type Response struct {
	Genre   string  `json:"genre"`
	Count   int     `json:"count"`
	Items   []Album `json:"items"`
	Page    int     `json:"page"`
	Limit   int     `json:"limit"`
	HasMore bool    `json:"hasMore"`
	Cached  bool    `json:"cached,omitempty"`
}

// FallbackID is the synthetic id for an album without a catalog match.
func FallbackID(name, artist string) string {
	return "lastfm::" + escapeComponent(name) + "::" + escapeComponent(artist)
}

// escapeComponent percent-encodes s for use inside an id segment. Spaces
// become %20 rather than '+'.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// fallbackAlbum builds an album purely from chart data.
func fallbackAlbum(c provider.AlbumCandidate) Album {
	return Album{
		ID:          FallbackID(c.Name, c.Artist),
		Name:        c.Name,
		Artists:     []Artist{{Name: c.Artist}},
		Images:      convertImages(c.Images),
		ReleaseDate: "",
		Precision:   PrecisionDay,
		URL:         c.URL,
		Popularity:  0,
		Playcount:   c.Playcount,
	}
}

// matchedAlbum builds an album from a catalog hit. Catalog images win;
// chart images are used only when the catalog has none.
func matchedAlbum(m provider.AlbumMatch, c provider.AlbumCandidate) Album {
	artists := make([]Artist, 0, len(m.Artists))
	for _, a := range m.Artists {
		artists = append(artists, Artist{ID: a.ID, Name: a.Name})
	}
	if len(artists) == 0 {
		artists = []Artist{{Name: c.Artist}}
	}

	images := convertImages(m.Images)
	if len(images) == 0 {
		images = convertImages(c.Images)
	}

	name := m.Name
	if name == "" {
		name = c.Name
	}
	u := m.URL
	if u == "" {
		u = c.URL
	}
	precision := m.ReleaseDatePrecision
	if precision == "" {
		precision = PrecisionDay
	}

	return Album{
		ID:          m.ProviderID,
		Name:        name,
		Artists:     artists,
		Images:      images,
		ReleaseDate: m.ReleaseDate,
		Precision:   precision,
		URL:         u,
		Popularity:  0,
		Playcount:   c.Playcount,
	}
}

func convertImages(in []provider.ImageResult) []Image {
	out := make([]Image, 0, len(in))
	for _, img := range in {
		out = append(out, Image{URL: img.URL, Height: img.Height, Width: img.Width})
	}
	return out
}
