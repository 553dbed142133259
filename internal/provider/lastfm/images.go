package lastfm

import (
	"slices"
	"strings"

	"github.com/sydlexius/soundcheck/internal/provider"
)

// defaultImageSize is used for variants with a missing or unknown size.
const defaultImageSize = 300

// imageSizes maps Last.fm size names to square pixel dimensions.
var imageSizes = map[string]int{
	"small":      34,
	"medium":     64,
	"large":      174,
	"extralarge": 300,
	"mega":       600,
}

func imageDimension(size string) int {
	if px, ok := imageSizes[strings.ToLower(strings.TrimSpace(size))]; ok {
		return px
	}
	return defaultImageSize
}

// convertImages maps Last.fm image variants to sized images, largest first.
// Variants without a URL are dropped.
func convertImages(raw []RawImage) []provider.ImageResult {
	images := make([]provider.ImageResult, 0, len(raw))
	for _, img := range raw {
		u := strings.TrimSpace(string(img.Text))
		if u == "" {
			continue
		}
		px := imageDimension(string(img.Size))
		images = append(images, provider.ImageResult{
			URL:    u,
			Width:  px,
			Height: px,
			Source: string(provider.NameLastFM),
		})
	}
	slices.SortStableFunc(images, func(a, b provider.ImageResult) int {
		return b.Height - a.Height
	})
	return images
}
