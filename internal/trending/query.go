package trending

import (
	"errors"
	"strconv"
	"strings"
)

// Pagination bounds. DefaultLimit is also the only limit the result cache
// serves.
const (
	DefaultLimit = 5
	MaxLimit     = 50
	DefaultPage  = 1
)

// Query is a validated trending request.
type Query struct {
	Genre string
	Limit int
	Page  int
}

// NormalizeQuery validates raw query-string values. The genre is trimmed
// and lowercased and must not be empty; limit and page fall back to their
// defaults when they do not parse.
func NormalizeQuery(genre, limit, page string) (Query, error) {
	g := NormalizeGenre(genre)
	if g == "" {
		return Query{}, &ValidationError{Field: "genre", Message: "Genre parameter is required"}
	}
	return Query{
		Genre: g,
		Limit: NormalizeLimit(parseInt(limit)),
		Page:  NormalizePage(parseInt(page)),
	}, nil
}

// NormalizeGenre trims and lowercases a genre.
func NormalizeGenre(genre string) string {
	return strings.ToLower(strings.TrimSpace(genre))
}

// NormalizeLimit returns DefaultLimit for non-positive values and caps the
// rest at MaxLimit.
func NormalizeLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return min(n, MaxLimit)
}

// NormalizePage returns DefaultPage for values below 1.
func NormalizePage(n int) int {
	if n < 1 {
		return DefaultPage
	}
	return n
}

// parseInt returns 0 for anything that is not a base-10 integer. Values
// outside the int range saturate so they still clamp.
func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return n
		}
		return 0
	}
	return n
}
