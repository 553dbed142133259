package trending

import (
	"cmp"
	"slices"
)

// compareAlbums orders albums for a trending list. Popularity wins when
// both albums have it, an album with popularity beats one without, and
// otherwise the higher playcount comes first.
func compareAlbums(a, b Album) int {
	switch {
	case a.Popularity > 0 && b.Popularity > 0:
		return cmp.Compare(b.Popularity, a.Popularity)
	case a.Popularity > 0:
		return -1
	case b.Popularity > 0:
		return 1
	default:
		return cmp.Compare(max(b.Playcount, 0), max(a.Playcount, 0))
	}
}

// Rank sorts albums in place, keeping the input order for ties, then drops
// later albums that repeat an earlier id.
func Rank(albums []Album) []Album {
	slices.SortStableFunc(albums, compareAlbums)

	seen := make(map[string]struct{}, len(albums))
	out := albums[:0]
	for _, a := range albums {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out
}
