package lastfm

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Last.fm API response types. The service is loose about shapes: any
// repeated field may arrive as a single object, and numbers may be strings.
// The flex types below absorb that so nothing ambiguous leaves this package.

// ErrorCodeInvalidParameters is returned in-band for an unknown tag.
const ErrorCodeInvalidParameters = 6

// TopAlbumsResponse is the top-level response from tag.gettopalbums.
type TopAlbumsResponse struct {
	Error   flexInt    `json:"error"`
	Message string     `json:"message"`
	Albums  *AlbumList `json:"albums"`
}

// AlbumList wraps the album array.
type AlbumList struct {
	Album oneOrMany[RawAlbum] `json:"album"`
	Attr  ListAttr            `json:"@attr"`
}

// ListAttr holds paging metadata.
type ListAttr struct {
	Tag        string  `json:"tag"`
	Page       flexInt `json:"page"`
	PerPage    flexInt `json:"perPage"`
	TotalPages flexInt `json:"totalPages"`
	Total      flexInt `json:"total"`
}

// RawAlbum is a single chart entry as Last.fm sends it.
type RawAlbum struct {
	Name      flexString            `json:"name"`
	Artist    flexArtist            `json:"artist"`
	Image     oneOrMany[RawImage]   `json:"image"`
	Playcount flexString            `json:"playcount"`
	URL       flexString            `json:"url"`
	MBID      flexString            `json:"mbid"`
	Tags      json.RawMessage       `json:"tags,omitempty"`
	Attr      map[string]flexString `json:"@attr,omitempty"`
}

// RawImage is one image variant.
type RawImage struct {
	Text flexString `json:"#text"`
	Size flexString `json:"size"`
}

// oneOrMany decodes a JSON array, a single object, or null into a slice.
// Elements that are not objects, or that do not decode into T, are skipped.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*o = nil
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		items := make([]T, 0, len(raw))
		for _, r := range raw {
			if item, ok := decodeObject[T](r); ok {
				items = append(items, item)
			}
		}
		*o = items
	case '{':
		if item, ok := decodeObject[T](data); ok {
			*o = oneOrMany[T]{item}
		}
	}
	return nil
}

func decodeObject[T any](data []byte) (T, bool) {
	var item T
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return item, false
	}
	if err := json.Unmarshal(data, &item); err != nil {
		return item, false
	}
	return item, true
}

// flexString accepts a JSON string or number; anything else decodes to "".
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*s = ""
		return nil
	}
	switch {
	case data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		*s = flexString(data)
	default:
		*s = ""
	}
	return nil
}

// flexInt accepts a JSON number or numeric string; anything else decodes to 0.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	*n = flexInt(parseCount(string(s)))
	return nil
}

// flexArtist accepts either a bare string or an object with a name field.
type flexArtist struct {
	Name string
}

func (a *flexArtist) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &a.Name)
	case '{':
		var obj struct {
			Name flexString `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		a.Name = string(obj.Name)
	}
	return nil
}

// parseCount parses a non-negative integer, returning 0 for anything else.
func parseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
