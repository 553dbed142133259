package trending

import "fmt"

// ValidationError is a bad or missing request parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConfigurationError means credentials required for the chart source are
// missing.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// InvalidGenreError means the chart source does not recognize the genre.
type InvalidGenreError struct {
	Genre string
}

func (e *InvalidGenreError) Error() string {
	return fmt.Sprintf("Failed to fetch albums for genre \"%s\". Invalid genre/tag.", e.Genre)
}

// UpstreamError is any other failure of the chart source.
type UpstreamError struct {
	Genre  string
	Reason string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Failed to fetch albums for genre \"%s\": %s", e.Genre, e.Reason)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NotFoundError means the chart had no usable albums for the genre.
type NotFoundError struct {
	Genre string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("No albums found for genre \"%s\"", e.Genre)
}
