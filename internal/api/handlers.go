package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sydlexius/soundcheck/internal/trending"
	"github.com/sydlexius/soundcheck/internal/version"
)

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"commit":  version.Commit,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleNotFound(w http.ResponseWriter, req *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// errorStatus maps trending errors onto HTTP statuses. The message of a
// known error type is safe to return to the client as is.
func errorStatus(err error) (int, bool) {
	var validation *trending.ValidationError
	var invalidGenre *trending.InvalidGenreError
	var notFound *trending.NotFoundError
	var configuration *trending.ConfigurationError
	var upstream *trending.UpstreamError

	switch {
	case errors.As(err, &validation), errors.As(err, &invalidGenre):
		return http.StatusBadRequest, true
	case errors.As(err, &notFound):
		return http.StatusNotFound, true
	case errors.As(err, &configuration), errors.As(err, &upstream):
		return http.StatusInternalServerError, true
	default:
		return http.StatusInternalServerError, false
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}
