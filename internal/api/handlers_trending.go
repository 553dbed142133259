package api

import (
	"log/slog"
	"net/http"

	"github.com/sydlexius/soundcheck/internal/api/middleware"
	"github.com/sydlexius/soundcheck/internal/trending"
)

// handleTrending serves the ranked, catalog-enriched top albums for a genre.
func (r *Router) handleTrending(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	query, err := trending.NormalizeQuery(q.Get("genre"), q.Get("limit"), q.Get("page"))
	if err != nil {
		r.writeTrendingError(w, req, err)
		return
	}

	resp, err := r.trending.Trending(req.Context(), query)
	if err != nil {
		r.writeTrendingError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (r *Router) writeTrendingError(w http.ResponseWriter, req *http.Request, err error) {
	status, known := errorStatus(err)
	message := err.Error()
	if !known {
		message = "internal error"
	}
	if status >= http.StatusInternalServerError {
		r.logger.Error("trending request failed",
			slog.String("request_id", middleware.RequestIDFromContext(req.Context())),
			slog.String("error", err.Error()))
	}
	writeError(w, status, message)
}
