package api

import (
	"net/http"

	"github.com/sydlexius/soundcheck/internal/event"
)

// handleCacheStats reports the number of entries in the result and catalog caches.
func (r *Router) handleCacheStats(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.trending.CacheStats(req.Context()))
}

// handleClearCache empties both caches.
func (r *Router) handleClearCache(w http.ResponseWriter, req *http.Request) {
	r.trending.ClearCaches(req.Context())
	r.events.Publish(event.Event{Type: event.CachesCleared})
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
