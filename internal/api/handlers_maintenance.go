package api

import (
	"log/slog"
	"net/http"
)

func (r *Router) handleMaintenanceStatus(w http.ResponseWriter, req *http.Request) {
	st, err := r.maintenance.Status(req.Context())
	if err != nil {
		r.logger.Error("reading maintenance status", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read maintenance status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleMaintenanceRun purges expired cache rows and optimizes the database now.
func (r *Router) handleMaintenanceRun(w http.ResponseWriter, req *http.Request) {
	if err := r.maintenance.Run(req.Context()); err != nil {
		r.logger.Error("running maintenance", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "maintenance failed")
		return
	}
	r.handleMaintenanceStatus(w, req)
}
