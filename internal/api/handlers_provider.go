package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sydlexius/soundcheck/internal/event"
	"github.com/sydlexius/soundcheck/internal/provider"
)

// handleListProviders returns the status of all providers and their credential configuration.
func (r *Router) handleListProviders(w http.ResponseWriter, req *http.Request) {
	statuses, err := r.providerSettings.ListProviderKeyStatuses(req.Context())
	if err != nil {
		r.logger.Error("listing provider statuses", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list providers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": statuses})
}

// handleSetProviderKey stores encrypted credentials for a provider. The body
// is a flat JSON object holding every field the provider needs, e.g.
// {"api_key": "..."} for Last.fm or {"client_id": "...", "client_secret": "..."}
// for Spotify.
func (r *Router) handleSetProviderKey(w http.ResponseWriter, req *http.Request) {
	name, ok := provider.ParseProviderName(req.PathValue("name"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	var body map[string]string
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 16<<10)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	values, msg := credentialValues(name, body)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := r.providerSettings.SetCredentials(req.Context(), name, values); err != nil {
		r.logger.Error("setting provider credentials", slog.String("provider", string(name)), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to save credentials")
		return
	}
	r.logger.Info("provider credentials updated", slog.String("provider", string(name)))
	r.events.Publish(event.Event{Type: event.CredentialsChanged, Data: map[string]any{"provider": string(name), "action": "set"}})
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// credentialValues checks body against the provider's credential fields and
// returns the trimmed values, or a client-facing message on failure.
func credentialValues(name provider.ProviderName, body map[string]string) (map[string]string, string) {
	fields := provider.CredentialFields(name)
	values := make(map[string]string, len(fields))
	for _, field := range fields {
		v := strings.TrimSpace(body[field])
		if v == "" {
			return nil, field + " is required"
		}
		values[field] = v
	}
	for field := range body {
		if _, known := values[field]; !known {
			return nil, "unknown field " + field
		}
	}
	return values, ""
}

// handleDeleteProviderKey removes the stored credentials for a provider.
// Configured defaults from the config file or environment still apply.
func (r *Router) handleDeleteProviderKey(w http.ResponseWriter, req *http.Request) {
	name, ok := provider.ParseProviderName(req.PathValue("name"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	if err := r.providerSettings.DeleteCredentials(req.Context(), name); err != nil {
		r.logger.Error("deleting provider credentials", slog.String("provider", string(name)), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to delete credentials")
		return
	}
	r.events.Publish(event.Event{Type: event.CredentialsChanged, Data: map[string]any{"provider": string(name), "action": "delete"}})
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleTestProvider tests the connection to a provider and persists the
// outcome as the provider's key status.
func (r *Router) handleTestProvider(w http.ResponseWriter, req *http.Request) {
	name, ok := provider.ParseProviderName(req.PathValue("name"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}
	p := r.providerRegistry.Get(name)
	if p == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "provider does not support connection testing"})
		return
	}

	if err := p.TestConnection(req.Context()); err != nil {
		if statusErr := r.providerSettings.SetKeyStatus(req.Context(), name, "invalid"); statusErr != nil {
			r.logger.Warn("persisting key status", slog.String("provider", string(name)), slog.String("error", statusErr.Error()))
		}
		r.events.Publish(event.Event{Type: event.KeyTested, Data: map[string]any{"provider": string(name), "status": "invalid"}})
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "error": err.Error()})
		return
	}

	if err := r.providerSettings.SetKeyStatus(req.Context(), name, "ok"); err != nil {
		r.logger.Warn("persisting key status", slog.String("provider", string(name)), slog.String("error", err.Error()))
	}
	r.events.Publish(event.Event{Type: event.KeyTested, Data: map[string]any{"provider": string(name), "status": "ok"}})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
