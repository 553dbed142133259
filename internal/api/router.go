package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sydlexius/soundcheck/internal/api/middleware"
	"github.com/sydlexius/soundcheck/internal/event"
	"github.com/sydlexius/soundcheck/internal/maintenance"
	"github.com/sydlexius/soundcheck/internal/provider"
	"github.com/sydlexius/soundcheck/internal/trending"
)

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	Trending         *trending.Service
	ProviderSettings *provider.SettingsService
	ProviderRegistry *provider.Registry
	Maintenance      *maintenance.Service
	// Events receives credential and cache notifications. Optional.
	Events *event.Bus
	// RateLimiter throttles the public endpoint per client IP. Nil disables it.
	RateLimiter *middleware.ClientRateLimiter
	Logger      *slog.Logger
	BasePath    string
	// AdminToken guards the provider and cache routes. When empty those
	// routes are not registered.
	AdminToken string
}

// Router sets up all HTTP routes for the application.
type Router struct {
	trending         *trending.Service
	providerSettings *provider.SettingsService
	providerRegistry *provider.Registry
	maintenance      *maintenance.Service
	events           *event.Bus
	rateLimiter      *middleware.ClientRateLimiter
	logger           *slog.Logger
	basePath         string
	adminToken       string
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		trending:         deps.Trending,
		providerSettings: deps.ProviderSettings,
		providerRegistry: deps.ProviderRegistry,
		maintenance:      deps.Maintenance,
		events:           deps.Events,
		rateLimiter:      deps.RateLimiter,
		logger:           deps.Logger.With(slog.String("component", "api")),
		basePath:         deps.BasePath,
		adminToken:       deps.AdminToken,
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	bp := r.basePath

	// Public routes
	mux.Handle("GET "+bp+"/trending-albums-by-genre", r.limited(http.HandlerFunc(r.handleTrending)))
	mux.HandleFunc("GET "+bp+"/api/v1/health", r.handleHealth)
	mux.Handle("GET "+bp+"/metrics", promhttp.Handler())

	// Admin routes
	if r.adminToken != "" {
		adminMw := middleware.AdminToken(r.adminToken)
		mux.HandleFunc("GET "+bp+"/api/v1/providers", wrapAuth(r.handleListProviders, adminMw))
		mux.HandleFunc("PUT "+bp+"/api/v1/providers/{name}/key", wrapAuth(r.handleSetProviderKey, adminMw))
		mux.HandleFunc("DELETE "+bp+"/api/v1/providers/{name}/key", wrapAuth(r.handleDeleteProviderKey, adminMw))
		mux.HandleFunc("POST "+bp+"/api/v1/providers/{name}/test", wrapAuth(r.handleTestProvider, adminMw))
		mux.HandleFunc("GET "+bp+"/api/v1/cache", wrapAuth(r.handleCacheStats, adminMw))
		mux.HandleFunc("DELETE "+bp+"/api/v1/cache", wrapAuth(r.handleClearCache, adminMw))
		if r.maintenance != nil {
			mux.HandleFunc("GET "+bp+"/api/v1/maintenance", wrapAuth(r.handleMaintenanceStatus, adminMw))
			mux.HandleFunc("POST "+bp+"/api/v1/maintenance/run", wrapAuth(r.handleMaintenanceRun, adminMw))
		}
	}

	mux.HandleFunc(bp+"/", r.handleNotFound)

	return middleware.Logging(r.logger)(middleware.SecurityHeaders(mux))
}

func (r *Router) limited(h http.Handler) http.Handler {
	if r.rateLimiter == nil {
		return h
	}
	return r.rateLimiter.Middleware(h)
}

// wrapAuth wraps a handler function with auth middleware.
func wrapAuth(h http.HandlerFunc, mw func(http.Handler) http.Handler) http.HandlerFunc {
	wrapped := mw(h)
	return wrapped.ServeHTTP
}
