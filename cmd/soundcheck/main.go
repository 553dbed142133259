package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sydlexius/soundcheck/internal/api"
	"github.com/sydlexius/soundcheck/internal/api/middleware"
	"github.com/sydlexius/soundcheck/internal/cache"
	"github.com/sydlexius/soundcheck/internal/config"
	"github.com/sydlexius/soundcheck/internal/database"
	"github.com/sydlexius/soundcheck/internal/encryption"
	"github.com/sydlexius/soundcheck/internal/event"
	"github.com/sydlexius/soundcheck/internal/filesystem"
	"github.com/sydlexius/soundcheck/internal/logging"
	"github.com/sydlexius/soundcheck/internal/maintenance"
	"github.com/sydlexius/soundcheck/internal/provider"
	"github.com/sydlexius/soundcheck/internal/provider/lastfm"
	"github.com/sydlexius/soundcheck/internal/provider/spotify"
	"github.com/sydlexius/soundcheck/internal/trending"
	"github.com/sydlexius/soundcheck/internal/version"
	"github.com/sydlexius/soundcheck/internal/watcher"
)

func main() {
	// Handle subcommands before starting the server
	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "reset-credentials":
			err = resetCredentials()
		case "set-key":
			err = setKey(os.Args[2:])
		case "version":
			fmt.Printf("soundcheck %s (%s)\n", version.Version, version.Commit)
			return
		default:
			err = fmt.Errorf("unknown command %q", os.Args[1])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func configPath() string {
	if p := os.Getenv("SC_CONFIG_PATH"); p != "" {
		return p
	}
	return config.DefaultPath
}

func run() error {
	path := configPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logManager, logger := logging.NewManager(cfg.Logging)
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()
	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	encKey, err := resolveEncryptionKey(cfg, logger)
	if err != nil {
		return fmt.Errorf("resolving encryption key: %w", err)
	}
	encryptor, _, err := encryption.NewEncryptor(encKey)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}

	// Initialize providers
	rateLimiters := provider.NewRateLimiterMap()
	providerSettings := provider.NewSettingsService(db, encryptor)
	applyProviderDefaults(providerSettings, cfg)

	lastfmAdapter := lastfm.New(rateLimiters, providerSettings, logger)
	spotifyAdapter := spotify.New(rateLimiters, providerSettings, logger)

	providerRegistry := provider.NewRegistry()
	providerRegistry.Register(lastfmAdapter)
	providerRegistry.Register(spotifyAdapter)

	// Caches and the trending pipeline
	maintenanceService := maintenance.NewService(db, cfg.Database.Path, logger)
	catalogStore, purger, err := newCatalogStore(ctx, db, cfg.Cache, logger)
	if err != nil {
		return err
	}
	if purger != nil {
		maintenanceService.AddPurger(purger)
	}
	if cfg.Database.MaintenanceInterval > 0 {
		go maintenanceService.StartScheduler(ctx, cfg.Database.MaintenanceInterval)
	}
	enricher := trending.NewEnricher(spotifyAdapter, catalogStore, trending.EnricherOptions{
		LookupTimeout: cfg.Trending.LookupTimeout,
		Concurrency:   cfg.Trending.Concurrency,
	}, logger)
	results := trending.NewResultCache(cache.WithMetrics[trending.Response]("result",
		cache.NewMemoryStore[trending.Response](cfg.Cache.ResultTTL)))
	trendingService := trending.NewService(lastfmAdapter, enricher, results, logger)

	// Results built with old credentials are stale once keys or config change
	events := event.NewBus(logger, 64)
	events.Subscribe(func(e event.Event) {
		trendingService.InvalidateResults(context.Background(), string(e.Type))
	}, event.CredentialsChanged, event.ConfigReloaded)
	go events.Start(ctx)

	var clientLimiter *middleware.ClientRateLimiter
	if cfg.Server.RateLimit > 0 {
		clientLimiter = middleware.NewClientRateLimiter(ctx, cfg.Server.RateLimit, cfg.Server.RateBurst)
	}
	if cfg.Server.AdminToken == "" {
		logger.Info("admin API disabled; set SC_ADMIN_TOKEN to enable it")
	}

	router := api.NewRouter(api.RouterDeps{
		Trending:         trendingService,
		ProviderSettings: providerSettings,
		ProviderRegistry: providerRegistry,
		Maintenance:      maintenanceService,
		Events:           events,
		RateLimiter:      clientLimiter,
		Logger:           logger,
		BasePath:         cfg.Server.BasePath,
		AdminToken:       cfg.Server.AdminToken,
	})

	// Watch the config file and apply logging and credential changes live
	configWatcher := watcher.NewService(path, func(context.Context) error {
		next, err := config.Load(path)
		if err != nil {
			return err
		}
		logManager.Reconfigure(next.Logging)
		applyProviderDefaults(providerSettings, next)
		logger.Info("configuration reloaded", slog.String("logging", next.Logging.String()))
		events.Publish(event.Event{Type: event.ConfigReloaded})
		return nil
	}, logger)
	go configWatcher.Start(ctx)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("base_path", cfg.Server.BasePath),
			slog.String("version", version.Version),
			slog.String("commit", version.Commit),
			slog.String("cache_backend", cfg.Cache.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func openDatabase(ctx context.Context, path string) (*sql.DB, error) {
	db, err := database.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := database.Migrate(ctx, db); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// applyProviderDefaults registers config/env credentials as fallbacks for
// keys not stored through the admin API.
func applyProviderDefaults(settings *provider.SettingsService, cfg *config.Config) {
	settings.SetDefault(provider.NameLastFM, provider.FieldAPIKey, cfg.Providers.LastFM.APIKey)
	settings.SetDefault(provider.NameSpotify, provider.FieldClientID, cfg.Providers.Spotify.ClientID)
	settings.SetDefault(provider.NameSpotify, provider.FieldClientSecret, cfg.Providers.Spotify.ClientSecret)
}

// newCatalogStore builds the catalog cache for the configured backend,
// wrapped with hit/miss metrics. The purger is non-nil for persistent
// backends whose expired rows need periodic removal.
func newCatalogStore(ctx context.Context, db *sql.DB, cfg config.CacheConfig, logger *slog.Logger) (cache.Store[trending.Album], maintenance.Purger, error) {
	var store cache.Store[trending.Album]
	var purger maintenance.Purger
	switch cfg.Backend {
	case config.CacheBackendMemory:
		store = cache.NewMemoryStore[trending.Album](cfg.CatalogTTL)
	case config.CacheBackendLRU:
		store = cache.NewLRUStore[trending.Album](cfg.CatalogMaxEntries, cfg.CatalogTTL)
	case config.CacheBackendSQLite:
		s := cache.NewSQLStore[trending.Album](db, "catalog", cfg.CatalogTTL, logger)
		removed, err := s.PurgeExpired(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("purging expired catalog entries: %w", err)
		}
		if removed > 0 {
			logger.Info("purged expired catalog entries", slog.Int64("removed", removed))
		}
		store = s
		purger = s
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
	return cache.WithMetrics[trending.Album]("catalog", store), purger, nil
}

// resolveEncryptionKey determines the encryption key to use.
// Priority: SC_ENCRYPTION_KEY env var / config > encryption.key next to the
// database > generate new.
func resolveEncryptionKey(cfg *config.Config, logger *slog.Logger) (string, error) {
	if cfg.Encryption.Key != "" {
		return cfg.Encryption.Key, nil
	}

	dataDir := filepath.Dir(cfg.Database.Path)
	keyFile := filepath.Join(dataDir, "encryption.key")

	data, err := os.ReadFile(keyFile) //nolint:gosec // G304: path derived from trusted config
	if err == nil {
		key := strings.TrimSpace(string(data))
		if key != "" {
			logger.Debug("loaded encryption key from file", slog.String("path", keyFile))
			return key, nil
		}
	}

	_, key, err := encryption.NewEncryptor("")
	if err != nil {
		return "", fmt.Errorf("generating encryption key: %w", err)
	}

	if err := filesystem.WriteFileAtomic(keyFile, []byte(key+"\n"), 0o600, 0o750); err != nil {
		logger.Warn("could not save encryption key to file",
			slog.String("path", keyFile), slog.Any("error", err))
	} else {
		logger.Warn("generated new encryption key -- back up this file",
			slog.String("path", keyFile))
	}

	return key, nil
}
