package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sydlexius/soundcheck/internal/config"
	"github.com/sydlexius/soundcheck/internal/database"
	"github.com/sydlexius/soundcheck/internal/encryption"
	"github.com/sydlexius/soundcheck/internal/provider"
	"github.com/sydlexius/soundcheck/internal/trending"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewCatalogStore(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	defer db.Close()
	if _, err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	for _, backend := range []string{config.CacheBackendMemory, config.CacheBackendLRU, config.CacheBackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			store, purger, err := newCatalogStore(ctx, db, config.CacheConfig{
				Backend:           backend,
				CatalogTTL:        time.Hour,
				CatalogMaxEntries: 10,
			}, testLogger())
			if err != nil {
				t.Fatalf("newCatalogStore: %v", err)
			}
			if (purger != nil) != (backend == config.CacheBackendSQLite) {
				t.Errorf("purger = %v for backend %s", purger, backend)
			}
			store.Clear(ctx)
			store.Set(ctx, trending.CatalogKey("OK Computer", "Radiohead"), trending.Album{ID: "abc", Name: "OK Computer"})
			got, ok := store.Get(ctx, trending.CatalogKey("ok computer", "radiohead"))
			if !ok || got.ID != "abc" {
				t.Errorf("Get = %+v, %v", got, ok)
			}
		})
	}

	if _, _, err := newCatalogStore(ctx, db, config.CacheConfig{Backend: "redis", CatalogTTL: time.Hour}, testLogger()); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestApplyProviderDefaults(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	defer db.Close()
	if _, err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	enc, _, _ := encryption.NewEncryptor("")
	settings := provider.NewSettingsService(db, enc)

	cfg := config.Default()
	cfg.Providers.LastFM.APIKey = "from-config"
	applyProviderDefaults(settings, cfg)
	if got, _ := settings.GetAPIKey(ctx, provider.NameLastFM); got != "from-config" {
		t.Errorf("api key = %q", got)
	}

	cfg.Providers.LastFM.APIKey = ""
	applyProviderDefaults(settings, cfg)
	if got, _ := settings.GetAPIKey(ctx, provider.NameLastFM); got != "" {
		t.Errorf("api key after clearing config = %q", got)
	}
}

func TestParseKeyTarget(t *testing.T) {
	if name, field, err := parseKeyTarget("Spotify", "client_secret"); err != nil || name != provider.NameSpotify || field != "client_secret" {
		t.Errorf("parseKeyTarget = %q, %q, %v", name, field, err)
	}
	if _, _, err := parseKeyTarget("lastfm", "client_id"); err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Errorf("expected field error listing api_key, got %v", err)
	}
	if _, _, err := parseKeyTarget("napster", "api_key"); err == nil {
		t.Error("expected unknown provider error")
	}
}

func TestReadLine(t *testing.T) {
	got, err := readLine(strings.NewReader("  s3cret \nignored\n"))
	if err != nil || got != "s3cret" {
		t.Errorf("readLine = %q, %v", got, err)
	}
	got, err = readLine(strings.NewReader("no-newline"))
	if err != nil || got != "no-newline" {
		t.Errorf("readLine without newline = %q, %v", got, err)
	}
}

func TestResolveEncryptionKeyPersists(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "soundcheck.db")

	first, err := resolveEncryptionKey(cfg, testLogger())
	if err != nil {
		t.Fatalf("resolveEncryptionKey: %v", err)
	}
	second, err := resolveEncryptionKey(cfg, testLogger())
	if err != nil {
		t.Fatalf("resolveEncryptionKey: %v", err)
	}
	if first != second {
		t.Error("expected the generated key to be reused from disk")
	}

	cfg.Encryption.Key = "explicit"
	if got, _ := resolveEncryptionKey(cfg, testLogger()); got != "explicit" {
		t.Errorf("key = %q, want explicit", got)
	}
}
