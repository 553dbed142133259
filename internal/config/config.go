package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/soundcheck/internal/logging"
)

// Cache backends for the catalog cache. The result cache is always in memory.
const (
	CacheBackendMemory = "memory"
	CacheBackendLRU    = "lru"
	CacheBackendSQLite = "sqlite"
)

// DefaultPath is the config file location used when SC_CONFIG_PATH is unset.
const DefaultPath = "/data/config.yaml"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Logging    logging.Config   `yaml:"logging"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Cache      CacheConfig      `yaml:"cache"`
	Trending   TrendingConfig   `yaml:"trending"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port       int    `yaml:"port"`
	BasePath   string `yaml:"base_path"`
	AdminToken string `yaml:"admin_token"`
	// RateLimit is the sustained requests per second allowed per client IP
	// on the public endpoint. Zero disables the limit.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
	// MaintenanceInterval is how often expired cache rows are purged and the
	// database is optimized. Zero disables the scheduler.
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
}

// EncryptionConfig holds encryption key settings.
type EncryptionConfig struct {
	Key string `yaml:"key"`
}

// ProvidersConfig holds fallback provider credentials. Keys saved through
// the admin API take precedence.
type ProvidersConfig struct {
	LastFM  LastFMConfig  `yaml:"lastfm"`
	Spotify SpotifyConfig `yaml:"spotify"`
}

// LastFMConfig holds Last.fm credentials.
type LastFMConfig struct {
	APIKey string `yaml:"api_key"`
}

// SpotifyConfig holds Spotify client credentials.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Backend    string        `yaml:"backend"`
	ResultTTL  time.Duration `yaml:"result_ttl"`
	CatalogTTL time.Duration `yaml:"catalog_ttl"`
	// CatalogMaxEntries bounds the lru backend; ignored by the others.
	CatalogMaxEntries int `yaml:"catalog_max_entries"`
}

// TrendingConfig tunes catalog enrichment.
type TrendingConfig struct {
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
	Concurrency   int           `yaml:"concurrency"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      8080,
			BasePath:  "/",
			RateLimit: 5,
			RateBurst: 10,
		},
		Database: DatabaseConfig{
			Path:                "/data/soundcheck.db",
			MaintenanceInterval: 24 * time.Hour,
		},
		Logging: logging.DefaultConfig(),
		Cache: CacheConfig{
			Backend:           CacheBackendMemory,
			ResultTTL:         time.Hour,
			CatalogTTL:        24 * time.Hour,
			CatalogMaxEntries: 10000,
		},
		Trending: TrendingConfig{
			LookupTimeout: 3 * time.Second,
			Concurrency:   50,
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("SC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SC_BASE_PATH"); v != "" {
		c.Server.BasePath = v
	}
	if v := os.Getenv("SC_ADMIN_TOKEN"); v != "" {
		c.Server.AdminToken = v
	}
	if v := os.Getenv("SC_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("SC_ENCRYPTION_KEY"); v != "" {
		c.Encryption.Key = v
	}
	if v := os.Getenv("SC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SC_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("SC_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("SC_LASTFM_API_KEY"); v != "" {
		c.Providers.LastFM.APIKey = v
	}
	if v := os.Getenv("SC_SPOTIFY_CLIENT_ID"); v != "" {
		c.Providers.Spotify.ClientID = v
	}
	if v := os.Getenv("SC_SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Providers.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SC_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Database.MaintenanceInterval < 0 {
		return fmt.Errorf("database maintenance_interval must not be negative")
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("rate limit and burst must not be negative")
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendLRU, CacheBackendSQLite:
	default:
		return fmt.Errorf("invalid cache backend: %q", c.Cache.Backend)
	}
	if c.Cache.ResultTTL <= 0 || c.Cache.CatalogTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Trending.LookupTimeout <= 0 {
		return fmt.Errorf("trending lookup_timeout must be positive")
	}
	if c.Trending.Concurrency < 1 {
		return fmt.Errorf("trending concurrency must be at least 1")
	}

	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		c.Server.BasePath = "/" + c.Server.BasePath
	}
	return nil
}
