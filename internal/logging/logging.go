package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes the desired logging configuration.
type Config struct {
	Level          string `yaml:"level" json:"level"`
	Format         string `yaml:"format" json:"format"`
	FilePath       string `yaml:"file_path" json:"file_path,omitempty"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb" json:"file_max_size_mb,omitempty"`
	FileMaxFiles   int    `yaml:"file_max_files" json:"file_max_files,omitempty"`
	FileMaxAgeDays int    `yaml:"file_max_age_days" json:"file_max_age_days,omitempty"`
}

// redacted lists attribute keys whose values never reach the log output.
var redacted = map[string]bool{
	"api_key":       true,
	"client_id":     true,
	"client_secret": true,
	"admin_token":   true,
	"token":         true,
	"authorization": true,
}

const redactedValue = "[REDACTED]"

type generation struct {
	handler slog.Handler
	gen     uint64
}

// swapRoot holds the current base handler shared by a SwappableHandler and
// every handler derived from it.
type swapRoot struct {
	current atomic.Pointer[generation]
}

// SwappableHandler is a thread-safe slog.Handler whose base handler can be
// replaced at runtime. Handlers derived with WithAttrs or WithGroup follow
// the swap: they replay their attrs and groups onto the new base on first
// use.
type SwappableHandler struct {
	root   *swapRoot
	ops    []func(slog.Handler) slog.Handler
	cached atomic.Pointer[generation]
}

// NewSwappableHandler creates a SwappableHandler wrapping h.
func NewSwappableHandler(h slog.Handler) *SwappableHandler {
	root := &swapRoot{}
	root.current.Store(&generation{handler: h})
	return &SwappableHandler{root: root}
}

// Swap replaces the base handler for this handler and all derived ones.
func (s *SwappableHandler) Swap(h slog.Handler) {
	prev := s.root.current.Load()
	s.root.current.Store(&generation{handler: h, gen: prev.gen + 1})
}

func (s *SwappableHandler) resolve() slog.Handler {
	base := s.root.current.Load()
	if len(s.ops) == 0 {
		return base.handler
	}
	if c := s.cached.Load(); c != nil && c.gen == base.gen {
		return c.handler
	}
	h := base.handler
	for _, op := range s.ops {
		h = op(h)
	}
	s.cached.Store(&generation{handler: h, gen: base.gen})
	return h
}

// Enabled delegates to the current handler.
func (s *SwappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return s.resolve().Enabled(ctx, level)
}

// Handle delegates to the current handler.
func (s *SwappableHandler) Handle(ctx context.Context, r slog.Record) error {
	return s.resolve().Handle(ctx, r)
}

// WithAttrs returns a derived handler that adds attrs.
func (s *SwappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return s.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

// WithGroup returns a derived handler that opens a group.
func (s *SwappableHandler) WithGroup(name string) slog.Handler {
	return s.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (s *SwappableHandler) derive(op func(slog.Handler) slog.Handler) *SwappableHandler {
	ops := make([]func(slog.Handler) slog.Handler, len(s.ops), len(s.ops)+1)
	copy(ops, s.ops)
	return &SwappableHandler{root: s.root, ops: append(ops, op)}
}

// Manager owns the logger lifecycle and supports runtime reconfiguration.
type Manager struct {
	levelVar *slog.LevelVar
	handler  *SwappableHandler
	stdout   io.Writer
	config   Config
	mu       sync.Mutex
	closer   io.Closer // lumberjack writer, if any
}

// NewManager creates a Manager writing to stdout and returns it along with a
// ready-to-use logger.
func NewManager(cfg Config) (*Manager, *slog.Logger) {
	return NewManagerWithWriter(cfg, os.Stdout)
}

// NewManagerWithWriter is NewManager with a custom console writer.
func NewManagerWithWriter(cfg Config, stdout io.Writer) (*Manager, *slog.Logger) {
	lvl := &slog.LevelVar{}
	lvl.Set(parseLevel(cfg.Level))

	m := &Manager{
		levelVar: lvl,
		stdout:   stdout,
		config:   cfg,
	}
	writer, closer := m.buildWriter(cfg)
	m.handler = NewSwappableHandler(buildHandler(writer, lvl, cfg.Format))
	m.closer = closer

	return m, slog.New(m.handler)
}

// Reconfigure applies a new configuration at runtime. Level-only changes
// are instant via LevelVar; format or output changes rebuild the handler.
func (m *Manager) Reconfigure(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.levelVar.Set(parseLevel(cfg.Level))

	needSwap := cfg.Format != m.config.Format ||
		cfg.FilePath != m.config.FilePath ||
		cfg.FileMaxSizeMB != m.config.FileMaxSizeMB ||
		cfg.FileMaxFiles != m.config.FileMaxFiles ||
		cfg.FileMaxAgeDays != m.config.FileMaxAgeDays

	if needSwap {
		if m.closer != nil {
			m.closer.Close() //nolint:errcheck
			m.closer = nil
		}
		writer, closer := m.buildWriter(cfg)
		m.handler.Swap(buildHandler(writer, m.levelVar, cfg.Format))
		m.closer = closer
	}

	m.config = cfg
}

// Config returns the current configuration snapshot.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Level returns the active level.
func (m *Manager) Level() slog.Level {
	return m.levelVar.Level()
}

// Close releases resources (e.g. the log file writer).
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closer != nil {
		err := m.closer.Close()
		m.closer = nil
		return err
	}
	return nil
}

// parseLevel converts a string to slog.Level, defaulting to Info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildWriter returns the console writer, tee'd into a rotating file when
// a file path is configured. The file logger is returned as the closer.
func (m *Manager) buildWriter(cfg Config) (io.Writer, io.Closer) {
	if cfg.FilePath == "" {
		return m.stdout, nil
	}

	d := DefaultConfig()
	lj := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    positiveOr(cfg.FileMaxSizeMB, d.FileMaxSizeMB),
		MaxBackups: positiveOr(cfg.FileMaxFiles, d.FileMaxFiles),
		MaxAge:     positiveOr(cfg.FileMaxAgeDays, d.FileMaxAgeDays),
		Compress:   true,
	}
	return io.MultiWriter(m.stdout, lj), lj
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// buildHandler creates a slog.Handler with the given writer, leveler, and
// format. Secret-bearing attributes are redacted.
func buildHandler(w io.Writer, leveler slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: leveler, ReplaceAttr: redact}
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redacted[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redactedValue)
	}
	return a
}

// ValidLevel returns true if s is a recognized log level.
func ValidLevel(s string) bool {
	switch s {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// ValidFormat returns true if s is a recognized log format.
func ValidFormat(s string) bool {
	return s == "text" || s == "json"
}

// DefaultConfig returns the logging defaults.
func DefaultConfig() Config {
	return Config{
		Level:          "info",
		Format:         "json",
		FileMaxSizeMB:  50,
		FileMaxFiles:   5,
		FileMaxAgeDays: 14,
	}
}

// String returns a human-readable summary of the config.
func (c Config) String() string {
	s := fmt.Sprintf("level=%s format=%s", c.Level, c.Format)
	if c.FilePath != "" {
		s += fmt.Sprintf(" file=%s max_size=%dMB max_files=%d max_age=%dd",
			c.FilePath, c.FileMaxSizeMB, c.FileMaxFiles, c.FileMaxAgeDays)
	}
	return s
}
