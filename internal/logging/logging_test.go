package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewManager_DefaultConfig(t *testing.T) {
	var buf bytes.Buffer
	mgr, logger := NewManagerWithWriter(DefaultConfig(), &buf)
	defer mgr.Close() //nolint:errcheck

	logger.Info("started", slog.Int("port", 8080))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "started" || rec["port"] != float64(8080) {
		t.Errorf("record = %v", rec)
	}
	if mgr.Level() != slog.LevelInfo {
		t.Errorf("level = %v, want info", mgr.Level())
	}
}

func TestManager_LevelSwap(t *testing.T) {
	var buf bytes.Buffer
	mgr, logger := NewManagerWithWriter(Config{Level: "info", Format: "json"}, &buf)
	defer mgr.Close() //nolint:errcheck
	ctx := context.Background()

	if logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("expected debug to be disabled")
	}

	mgr.Reconfigure(Config{Level: "debug", Format: "json"})
	if !logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("expected debug to be enabled after reconfigure")
	}

	mgr.Reconfigure(Config{Level: "error", Format: "json"})
	if logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("expected info to be disabled when level is error")
	}
}

func TestManager_DerivedLoggerFollowsFormatSwap(t *testing.T) {
	var buf bytes.Buffer
	mgr, logger := NewManagerWithWriter(Config{Level: "info", Format: "json"}, &buf)
	defer mgr.Close() //nolint:errcheck

	child := logger.With(slog.String("component", "enricher")).WithGroup("lookup")
	child.Info("before", slog.String("album", "OK Computer"))
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}
	buf.Reset()

	mgr.Reconfigure(Config{Level: "info", Format: "text"})
	child.Info("after", slog.String("album", "OK Computer"))
	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Fatalf("derived logger still writing JSON after swap: %q", out)
	}
	if !strings.Contains(out, "component=enricher") || !strings.Contains(out, "lookup.album=\"OK Computer\"") {
		t.Errorf("derived attrs lost across swap: %q", out)
	}
}

func TestManager_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	mgr, logger := NewManagerWithWriter(Config{Level: "info", Format: "json"}, &buf)
	defer mgr.Close() //nolint:errcheck

	logger.Info("key saved", slog.String("api_key", "super-secret"), slog.String("provider", "lastfm"))
	if strings.Contains(buf.String(), "super-secret") {
		t.Errorf("secret leaked: %s", buf.String())
	}
	if !strings.Contains(buf.String(), redactedValue) {
		t.Errorf("expected redaction marker: %s", buf.String())
	}
}

func TestManager_FileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "soundcheck.log")
	var console bytes.Buffer
	mgr, logger := NewManagerWithWriter(Config{
		Level:          "info",
		Format:         "json",
		FilePath:       logFile,
		FileMaxSizeMB:  1,
		FileMaxFiles:   1,
		FileMaxAgeDays: 1,
	}, &console)

	logger.Info("hello from test")

	if err := mgr.Close(); err != nil {
		t.Fatalf("closing manager: %v", err)
	}
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !bytes.Contains(data, []byte("hello from test")) {
		t.Errorf("log file = %q", data)
	}
	if console.Len() == 0 {
		t.Error("expected console output alongside the file")
	}
}

func TestManager_CloseIdempotent(t *testing.T) {
	mgr, _ := NewManagerWithWriter(DefaultConfig(), &bytes.Buffer{})
	if err := mgr.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestValidLevelAndFormat(t *testing.T) {
	for _, l := range []string{"debug", "info", "warn", "error"} {
		if !ValidLevel(l) {
			t.Errorf("expected %q to be valid", l)
		}
	}
	for _, l := range []string{"", "trace", "DEBUG"} {
		if ValidLevel(l) {
			t.Errorf("expected %q to be invalid", l)
		}
	}
	if !ValidFormat("text") || !ValidFormat("json") || ValidFormat("xml") {
		t.Error("unexpected ValidFormat result")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in  string
		out slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"unknown", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.out {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.out)
		}
	}
}

func TestConfig_String(t *testing.T) {
	cfg := Config{Level: "debug", Format: "text", FilePath: "/var/log/soundcheck.log", FileMaxSizeMB: 10, FileMaxFiles: 2, FileMaxAgeDays: 7}
	want := "level=debug format=text file=/var/log/soundcheck.log max_size=10MB max_files=2 max_age=7d"
	if got := cfg.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
