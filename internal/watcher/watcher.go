package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc is called after the watched file settles following a change.
type ReloadFunc func(ctx context.Context) error

// Service watches a single file and calls a reload function when it
// changes. The parent directory is watched rather than the file itself so
// that editors which replace the file by rename are still seen.
type Service struct {
	path     string
	reload   ReloadFunc
	logger   *slog.Logger
	debounce time.Duration
	poll     time.Duration

	lastMod time.Time
}

// NewService creates a watcher for path.
func NewService(path string, reload ReloadFunc, logger *slog.Logger) *Service {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Service{
		path:     filepath.Clean(abs),
		reload:   reload,
		logger:   logger.With(slog.String("component", "config-watcher"), slog.String("path", abs)),
		debounce: 500 * time.Millisecond,
		poll:     30 * time.Second,
	}
}

// SetDebounce overrides the default debounce interval (for testing).
func (s *Service) SetDebounce(d time.Duration) {
	s.debounce = d
}

// SetPollInterval overrides the modification-time poll interval used as a
// fallback when fsnotify is unavailable or misses an event.
func (s *Service) SetPollInterval(d time.Duration) {
	s.poll = d
}

// Start blocks until ctx is canceled.
func (s *Service) Start(ctx context.Context) {
	s.lastMod = s.modTime()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("fsnotify unavailable, running poll-only", slog.String("error", err.Error()))
	} else {
		defer w.Close() //nolint:errcheck
		if err := w.Add(filepath.Dir(s.path)); err != nil {
			s.logger.Warn("watching config directory", slog.String("error", err.Error()))
		}
	}

	// When fsnotify is unavailable, use nil channels (never receive).
	var eventCh <-chan fsnotify.Event
	var errCh <-chan error
	if w != nil {
		eventCh = w.Events
		errCh = w.Errors
	}

	pollTicker := time.NewTicker(s.poll)
	defer pollTicker.Stop()

	// Starts stopped; reset on each relevant event.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	pending := false
	schedule := func() {
		if !debounceTimer.Stop() {
			select {
			case <-debounceTimer.C:
			default:
			}
		}
		debounceTimer.Reset(s.debounce)
		pending = true
	}

	s.logger.Info("config watcher starting")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("config watcher stopping")
			return

		case ev, ok := <-eventCh:
			if !ok {
				eventCh = nil
				continue
			}
			if s.relevant(ev) {
				schedule()
			}

		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			s.logger.Error("fsnotify error", slog.String("error", err.Error()))

		case <-pollTicker.C:
			if mod := s.modTime(); !mod.Equal(s.lastMod) && !pending {
				schedule()
			}

		case <-debounceTimer.C:
			if !pending {
				continue
			}
			pending = false
			s.lastMod = s.modTime()
			s.logger.Info("config file changed, reloading")
			if err := s.reload(ctx); err != nil {
				s.logger.Error("config reload failed, keeping previous settings", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *Service) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != s.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (s *Service) modTime() time.Time {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
