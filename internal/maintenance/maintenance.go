package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

const lastRunKey = "maintenance.last_run_at"

// Purger removes expired rows from a persistent store.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Status holds database maintenance status information.
type Status struct {
	DBFileSize  int64  `json:"db_file_size"`
	WALFileSize int64  `json:"wal_file_size"`
	PageCount   int64  `json:"page_count"`
	PageSize    int64  `json:"page_size"`
	LastRunAt   string `json:"last_run_at,omitempty"`
	LastPurged  int64  `json:"last_purged"`
}

// Service runs periodic upkeep on the SQLite database: expired cache rows
// are purged, then the query planner statistics and WAL are refreshed.
type Service struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger

	mu         sync.Mutex
	purgers    []Purger
	lastPurged int64
}

// NewService creates a maintenance service.
func NewService(db *sql.DB, dbPath string, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		dbPath: dbPath,
		logger: logger.With(slog.String("component", "maintenance")),
	}
}

// AddPurger registers a store whose expired rows are removed on every run.
func (s *Service) AddPurger(p Purger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgers = append(s.purgers, p)
}

// Status returns current database maintenance status.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st := &Status{}

	if info, err := os.Stat(s.dbPath); err == nil {
		st.DBFileSize = info.Size()
	}
	if info, err := os.Stat(s.dbPath + "-wal"); err == nil {
		st.WALFileSize = info.Size()
	}

	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&st.PageCount); err != nil {
		return nil, fmt.Errorf("reading page_count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&st.PageSize); err != nil {
		return nil, fmt.Errorf("reading page_size: %w", err)
	}

	var lastRun string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, lastRunKey).Scan(&lastRun); err == nil {
		st.LastRunAt = lastRun
	}

	s.mu.Lock()
	st.LastPurged = s.lastPurged
	s.mu.Unlock()
	return st, nil
}

// Run purges expired rows from every registered store, then runs
// PRAGMA optimize followed by a WAL checkpoint. A failing purger is logged
// and does not stop the others.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	purgers := append([]Purger(nil), s.purgers...)
	s.mu.Unlock()

	var purged int64
	for _, p := range purgers {
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			s.logger.Warn("purging expired rows", slog.Any("error", err))
			continue
		}
		purged += n
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("PRAGMA optimize: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("WAL checkpoint: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		lastRunKey, now, now)
	if err != nil {
		s.logger.Warn("recording maintenance timestamp", slog.Any("error", err))
	}

	s.mu.Lock()
	s.lastPurged = purged
	s.mu.Unlock()

	s.logger.Info("maintenance complete", slog.Int64("purged", purged))
	return nil
}

// StartScheduler runs maintenance on a fixed interval until the context is canceled.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	s.logger.Info("maintenance scheduler started",
		slog.String("interval", interval.String()))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("maintenance scheduler stopped")
			return
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				s.logger.Error("scheduled maintenance failed", slog.Any("error", err))
			}
		}
	}
}
