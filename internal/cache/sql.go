package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// SQLStore persists entries in the cache_entries table so they survive a
// restart. Values are stored as JSON. Expiry is checked lazily on read, the
// same as MemoryStore. Database errors are logged and read as misses.
type SQLStore[V any] struct {
	db        *sql.DB
	namespace string
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewSQLStore creates a store over db. Entries are scoped by namespace so
// several caches can share the table.
func NewSQLStore[V any](db *sql.DB, namespace string, ttl time.Duration, logger *slog.Logger) *SQLStore[V] {
	return &SQLStore[V]{
		db:        db,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger.With(slog.String("component", "cache"), slog.String("namespace", namespace)),
		now:       time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (s *SQLStore[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	var raw string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE namespace = ? AND key = ?`,
		s.namespace, key).Scan(&raw, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false
	}
	if err != nil {
		s.logger.Warn("reading cache entry", slog.String("key", key), slog.String("error", err.Error()))
		return zero, false
	}
	if s.now().UnixMilli() >= expiresAt {
		return zero, false
	}

	var v V
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.logger.Warn("decoding cache entry", slog.String("key", key), slog.String("error", err.Error()))
		return zero, false
	}
	return v, true
}

// Set stores value under key, expiring ttl from now.
func (s *SQLStore[V]) Set(ctx context.Context, key string, value V) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("encoding cache entry", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	expiresAt := s.now().Add(s.ttl).UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (namespace, key, value, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, s.namespace, key, string(data), expiresAt)
	if err != nil {
		s.logger.Warn("writing cache entry", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Len returns the number of stored entries, expired ones included.
func (s *SQLStore[V]) Len(ctx context.Context) int {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries WHERE namespace = ?`, s.namespace).Scan(&n)
	if err != nil {
		s.logger.Warn("counting cache entries", slog.String("error", err.Error()))
		return 0
	}
	return n
}

// Clear removes every entry in the namespace.
func (s *SQLStore[V]) Clear(ctx context.Context) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE namespace = ?`, s.namespace); err != nil {
		s.logger.Warn("clearing cache", slog.String("error", err.Error()))
	}
}

// PurgeExpired deletes expired entries in the namespace and returns how many
// were removed. Reads never depend on it.
func (s *SQLStore[V]) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE namespace = ? AND expires_at <= ?`,
		s.namespace, s.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
