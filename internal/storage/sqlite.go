package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is a Cache keyed by (owner, key) with a time-to-live.
type SQLiteStore struct {
	db    *sql.DB
	owner string
	ttl   time.Duration
	now   func() time.Time
}

// NewSQLiteStore creates or opens a SQLite cache database. A ttl of zero
// disables expiry.
func NewSQLiteStore(path, owner string, ttl time.Duration) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, owner: owner, ttl: ttl, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS cache (
			owner TEXT NOT NULL,
			key TEXT NOT NULL,
			payload JSON,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (owner, key)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cache_updated ON cache(updated_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var payload []byte
	var updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, updated_at FROM cache WHERE owner = ? AND key = ?`,
		s.owner, key,
	).Scan(&payload, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if s.expired(time.Unix(0, updated)) {
		return nil, false, nil
	}
	// A payload that no longer parses is a miss, not a failure.
	if !json.Valid(payload) {
		return nil, false, nil
	}
	return json.RawMessage(payload), true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cache (owner, key, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner, key) DO UPDATE SET
			payload=excluded.payload,
			updated_at=excluded.updated_at
	`, s.owner, key, raw, s.now().UnixNano())
	return err
}

func (s *SQLiteStore) LastModified(ctx context.Context, key string) (time.Time, bool, error) {
	var updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM cache WHERE owner = ? AND key = ?`,
		s.owner, key,
	).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(0, updated), true, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE owner = ?`, s.owner)
	return err
}

// Prune deletes entries of every owner older than the ttl.
func (s *SQLiteStore) Prune(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE updated_at < ?`, s.now().Add(-s.ttl).UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) expired(updated time.Time) bool {
	return s.ttl > 0 && s.now().Sub(updated) > s.ttl
}
