package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var _ Store = (*SQLiteStore)(nil)

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	created_at_ms INTEGER NOT NULL,
	ttl_ms INTEGER NOT NULL
);
`

// SQLiteStore keeps cache entries in a SQLite table so results survive
// restarts.
type SQLiteStore struct {
	db     *sql.DB
	ownsDB bool
}

// OpenSQLiteStore opens (or creates) a dedicated cache database file.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	store, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.ownsDB = true

	return store, nil
}

// NewSQLiteStore uses an existing connection; Close leaves it open.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(createCacheTable); err != nil {
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	var payload []byte
	var createdAtMs, ttlMs int64

	err := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at_ms, ttl_ms FROM cache_entries WHERE cache_key = ?`,
		key,
	).Scan(&payload, &createdAtMs, &ttlMs)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	return &Entry{
		Key:       key,
		Payload:   payload,
		Timestamp: time.UnixMilli(createdAtMs),
		TTL:       time.Duration(ttlMs) * time.Millisecond,
	}, nil
}

func (s *SQLiteStore) Set(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (cache_key, payload, created_at_ms, ttl_ms)
		 VALUES (?, ?, ?, ?)`,
		entry.Key, entry.Payload, entry.Timestamp.UnixMilli(), entry.TTL.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// ClearExpired removes entries whose TTL elapsed before now.
func (s *SQLiteStore) ClearExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE created_at_ms + ttl_ms <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cache clear expired: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("cache stats: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
