package cache

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fernwake/questlog/backend/internal/model/chat"
)

// Local is the persisted key-value cache tier, backed by SQLite. It holds
// the single current session per conversation mode plus small flags such as
// the one-time story greeting marker and the active journal prompt. Entries
// never expire on their own; they live until cleared or overwritten.
type Local struct {
	db *sql.DB
}

// NewLocal opens (and if needed initializes) the cache database. An empty
// path defaults to "./data/questlog-cache.db".
func NewLocal(ctx context.Context, dbPath string) (*Local, error) {
	if dbPath == "" {
		dbPath = "./data/questlog-cache.db"
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	cache := &Local{db: db}
	if err := cache.initSchema(ctx); err != nil {
		return nil, err
	}
	return cache, nil
}

func (l *Local) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv_cache (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := l.db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying database.
func (l *Local) Close() error {
	return l.db.Close()
}

func sessionKey(mode chat.Mode) string {
	return "session:" + string(mode)
}

// GetValue returns the raw value for a key, or "" when absent.
func (l *Local) GetValue(ctx context.Context, key string) (string, error) {
	var value string
	err := l.db.QueryRowContext(ctx, `SELECT value FROM kv_cache WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetValue writes a key unconditionally.
func (l *Local) SetValue(ctx context.Context, key, value string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO kv_cache (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

// DeleteValue removes a key if present.
func (l *Local) DeleteValue(ctx context.Context, key string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM kv_cache WHERE key = ?`, key)
	return err
}
