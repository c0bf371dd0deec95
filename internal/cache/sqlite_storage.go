package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	namespace TEXT PRIMARY KEY,
	data      BLOB NOT NULL,
	saved_at  TEXT NOT NULL
)`

// SQLiteStorage keeps snapshots in a single-table SQLite database.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStorage opens (creating if needed) the database at path.
// The caller must call Close when done.
func OpenSQLiteStorage(path string) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	// One writer at a time; snapshots are full replaces.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		sqliteSchema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize cache database: %w", err)
		}
	}

	return &SQLiteStorage{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Load reads the snapshot row for namespace.
func (s *SQLiteStorage) Load(ctx context.Context, namespace string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE namespace = ?", namespace).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read snapshot: %w", err)
	}
	return data, true, nil
}

// Save upserts the snapshot row for namespace.
func (s *SQLiteStorage) Save(ctx context.Context, namespace string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (namespace, data, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(namespace) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at`,
		namespace, data, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
