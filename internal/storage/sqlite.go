package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const syncedDataKey = "automation_rules"

const schema = `
CREATE TABLE IF NOT EXISTS synced_data (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// SQLiteBlobStore keeps the synced blob in a SQLite key/value table.
type SQLiteBlobStore struct {
	db *sql.DB
}

// NewSQLiteBlobStore opens (or creates) a SQLite database at dbPath and
// ensures the synced_data table exists. The caller is responsible for Close.
func NewSQLiteBlobStore(dbPath string) (*SQLiteBlobStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteBlobStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteBlobStore) Close() error { return s.db.Close() }

// LoadSyncedData reads the blob. A missing row is reported as found=false.
func (s *SQLiteBlobStore) LoadSyncedData(ctx context.Context) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM synced_data WHERE key = ?`, syncedDataKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select synced data: %w", err)
	}
	return value, true, nil
}

// PersistDataSynced upserts the blob.
func (s *SQLiteBlobStore) PersistDataSynced(ctx context.Context, data string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO synced_data (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		syncedDataKey, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert synced data: %w", err)
	}
	return nil
}
