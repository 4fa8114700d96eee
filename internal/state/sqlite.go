package state

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/dpereira/closings-tracker/internal/common"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS properties (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteStore backs the property store with a single-file SQLite
// database (":memory:" works too).
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (and if needed initializes) the property table.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, common.WrapError(err, "open sqlite")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, common.WrapError(err, "ping sqlite")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, common.WrapError(err, "init sqlite schema")
	}

	logger.Debug("state.sqlite.open", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM properties WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, common.WrapError(err, "get property")
	}
	return v, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO properties (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return common.WrapError(err, "set property")
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM properties WHERE key = ?`, key)
	return common.WrapError(err, "delete property")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
