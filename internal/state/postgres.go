package state

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dpereira/closings-tracker/internal/common"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS closings_properties (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// PGStore backs the property store with Postgres for deployments that
// already run one.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres creates a pgx pool, pings it and ensures the property
// table exists.
func OpenPostgres(ctx context.Context, dsn string, dialTimeout time.Duration, logger *slog.Logger) (*PGStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "dsn", dsn)

	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, common.WrapError(err, "parse dsn")
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "closings-tracker"

	if dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, common.WrapError(err, "connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, common.WrapError(err, "ping")
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, common.WrapError(err, "init schema")
	}

	logger.Info("successfully connected to database")
	return &PGStore{pool: pool, logger: logger}, nil
}

func (s *PGStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.pool.QueryRow(ctx, `SELECT value FROM closings_properties WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, common.WrapError(err, "get property")
	}
	return v, true, nil
}

func (s *PGStore) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO closings_properties (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	return common.WrapError(err, "set property")
}

func (s *PGStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM closings_properties WHERE key = $1`, key)
	return common.WrapError(err, "delete property")
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}
