// Package db provides the PostgreSQL connection pool used by the store
// provisioner. All persistence (stores, jobs, events, rate-limit buckets)
// lives in one Postgres database so the job engine can lease work with
// SELECT ... FOR UPDATE SKIP LOCKED across multiple provisioner processes.
package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Jainayushgit/store-provisioner/errors"
	"github.com/Jainayushgit/store-provisioner/logger"
)

const (
	// PingTimeout bounds the initial connectivity check in Open.
	PingTimeout = 5 * time.Second
)

// Open creates a connection pool for the given DSN and verifies connectivity.
// If log is provided, logs connection progress; otherwise operates silently.
func Open(ctx context.Context, dsn string, log *zap.SugaredLogger) (*pgxpool.Pool, error) {
	if log != nil {
		logger.DBInfow("opening database pool")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse database url")
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	if log != nil {
		logger.DBInfow("database pool ready",
			"max_conns", cfg.MaxConns,
		)
	}

	return pool, nil
}

// OpenWithMigrations opens a connection pool and runs pending migrations.
func OpenWithMigrations(ctx context.Context, dsn string, log *zap.SugaredLogger) (*pgxpool.Pool, error) {
	pool, err := Open(ctx, dsn, log)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, pool, log); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}

	return pool, nil
}
