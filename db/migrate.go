package db

import (
	"context"
	"embed"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Jainayushgit/store-provisioner/errors"
	"github.com/Jainayushgit/store-provisioner/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate runs all pending migrations against pool.
// If log is provided, logs migration progress; otherwise operates silently.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *zap.SugaredLogger) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "read migrations")
	}

	var migrationFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			migrationFiles = append(migrationFiles, entry.Name())
		}
	}
	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		version := strings.SplitN(filename, "_", 2)[0]

		var exists bool
		err := pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version).Scan(&exists)
		if err != nil {
			if version != "000" {
				return errors.Newf("schema_migrations table missing, but migration is not 000: %s", filename)
			}
		} else if exists {
			if log != nil {
				log.Debugw("skipping migration (already applied)", "migration", filename, "version", version)
			}
			continue
		}

		sqlBytes, err := migrations.ReadFile("migrations/" + filename)
		if err != nil {
			return errors.Wrapf(err, "read %s", filename)
		}

		if log != nil {
			log.Infow("applying migration", "migration", filename, "version", version)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return errors.Wrapf(err, "begin tx for %s", filename)
		}

		if _, err := tx.Exec(ctx, string(sqlBytes)); err != nil {
			tx.Rollback(ctx)
			return errors.Wrapf(err, "execute %s", filename)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			tx.Rollback(ctx)
			return errors.Wrapf(err, "record %s", filename)
		}

		if err := tx.Commit(ctx); err != nil {
			return errors.Wrapf(err, "commit %s", filename)
		}
	}

	if log != nil {
		logger.DBInfow("migrations complete", "total_migrations", len(migrationFiles))
	}

	return nil
}
