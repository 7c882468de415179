package provisioning

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jainayushgit/store-provisioner/db"
	"github.com/Jainayushgit/store-provisioner/errors"
)

// RateLimiter is a fixed-window counter: one row per
// caller-identity key, locked for update while incrementing so concurrent
// admission requests can't lose an update.
type RateLimiter struct {
	pool   *pgxpool.Pool
	window time.Duration
	max    int
}

// NewRateLimiter creates a limiter with the given window and per-window cap.
func NewRateLimiter(pool *pgxpool.Pool, window time.Duration, max int) *RateLimiter {
	return &RateLimiter{pool: pool, window: window, max: max}
}

// bucketDecision is the pure arithmetic behind the fixed-window
// algorithm: given the bucket's current count/window-start, the elapsed
// time, the window length, and the cap, decide whether the window resets
// and whether the call is permitted. Kept free of I/O so it can be
// exercised without a database.
func bucketDecision(count int, elapsed, window time.Duration, max int) (resetWindow, permitted bool, newCount, remaining int) {
	if elapsed > window {
		return true, true, 1, max - 1
	}
	if count >= max {
		return false, false, count, 0
	}
	return false, true, count + 1, max - (count + 1)
}

// Allow runs one fixed-window check: load-or-insert the bucket row
// under a row lock, reset it if the window has elapsed, deny without
// mutating if at capacity, else increment and permit.
func (l *RateLimiter) Allow(ctx context.Context, key string) (permitted bool, remaining int, err error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "begin rate limit transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var count int
	var windowStarted time.Time
	row := tx.QueryRow(ctx,
		`SELECT count, window_started_at FROM rate_limit_buckets WHERE key = $1 FOR UPDATE`,
		key,
	)
	err = row.Scan(&count, &windowStarted)
	switch {
	case db.IsNoRows(err):
		if _, err := tx.Exec(ctx,
			`INSERT INTO rate_limit_buckets (key, count, window_started_at) VALUES ($1, 1, now())`,
			key,
		); err != nil {
			return false, 0, errors.Wrap(err, "insert rate limit bucket")
		}
		if err := tx.Commit(ctx); err != nil {
			return false, 0, errors.Wrap(err, "commit rate limit bucket")
		}
		return true, l.max - 1, nil
	case err != nil:
		return false, 0, errors.Wrap(err, "load rate limit bucket")
	}

	reset, permitted, newCount, remaining := bucketDecision(count, time.Since(windowStarted), l.window, l.max)

	if !permitted {
		// Deny without mutating — a denied call doesn't consume capacity.
		return false, 0, nil
	}

	if reset {
		if _, err := tx.Exec(ctx,
			`UPDATE rate_limit_buckets SET count = 1, window_started_at = now(), updated_at = now() WHERE key = $1`,
			key,
		); err != nil {
			return false, 0, errors.Wrap(err, "reset rate limit bucket")
		}
	} else {
		if _, err := tx.Exec(ctx,
			`UPDATE rate_limit_buckets SET count = $1, updated_at = now() WHERE key = $2`,
			newCount, key,
		); err != nil {
			return false, 0, errors.Wrap(err, "increment rate limit bucket")
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, 0, errors.Wrap(err, "commit rate limit bucket")
	}

	return true, remaining, nil
}
