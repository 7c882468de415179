package db

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Jainayushgit/store-provisioner/errors"
)

// ErrNoRows is returned when a query expected to return a row found none.
// It is an alias for pgx.ErrNoRows so callers outside this package don't
// need to import pgx directly to check for it.
var ErrNoRows = pgx.ErrNoRows

// IsNoRows reports whether err is or wraps pgx.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// postgres error codes this package classifies. See
// https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgCodeUniqueViolation     = "23505"
	pgCodeForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err is a unique-constraint violation,
// e.g. a duplicate rate-limit bucket key inserted concurrently.
func IsUniqueViolation(err error) bool {
	return hasPgCode(err, pgCodeUniqueViolation)
}

// IsForeignKeyViolation reports whether err is a foreign-key violation.
func IsForeignKeyViolation(err error) bool {
	return hasPgCode(err, pgCodeForeignKeyViolation)
}

func hasPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
