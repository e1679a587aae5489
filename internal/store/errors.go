package store

import (
	"database/sql"
	"errors"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres conditions the engine distinguishes: a lookup that matched no row
// decides create-vs-use, a unique violation means a concurrent duplicate, and
// an undefined column drives the adaptive insert retry.
const (
	codeUniqueViolation = "23505"
	codeUndefinedColumn = "42703"
)

// IsNoRows reports whether err is the no-matching-row condition.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

var undefinedColumnRe = regexp.MustCompile(`column "([^"]+)"`)

// UndefinedColumn extracts the offending column name from an unknown-column
// error. The second return is false for any other error.
func UndefinedColumn(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUndefinedColumn {
		return "", false
	}
	if m := undefinedColumnRe.FindStringSubmatch(pgErr.Message); m != nil {
		return m[1], true
	}
	return "", true
}
