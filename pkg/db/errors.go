package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint failure from
// either backing store. When constraintName is provided, the helper also
// requires the constraint (or column list, for SQLite) to appear in the message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	matched := false
	var pgErr *pgconn.PgError
	var sqliteErr sqlite3.Error
	switch {
	case errors.As(err, &pgErr):
		matched = pgErr.Code == pgUniqueViolation
	case errors.As(err, &sqliteErr):
		matched = sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	default:
		msg := err.Error()
		matched = strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
	}
	if !matched {
		return false
	}
	if constraintName != "" {
		return strings.Contains(err.Error(), constraintName)
	}
	return true
}
