package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation from
// Postgres (pgx or lib/pq) or SQLite. When constraintName is provided the
// violated constraint must match it.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode && matchesConstraint(pgErr.ConstraintName, err, constraintName)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode && matchesConstraint(pqErr.Constraint, err, constraintName)
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return true
}

func matchesConstraint(actual string, err error, want string) bool {
	if want == "" {
		return true
	}
	if actual != "" {
		return actual == want
	}
	return strings.Contains(err.Error(), want)
}
