package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicate marks an idempotent collision (dedupe key, (room, ts)).
	// Callers treat it as "already processed", not a failure.
	ErrDuplicate = errors.New("duplicate row")
	ErrNotFound  = errors.New("not found")
)

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
