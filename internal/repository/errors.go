package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors translated by the service layer.
var (
	// ErrNotPending is returned by conditional transitions on a record that already left pending.
	ErrNotPending = errors.New("record is no longer pending")
	// ErrDuplicate wraps unique constraint violations.
	ErrDuplicate = errors.New("duplicate record")
)

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
