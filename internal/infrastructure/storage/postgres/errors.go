package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"retailpos/internal/core/apperror"
)

const (
	pgUniqueViolation      = "23505"
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return hasCode(err, pgUniqueViolation)
}

// IsRetryable reports whether err is a lock or serialization failure that a
// fresh attempt of the whole operation may not hit.
func IsRetryable(err error) bool {
	return hasCode(err, pgSerializationFailure) || hasCode(err, pgDeadlockDetected) || hasCode(err, pgLockNotAvailable)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// Classify turns conflict-class failures into ConcurrentModification (the
// caller may retry the whole operation) and wraps anything else with op.
func Classify(err error, entity string, key any, op string) error {
	if err == nil {
		return nil
	}
	if IsUniqueViolation(err) || IsRetryable(err) {
		return apperror.NewConcurrentModification(entity, key).WithCause(err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
