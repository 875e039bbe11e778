package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Store-level failures. Implementations wrap these so callers can match with errors.Is.
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("unique constraint violated")
	// ErrGuardFailed reports that a guarded write matched no row because the ownership or
	// state condition it re-checks no longer holds.
	ErrGuardFailed = errors.New("write guard rejected")
)

const pqUniqueViolation = "23505"

// mapError converts driver errors into store sentinels, keeping the original cause.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%s: %w (%s)", op, ErrConflict, pqErr.Constraint)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// requireAffected turns a zero-row guarded write into ErrGuardFailed.
func requireAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrGuardFailed)
	}
	return nil
}
