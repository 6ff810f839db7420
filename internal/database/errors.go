package database

import (
	"errors"
	"fmt"

	"courtbook/internal/domain"

	"github.com/mattn/go-sqlite3"
)

// classifyError maps sqlite contention to domain.ErrRetryable and wraps the
// rest with the failing operation.
func classifyError(err error, op string) error {
	if err == nil {
		return nil
	}
	if isBusy(err) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrRetryable, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func isBusy(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
