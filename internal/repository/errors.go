package repository

import (
	"errors"
	"fmt"

	"bastportal/internal/apperror"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// pgUniqueViolation is the SQLSTATE of a unique constraint violation.
const pgUniqueViolation = "23505"

// translate maps driver errors onto the apperror kinds. Other errors pass
// through unchanged.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, apperror.ErrNotFound)
	}
	if isDuplicate(err) {
		return fmt.Errorf("%s: %w", what, apperror.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// lookupError is translate for master-data lookups: a store that cannot be
// reached is an infrastructure failure, not a missing row.
func lookupError(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, apperror.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %v", what, apperror.ErrExternalLookup, err)
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func conflict(what string) error {
	return fmt.Errorf("%s was changed by another request: %w", what, apperror.ErrConcurrencyConflict)
}
