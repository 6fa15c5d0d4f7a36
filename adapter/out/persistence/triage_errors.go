package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"triage_server/core/domain"
)

// ErrNotFound is returned for missing or foreign-tenant rows.
var ErrNotFound = domain.ErrNotFound

// mapError converts driver errors to domain errors. Context errors pass through.
func mapError(err error, entity string, id any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %v: %w", entity, id, err)
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
		case "23514", "22P02": // check_violation, invalid_text_representation
			return fmt.Errorf("%s %v: %w", entity, id, domain.ErrInvalidInput)
		}
	}
	return storageErr(fmt.Sprintf("%s %v", entity, id), err)
}

// storageErr marks a driver failure with domain.ErrStorage. Context errors pass through.
func storageErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}

// affectedOne maps a zero-row write to ErrNotFound.
func affectedOne(tag pgconn.CommandTag, entity string, id any) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
	}
	return nil
}
