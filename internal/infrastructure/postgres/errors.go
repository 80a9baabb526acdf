package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/go-task-manager/internal/domain/repository"
)

// SQLSTATE codes we translate into repository errors.
const (
	codeUniqueViolation     = "23505"
	codeInvalidTextRepr     = "22P02"
	codeForeignKeyViolation = "23503"
)

// classify maps driver errors onto the repository sentinels and wraps
// everything else with the operation name.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
		case codeInvalidTextRepr:
			// a malformed uuid can never match a row
			return repository.ErrNotFound
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
