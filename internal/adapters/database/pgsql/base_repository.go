package pgsql

import (
	"errors"
	"fmt"

	"github.com/SscSPs/exchange_rate_api/internal/apperrors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the SQLSTATE raised for a duplicate key.
const pgUniqueViolation = "23505"

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	Pool *pgxpool.Pool
}

// storageErr classifies a driver error. Duplicate keys become
// apperrors.ErrUniqueViolation, everything else a StorageError.
func (r *BaseRepository) storageErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w (%s): %s", apperrors.ErrUniqueViolation, pgErr.ConstraintName, pgErr.Message)
	}
	return apperrors.NewStorageError(op, err)
}
