package repositories

import (
	"context"
	"fmt"

	"github.com/SscSPs/exchange_rate_api/internal/apperrors"
	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
)

// ExchangeRateReader defines read operations for exchange rate data
type ExchangeRateReader interface {
	// FindByPair retrieves the row stored for a currency pair.
	// It returns an error matching apperrors.ErrNotFound when the pair is absent.
	FindByPair(ctx context.Context, from, to string) (*domain.ExchangeRate, error)
}

// ExchangeRateWriter defines write operations for exchange rate data
type ExchangeRateWriter interface {
	// Insert persists a new row, assigning identity, last update and initial version.
	// A pair that already exists yields an error matching apperrors.ErrUniqueViolation.
	Insert(ctx context.Context, rate domain.ExchangeRate) (*domain.ExchangeRate, error)

	// Save commits rate/bid/ask only if the stored version still equals
	// expectedVersion. Otherwise nothing is written and a *StaleVersionError
	// carrying the current row is returned.
	Save(ctx context.Context, rate domain.ExchangeRate, expectedVersion int64) (*domain.ExchangeRate, error)

	// Remove deletes the row.
	Remove(ctx context.Context, rate domain.ExchangeRate) error
}

// ExchangeRateRepositoryFacade combines all exchange rate-related repository interfaces
type ExchangeRateRepositoryFacade interface {
	ExchangeRateReader
	ExchangeRateWriter
}

// StaleVersionError is returned by Save when another writer committed first.
// Latest is the row as currently stored; it is nil if the row was removed meanwhile.
type StaleVersionError struct {
	Pair            domain.CurrencyPair
	ExpectedVersion int64
	Latest          *domain.ExchangeRate
}

func (e *StaleVersionError) Error() string {
	if e.Latest == nil {
		return fmt.Sprintf("exchange rate %s was removed while saving version %d", e.Pair, e.ExpectedVersion)
	}
	return fmt.Sprintf("exchange rate %s is at version %d, expected %d", e.Pair, e.Latest.Version, e.ExpectedVersion)
}

func (e *StaleVersionError) Unwrap() error { return apperrors.ErrConcurrencyConflict }
