package services

import (
	"context"

	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
)

// ExchangeRateReaderSvc defines read operations for exchange rate data
type ExchangeRateReaderSvc interface {
	// GetRate returns the stored quote for a pair, populating the store from
	// the external provider on a miss.
	GetRate(ctx context.Context, from, to string) (*domain.RateQuote, error)
}

// ExchangeRateWriterSvc defines write operations for exchange rate data
type ExchangeRateWriterSvc interface {
	// CreateRate persists a new rate; fails with apperrors.ErrDuplicate if the pair exists.
	CreateRate(ctx context.Context, quote domain.RateQuote) (*domain.RateQuote, error)

	// UpdateRate replaces rate/bid/ask of an existing pair.
	UpdateRate(ctx context.Context, quote domain.RateQuote) (*domain.RateQuote, error)

	// DeleteRate removes a pair and returns its prior values.
	DeleteRate(ctx context.Context, from, to string) (*domain.RateQuote, error)
}

// ExchangeRateSvcFacade combines all exchange rate-related service interfaces
type ExchangeRateSvcFacade interface {
	ExchangeRateReaderSvc
	ExchangeRateWriterSvc
}

// ProviderQuoteSvc exposes the external provider without touching the store.
type ProviderQuoteSvc interface {
	FetchProviderQuote(ctx context.Context, from, to string) (*domain.RateQuote, error)
}
