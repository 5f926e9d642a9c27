package providers

import (
	"context"

	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
)

// RateProvider fetches a live quote for a currency pair from a remote service.
type RateProvider interface {
	// Fetch returns the provider's quote for from/to. Errors match
	// apperrors.ErrConfiguration, apperrors.ErrExternalProvider or
	// apperrors.ErrNotFound (provider has no quote for the pair).
	Fetch(ctx context.Context, from, to string) (*domain.RateQuote, error)
}

// CredentialFunc resolves the provider credential at call time.
type CredentialFunc func() (string, error)
