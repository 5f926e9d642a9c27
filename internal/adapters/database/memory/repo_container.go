package memory

import (
	"context"

	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
	portsrepo "github.com/SscSPs/exchange_rate_api/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

// NewRepositoryProvider builds in-memory repositories holding the same seed
// row the database migration creates.
func NewRepositoryProvider() portsrepo.RepositoryProvider {
	repo := NewExchangeRateRepository()
	_, _ = repo.Insert(context.Background(), domain.ExchangeRate{
		FromCurrency: "EUR",
		ToCurrency:   "USD",
		Rate:         decimal.RequireFromString("1.05"),
		Bid:          decimal.RequireFromString("1.05"),
		Ask:          decimal.RequireFromString("1.55"),
	})
	return portsrepo.RepositoryProvider{
		ExchangeRateRepo: repo,
	}
}
