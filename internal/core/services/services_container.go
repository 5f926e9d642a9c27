package services

import (
	portsprov "github.com/SscSPs/exchange_rate_api/internal/core/ports/providers"
	portsrepo "github.com/SscSPs/exchange_rate_api/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/exchange_rate_api/internal/core/ports/services"
)

// NewServiceContainer creates a new service container with properly initialized dependencies.
// The concrete exchange rate service is returned too so the caller can drain
// pending publishes on shutdown.
func NewServiceContainer(
	repos portsrepo.RepositoryProvider,
	provider portsprov.RateProvider,
	options ...ExchangeRateOption,
) (*portssvc.ServiceContainer, *ExchangeRateService) {
	exchangeRates := NewExchangeRateService(repos.ExchangeRateRepo, provider, options...)

	container := &portssvc.ServiceContainer{
		ExchangeRate:  exchangeRates,
		ProviderQuote: exchangeRates,
	}
	return container, exchangeRates
}

