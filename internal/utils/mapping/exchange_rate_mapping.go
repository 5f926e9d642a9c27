package mapping

import (
	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
	"github.com/SscSPs/exchange_rate_api/internal/models"
)

// ToModelExchangeRate converts a domain ExchangeRate to a model ExchangeRate
func ToModelExchangeRate(d domain.ExchangeRate) models.ExchangeRate {
	return models.ExchangeRate{
		ExchangeRateID: d.ExchangeRateID,
		FromCurrency:   d.FromCurrency,
		ToCurrency:     d.ToCurrency,
		Rate:           d.Rate,
		Bid:            d.Bid,
		Ask:            d.Ask,
		LastUpdate:     d.LastUpdate,
		Version:        d.Version,
	}
}

// ToDomainExchangeRate converts a model ExchangeRate to a domain ExchangeRate
func ToDomainExchangeRate(m models.ExchangeRate) domain.ExchangeRate {
	return domain.ExchangeRate{
		ExchangeRateID: m.ExchangeRateID,
		FromCurrency:   m.FromCurrency,
		ToCurrency:     m.ToCurrency,
		Rate:           m.Rate,
		Bid:            m.Bid,
		Ask:            m.Ask,
		LastUpdate:     m.LastUpdate,
		Version:        m.Version,
	}
}

// ToRateQuote drops identity, timestamp and version from a stored rate.
func ToRateQuote(d domain.ExchangeRate) domain.RateQuote {
	return domain.RateQuote{
		FromCurrency: d.FromCurrency,
		ToCurrency:   d.ToCurrency,
		Rate:         d.Rate,
		Bid:          d.Bid,
		Ask:          d.Ask,
	}
}

// FromRateQuote builds an unsaved ExchangeRate; the store fills in the rest.
func FromRateQuote(q domain.RateQuote) domain.ExchangeRate {
	return domain.ExchangeRate{
		FromCurrency: q.FromCurrency,
		ToCurrency:   q.ToCurrency,
		Rate:         q.Rate,
		Bid:          q.Bid,
		Ask:          q.Ask,
	}
}
