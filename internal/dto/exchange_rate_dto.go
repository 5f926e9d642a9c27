package dto

import (
	"strings"

	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ExchangeRateRequest is the body accepted by create and update.
// Rate, Bid and Ask are pointers so an omitted field fails "required".
type ExchangeRateRequest struct {
	FromCurrency string           `json:"fromCurrency" binding:"required,currencycode" example:"EUR"`
	ToCurrency   string           `json:"toCurrency" binding:"required,currencycode" example:"USD"`
	Rate         *decimal.Decimal `json:"rate" binding:"required" swaggertype:"string" example:"1.05"`
	Bid          *decimal.Decimal `json:"bid" binding:"required" swaggertype:"string" example:"1.05"`
	Ask          *decimal.Decimal `json:"ask" binding:"required" swaggertype:"string" example:"1.55"`
}

// ToRateQuote converts the request into the core transfer shape.
func (r ExchangeRateRequest) ToRateQuote() domain.RateQuote {
	q := domain.RateQuote{
		FromCurrency: strings.ToUpper(r.FromCurrency),
		ToCurrency:   strings.ToUpper(r.ToCurrency),
	}
	if r.Rate != nil {
		q.Rate = *r.Rate
	}
	if r.Bid != nil {
		q.Bid = *r.Bid
	}
	if r.Ask != nil {
		q.Ask = *r.Ask
	}
	return q
}

// CurrencyPairURI binds the {from}/{to} path parameters.
type CurrencyPairURI struct {
	From string `uri:"from" binding:"required,currencycode"`
	To   string `uri:"to" binding:"required,currencycode"`
}

// ExchangeRateResponse is the public view of a rate.
type ExchangeRateResponse struct {
	FromCurrency string          `json:"fromCurrency" example:"EUR"`
	ToCurrency   string          `json:"toCurrency" example:"USD"`
	Rate         decimal.Decimal `json:"rate" swaggertype:"string" example:"1.05"`
	Bid          decimal.Decimal `json:"bid" swaggertype:"string" example:"1.05"`
	Ask          decimal.Decimal `json:"ask" swaggertype:"string" example:"1.55"`
}

// ToExchangeRateResponse converts a domain.RateQuote to ExchangeRateResponse DTO
func ToExchangeRateResponse(q *domain.RateQuote) ExchangeRateResponse {
	return ExchangeRateResponse{
		FromCurrency: q.FromCurrency,
		ToCurrency:   q.ToCurrency,
		Rate:         q.Rate,
		Bid:          q.Bid,
		Ask:          q.Ask,
	}
}

// RegisterValidators adds the custom tags used by the request DTOs to gin's
// validator engine. It is safe to call more than once.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("currencycode", func(fl validator.FieldLevel) bool {
		return domain.IsCurrencyCode(fl.Field().String())
	})
}
