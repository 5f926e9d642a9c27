package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate mirrors one row of the exchange_rates table.
// Rate, Bid and Ask are numeric(16,8) columns.
type ExchangeRate struct {
	ExchangeRateID string          `db:"exchange_rate_id"`
	FromCurrency   string          `db:"from_currency"`
	ToCurrency     string          `db:"to_currency"`
	Rate           decimal.Decimal `db:"rate"`
	Bid            decimal.Decimal `db:"bid"`
	Ask            decimal.Decimal `db:"ask"`
	LastUpdate     time.Time       `db:"last_update"`
	Version        int64           `db:"version"`
}
