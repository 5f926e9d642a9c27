package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCurrencyCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"USD", true},
		{"eur", true},
		{"US", false},
		{"USDT", false},
		{"U1D", false},
		{"", false},
		{"ÄBC", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCurrencyCode(tt.code))
		})
	}
}

func TestNewCurrencyPair(t *testing.T) {
	pair := NewCurrencyPair("eur", "Usd")
	assert.Equal(t, CurrencyPair{From: "EUR", To: "USD"}, pair)
	assert.Equal(t, "EUR/USD", pair.String())
	assert.NoError(t, pair.Validate())
	assert.Error(t, NewCurrencyPair("EURO", "USD").Validate())
}

func TestRateQuoteNormalized(t *testing.T) {
	q := RateQuote{
		FromCurrency: "usd",
		ToCurrency:   "jpy",
		Rate:         decimal.RequireFromString("151.123456789"),
		Bid:          decimal.RequireFromString("151.1"),
		Ask:          decimal.RequireFromString("151.2"),
	}.Normalized()

	assert.Equal(t, "USD", q.FromCurrency)
	assert.Equal(t, "JPY", q.ToCurrency)
	assert.Equal(t, "151.12345679", q.Rate.String())
}

func TestRateQuoteValidate(t *testing.T) {
	valid := RateQuote{
		FromCurrency: "EUR",
		ToCurrency:   "USD",
		Rate:         decimal.RequireFromString("1.05"),
		Bid:          decimal.RequireFromString("1.05"),
		Ask:          decimal.RequireFromString("1.55"),
	}
	require.NoError(t, valid.Validate())

	negative := valid
	negative.Bid = decimal.RequireFromString("-0.1")
	assert.ErrorContains(t, negative.Validate(), "bid")

	tooLarge := valid
	tooLarge.Rate = decimal.RequireFromString("100000000")
	assert.ErrorContains(t, tooLarge.Validate(), "rate")

	largest := valid
	largest.Ask = decimal.RequireFromString("99999999.99999999")
	assert.NoError(t, largest.Validate())

	badPair := valid
	badPair.ToCurrency = "US"
	assert.Error(t, badPair.Validate())
}

func TestApplyQuoteKeepsIdentity(t *testing.T) {
	row := ExchangeRate{ExchangeRateID: "id-1", FromCurrency: "EUR", ToCurrency: "USD", Version: 4}
	row.ApplyQuote(RateQuote{
		FromCurrency: "GBP",
		ToCurrency:   "JPY",
		Rate:         decimal.NewFromInt(2),
		Bid:          decimal.NewFromInt(1),
		Ask:          decimal.NewFromInt(3),
	})

	assert.Equal(t, "id-1", row.ExchangeRateID)
	assert.Equal(t, CurrencyPair{From: "EUR", To: "USD"}, row.Pair())
	assert.Equal(t, int64(4), row.Version)
	assert.True(t, row.Rate.Equal(decimal.NewFromInt(2)))
}

func TestParseChangeKinds(t *testing.T) {
	kinds, err := ParseChangeKinds("created, UPDATED,,")
	require.NoError(t, err)
	assert.Equal(t, map[ChangeKind]bool{ChangeCreated: true, ChangeUpdated: true}, kinds)

	kinds, err = ParseChangeKinds("")
	require.NoError(t, err)
	assert.Empty(t, kinds)

	_, err = ParseChangeKinds("created,renamed")
	assert.Error(t, err)
}
