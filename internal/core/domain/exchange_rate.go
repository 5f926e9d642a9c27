package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// RateScale is the number of fractional digits kept for rate, bid and ask.
const RateScale int32 = 8

// RatePrecision is the total number of digits a stored rate may carry.
const RatePrecision = 16

// maxRate is the first value that no longer fits in numeric(16,8).
var maxRate = decimal.New(1, RatePrecision-RateScale)

// CurrencyPair is the ordered (from, to) key identifying one exchange rate.
type CurrencyPair struct {
	From string `json:"fromCurrency"`
	To   string `json:"toCurrency"`
}

// NewCurrencyPair builds a pair with upper-cased codes.
func NewCurrencyPair(from, to string) CurrencyPair {
	return CurrencyPair{From: strings.ToUpper(from), To: strings.ToUpper(to)}
}

// String renders the pair as FROM/TO.
func (p CurrencyPair) String() string {
	return p.From + "/" + p.To
}

// Validate checks that both codes are three letters.
func (p CurrencyPair) Validate() error {
	if !IsCurrencyCode(p.From) {
		return fmt.Errorf("invalid from currency code %q", p.From)
	}
	if !IsCurrencyCode(p.To) {
		return fmt.Errorf("invalid to currency code %q", p.To)
	}
	return nil
}

// IsCurrencyCode reports whether code is exactly three alphabetic characters.
func IsCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// RateQuote is the transfer shape of a rate: no identity, timestamp or version.
type RateQuote struct {
	FromCurrency string          `json:"fromCurrency"`
	ToCurrency   string          `json:"toCurrency"`
	Rate         decimal.Decimal `json:"rate"`
	Bid          decimal.Decimal `json:"bid"`
	Ask          decimal.Decimal `json:"ask"`
}

// Pair returns the quote's currency pair.
func (q RateQuote) Pair() CurrencyPair {
	return CurrencyPair{From: q.FromCurrency, To: q.ToCurrency}
}

// Normalized returns a copy with upper-cased codes and values rounded to RateScale.
func (q RateQuote) Normalized() RateQuote {
	return RateQuote{
		FromCurrency: strings.ToUpper(q.FromCurrency),
		ToCurrency:   strings.ToUpper(q.ToCurrency),
		Rate:         q.Rate.Round(RateScale),
		Bid:          q.Bid.Round(RateScale),
		Ask:          q.Ask.Round(RateScale),
	}
}

// Validate checks the pair and that every value fits the fixed-point column.
func (q RateQuote) Validate() error {
	if err := q.Pair().Validate(); err != nil {
		return err
	}
	for name, v := range map[string]decimal.Decimal{"rate": q.Rate, "bid": q.Bid, "ask": q.Ask} {
		if v.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
		if v.Abs().GreaterThanOrEqual(maxRate) {
			return fmt.Errorf("%s exceeds %d integer digits", name, RatePrecision-int(RateScale))
		}
	}
	return nil
}

// ExchangeRate is the persisted rate row. ID, LastUpdate and Version are
// assigned by the store on every write.
type ExchangeRate struct {
	ExchangeRateID string          `json:"exchangeRateID"`
	FromCurrency   string          `json:"fromCurrency"`
	ToCurrency     string          `json:"toCurrency"`
	Rate           decimal.Decimal `json:"rate"`
	Bid            decimal.Decimal `json:"bid"`
	Ask            decimal.Decimal `json:"ask"`
	LastUpdate     time.Time       `json:"lastUpdate"`
	Version        int64           `json:"version"`
}

// Pair returns the row's currency pair.
func (r ExchangeRate) Pair() CurrencyPair {
	return CurrencyPair{From: r.FromCurrency, To: r.ToCurrency}
}

// ApplyQuote overwrites rate, bid and ask with the quote's values.
// Identity, pair, timestamp and version are left untouched.
func (r *ExchangeRate) ApplyQuote(q RateQuote) {
	r.Rate = q.Rate
	r.Bid = q.Bid
	r.Ask = q.Ask
}

// ChangeKind names the mutation that produced a change notification.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// ParseChangeKinds parses a comma separated list such as "created,updated".
func ParseChangeKinds(s string) (map[ChangeKind]bool, error) {
	kinds := make(map[ChangeKind]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		switch k := ChangeKind(part); k {
		case ChangeCreated, ChangeUpdated, ChangeDeleted:
			kinds[k] = true
		default:
			return nil, fmt.Errorf("unknown change kind %q", part)
		}
	}
	return kinds, nil
}
