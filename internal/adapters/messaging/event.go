// Package messaging holds the wire format shared by all change publishers.
package messaging

import (
	"encoding/json"
	"time"

	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
	"github.com/shopspring/decimal"
)

// EventTypeHeader carries the change kind next to the payload.
const EventTypeHeader = "event-type"

// RateChangedEvent is the JSON body of one change notification.
type RateChangedEvent struct {
	Type         domain.ChangeKind `json:"type"`
	FromCurrency string            `json:"fromCurrency"`
	ToCurrency   string            `json:"toCurrency"`
	Rate         decimal.Decimal   `json:"rate"`
	Bid          decimal.Decimal   `json:"bid"`
	Ask          decimal.Decimal   `json:"ask"`
	OccurredAt   time.Time         `json:"occurredAt"`
}

// NewRateChangedEvent builds the event for a quote.
func NewRateChangedEvent(kind domain.ChangeKind, quote domain.RateQuote, at time.Time) RateChangedEvent {
	return RateChangedEvent{
		Type:         kind,
		FromCurrency: quote.FromCurrency,
		ToCurrency:   quote.ToCurrency,
		Rate:         quote.Rate,
		Bid:          quote.Bid,
		Ask:          quote.Ask,
		OccurredAt:   at.UTC(),
	}
}

// Key is the partition/ordering key: one pair always lands on the same partition.
func (e RateChangedEvent) Key() string {
	return domain.NewCurrencyPair(e.FromCurrency, e.ToCurrency).String()
}

// Encode renders the event as JSON.
func (e RateChangedEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}
