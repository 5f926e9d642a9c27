package logpublisher

import (
	"context"
	"log/slog"

	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
	portsmsg "github.com/SscSPs/exchange_rate_api/internal/core/ports/messaging"
	"github.com/SscSPs/exchange_rate_api/internal/middleware"
)

// Publisher writes change events to the request logger. It is used when no
// broker is configured.
type Publisher struct{}

// NewPublisher creates a log-only publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

var _ portsmsg.ChangePublisher = (*Publisher)(nil)

// Publish logs the event at info level and never fails.
func (p *Publisher) Publish(ctx context.Context, kind domain.ChangeKind, quote domain.RateQuote) error {
	middleware.GetLoggerFromCtx(ctx).Info("Exchange rate changed",
		slog.String("change", string(kind)),
		slog.String("from", quote.FromCurrency),
		slog.String("to", quote.ToCurrency),
		slog.String("rate", quote.Rate.String()),
		slog.String("bid", quote.Bid.String()),
		slog.String("ask", quote.Ask.String()),
	)
	return nil
}
