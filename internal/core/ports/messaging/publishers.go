package messaging

import (
	"context"

	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
)

// ChangePublisher emits a best-effort notification for a changed rate.
// Callers log a returned error and never surface it.
type ChangePublisher interface {
	Publish(ctx context.Context, kind domain.ChangeKind, quote domain.RateQuote) error
}

// Closer is implemented by publishers that hold a broker connection.
type Closer interface {
	Close() error
}
