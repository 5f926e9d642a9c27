package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SscSPs/exchange_rate_api/internal/apperrors"
	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
	portsrepo "github.com/SscSPs/exchange_rate_api/internal/core/ports/repositories"
	"github.com/google/uuid"
)

// ExchangeRateRepository is an in-process ExchangeRateRepositoryFacade.
// Every operation is atomic for a single pair.
type ExchangeRateRepository struct {
	mu   sync.RWMutex
	rows map[domain.CurrencyPair]domain.ExchangeRate
	now  func() time.Time
}

// NewExchangeRateRepository creates an empty repository.
func NewExchangeRateRepository() *ExchangeRateRepository {
	return &ExchangeRateRepository{
		rows: make(map[domain.CurrencyPair]domain.ExchangeRate),
		now:  time.Now,
	}
}

var _ portsrepo.ExchangeRateRepositoryFacade = (*ExchangeRateRepository)(nil)

// FindByPair retrieves the row stored for a pair.
func (r *ExchangeRateRepository) FindByPair(ctx context.Context, from, to string) (*domain.ExchangeRate, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError("find", err)
	}
	pair := domain.NewCurrencyPair(from, to)

	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[pair]
	if !ok {
		return nil, apperrors.NewNotFoundError("exchange rate " + pair.String())
	}
	return &row, nil
}

// Insert stores a new row with a fresh identity and version 1.
func (r *ExchangeRateRepository) Insert(ctx context.Context, rate domain.ExchangeRate) (*domain.ExchangeRate, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError("insert", err)
	}
	pair := domain.NewCurrencyPair(rate.FromCurrency, rate.ToCurrency)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rows[pair]; exists {
		return nil, fmt.Errorf("%w: exchange rate %s", apperrors.ErrUniqueViolation, pair)
	}

	rate.ExchangeRateID = uuid.NewString()
	rate.FromCurrency, rate.ToCurrency = pair.From, pair.To
	rate.LastUpdate = r.now().UTC()
	rate.Version = 1
	r.rows[pair] = rate

	return &rate, nil
}

// Save writes rate/bid/ask when expectedVersion matches the stored version.
func (r *ExchangeRateRepository) Save(ctx context.Context, rate domain.ExchangeRate, expectedVersion int64) (*domain.ExchangeRate, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStorageError("save", err)
	}
	pair := domain.NewCurrencyPair(rate.FromCurrency, rate.ToCurrency)

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rows[pair]
	if !ok {
		return nil, &portsrepo.StaleVersionError{Pair: pair, ExpectedVersion: expectedVersion}
	}
	if stored.Version != expectedVersion {
		latest := stored
		return nil, &portsrepo.StaleVersionError{Pair: pair, ExpectedVersion: expectedVersion, Latest: &latest}
	}

	stored.Rate, stored.Bid, stored.Ask = rate.Rate, rate.Bid, rate.Ask
	if now := r.now().UTC(); now.After(stored.LastUpdate) {
		stored.LastUpdate = now
	}
	stored.Version++
	r.rows[pair] = stored

	return &stored, nil
}

// Remove deletes the row if it still has the same identity.
func (r *ExchangeRateRepository) Remove(ctx context.Context, rate domain.ExchangeRate) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewStorageError("remove", err)
	}
	pair := domain.NewCurrencyPair(rate.FromCurrency, rate.ToCurrency)

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.rows[pair]
	if !ok || (rate.ExchangeRateID != "" && stored.ExchangeRateID != rate.ExchangeRateID) {
		return apperrors.NewNotFoundError("exchange rate " + pair.String())
	}
	delete(r.rows, pair)
	return nil
}

// Len reports the number of stored rows.
func (r *ExchangeRateRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}
