package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/exchange_rate_api/internal/apperrors"
	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
	portsrepo "github.com/SscSPs/exchange_rate_api/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eurUsd() domain.ExchangeRate {
	return domain.ExchangeRate{
		FromCurrency: "EUR",
		ToCurrency:   "USD",
		Rate:         decimal.RequireFromString("1.05"),
		Bid:          decimal.RequireFromString("1.00"),
		Ask:          decimal.RequireFromString("1.10"),
	}
}

func TestInsertAssignsIdentityVersionAndTimestamp(t *testing.T) {
	repo := NewExchangeRateRepository()
	fixed := time.Date(2025, 3, 6, 19, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	inserted, err := repo.Insert(context.Background(), eurUsd())
	require.NoError(t, err)

	assert.NotEmpty(t, inserted.ExchangeRateID)
	assert.Equal(t, int64(1), inserted.Version)
	assert.Equal(t, fixed, inserted.LastUpdate)

	found, err := repo.FindByPair(context.Background(), "eur", "usd")
	require.NoError(t, err)
	assert.Equal(t, *inserted, *found)
}

func TestInsertRejectsDuplicatePair(t *testing.T) {
	repo := NewExchangeRateRepository()
	_, err := repo.Insert(context.Background(), eurUsd())
	require.NoError(t, err)

	_, err = repo.Insert(context.Background(), eurUsd())
	assert.ErrorIs(t, err, apperrors.ErrUniqueViolation)
	assert.ErrorIs(t, err, apperrors.ErrStorage)
	assert.Equal(t, 1, repo.Len())
}

func TestFindByPairMissing(t *testing.T) {
	repo := NewExchangeRateRepository()
	_, err := repo.FindByPair(context.Background(), "USD", "GBP")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSaveChecksVersion(t *testing.T) {
	repo := NewExchangeRateRepository()
	clock := time.Date(2025, 3, 6, 19, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	inserted, err := repo.Insert(context.Background(), eurUsd())
	require.NoError(t, err)

	update := *inserted
	update.Rate = decimal.RequireFromString("1.07")
	clock = clock.Add(time.Minute)

	saved, err := repo.Save(context.Background(), update, inserted.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)
	assert.True(t, saved.Rate.Equal(decimal.RequireFromString("1.07")))
	assert.Equal(t, clock, saved.LastUpdate)

	// A writer still holding version 1 loses and gets the current row back.
	update.Rate = decimal.RequireFromString("9.99")
	_, err = repo.Save(context.Background(), update, inserted.Version)
	require.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)

	var stale *portsrepo.StaleVersionError
	require.True(t, errors.As(err, &stale))
	require.NotNil(t, stale.Latest)
	assert.Equal(t, int64(2), stale.Latest.Version)
	assert.True(t, stale.Latest.Rate.Equal(decimal.RequireFromString("1.07")))
}

func TestSaveKeepsLastUpdateMonotonic(t *testing.T) {
	repo := NewExchangeRateRepository()
	clock := time.Date(2025, 3, 6, 19, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	inserted, err := repo.Insert(context.Background(), eurUsd())
	require.NoError(t, err)

	clock = clock.Add(-time.Hour)
	saved, err := repo.Save(context.Background(), *inserted, inserted.Version)
	require.NoError(t, err)
	assert.Equal(t, inserted.LastUpdate, saved.LastUpdate)
}

func TestSaveOnRemovedRow(t *testing.T) {
	repo := NewExchangeRateRepository()
	inserted, err := repo.Insert(context.Background(), eurUsd())
	require.NoError(t, err)
	require.NoError(t, repo.Remove(context.Background(), *inserted))

	_, err = repo.Save(context.Background(), *inserted, inserted.Version)
	var stale *portsrepo.StaleVersionError
	require.True(t, errors.As(err, &stale))
	assert.Nil(t, stale.Latest)
}

func TestRemove(t *testing.T) {
	repo := NewExchangeRateRepository()
	inserted, err := repo.Insert(context.Background(), eurUsd())
	require.NoError(t, err)

	require.NoError(t, repo.Remove(context.Background(), *inserted))
	assert.Equal(t, 0, repo.Len())

	err = repo.Remove(context.Background(), *inserted)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCanceledContextIsStorageError(t *testing.T) {
	repo := NewExchangeRateRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.FindByPair(ctx, "EUR", "USD")
	assert.ErrorIs(t, err, apperrors.ErrStorage)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRepositoryProviderSeedsEURUSD(t *testing.T) {
	repos := NewRepositoryProvider()

	seeded, err := repos.ExchangeRateRepo.FindByPair(context.Background(), "EUR", "USD")
	require.NoError(t, err)
	assert.True(t, seeded.Rate.Equal(decimal.RequireFromString("1.05")))
	assert.True(t, seeded.Bid.Equal(decimal.RequireFromString("1.05")))
	assert.True(t, seeded.Ask.Equal(decimal.RequireFromString("1.55")))
	assert.Equal(t, int64(1), seeded.Version)
}
