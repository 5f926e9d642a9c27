package pgsql

import (
	"context"
	"errors"

	"github.com/SscSPs/exchange_rate_api/internal/apperrors"
	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
	portsrepo "github.com/SscSPs/exchange_rate_api/internal/core/ports/repositories"
	"github.com/SscSPs/exchange_rate_api/internal/models"
	"github.com/SscSPs/exchange_rate_api/internal/utils/mapping"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const exchangeRateColumns = `exchange_rate_id, from_currency, to_currency, rate, bid, ask, last_update, version`

// PgxExchangeRateRepository implements the ExchangeRateRepositoryFacade interface using pgxpool.
type PgxExchangeRateRepository struct {
	BaseRepository
}

// NewPgxExchangeRateRepository creates a new PgxExchangeRateRepository.
func NewPgxExchangeRateRepository(db *pgxpool.Pool) *PgxExchangeRateRepository {
	return &PgxExchangeRateRepository{
		BaseRepository: BaseRepository{Pool: db},
	}
}

var _ portsrepo.ExchangeRateRepositoryFacade = (*PgxExchangeRateRepository)(nil)

func (r *PgxExchangeRateRepository) queryOne(ctx context.Context, query string, args ...any) (*domain.ExchangeRate, error) {
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	modelRate, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[models.ExchangeRate])
	if err != nil {
		return nil, err
	}
	domainRate := mapping.ToDomainExchangeRate(modelRate)
	return &domainRate, nil
}

// FindByPair retrieves the exchange rate stored for a currency pair.
func (r *PgxExchangeRateRepository) FindByPair(ctx context.Context, from, to string) (*domain.ExchangeRate, error) {
	pair := domain.NewCurrencyPair(from, to)
	query := `
		SELECT ` + exchangeRateColumns + `
		FROM exchange_rates
		WHERE from_currency = $1 AND to_currency = $2;
	`

	rate, err := r.queryOne(ctx, query, pair.From, pair.To)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("exchange rate " + pair.String())
		}
		return nil, r.storageErr("find", err)
	}
	return rate, nil
}

// Insert adds a new row. The database assigns last_update and version.
func (r *PgxExchangeRateRepository) Insert(ctx context.Context, rate domain.ExchangeRate) (*domain.ExchangeRate, error) {
	modelRate := mapping.ToModelExchangeRate(rate)
	pair := domain.NewCurrencyPair(modelRate.FromCurrency, modelRate.ToCurrency)
	query := `
		INSERT INTO exchange_rates (exchange_rate_id, from_currency, to_currency, rate, bid, ask)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + exchangeRateColumns + `;
	`

	inserted, err := r.queryOne(ctx, query,
		uuid.NewString(), pair.From, pair.To, modelRate.Rate, modelRate.Bid, modelRate.Ask,
	)
	if err != nil {
		return nil, r.storageErr("insert", err)
	}
	return inserted, nil
}

// Save updates rate, bid and ask guarded by the row version. last_update
// never moves backwards even if the database clock does.
func (r *PgxExchangeRateRepository) Save(ctx context.Context, rate domain.ExchangeRate, expectedVersion int64) (*domain.ExchangeRate, error) {
	modelRate := mapping.ToModelExchangeRate(rate)
	pair := domain.NewCurrencyPair(modelRate.FromCurrency, modelRate.ToCurrency)
	query := `
		UPDATE exchange_rates
		SET rate = $1, bid = $2, ask = $3,
			last_update = GREATEST(last_update, NOW()),
			version = version + 1
		WHERE from_currency = $4 AND to_currency = $5 AND version = $6
		RETURNING ` + exchangeRateColumns + `;
	`

	saved, err := r.queryOne(ctx, query,
		modelRate.Rate, modelRate.Bid, modelRate.Ask, pair.From, pair.To, expectedVersion,
	)
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, r.storageErr("save", err)
	}

	// Nothing matched: either the version moved on or the row is gone.
	latest, err := r.FindByPair(ctx, pair.From, pair.To)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, &portsrepo.StaleVersionError{Pair: pair, ExpectedVersion: expectedVersion}
		}
		return nil, err
	}
	return nil, &portsrepo.StaleVersionError{Pair: pair, ExpectedVersion: expectedVersion, Latest: latest}
}

// Remove deletes the row by identity.
func (r *PgxExchangeRateRepository) Remove(ctx context.Context, rate domain.ExchangeRate) error {
	pair := rate.Pair()
	tag, err := r.Pool.Exec(ctx, `DELETE FROM exchange_rates WHERE exchange_rate_id = $1;`, rate.ExchangeRateID)
	if err != nil {
		return r.storageErr("remove", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("exchange rate " + pair.String())
	}
	return nil
}
