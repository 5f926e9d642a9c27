package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SscSPs/exchange_rate_api/internal/apperrors"
	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
	portsmsg "github.com/SscSPs/exchange_rate_api/internal/core/ports/messaging"
	portsprov "github.com/SscSPs/exchange_rate_api/internal/core/ports/providers"
	portsrepo "github.com/SscSPs/exchange_rate_api/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/exchange_rate_api/internal/core/ports/services"
	"github.com/SscSPs/exchange_rate_api/internal/platform/metrics"
	"github.com/SscSPs/exchange_rate_api/internal/utils/mapping"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMaxUpdateRetries bounds the reload-and-retry loop of one update.
	DefaultMaxUpdateRetries = 5
	// DefaultPublishTimeout bounds a single change notification.
	DefaultPublishTimeout = 5 * time.Second
)

// ExchangeRateService resolves exchange rates from the store, falling back
// to the external provider on a miss, and orchestrates rate mutations.
type ExchangeRateService struct {
	BaseService
	rateRepo  portsrepo.ExchangeRateRepositoryFacade
	provider  portsprov.RateProvider
	publisher portsmsg.ChangePublisher
	metrics   *metrics.Metrics

	publishOn      map[domain.ChangeKind]bool
	publishTimeout time.Duration
	maxRetries     int

	// misses coalesces concurrent store misses for the same pair.
	misses    singleflight.Group
	publishes sync.WaitGroup
}

// ExchangeRateOption is a functional option for configuring the exchange rate service
type ExchangeRateOption func(*ExchangeRateService)

// WithChangePublisher enables change notifications for the given kinds.
func WithChangePublisher(publisher portsmsg.ChangePublisher, kinds ...domain.ChangeKind) ExchangeRateOption {
	return func(s *ExchangeRateService) {
		s.publisher = publisher
		s.publishOn = make(map[domain.ChangeKind]bool, len(kinds))
		for _, k := range kinds {
			s.publishOn[k] = true
		}
	}
}

// WithPublishTimeout overrides DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) ExchangeRateOption {
	return func(s *ExchangeRateService) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithMaxUpdateRetries overrides DefaultMaxUpdateRetries.
func WithMaxUpdateRetries(n int) ExchangeRateOption {
	return func(s *ExchangeRateService) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithMetrics records lookups, provider calls, retries and publishes.
func WithMetrics(m *metrics.Metrics) ExchangeRateOption {
	return func(s *ExchangeRateService) {
		s.metrics = m
	}
}

// NewExchangeRateService creates a new ExchangeRateService.
func NewExchangeRateService(rateRepo portsrepo.ExchangeRateRepositoryFacade, provider portsprov.RateProvider, options ...ExchangeRateOption) *ExchangeRateService {
	svc := &ExchangeRateService{
		rateRepo:       rateRepo,
		provider:       provider,
		publishOn:      map[domain.ChangeKind]bool{},
		publishTimeout: DefaultPublishTimeout,
		maxRetries:     DefaultMaxUpdateRetries,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var (
	_ portssvc.ExchangeRateSvcFacade = (*ExchangeRateService)(nil)
	_ portssvc.ProviderQuoteSvc      = (*ExchangeRateService)(nil)
)

func pairAttrs(pair domain.CurrencyPair) []any {
	return []any{slog.String("from", pair.From), slog.String("to", pair.To)}
}

func validatePair(from, to string) (domain.CurrencyPair, error) {
	pair := domain.NewCurrencyPair(from, to)
	if err := pair.Validate(); err != nil {
		return pair, apperrors.NewValidationError(err.Error())
	}
	return pair, nil
}

func validateQuote(quote domain.RateQuote) (domain.RateQuote, error) {
	q := quote.Normalized()
	if err := q.Validate(); err != nil {
		return q, apperrors.NewValidationError(err.Error())
	}
	return q, nil
}

// GetRate returns the stored quote for a pair. On a miss the provider is
// called, its quote persisted and a created notification attempted.
func (s *ExchangeRateService) GetRate(ctx context.Context, from, to string) (*domain.RateQuote, error) {
	pair, err := validatePair(from, to)
	if err != nil {
		return nil, err
	}

	rate, err := s.rateRepo.FindByPair(ctx, pair.From, pair.To)
	if err == nil {
		s.metrics.ObserveLookup(true)
		quote := mapping.ToRateQuote(*rate)
		return &quote, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		s.LogError(ctx, err, "Failed to look up exchange rate", pairAttrs(pair)...)
		return nil, fmt.Errorf("failed to look up exchange rate %s: %w", pair, err)
	}
	s.metrics.ObserveLookup(false)

	// The population runs detached so that one caller giving up does not
	// fail the others waiting on the same pair.
	ch := s.misses.DoChan(pair.String(), func() (any, error) {
		return s.populate(context.WithoutCancel(ctx), pair)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		quote := *res.Val.(*domain.RateQuote)
		return &quote, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// populate fetches a pair from the provider and writes it to the store.
func (s *ExchangeRateService) populate(ctx context.Context, pair domain.CurrencyPair) (*domain.RateQuote, error) {
	fetched, err := s.provider.Fetch(ctx, pair.From, pair.To)
	s.metrics.ObserveProviderFetch(err)
	if err != nil {
		// The provider has already logged the failure.
		return nil, fmt.Errorf("failed to fetch exchange rate %s: %w", pair, err)
	}

	quote := fetched.Normalized()
	quote.FromCurrency, quote.ToCurrency = pair.From, pair.To

	if _, err := s.rateRepo.Insert(ctx, mapping.FromRateQuote(quote)); err != nil {
		if errors.Is(err, apperrors.ErrUniqueViolation) {
			// Another process cached the pair between our lookup and insert.
			if existing, findErr := s.rateRepo.FindByPair(ctx, pair.From, pair.To); findErr == nil {
				s.LogDebug(ctx, "Exchange rate was populated concurrently, using stored row", pairAttrs(pair)...)
				stored := mapping.ToRateQuote(*existing)
				return &stored, nil
			}
		}
		s.LogError(ctx, err, "Failed to persist fetched exchange rate", pairAttrs(pair)...)
		return nil, fmt.Errorf("failed to persist exchange rate %s: %w", pair, err)
	}

	s.LogInfo(ctx, "Exchange rate populated from provider", pairAttrs(pair)...)
	s.PublishOnChange(ctx, domain.ChangeCreated, quote)
	return &quote, nil
}

// CreateRate persists a new rate. It never modifies an existing row.
func (s *ExchangeRateService) CreateRate(ctx context.Context, quote domain.RateQuote) (*domain.RateQuote, error) {
	q, err := validateQuote(quote)
	if err != nil {
		return nil, err
	}
	pair := q.Pair()

	_, err = s.rateRepo.FindByPair(ctx, pair.From, pair.To)
	if err == nil {
		s.LogWarn(ctx, nil, "Exchange rate already exists", pairAttrs(pair)...)
		return nil, fmt.Errorf("%w: exchange rate %s", apperrors.ErrDuplicate, pair)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		s.LogError(ctx, err, "Failed to check for existing exchange rate", pairAttrs(pair)...)
		return nil, fmt.Errorf("failed to create exchange rate %s: %w", pair, err)
	}

	if _, err := s.rateRepo.Insert(ctx, mapping.FromRateQuote(q)); err != nil {
		if errors.Is(err, apperrors.ErrUniqueViolation) {
			s.LogWarn(ctx, err, "Exchange rate was created concurrently", pairAttrs(pair)...)
			return nil, fmt.Errorf("%w: exchange rate %s", apperrors.ErrDuplicate, pair)
		}
		s.LogError(ctx, err, "Failed to create exchange rate", pairAttrs(pair)...)
		return nil, fmt.Errorf("failed to create exchange rate %s: %w", pair, err)
	}

	s.PublishOnChange(ctx, domain.ChangeCreated, q)
	return &q, nil
}

// UpdateRate applies the quote's rate, bid and ask onto the stored row using
// optimistic concurrency. A lost race reloads the latest row, re-applies the
// quote and retries, at most maxRetries times for the whole call.
func (s *ExchangeRateService) UpdateRate(ctx context.Context, quote domain.RateQuote) (*domain.RateQuote, error) {
	q, err := validateQuote(quote)
	if err != nil {
		return nil, err
	}
	pair := q.Pair()

	// No identity is supplied, so the row has to be read by pair first.
	current, err := s.rateRepo.FindByPair(ctx, pair.From, pair.To)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.LogWarn(ctx, nil, "Exchange rate to update not found", pairAttrs(pair)...)
			return nil, fmt.Errorf("failed to update exchange rate %s: %w", pair, err)
		}
		s.LogError(ctx, err, "Failed to load exchange rate for update", pairAttrs(pair)...)
		return nil, fmt.Errorf("failed to update exchange rate %s: %w", pair, err)
	}

	// maxRetries bounds retries after the first save, not total saves: at most 1+maxRetries saves run.
	for attempt := 1; ; attempt++ {
		current.ApplyQuote(q)
		_, err := s.rateRepo.Save(ctx, *current, current.Version)
		if err == nil {
			s.PublishOnChange(ctx, domain.ChangeUpdated, q)
			return &q, nil
		}

		var stale *portsrepo.StaleVersionError
		if !errors.As(err, &stale) {
			s.LogError(ctx, err, "Failed to save exchange rate", pairAttrs(pair)...)
			return nil, fmt.Errorf("failed to update exchange rate %s: %w", pair, err)
		}

		if attempt > s.maxRetries {
			s.metrics.ObserveUpdateConflict()
			s.LogError(ctx, err, "Exchange rate update retry limit exceeded",
				append(pairAttrs(pair), slog.Int("max_retries", s.maxRetries))...)
			return nil, fmt.Errorf("%w: exchange rate %s still conflicting after %d retries",
				apperrors.ErrConcurrencyConflict, pair, s.maxRetries)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.metrics.ObserveUpdateRetry()
		s.LogWarn(ctx, err, "Concurrency conflict updating exchange rate, retrying",
			append(pairAttrs(pair), slog.Int("attempt", attempt))...)

		current = stale.Latest
		if current == nil {
			current, err = s.rateRepo.FindByPair(ctx, pair.From, pair.To)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					s.LogWarn(ctx, nil, "Exchange rate was deleted during update", pairAttrs(pair)...)
				} else {
					s.LogError(ctx, err, "Failed to reload exchange rate for update", pairAttrs(pair)...)
				}
				return nil, fmt.Errorf("failed to update exchange rate %s: %w", pair, err)
			}
		}
	}
}

// DeleteRate removes a pair and returns the values it held.
func (s *ExchangeRateService) DeleteRate(ctx context.Context, from, to string) (*domain.RateQuote, error) {
	pair, err := validatePair(from, to)
	if err != nil {
		return nil, err
	}

	existing, err := s.rateRepo.FindByPair(ctx, pair.From, pair.To)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.LogWarn(ctx, nil, "Exchange rate to delete not found", pairAttrs(pair)...)
		} else {
			s.LogError(ctx, err, "Failed to load exchange rate for delete", pairAttrs(pair)...)
		}
		return nil, fmt.Errorf("failed to delete exchange rate %s: %w", pair, err)
	}

	if err := s.rateRepo.Remove(ctx, *existing); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.LogWarn(ctx, nil, "Exchange rate was deleted concurrently", pairAttrs(pair)...)
		} else {
			s.LogError(ctx, err, "Failed to delete exchange rate", pairAttrs(pair)...)
		}
		return nil, fmt.Errorf("failed to delete exchange rate %s: %w", pair, err)
	}

	quote := mapping.ToRateQuote(*existing)
	s.PublishOnChange(ctx, domain.ChangeDeleted, quote)
	return &quote, nil
}

// FetchProviderQuote asks the provider directly, bypassing the store.
func (s *ExchangeRateService) FetchProviderQuote(ctx context.Context, from, to string) (*domain.RateQuote, error) {
	pair, err := validatePair(from, to)
	if err != nil {
		return nil, err
	}
	fetched, err := s.provider.Fetch(ctx, pair.From, pair.To)
	s.metrics.ObserveProviderFetch(err)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch exchange rate %s: %w", pair, err)
	}
	quote := fetched.Normalized()
	return &quote, nil
}

// PublishOnChange sends a best-effort notification for kind if it is enabled.
// It returns immediately; failures are logged and never reach the caller.
func (s *ExchangeRateService) PublishOnChange(ctx context.Context, kind domain.ChangeKind, quote domain.RateQuote) {
	if s.publisher == nil || !s.publishOn[kind] {
		return
	}

	logger := s.GetLogger(ctx).With(
		slog.String("from", quote.FromCurrency),
		slog.String("to", quote.ToCurrency),
		slog.String("change", string(kind)),
	)
	detached := context.WithoutCancel(ctx)

	s.publishes.Add(1)
	go func() {
		defer s.publishes.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Change publisher panicked", slog.Any("panic", r))
			}
		}()

		pubCtx, cancel := context.WithTimeout(detached, s.publishTimeout)
		defer cancel()

		err := s.publisher.Publish(pubCtx, kind, quote)
		s.metrics.ObservePublish(string(kind), err)
		if err != nil {
			logger.Error("Failed to publish exchange rate change", slog.String("error", err.Error()))
			return
		}
		logger.Debug("Exchange rate change published")
	}()
}

// WaitForPendingPublishes blocks until all in-flight notifications finished.
func (s *ExchangeRateService) WaitForPendingPublishes() {
	s.publishes.Wait()
}
