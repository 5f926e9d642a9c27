package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/SscSPs/exchange_rate_api/internal/apperrors"
	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
	portsprov "github.com/SscSPs/exchange_rate_api/internal/core/ports/providers"
	"github.com/SscSPs/exchange_rate_api/internal/middleware"
	"github.com/shopspring/decimal"
)

const (
	// DefaultBaseURL is the public AlphaVantage endpoint.
	DefaultBaseURL = "https://www.alphavantage.co"
	// DefaultTimeout bounds one quote request.
	DefaultTimeout = 10 * time.Second

	function        = "CURRENCY_EXCHANGE_RATE"
	lastRefreshedTS = "2006-01-02 15:04:05"
	maxBodyBytes    = 1 << 20
)

// realtimeEnvelope is the top level AlphaVantage response. Only one of the
// fields is populated: the quote, an error message or a throttling note.
type realtimeEnvelope struct {
	Rate         *realtimeRate `json:"Realtime Currency Exchange Rate"`
	ErrorMessage string        `json:"Error Message"`
	Note         string        `json:"Note"`
	Information  string        `json:"Information"`
}

type realtimeRate struct {
	FromCode      string `json:"1. From_Currency Code"`
	FromName      string `json:"2. From_Currency Name"`
	ToCode        string `json:"3. To_Currency Code"`
	ToName        string `json:"4. To_Currency Name"`
	ExchangeRate  string `json:"5. Exchange Rate"`
	LastRefreshed string `json:"6. Last Refreshed"`
	TimeZone      string `json:"7. Time Zone"`
	BidPrice      string `json:"8. Bid Price"`
	AskPrice      string `json:"9. Ask Price"`
}

// Client fetches realtime currency quotes from AlphaVantage.
type Client struct {
	baseURL    string
	apiKey     portsprov.CredentialFunc
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different host, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithTimeout sets the HTTP timeout for one request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates an AlphaVantage client. apiKey is called on every fetch
// so a missing key surfaces as a configuration error on the request.
func NewClient(apiKey portsprov.CredentialFunc, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ portsprov.RateProvider = (*Client)(nil)

// Fetch returns the current quote for from/to.
func (c *Client) Fetch(ctx context.Context, from, to string) (*domain.RateQuote, error) {
	pair := domain.NewCurrencyPair(from, to)
	logger := middleware.GetLoggerFromCtx(ctx).With(
		slog.String("provider", "alphavantage"),
		slog.String("from", pair.From),
		slog.String("to", pair.To),
	)

	quote, err := c.fetch(ctx, pair, logger)
	if err != nil {
		logger.Error("Failed to fetch exchange rate from provider", slog.String("error", err.Error()))
		return nil, err
	}
	logger.Debug("Fetched exchange rate from provider", slog.String("rate", quote.Rate.String()))
	return quote, nil
}

func (c *Client) fetch(ctx context.Context, pair domain.CurrencyPair, logger *slog.Logger) (*domain.RateQuote, error) {
	key, err := c.apiKey()
	if err != nil {
		return nil, err
	}

	fail := func(op string, status int, cause error) error {
		return &apperrors.ProviderError{Op: op, From: pair.From, To: pair.To, StatusCode: status, Err: cause}
	}

	query := url.Values{}
	query.Set("function", function)
	query.Set("from_currency", pair.From)
	query.Set("to_currency", pair.To)
	query.Set("apikey", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+query.Encode(), nil)
	if err != nil {
		return nil, fail("request", 0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Drop the URL from *url.Error so the key is never logged.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fail("request", 0, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fail("read", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fail("status", resp.StatusCode, fmt.Errorf("unexpected response: %.200s", body))
	}

	var envelope realtimeEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fail("parse", resp.StatusCode, err)
	}

	switch {
	case envelope.Rate != nil:
	case envelope.ErrorMessage != "":
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("provider has no rate for %s: %s", pair, envelope.ErrorMessage))
	case envelope.Note != "":
		return nil, fail("throttled", resp.StatusCode, errors.New(envelope.Note))
	case envelope.Information != "":
		return nil, fail("throttled", resp.StatusCode, errors.New(envelope.Information))
	default:
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("provider response has no rate for %s", pair))
	}

	return c.toQuote(pair, envelope.Rate, logger, fail)
}

func (c *Client) toQuote(pair domain.CurrencyPair, r *realtimeRate, logger *slog.Logger, fail func(string, int, error) error) (*domain.RateQuote, error) {
	rate, err := decimal.NewFromString(r.ExchangeRate)
	if err != nil {
		return nil, fail("parse", http.StatusOK, fmt.Errorf("exchange rate %q: %w", r.ExchangeRate, err))
	}
	bid, err := parseOptional(r.BidPrice, rate)
	if err != nil {
		return nil, fail("parse", http.StatusOK, fmt.Errorf("bid price %q: %w", r.BidPrice, err))
	}
	ask, err := parseOptional(r.AskPrice, rate)
	if err != nil {
		return nil, fail("parse", http.StatusOK, fmt.Errorf("ask price %q: %w", r.AskPrice, err))
	}

	if refreshed, err := parseLastRefreshed(r.LastRefreshed, r.TimeZone); err == nil {
		logger.Debug("Provider quote timestamp", slog.Time("last_refreshed", refreshed))
	} else if r.LastRefreshed != "" {
		logger.Warn("Unparseable provider quote timestamp", slog.String("last_refreshed", r.LastRefreshed), slog.String("error", err.Error()))
	}

	// The quote is keyed by the requested pair even if the provider echoes a
	// different spelling.
	return &domain.RateQuote{
		FromCurrency: pair.From,
		ToCurrency:   pair.To,
		Rate:         rate,
		Bid:          bid,
		Ask:          ask,
	}, nil
}

// parseOptional parses a bid or ask price. AlphaVantage sends "-" when a
// side is not quoted; the mid rate stands in for it.
func parseOptional(s string, fallback decimal.Decimal) (decimal.Decimal, error) {
	if s == "" || s == "-" {
		return fallback, nil
	}
	return decimal.NewFromString(s)
}

func parseLastRefreshed(ts, zone string) (time.Time, error) {
	loc := time.UTC
	if zone != "" {
		if l, err := time.LoadLocation(zone); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation(lastRefreshedTS, ts, loc)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
