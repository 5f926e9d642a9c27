package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/exchange_rate_api/internal/apperrors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eurUsdBody = `{
    "Realtime Currency Exchange Rate": {
        "1. From_Currency Code": "EUR",
        "2. From_Currency Name": "Euro",
        "3. To_Currency Code": "USD",
        "4. To_Currency Name": "United States Dollar",
        "5. Exchange Rate": "1.08120000",
        "6. Last Refreshed": "2025-03-06 19:12:01",
        "7. Time Zone": "UTC",
        "8. Bid Price": "1.08115000",
        "9. Ask Price": "1.08125000"
    }
}`

func staticKey(key string) func() (string, error) {
	return func() (string, error) { return key, nil }
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(staticKey("demo"), WithBaseURL(srv.URL), WithTimeout(2*time.Second))
}

func TestFetch_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "CURRENCY_EXCHANGE_RATE", r.URL.Query().Get("function"))
		assert.Equal(t, "EUR", r.URL.Query().Get("from_currency"))
		assert.Equal(t, "USD", r.URL.Query().Get("to_currency"))
		assert.Equal(t, "demo", r.URL.Query().Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eurUsdBody))
	})

	quote, err := client.Fetch(context.Background(), "eur", "usd")

	require.NoError(t, err)
	assert.Equal(t, "EUR", quote.FromCurrency)
	assert.Equal(t, "USD", quote.ToCurrency)
	assert.True(t, quote.Rate.Equal(decimal.RequireFromString("1.0812")))
	assert.True(t, quote.Bid.Equal(decimal.RequireFromString("1.08115")))
	assert.True(t, quote.Ask.Equal(decimal.RequireFromString("1.08125")))
}

func TestFetch_MissingSidesFallBackToRate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Realtime Currency Exchange Rate": {"5. Exchange Rate": "0.75", "8. Bid Price": "-", "9. Ask Price": "-"}}`))
	})

	quote, err := client.Fetch(context.Background(), "USD", "GBP")

	require.NoError(t, err)
	assert.True(t, quote.Bid.Equal(quote.Rate))
	assert.True(t, quote.Ask.Equal(quote.Rate))
}

func TestFetch_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   error
		wantOp     string
		wantStatus int
	}{
		{"server error", http.StatusInternalServerError, `oops`, apperrors.ErrExternalProvider, "status", http.StatusInternalServerError},
		{"malformed json", http.StatusOK, `{"Realtime`, apperrors.ErrExternalProvider, "parse", http.StatusOK},
		{"bad rate", http.StatusOK, `{"Realtime Currency Exchange Rate": {"5. Exchange Rate": "n/a"}}`, apperrors.ErrExternalProvider, "parse", http.StatusOK},
		{"throttled note", http.StatusOK, `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`, apperrors.ErrExternalProvider, "throttled", http.StatusOK},
		{"throttled information", http.StatusOK, `{"Information": "rate limit"}`, apperrors.ErrExternalProvider, "throttled", http.StatusOK},
		{"unknown currency", http.StatusOK, `{"Error Message": "Invalid API call."}`, apperrors.ErrNotFound, "", 0},
		{"empty envelope", http.StatusOK, `{}`, apperrors.ErrNotFound, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Fetch(context.Background(), "EUR", "XXX")

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)
			if tt.wantOp != "" {
				var provErr *apperrors.ProviderError
				require.True(t, errors.As(err, &provErr))
				assert.Equal(t, tt.wantOp, provErr.Op)
				assert.Equal(t, tt.wantStatus, provErr.StatusCode)
				assert.Equal(t, "EUR", provErr.From)
				assert.Equal(t, "XXX", provErr.To)
			}
		})
	}
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	client := NewClient(staticKey("secret-key"), WithBaseURL(srv.URL))

	_, err := client.Fetch(context.Background(), "EUR", "USD")

	var provErr *apperrors.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "request", provErr.Op)
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestFetch_MissingKeyIsConfigurationError(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	t.Cleanup(srv.Close)

	client := NewClient(func() (string, error) {
		return "", apperrors.NewConfigError(apperrors.StageValue, "ALPHAVANTAGE_API_KEY")
	}, WithBaseURL(srv.URL))

	_, err := client.Fetch(context.Background(), "EUR", "USD")

	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.False(t, called)
}

func TestFetch_RespectsContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Fetch(ctx, "EUR", "USD")

	assert.ErrorIs(t, err, apperrors.ErrExternalProvider)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseLastRefreshed(t *testing.T) {
	ts, err := parseLastRefreshed("2025-03-06 19:12:01", "UTC")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 6, 19, 12, 1, 0, time.UTC), ts)

	_, err = parseLastRefreshed("yesterday", "UTC")
	assert.Error(t, err)
}
