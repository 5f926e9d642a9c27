package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/exchange_rate_api/internal/apperrors"
	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
	portssvc "github.com/SscSPs/exchange_rate_api/internal/core/ports/services"
	"github.com/SscSPs/exchange_rate_api/internal/dto"
	"github.com/SscSPs/exchange_rate_api/internal/handlers"
	"github.com/SscSPs/exchange_rate_api/internal/platform/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Mock ExchangeRateService ---
type MockExchangeRateService struct {
	mock.Mock
}

func (m *MockExchangeRateService) GetRate(ctx context.Context, from, to string) (*domain.RateQuote, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateQuote), args.Error(1)
}

func (m *MockExchangeRateService) CreateRate(ctx context.Context, quote domain.RateQuote) (*domain.RateQuote, error) {
	args := m.Called(ctx, quote)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateQuote), args.Error(1)
}

func (m *MockExchangeRateService) UpdateRate(ctx context.Context, quote domain.RateQuote) (*domain.RateQuote, error) {
	args := m.Called(ctx, quote)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateQuote), args.Error(1)
}

func (m *MockExchangeRateService) DeleteRate(ctx context.Context, from, to string) (*domain.RateQuote, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateQuote), args.Error(1)
}

func (m *MockExchangeRateService) FetchProviderQuote(ctx context.Context, from, to string) (*domain.RateQuote, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateQuote), args.Error(1)
}

// Ensure mock implements the interfaces
var (
	_ portssvc.ExchangeRateSvcFacade = (*MockExchangeRateService)(nil)
	_ portssvc.ProviderQuoteSvc      = (*MockExchangeRateService)(nil)
)

type envelope struct {
	Status int                       `json:"status"`
	Result *dto.ExchangeRateResponse `json:"result"`
	Errors []string                  `json:"errors"`
}

// --- Test Suite ---
type ExchangeRateHandlerTestSuite struct {
	suite.Suite
	router      *gin.Engine
	mockService *MockExchangeRateService
	jwtSecret   string
}

func (suite *ExchangeRateHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.Require().NoError(dto.RegisterValidators())

	suite.jwtSecret = "test-secret-key-that-is-long-enough"
	suite.mockService = new(MockExchangeRateService)
	suite.router = gin.New()

	cfg := &config.Config{JWTSecret: suite.jwtSecret, IsProduction: true}
	container := &portssvc.ServiceContainer{ExchangeRate: suite.mockService, ProviderQuote: suite.mockService}
	handlers.RegisterRoutes(suite.router, cfg, container, prometheus.NewRegistry())
}

func (suite *ExchangeRateHandlerTestSuite) TearDownTest() {
	suite.mockService.AssertExpectations(suite.T())
}

// generateTestToken creates a dummy JWT for testing.
func (suite *ExchangeRateHandlerTestSuite) generateTestToken(subject string) string {
	claims := jwt.RegisteredClaims{
		Issuer:    "exchange-rate-test",
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(suite.jwtSecret))
	if err != nil {
		suite.FailNow("Failed to sign test token", err.Error())
	}
	return signed
}

func (suite *ExchangeRateHandlerTestSuite) do(method, path string, body any, authorized bool) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authorized {
		req.Header.Set("Authorization", "Bearer "+suite.generateTestToken("ops-bot"))
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func eurUsd() *domain.RateQuote {
	return &domain.RateQuote{
		FromCurrency: "EUR",
		ToCurrency:   "USD",
		Rate:         decimal.RequireFromString("1.05"),
		Bid:          decimal.RequireFromString("1.05"),
		Ask:          decimal.RequireFromString("1.55"),
	}
}

func rateBody(from, to, rate, bid, ask string) map[string]string {
	return map[string]string{"fromCurrency": from, "toCurrency": to, "rate": rate, "bid": bid, "ask": ask}
}

// --- Test Cases ---

func (suite *ExchangeRateHandlerTestSuite) TestGetExchangeRate_Success() {
	suite.mockService.On("GetRate", mock.Anything, "EUR", "USD").Return(eurUsd(), nil).Once()

	w, env := suite.do(http.MethodGet, "/api/v1/exchange-rates/EUR/USD", nil, false)

	suite.Equal(http.StatusOK, w.Code)
	suite.Equal(http.StatusOK, env.Status)
	suite.Require().NotNil(env.Result)
	suite.Equal("EUR", env.Result.FromCurrency)
	suite.True(env.Result.Ask.Equal(decimal.RequireFromString("1.55")))
}

func (suite *ExchangeRateHandlerTestSuite) TestGetExchangeRate_InvalidCode() {
	w, env := suite.do(http.MethodGet, "/api/v1/exchange-rates/EURO/USD", nil, false)

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.NotEmpty(env.Errors)
	suite.mockService.AssertNotCalled(suite.T(), "GetRate", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *ExchangeRateHandlerTestSuite) TestGetExchangeRate_ErrorMapping() {
	tests := []struct {
		err    error
		status int
	}{
		{apperrors.NewNotFoundError("exchange rate EUR/XXX"), http.StatusNotFound},
		{&apperrors.ProviderError{Op: "status", From: "EUR", To: "XXX", StatusCode: 503}, http.StatusBadGateway},
		{apperrors.NewConfigError(apperrors.StageValue, "ALPHAVANTAGE_API_KEY"), http.StatusInternalServerError},
		{apperrors.NewStorageError("find", fmt.Errorf("connection reset")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		suite.mockService.On("GetRate", mock.Anything, "EUR", "XXX").Return(nil, tt.err).Once()

		w, env := suite.do(http.MethodGet, "/api/v1/exchange-rates/EUR/XXX", nil, false)

		suite.Equal(tt.status, w.Code, tt.err.Error())
		suite.Equal(tt.status, env.Status)
		suite.Len(env.Errors, 1)
	}
}

func (suite *ExchangeRateHandlerTestSuite) TestServerErrorsDoNotLeakCause() {
	suite.mockService.On("GetRate", mock.Anything, "EUR", "USD").
		Return(nil, apperrors.NewStorageError("find", fmt.Errorf("password authentication failed"))).Once()

	_, env := suite.do(http.MethodGet, "/api/v1/exchange-rates/EUR/USD", nil, false)

	suite.Require().Len(env.Errors, 1)
	suite.NotContains(env.Errors[0], "password")
}

func (suite *ExchangeRateHandlerTestSuite) TestCreateExchangeRate_Success() {
	suite.mockService.On("CreateRate", mock.Anything, mock.MatchedBy(func(q domain.RateQuote) bool {
		return q.FromCurrency == "USD" && q.ToCurrency == "GBP" && q.Rate.Equal(decimal.RequireFromString("0.75"))
	})).Return(&domain.RateQuote{
		FromCurrency: "USD",
		ToCurrency:   "GBP",
		Rate:         decimal.RequireFromString("0.75"),
		Bid:          decimal.RequireFromString("1.2"),
		Ask:          decimal.RequireFromString("3.5"),
	}, nil).Once()

	w, env := suite.do(http.MethodPost, "/api/v1/exchange-rates", rateBody("usd", "gbp", "0.75", "1.2", "3.5"), true)

	suite.Equal(http.StatusCreated, w.Code)
	suite.Equal(http.StatusCreated, env.Status)
	suite.Require().NotNil(env.Result)
	suite.Equal("GBP", env.Result.ToCurrency)
}

func (suite *ExchangeRateHandlerTestSuite) TestCreateExchangeRate_RequiresToken() {
	w, _ := suite.do(http.MethodPost, "/api/v1/exchange-rates", rateBody("USD", "GBP", "0.75", "1.2", "3.5"), false)

	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.mockService.AssertNotCalled(suite.T(), "CreateRate", mock.Anything, mock.Anything)
}

func (suite *ExchangeRateHandlerTestSuite) TestCreateExchangeRate_Duplicate() {
	suite.mockService.On("CreateRate", mock.Anything, mock.AnythingOfType("domain.RateQuote")).
		Return(nil, fmt.Errorf("%w: exchange rate EUR/USD", apperrors.ErrDuplicate)).Once()

	w, env := suite.do(http.MethodPost, "/api/v1/exchange-rates", rateBody("EUR", "USD", "1", "1", "1"), true)

	suite.Equal(http.StatusConflict, w.Code)
	suite.Contains(env.Errors[0], "already exists")
}

func (suite *ExchangeRateHandlerTestSuite) TestCreateExchangeRate_MissingField() {
	body := map[string]string{"fromCurrency": "EUR", "toCurrency": "USD", "rate": "1"}

	w, _ := suite.do(http.MethodPost, "/api/v1/exchange-rates", body, true)

	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *ExchangeRateHandlerTestSuite) TestUpdateExchangeRate_Success() {
	suite.mockService.On("UpdateRate", mock.Anything, mock.AnythingOfType("domain.RateQuote")).Return(eurUsd(), nil).Once()

	w, env := suite.do(http.MethodPut, "/api/v1/exchange-rates", rateBody("EUR", "USD", "1.05", "1.05", "1.55"), true)

	suite.Equal(http.StatusOK, w.Code)
	suite.Require().NotNil(env.Result)
}

func (suite *ExchangeRateHandlerTestSuite) TestUpdateExchangeRate_Conflict() {
	suite.mockService.On("UpdateRate", mock.Anything, mock.AnythingOfType("domain.RateQuote")).
		Return(nil, fmt.Errorf("%w: retries exhausted", apperrors.ErrConcurrencyConflict)).Once()

	w, _ := suite.do(http.MethodPut, "/api/v1/exchange-rates", rateBody("EUR", "USD", "1.05", "1.05", "1.55"), true)

	suite.Equal(http.StatusConflict, w.Code)
}

func (suite *ExchangeRateHandlerTestSuite) TestUpdateExchangeRate_NotFound() {
	suite.mockService.On("UpdateRate", mock.Anything, mock.AnythingOfType("domain.RateQuote")).
		Return(nil, apperrors.NewNotFoundError("exchange rate EUR/NOK")).Once()

	w, _ := suite.do(http.MethodPut, "/api/v1/exchange-rates", rateBody("EUR", "NOK", "11", "11", "11"), true)

	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *ExchangeRateHandlerTestSuite) TestDeleteExchangeRate() {
	suite.mockService.On("DeleteRate", mock.Anything, "EUR", "USD").Return(eurUsd(), nil).Once()

	w, _ := suite.do(http.MethodDelete, "/api/v1/exchange-rates/EUR/USD", nil, true)

	suite.Equal(http.StatusNoContent, w.Code)
	suite.Empty(w.Body.String())
}

func (suite *ExchangeRateHandlerTestSuite) TestProviderPassthrough() {
	suite.mockService.On("FetchProviderQuote", mock.Anything, "EUR", "USD").Return(eurUsd(), nil).Once()

	w, env := suite.do(http.MethodGet, "/api/v1/alphavantage/EUR/USD", nil, false)

	suite.Equal(http.StatusOK, w.Code)
	suite.Require().NotNil(env.Result)
	suite.mockService.AssertNotCalled(suite.T(), "GetRate", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *ExchangeRateHandlerTestSuite) TestHealthAndMetrics() {
	w, _ := suite.do(http.MethodGet, "/health", nil, false)
	suite.Equal(http.StatusOK, w.Code)

	w, _ = suite.do(http.MethodGet, "/metrics", nil, false)
	suite.Equal(http.StatusOK, w.Code)
}

func TestExchangeRateHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(ExchangeRateHandlerTestSuite))
}
