package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SscSPs/exchange_rate_api/internal/apperrors"
	portssvc "github.com/SscSPs/exchange_rate_api/internal/core/ports/services"
	"github.com/SscSPs/exchange_rate_api/internal/dto"
	"github.com/SscSPs/exchange_rate_api/internal/middleware"
	"github.com/gin-gonic/gin"
)

// exchangeRateHandler handles HTTP requests related to exchange rates.
type exchangeRateHandler struct {
	exchangeRateService portssvc.ExchangeRateSvcFacade
}

// newExchangeRateHandler creates a new exchangeRateHandler.
func newExchangeRateHandler(ers portssvc.ExchangeRateSvcFacade) *exchangeRateHandler {
	return &exchangeRateHandler{
		exchangeRateService: ers,
	}
}

// registerExchangeRateRoutes registers routes related to exchange rates.
// Mutating routes go through auth.
func registerExchangeRateRoutes(rg *gin.RouterGroup, exchangeRateService portssvc.ExchangeRateSvcFacade, auth gin.HandlerFunc) {
	h := newExchangeRateHandler(exchangeRateService)

	exchangeRates := rg.Group("/exchange-rates")
	{
		exchangeRates.GET("/:from/:to", h.getExchangeRate)
		exchangeRates.POST("", auth, h.createExchangeRate)
		exchangeRates.PUT("", auth, h.updateExchangeRate)
		exchangeRates.DELETE("/:from/:to", auth, h.deleteExchangeRate)
	}
}

// getExchangeRate godoc
// @Summary Get an exchange rate
// @Description Returns the stored rate for a currency pair. Unknown pairs are fetched from AlphaVantage and stored.
// @Tags exchange rates
// @Produce  json
// @Param   from path string true "From Currency Code (3 letters)" MinLength(3) MaxLength(3)
// @Param   to   path string true "To Currency Code (3 letters)" MinLength(3) MaxLength(3)
// @Success 200 {object} dto.ExchangeRateEnvelope
// @Failure 400 {object} dto.ErrorEnvelope "Invalid currency code format"
// @Failure 404 {object} dto.ErrorEnvelope "Exchange rate not found"
// @Failure 502 {object} dto.ErrorEnvelope "Quote provider failed"
// @Failure 500 {object} dto.ErrorEnvelope "Failed to retrieve exchange rate"
// @Router /exchange-rates/{from}/{to} [get]
func (h *exchangeRateHandler) getExchangeRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var uri dto.CurrencyPairURI
	if err := c.ShouldBindUri(&uri); err != nil {
		logger.Warn("Invalid currency pair in path", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.Fail(http.StatusBadRequest, "Currency codes must be 3 letters"))
		return
	}

	rate, err := h.exchangeRateService.GetRate(c.Request.Context(), uri.From, uri.To)
	if err != nil {
		respondError(c, err, fmt.Sprintf("Exchange rate %s/%s could not be retrieved", uri.From, uri.To))
		return
	}

	c.JSON(http.StatusOK, dto.OK(http.StatusOK, dto.ToExchangeRateResponse(rate)))
}

// createExchangeRate godoc
// @Summary Create a new exchange rate
// @Description Adds a rate for a currency pair that is not stored yet
// @Tags exchange rates
// @Accept  json
// @Produce  json
// @Param   rate body dto.ExchangeRateRequest true "Exchange Rate details"
// @Success 201 {object} dto.ExchangeRateEnvelope
// @Failure 400 {object} dto.ErrorEnvelope "Invalid input format or validation error"
// @Failure 401 {object} dto.ErrorEnvelope "Unauthorized"
// @Failure 409 {object} dto.ErrorEnvelope "Exchange rate already exists"
// @Failure 500 {object} dto.ErrorEnvelope "Failed to create exchange rate"
// @Security BearerAuth
// @Router /exchange-rates [post]
func (h *exchangeRateHandler) createExchangeRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ExchangeRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateExchangeRate", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.Fail(http.StatusBadRequest, "Invalid request format: "+err.Error()))
		return
	}

	created, err := h.exchangeRateService.CreateRate(c.Request.Context(), req.ToRateQuote())
	if err != nil {
		respondError(c, err, fmt.Sprintf("Exchange rate %s/%s could not be created", req.FromCurrency, req.ToCurrency))
		return
	}

	logger.Info("Exchange rate created", slog.String("from", created.FromCurrency), slog.String("to", created.ToCurrency))
	c.JSON(http.StatusCreated, dto.OK(http.StatusCreated, dto.ToExchangeRateResponse(created)))
}

// updateExchangeRate godoc
// @Summary Update an exchange rate
// @Description Replaces rate, bid and ask of an existing currency pair
// @Tags exchange rates
// @Accept  json
// @Produce  json
// @Param   rate body dto.ExchangeRateRequest true "Exchange Rate details"
// @Success 200 {object} dto.ExchangeRateEnvelope
// @Failure 400 {object} dto.ErrorEnvelope "Invalid input format or validation error"
// @Failure 401 {object} dto.ErrorEnvelope "Unauthorized"
// @Failure 404 {object} dto.ErrorEnvelope "Exchange rate not found"
// @Failure 409 {object} dto.ErrorEnvelope "Concurrent updates did not settle"
// @Failure 500 {object} dto.ErrorEnvelope "Failed to update exchange rate"
// @Security BearerAuth
// @Router /exchange-rates [put]
func (h *exchangeRateHandler) updateExchangeRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ExchangeRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for UpdateExchangeRate", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.Fail(http.StatusBadRequest, "Invalid request format: "+err.Error()))
		return
	}

	updated, err := h.exchangeRateService.UpdateRate(c.Request.Context(), req.ToRateQuote())
	if err != nil {
		respondError(c, err, fmt.Sprintf("Exchange rate %s/%s could not be updated", req.FromCurrency, req.ToCurrency))
		return
	}

	c.JSON(http.StatusOK, dto.OK(http.StatusOK, dto.ToExchangeRateResponse(updated)))
}

// deleteExchangeRate godoc
// @Summary Delete an exchange rate
// @Description Removes the stored rate for a currency pair
// @Tags exchange rates
// @Param   from path string true "From Currency Code (3 letters)" MinLength(3) MaxLength(3)
// @Param   to   path string true "To Currency Code (3 letters)" MinLength(3) MaxLength(3)
// @Success 204 "No Content"
// @Failure 400 {object} dto.ErrorEnvelope "Invalid currency code format"
// @Failure 401 {object} dto.ErrorEnvelope "Unauthorized"
// @Failure 404 {object} dto.ErrorEnvelope "Exchange rate not found"
// @Failure 500 {object} dto.ErrorEnvelope "Failed to delete exchange rate"
// @Security BearerAuth
// @Router /exchange-rates/{from}/{to} [delete]
func (h *exchangeRateHandler) deleteExchangeRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var uri dto.CurrencyPairURI
	if err := c.ShouldBindUri(&uri); err != nil {
		logger.Warn("Invalid currency pair in path", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.Fail(http.StatusBadRequest, "Currency codes must be 3 letters"))
		return
	}

	if _, err := h.exchangeRateService.DeleteRate(c.Request.Context(), uri.From, uri.To); err != nil {
		respondError(c, err, fmt.Sprintf("Exchange rate %s/%s could not be deleted", uri.From, uri.To))
		return
	}

	c.Status(http.StatusNoContent)
}

// statusForError maps an error kind to its HTTP status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrDuplicate), errors.Is(err, apperrors.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrExternalProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the envelope for err. Client errors echo the cause;
// server errors only carry the generic message, the cause was already logged.
func respondError(c *gin.Context, err error, fallback string) {
	status := statusForError(err)
	msg := fallback
	if status < http.StatusInternalServerError {
		msg = err.Error()
	}
	c.JSON(status, dto.Fail(status, msg))
}
