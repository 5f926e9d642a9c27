package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/exchange_rate_api/internal/core/ports/services"
	"github.com/SscSPs/exchange_rate_api/internal/dto"
	"github.com/SscSPs/exchange_rate_api/internal/middleware"
	"github.com/gin-gonic/gin"
)

type alphaVantageHandler struct {
	quotes portssvc.ProviderQuoteSvc
}

func registerAlphaVantageRoutes(rg *gin.RouterGroup, quotes portssvc.ProviderQuoteSvc) {
	h := &alphaVantageHandler{quotes: quotes}
	rg.GET("/alphavantage/:from/:to", h.getProviderQuote)
}

// getProviderQuote godoc
// @Summary Get a live quote from AlphaVantage
// @Description Calls the quote provider directly. Nothing is read from or written to the store.
// @Tags alphavantage
// @Produce  json
// @Param   from path string true "From Currency Code (3 letters)" MinLength(3) MaxLength(3)
// @Param   to   path string true "To Currency Code (3 letters)" MinLength(3) MaxLength(3)
// @Success 200 {object} dto.ExchangeRateEnvelope
// @Failure 400 {object} dto.ErrorEnvelope "Invalid currency code format"
// @Failure 404 {object} dto.ErrorEnvelope "Provider has no rate for the pair"
// @Failure 502 {object} dto.ErrorEnvelope "Quote provider failed"
// @Router /alphavantage/{from}/{to} [get]
func (h *alphaVantageHandler) getProviderQuote(c *gin.Context) {
	var uri dto.CurrencyPairURI
	if err := c.ShouldBindUri(&uri); err != nil {
		middleware.GetLoggerFromCtx(c.Request.Context()).Warn("Invalid currency pair in path", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.Fail(http.StatusBadRequest, "Currency codes must be 3 letters"))
		return
	}

	quote, err := h.quotes.FetchProviderQuote(c.Request.Context(), uri.From, uri.To)
	if err != nil {
		respondError(c, err, fmt.Sprintf("Quote %s/%s could not be fetched", uri.From, uri.To))
		return
	}

	c.JSON(http.StatusOK, dto.OK(http.StatusOK, dto.ToExchangeRateResponse(quote)))
}
