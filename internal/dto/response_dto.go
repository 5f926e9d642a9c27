package dto

import "net/http"

// Response is the envelope wrapping every exchange rate API payload.
type Response[T any] struct {
	Status int      `json:"status" example:"200"`
	Result *T       `json:"result,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// ExchangeRateEnvelope is Response[ExchangeRateResponse], named for the API docs.
type ExchangeRateEnvelope = Response[ExchangeRateResponse]

// ErrorEnvelope is the body of every failed request.
type ErrorEnvelope = Response[struct{}]

// OK wraps result with status.
func OK[T any](status int, result T) Response[T] {
	return Response[T]{Status: status, Result: &result}
}

// Fail builds an error envelope.
func Fail(status int, errs ...string) ErrorEnvelope {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return ErrorEnvelope{Status: status, Errors: errs}
}
