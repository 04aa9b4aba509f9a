// Package http serves the ledger as a JSON API.
//
// This file implements the builder used by every handler to write JSON
// responses and the mapping from domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"expensetrack/internal/agent"
	"expensetrack/internal/app"
	"expensetrack/internal/core"
	applog "expensetrack/internal/log"
)

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes no
// content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to w.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// ErrorBody is the payload of every error response. Retryable is set when
// the same request may succeed later without changes.
type ErrorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(ErrorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// validationErrors are the sentinels that mean the request itself is wrong.
var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrInvalidPeriod,
	core.ErrEmptyCategory,
	core.ErrEmptyName,
	core.ErrEmptyPerson,
	core.ErrInvalidBorrowType,
	core.ErrInvalidStatus,
	core.ErrDuplicate,
	core.ErrLimitExceeded,
	app.ErrEmptyQuestion,
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// errorResponse maps err to a status code and body.
func errorResponse(err error) *JSONResponseBuilder {
	var (
		failure *agent.Failure
		badReq  *requestError
	)
	switch {
	case isValidation(err):
		return ErrorResponse(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(err.Error())
	case errors.As(err, &badReq):
		return BadRequestError(err.Error())
	case errors.Is(err, app.ErrBusy):
		return ErrorResponse(http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrNoAgent):
		return ErrorResponse(http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &failure):
		return NewJSONResponse().
			Status(http.StatusBadGateway).
			Body(ErrorBody{Error: failure.Message, Retryable: failure.Retryable})
	default:
		return ErrorResponse(http.StatusInternalServerError, "internal error")
	}
}

// writeError logs err at a level matching its class and writes the mapped
// response.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := errorResponse(err)
	logger := applog.FromContext(r.Context())
	switch {
	case resp.statusCode >= http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), "Request failed",
			applog.FieldOperation, op,
			applog.FieldError, err)
	default:
		logger.DebugContext(r.Context(), "Request rejected",
			applog.FieldOperation, op,
			applog.FieldError, err,
			applog.FieldStatusCode, resp.statusCode)
	}
	resp.Write(w)
}
