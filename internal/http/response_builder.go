// Package http serves the class treasury as a JSON API.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ResponseBuilder assembles a JSON response. Successful bodies are wrapped
// as {"data": ...}; errors as {"error": {...}}.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	data       any
	apiErr     *apiError
}

type apiError struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *ResponseBuilder) Data(v any) *ResponseBuilder {
	b.data = v
	return b
}

// Field attaches a per-field validation message to an error response.
func (b *ResponseBuilder) Field(name, message string) *ResponseBuilder {
	if b.apiErr == nil {
		b.apiErr = &apiError{}
	}
	if b.apiErr.Fields == nil {
		b.apiErr.Fields = make(map[string]string)
	}
	b.apiErr.Fields[name] = message
	return b
}

func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}

	var body envelope
	if b.apiErr != nil {
		b.apiErr.Status = b.statusCode
		body.Error = b.apiErr
	} else {
		body.Data = b.data
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	b := NewResponse().Status(statusCode)
	b.apiErr = &apiError{Message: message}
	return b
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

func ServiceUnavailableError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

func Created(v any) *ResponseBuilder {
	return NewResponse().Status(http.StatusCreated).Data(v)
}

func NoContent() *ResponseBuilder {
	return NewResponse().Status(http.StatusNoContent)
}
