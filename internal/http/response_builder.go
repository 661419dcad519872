// Package http provides the JSON API server and its handlers.
//
// This file implements the Builder Pattern for constructing JSON responses so
// every handler writes status, headers and body the same way.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Client-facing error messages. They are part of the wire contract.
const (
	msgInvalidBody    = "Invalid JSON body."
	msgInvalidDate    = "Invalid or missing date. Format should be YYYY-MM-DD."
	msgInvalidItems   = "Invalid items format."
	msgNoData         = "No data found"
	msgNoDataForDate  = "No data found for date %s"
	msgInvalidMethod  = "Invalid request method."
	msgInternalError  = "Internal server error"
	msgRateLimited    = "Rate limit exceeded. Please try again later."
	msgRouteNotFound  = "Not found"
	msgStoreNotReady  = "Store unavailable"
	msgRecordCreated  = "Data added to MongoDB"
	msgRecordUpdated  = "Data updated in MongoDB"
	contentTypeJSON   = "application/json"
	headerAllow       = "Allow"
	headerContentType = "Content-Type"
	allowAddData      = "POST"
	allowGetData      = "GET, POST"
	allowProbe        = "GET"
)

type errorBody struct {
	Error string `json:"error"`
}

type statusBody struct {
	Status string `json:"status"`
}

// messageBody is the submit envelope; a struct keeps "message" before "data".
type messageBody struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
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

func (b *JSONResponseBuilder) Header(key, value string) *JSONResponseBuilder {
	b.headers[key] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Error sets an {"error": msg} body.
func (b *JSONResponseBuilder) Error(msg string) *JSONResponseBuilder {
	b.body = errorBody{Error: msg}
	return b
}

// Message sets a {"message": msg, "data": data} body.
func (b *JSONResponseBuilder) Message(msg string, data any) *JSONResponseBuilder {
	b.body = messageBody{Message: msg, Data: data}
	return b
}

// Write writes the response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	payload, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
		b.statusCode = http.StatusInternalServerError
		payload, _ = json.Marshal(errorBody{Error: msgInternalError})
	}

	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
}

// writeError is shorthand for an error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	NewJSONResponse().Status(status).Error(msg).Write(w)
}

// methodNotAllowed writes a 405 with the Allow header.
func methodNotAllowed(w http.ResponseWriter, allow string) {
	NewJSONResponse().
		Status(http.StatusMethodNotAllowed).
		Header(headerAllow, allow).
		Error(msgInvalidMethod).
		Write(w)
}
