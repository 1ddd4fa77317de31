// Package http exposes the finance API over JSON.
//
// This file implements the builder used by every handler to write a JSON
// reply, and the mapping from domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"dotproduct/internal/core"
	"dotproduct/internal/log"
)

const (
	msgNotFound    = "Not found."
	msgServerError = "A server error occurred."
	msgThrottled   = "Request was throttled. Expected available in 60 seconds."
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
	cookies    []*http.Cookie
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Cookie queues a Set-Cookie header.
func (b *JSONResponseBuilder) Cookie(c *http.Cookie) *JSONResponseBuilder {
	b.cookies = append(b.cookies, c)
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Detail sets a {"detail": msg} body.
func (b *JSONResponseBuilder) Detail(msg string) *JSONResponseBuilder {
	return b.Body(detailBody{Detail: msg})
}

// Write sends the built response. A 204 never carries a body.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	for _, c := range b.cookies {
		http.SetCookie(w, c)
	}

	if b.statusCode == http.StatusNoContent || b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"` + msgServerError + `"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
}

type detailBody struct {
	Detail string `json:"detail"`
}

// ErrorResponse creates a standard {"detail": message} error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Detail(message)
}

// errorStatus maps an error onto its status code and client-facing message.
// Anything outside the domain taxonomy is a 500 with a generic message.
func errorStatus(err error) (int, string) {
	var (
		verr   *core.ValidationError
		aerr   *core.AuthError
		perr   *core.PermissionError
		nerr   *core.NotFoundError
		cerr   *core.CSRFError
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.As(err, &aerr):
		if aerr.MissingCredentials {
			return http.StatusBadRequest, aerr.Message
		}
		return http.StatusUnauthorized, aerr.Message
	case errors.As(err, &perr):
		return http.StatusUnauthorized, perr.Error()
	case errors.As(err, &nerr):
		return http.StatusNotFound, msgNotFound
	case errors.As(err, &cerr):
		return http.StatusForbidden, cerr.Error()
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, "Request body too large."
	}
	return http.StatusInternalServerError, msgServerError
}

// writeError renders err and logs server-side failures with their cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		ctx := r.Context()
		fields := log.NewFields().
			WithComponent(log.ComponentHTTP).
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Referer())
		log.NewStructuredLogger(log.FromContext(ctx)).
			LogError(ctx, "Request failed", err, log.ErrorTypeInternal, r.Method+" "+r.URL.Path, fields)
	}
	ErrorResponse(status, msg).Write(w)
}

func writeNotFound(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusNotFound, msgNotFound).Write(w)
}

func writeMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusMethodNotAllowed, `Method "`+r.Method+`" not allowed.`).Write(w)
}

func writeThrottled(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, msgThrottled).Header("Retry-After", "60").Write(w)
}

// nonNil keeps empty listings encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
