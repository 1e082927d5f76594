// Package errors defines the sentinel errors shared across the service and an
// AppError type that carries the HTTP status code to report for a failure.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrFetchFailed        = errors.New("fetch failed")
	ErrUnsupportedContent = errors.New("unsupported content type")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrUnavailable        = errors.New("dependency unavailable")
	ErrTimeout            = errors.New("operation timed out")
	ErrInternal           = errors.New("internal error")
)

// statusBySentinel is checked in order; the first sentinel err matches wins.
var statusBySentinel = []struct {
	sentinel error
	status   int
}{
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrUnsupportedContent, http.StatusUnsupportedMediaType},
	{ErrFetchFailed, http.StatusBadGateway},
	{ErrRateLimited, http.StatusTooManyRequests},
	{ErrUnavailable, http.StatusServiceUnavailable},
	{ErrTimeout, http.StatusServiceUnavailable},
}

// AppError pairs a sentinel with a client-facing message and the status code
// to answer with.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// HTTPStatusCode picks the status for err: an AppError's own code, else the
// code of the first matching sentinel, else 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	for _, s := range statusBySentinel {
		if errors.Is(err, s.sentinel) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// Response returns the status and the message safe to show a client. Server
// errors are reduced to their status text, except upstream fetch failures,
// whose detail tells the caller what went wrong with the page they named.
func Response(err error) (int, string) {
	status := HTTPStatusCode(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, ErrFetchFailed) {
		return status, http.StatusText(status)
	}
	return status, err.Error()
}

// WriteJSON writes err as {"error": message} using Response.
func WriteJSON(w http.ResponseWriter, err error) {
	status, message := Response(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
