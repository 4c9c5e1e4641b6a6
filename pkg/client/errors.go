package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/fsf-api-client/pkg/ratelimit"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted marks a key whose attempts all failed transiently.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrMissingAPIKey is returned by New when no API key is configured.
	ErrMissingAPIKey = errors.New("api key is required")
)

// Sentinels matched by errors.Is against an *APIError of the same class.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotAcceptable = errors.New("not acceptable")
	ErrRateLimited   = errors.New("rate limited")
	ErrInternal      = errors.New("internal server error")
	ErrOffline       = errors.New("service offline")
	ErrUnknown       = errors.New("unknown api error")
)

// ErrorClass is the taxonomy of errors that abort a whole batch.
type ErrorClass string

const (
	// ErrorClassUnauthorized covers 401 and 403 responses.
	ErrorClassUnauthorized ErrorClass = "unauthorized"

	// ErrorClassNotAcceptable covers 406 responses.
	ErrorClassNotAcceptable ErrorClass = "not_acceptable"

	// ErrorClassRateLimited covers 429 responses.
	ErrorClassRateLimited ErrorClass = "rate_limited"

	// ErrorClassInternal covers 500 responses that cannot be read as a
	// per-key answer.
	ErrorClassInternal ErrorClass = "internal"

	// ErrorClassOffline covers 503 responses.
	ErrorClassOffline ErrorClass = "offline"

	// ErrorClassUnknown covers every other status.
	ErrorClassUnknown ErrorClass = "unknown"
)

// classify maps a status code onto the taxonomy.
func classify(status int) ErrorClass {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrorClassUnauthorized
	case http.StatusNotAcceptable:
		return ErrorClassNotAcceptable
	case http.StatusTooManyRequests:
		return ErrorClassRateLimited
	case http.StatusInternalServerError:
		return ErrorClassInternal
	case http.StatusServiceUnavailable:
		return ErrorClassOffline
	default:
		return ErrorClassUnknown
	}
}

func (c ErrorClass) sentinel() error {
	switch c {
	case ErrorClassUnauthorized:
		return ErrUnauthorized
	case ErrorClassNotAcceptable:
		return ErrNotAcceptable
	case ErrorClassRateLimited:
		return ErrRateLimited
	case ErrorClassInternal:
		return ErrInternal
	case ErrorClassOffline:
		return ErrOffline
	default:
		return ErrUnknown
	}
}

// APIError is a systemic error reported by the service. It aborts the
// batch it occurred in.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	// Message is the formatted message including rate limit details for 429.
	Message string
	// RateLimit holds the headers of the failing response.
	RateLimit ratelimit.Info
	URL       string
}

// newAPIError builds an APIError. message is the server's message or the
// status text when the body carried none.
func newAPIError(status int, message string, info ratelimit.Info, url string) *APIError {
	formatted := fmt.Sprintf("Network Error %d: %s", status, message)
	if status == http.StatusTooManyRequests {
		formatted = fmt.Sprintf("%s. Limit: %s. Remaining: %s. Reset: %s",
			formatted, info.Limit, info.Remaining, info.Reset)
	}

	return &APIError{
		StatusCode: status,
		Class:      classify(status),
		Message:    formatted,
		RateLimit:  info,
		URL:        url,
	}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Is lets errors.Is match the class sentinels, e.g. ErrRateLimited.
func (e *APIError) Is(target error) bool {
	return target == e.Class.sentinel()
}

// retryExhausted reports the last transient failure of a key that ran
// out of attempts.
func retryExhausted(attempts int, last error) error {
	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, last)
}

// transportError is a per-key failure below the application level.
// It never leaves the executor: it becomes a retry or a sentinel.
type transportError struct {
	reason    string
	retryable bool
	err       error
}

const (
	reasonTimeout    = "timeout"
	reasonDecode     = "decode"
	reasonConnection = "connection"
)

func (e *transportError) Error() string {
	return fmt.Sprintf("%s: %v", e.reason, e.err)
}

func (e *transportError) Unwrap() error {
	return e.err
}
