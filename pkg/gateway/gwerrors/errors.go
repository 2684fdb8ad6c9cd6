// Package gwerrors provides structured error classification and retry
// configuration for model gateway calls.
package gwerrors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType categorizes gateway errors for retry decisions.
type ErrorType int8

const (
	// ErrorTypeRateLimit covers 429s and quota errors. Retryable.
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient covers 5xx, EOF, connection resets, timeouts. Retryable.
	ErrorTypeTransient
	// ErrorTypeEmptyResponse covers HTTP 200 with no content. Retryable.
	ErrorTypeEmptyResponse
	// ErrorTypeAuth covers 401/403 and bad API keys. Not retryable.
	ErrorTypeAuth
	// ErrorTypeBadPrompt covers malformed requests. Not retryable.
	ErrorTypeBadPrompt
	// ErrorTypeUnknown is the default for unclassified errors.
	ErrorTypeUnknown
	// ErrorTypeUnavailable marks persistent failure after retries were
	// exhausted. Emitted by the retry layer, never retried itself.
	ErrorTypeUnavailable
)

// String returns the wire name of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	case ErrorTypeUnavailable:
		return "unavailable"
	default:
		return "invalid"
	}
}

// RetryConfig defines exponential backoff behavior for one error type.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

// DefaultRetryConfigs maps each error type to its backoff schedule.
//
//nolint:gochecknoglobals // package defaults
var DefaultRetryConfigs = map[ErrorType]RetryConfig{
	ErrorTypeRateLimit:     {MaxRetries: 6, InitialDelay: time.Second, MaxDelay: 60 * time.Second, BackoffFactor: 2.0, Jitter: true},
	ErrorTypeTransient:     {MaxRetries: 4, InitialDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second, BackoffFactor: 2.0, Jitter: true},
	ErrorTypeEmptyResponse: {MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: 30 * time.Second, BackoffFactor: 2.0, Jitter: true},
	ErrorTypeAuth:          {MaxRetries: 0, BackoffFactor: 1.0},
	ErrorTypeBadPrompt:     {MaxRetries: 0, BackoffFactor: 1.0},
	ErrorTypeUnknown:       {MaxRetries: 1, InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffFactor: 2.0, Jitter: true},
	ErrorTypeUnavailable:   {MaxRetries: 0, BackoffFactor: 1.0},
}

// Error is a classified gateway error with retry metadata.
type Error struct {
	Err        error
	Message    string
	Type       ErrorType
	StatusCode int
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("model error (%s): %s", e.Type, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("model error (%s): %v", e.Type, e.Err)
	}
	return fmt.Sprintf("model error (%s): status %d", e.Type, e.StatusCode)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether this error type should be retried. Blocklist
// approach: retryable unless explicitly terminal.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeAuth, ErrorTypeBadPrompt, ErrorTypeUnavailable:
		return false
	default:
		return true
	}
}

// RetryConfigFor returns the backoff schedule for this error.
func (e *Error) RetryConfigFor() RetryConfig {
	if cfg, ok := DefaultRetryConfigs[e.Type]; ok {
		return cfg
	}
	return DefaultRetryConfigs[ErrorTypeUnknown]
}

// Is reports whether err is a gateway error of the given type.
func Is(err error, errorType ErrorType) bool {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Type == errorType
	}
	return false
}

// TypeOf returns err's classified type, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Type
	}
	return ErrorTypeUnknown
}

// New creates a classified error from a message.
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// NewWithStatus creates a classified error carrying an HTTP status.
func NewWithStatus(errorType ErrorType, statusCode int, message string) *Error {
	return &Error{Type: errorType, StatusCode: statusCode, Message: message}
}

// NewWithCause creates a classified error wrapping another error.
func NewWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{Type: errorType, Err: cause, Message: message}
}

// NewUnavailable marks a persistent failure after retries were exhausted.
func NewUnavailable(cause error, attempts int) *Error {
	return &Error{
		Type:    ErrorTypeUnavailable,
		Err:     cause,
		Message: fmt.Sprintf("model unavailable after %d retry attempts", attempts),
	}
}
