package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
	ErrCircuitOpen      = errors.New("circuit breaker open")
)

// StatusError is a non-success HTTP response from an upstream provider. It
// unwraps to the sentinel matching the status class.
type StatusError struct {
	Provider   string
	StatusCode int
	kind       error
}

func newStatusError(provider string, code int) *StatusError {
	var kind error
	switch {
	case code == 401 || code == 403:
		kind = ErrInvalidAPIKey
	case code == 404:
		kind = ErrLocationNotFound
	case code == 429:
		kind = ErrRateLimited
	default:
		kind = ErrUpstreamFailure
	}
	return &StatusError{Provider: provider, StatusCode: code, kind: kind}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %v: HTTP %d", e.Provider, e.kind, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return e.kind }

// HTTPStatus reports the upstream status so callers can echo it to clients.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

const (
	ErrorCategoryTimeout          ErrorCategory = "timeout"
	ErrorCategoryNetwork          ErrorCategory = "network"
	ErrorCategoryInvalidAPIKey    ErrorCategory = "invalid_api_key"
	ErrorCategoryLocationNotFound ErrorCategory = "location_not_found"
	ErrorCategoryRateLimited      ErrorCategory = "rate_limited"
	ErrorCategoryUpstream         ErrorCategory = "upstream"
	ErrorCategoryCircuitOpen      ErrorCategory = "circuit_open"
	ErrorCategoryParsing          ErrorCategory = "parsing"
	ErrorCategoryUnknown          ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorCategoryTimeout
		}
		return ErrorCategoryNetwork
	}
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return ErrorCategoryCircuitOpen
	case errors.Is(err, ErrInvalidAPIKey):
		return ErrorCategoryInvalidAPIKey
	case errors.Is(err, ErrLocationNotFound):
		return ErrorCategoryLocationNotFound
	case errors.Is(err, ErrRateLimited):
		return ErrorCategoryRateLimited
	case errors.Is(err, ErrUpstreamFailure):
		return ErrorCategoryUpstream
	}
	var parseErr *parseError
	if errors.As(err, &parseErr) {
		return ErrorCategoryParsing
	}
	return ErrorCategoryUnknown
}

type parseError struct {
	provider string
	err      error
}

func (e *parseError) Error() string { return fmt.Sprintf("parse %s response: %v", e.provider, e.err) }

func (e *parseError) Unwrap() error { return e.err }
