package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// FetchErrorKind classifies a failed provider call.
type FetchErrorKind string

const (
	// Transient: timeouts, 5xx, connection drops. Safe to retry.
	Transient FetchErrorKind = "transient"
	// Permanent: 4xx other than 429, malformed payloads. Never retried.
	Permanent FetchErrorKind = "permanent"
	// RateLimited: provider returned 429. Retried after backoff.
	RateLimited FetchErrorKind = "rate_limited"
	// Cancelled: the caller's context expired. Never retried.
	Cancelled FetchErrorKind = "cancelled"
)

// FetchError carries the classification of a failed provider call along
// with the underlying cause.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth another attempt.
func (e *FetchError) Retryable() bool {
	return e.Kind == Transient || e.Kind == RateLimited
}

// NewFetchError builds a FetchError of an explicit kind.
func NewFetchError(kind FetchErrorKind, statusCode int, err error) *FetchError {
	return &FetchError{Kind: kind, StatusCode: statusCode, Err: err}
}

// statusCoder is implemented by provider errors that carry an HTTP
// status.
type statusCoder interface {
	HTTPStatus() int
}

// Classify maps an arbitrary error onto the fetch taxonomy. Already
// classified errors pass through unchanged.
func Classify(err error) *FetchError {
	if err == nil {
		return nil
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: Cancelled, Err: err}
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		status := sc.HTTPStatus()
		switch {
		case status == 429:
			return &FetchError{Kind: RateLimited, StatusCode: status, Err: err}
		case IsTransientHTTPStatus(status):
			return &FetchError{Kind: Transient, StatusCode: status, Err: err}
		default:
			return &FetchError{Kind: Permanent, StatusCode: status, Err: err}
		}
	}

	if isNetworkTransient(err) {
		return &FetchError{Kind: Transient, Err: err}
	}
	return &FetchError{Kind: Permanent, Err: err}
}

// IsRetryable reports whether the error classifies as worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable()
}

// IsTransientHTTPStatus reports whether the HTTP status indicates a
// server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

// isNetworkTransient matches network-level failures worth retrying.
func isNetworkTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
