// Package resilience classifies provider failures for the pipeline's
// skip-and-continue error handling.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ProviderUnavailable wraps a transient upstream failure (network error,
// timeout, 429/5xx) from an external provider. Items that fail with it are
// skipped for the current run and retried naturally on the next one.
type ProviderUnavailable struct {
	Provider string
	Err      error
}

func (e *ProviderUnavailable) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderUnavailable) Unwrap() error {
	return e.Err
}

// Unavailable wraps err as a ProviderUnavailable for the named provider.
func Unavailable(provider string, err error) *ProviderUnavailable {
	return &ProviderUnavailable{Provider: provider, Err: err}
}

// IsProviderUnavailable reports whether the error chain contains a
// ProviderUnavailable.
func IsProviderUnavailable(err error) bool {
	var pu *ProviderUnavailable
	return errors.As(err, &pu)
}

// IsTransient reports whether the error looks safe to retry on a later run:
// an explicit ProviderUnavailable, a network timeout, or a common transport
// failure pattern.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if IsProviderUnavailable(err) {
		return true
	}

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

// IsTransientHTTPStatus reports whether the HTTP status code indicates a
// transient server-side issue.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
