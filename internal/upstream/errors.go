package upstream

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError is returned when no response arrived within the client timeout.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream request timed out after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// StatusError is returned for any non-200 upstream response.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// NetworkError wraps connection-level failures.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "upstream request failed: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusCodeOf returns the upstream status code carried by err, if any.
func StatusCodeOf(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

// BodyOf returns the upstream error body carried by err, if any.
func BodyOf(err error) []byte {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Body
	}
	return nil
}

// Kind names the failure class of err for logs and metrics.
func Kind(err error) string {
	var (
		timeoutErr *TimeoutError
		statusErr  *StatusError
		netErr     *NetworkError
	)

	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &statusErr):
		return "status"
	case errors.As(err, &netErr):
		return "network"
	default:
		return "error"
	}
}
