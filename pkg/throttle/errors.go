package throttle

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// StatusError is a remote call rejected with an HTTP status code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// NewStatusError wraps a non-2xx response for the retry classifier.
func NewStatusError(code int, body string) *StatusError {
	return &StatusError{Code: code, Body: body}
}

// IsRetryable classifies an error for the retry loop. 429, 5xx,
// network failures and timeouts are transient; any other 4xx marks a
// malformed request and must propagate on the first attempt.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		if se.Code == 429 {
			return true
		}
		if se.Code >= 400 && se.Code < 500 {
			return false
		}
		return se.Code >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	// Unclassified errors (connection reset, EOF mid-body) are treated
	// as transient; only an explicit 4xx short-circuits the retries.
	return true
}
