package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrTimeout marks connect/read timeouts, the only failures worth retrying.
var ErrTimeout = errors.New("fetch: timeout")

// HTTPError is a non-2xx response. It is never retried.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
}

// StatusCode extracts the HTTP status of err, if it carries one.
func StatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}

// IsTimeout reports whether err is a connect or read timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return hasTimeout(err)
}

// hasTimeout walks the whole error tree; errors.As would stop at the first
// net.Error (usually *url.Error), which may not report the wrapped timeout.
func hasTimeout(err error) bool {
	if err == nil {
		return false
	}
	if t, ok := err.(net.Error); ok && t.Timeout() {
		return true
	}
	switch x := err.(type) {
	case interface{ Unwrap() error }:
		return hasTimeout(x.Unwrap())
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			if hasTimeout(e) {
				return true
			}
		}
	}
	return false
}

type timeoutError struct {
	url string
	err error
}

func (e *timeoutError) Error() string { return fmt.Sprintf("fetch %s: timeout: %v", e.url, e.err) }

func (e *timeoutError) Unwrap() []error { return []error{ErrTimeout, e.err} }
