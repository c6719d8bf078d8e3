// Package apierr defines the error taxonomy for calls against the routing API.
package apierr

import (
	"errors"
	"fmt"
)

// MaxBodyLen is how much of an upstream error body is retained.
const MaxBodyLen = 500

// NetworkError is a connection-level failure or a timeout. Callers may retry.
type NetworkError struct {
	Msg string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Err != nil && e.Msg == "" {
		return "Network error: " + e.Err.Error()
	}
	return "Network error: " + e.Msg
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a wall-clock timeout.
func (e *NetworkError) Timeout() bool { return e.Msg == "timed out" }

// APIError is a non-2xx response. Body is truncated to MaxBodyLen bytes.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API Error: %d %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("API Error: %d %s - %s", e.StatusCode, e.Status, e.Body)
}

// NewAPIError builds an APIError, truncating body.
func NewAPIError(code int, status string, body []byte) *APIError {
	if len(body) > MaxBodyLen {
		body = body[:MaxBodyLen]
	}
	return &APIError{StatusCode: code, Status: status, Body: string(body)}
}

// StreamKind distinguishes why a stream ended early.
type StreamKind int

const (
	// KindTransport is a mid-stream read failure.
	KindTransport StreamKind = iota
	// KindCancelled is an explicit cancel by the caller.
	KindCancelled
)

func (k StreamKind) String() string {
	if k == KindCancelled {
		return "cancelled"
	}
	return "transport"
}

// StreamError is a failure after the response started streaming, or a cancellation.
type StreamError struct {
	Kind StreamKind
	Err  error
}

func (e *StreamError) Error() string {
	if e.Kind == KindCancelled {
		return "Stream error: cancelled"
	}
	if e.Err == nil {
		return "Stream error"
	}
	return "Stream error: " + e.Err.Error()
}

func (e *StreamError) Unwrap() error { return e.Err }

// ErrCancelled is the cause attached to contexts cancelled by a Cancel call.
var ErrCancelled = errors.New("cancelled")

// Cancelled returns the StreamError reported for an explicit cancel.
func Cancelled() *StreamError {
	return &StreamError{Kind: KindCancelled, Err: ErrCancelled}
}

// ParseError is a malformed event payload. It is recovered locally and never
// returned from a run.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string { return "parse error: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// IsCancelled reports whether err stems from an explicit cancel rather than
// a genuine failure.
func IsCancelled(err error) bool {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Kind == KindCancelled
	}
	return errors.Is(err, ErrCancelled)
}

// IsRetryable reports whether the caller may reasonably retry.
func IsRetryable(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var se *StreamError
	return errors.As(err, &se) && se.Kind == KindTransport
}
