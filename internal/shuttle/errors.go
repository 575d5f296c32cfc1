package shuttle

import (
	"errors"
	"fmt"
)

// ErrNoResponse is returned when the server closed the connection without
// producing any body or frame. It is distinct from a connection failure: the
// server was reached, it just said nothing.
var ErrNoResponse = errors.New("shuttle: no response received")

// ErrorKind classifies a StatusError for retry decisions. The SDK itself
// never retries; the kind is informational for the caller.
type ErrorKind int

const (
	// KindRetryableStatus marks statuses worth retrying (429, 500, 502, 503, 504).
	KindRetryableStatus ErrorKind = iota
	// KindRequest marks other 4xx statuses, caused by the request itself.
	KindRequest
	// KindGeneric marks any other >=500 status.
	KindGeneric
)

// ConnectionError means the transport could not reach the server at all
// (DNS, TCP, or TLS failure).
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("shuttle: connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StatusError is a non-2xx HTTP response. It carries the raw body text so no
// server-provided detail is lost.
type StatusError struct {
	StatusCode int
	Body       string
}

// Kind classifies the status code.
func (e *StatusError) Kind() ErrorKind {
	switch e.StatusCode {
	case 429, 500, 502, 503, 504:
		return KindRetryableStatus
	}
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return KindRequest
	}
	return KindGeneric
}

// Retryable reports whether the status is in the retryable set.
func (e *StatusError) Retryable() bool { return e.Kind() == KindRetryableStatus }

func (e *StatusError) Error() string {
	return fmt.Sprintf("shuttle: status %d: %s", e.StatusCode, e.Body)
}

// DecodeError means a response body or stream line was not valid JSON, or did
// not match any known response shape. Raw preserves the offending payload.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("shuttle: decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrorDetail is the inner error object of an API error payload.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

// APIError is a well-formed JSON error payload from the server
// ({error:{message,type,param?,code?}, status, docs, request_id?}). Mid-stream
// it is surfaced as data on the StreamEvent so the stream can still terminate
// cleanly; on the blocking path it is returned as an error.
type APIError struct {
	Detail    ErrorDetail `json:"error"`
	Status    int         `json:"status"`
	Docs      string      `json:"docs,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shuttle: api error (status %d): %s", e.Status, e.Detail.Message)
}
