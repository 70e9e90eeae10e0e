package mcperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class in the uniform error envelope returned to
// clients. Every user-visible failure maps to exactly one code.
type Code string

const (
	// CodeUnauthorized covers a missing, invalid, or expired credential when
	// refresh is not possible.
	CodeUnauthorized Code = "unauthorized"

	// CodeClientError covers malformed requests and invalid state transitions
	// detected locally, before any upstream call.
	CodeClientError Code = "client_error"

	// CodeLimitExceeded is returned when a request's limit is above the
	// applicable ceiling. The caller must lower the request; results are
	// never silently truncated below the requested limit.
	CodeLimitExceeded Code = "limit_exceeded"

	// CodeUpstreamTimeout means the upstream gave no response within the
	// configured deadline.
	CodeUpstreamTimeout Code = "upstream_timeout"

	// CodeUpstreamClient means the upstream rejected the request (4xx-class).
	CodeUpstreamClient Code = "upstream_client_error"

	// CodeUpstreamServer means the upstream failed (5xx-class).
	CodeUpstreamServer Code = "upstream_server_error"
)

// Error is the uniform error type for all proxy operations. It marshals to
// the wire envelope {"error": code, "details": reason}.
//
// Details must never contain credentials, raw upstream payloads, or stack
// traces; they are shown to clients verbatim.
type Error struct {
	Code    Code   `json:"error"`
	Details string `json:"details"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Details)
}

// Is reports whether target is an *Error with the same code, so callers can
// match on sentinel instances with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// JSON renders the wire envelope. Marshalling a flat two-field struct cannot
// fail, so the result is always valid JSON.
func (e *Error) JSON() string {
	data, _ := json.Marshal(e)
	return string(data)
}

// New creates an Error with the given code and formatted details.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Details: fmt.Sprintf(format, args...)}
}

// Unauthorized creates an unauthorized error. With no arguments it carries
// the standard bearer-token message.
func Unauthorized(format string, args ...interface{}) *Error {
	if format == "" {
		format = "Missing or invalid Authorization Bearer token."
	}
	return New(CodeUnauthorized, format, args...)
}

// ClientError creates a client_error.
func ClientError(format string, args ...interface{}) *Error {
	return New(CodeClientError, format, args...)
}

// LimitExceeded creates a limit_exceeded error.
func LimitExceeded(format string, args ...interface{}) *Error {
	return New(CodeLimitExceeded, format, args...)
}

// UpstreamTimeout creates an upstream_timeout error.
func UpstreamTimeout(format string, args ...interface{}) *Error {
	return New(CodeUpstreamTimeout, format, args...)
}

// FromStatus maps an upstream HTTP status code to the taxonomy. The operation
// name is included in the details; the upstream response body is not.
func FromStatus(status int, operation string) *Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return New(CodeUnauthorized, "upstream rejected credentials for %s (status %d)", operation, status)
	case status >= 400 && status < 500:
		return New(CodeUpstreamClient, "upstream rejected %s (status %d)", operation, status)
	default:
		return New(CodeUpstreamServer, "upstream failed during %s (status %d)", operation, status)
	}
}

// CodeOf extracts the taxonomy code from any error. Errors that are not an
// *Error are reported as upstream_server_error, the catch-all for unexpected
// internal failures.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUpstreamServer
}
