package exchange

import (
	"errors"
	"fmt"
	"net/http"
)

// OAuth error codes returned by the token endpoint (RFC 6749 section 5.2)
const (
	ErrorCodeInvalidRequest         = "invalid_request"
	ErrorCodeInvalidClient          = "invalid_client"
	ErrorCodeInvalidGrant           = "invalid_grant"
	ErrorCodeUnauthorizedClient     = "unauthorized_client"
	ErrorCodeUnsupportedGrantType   = "unsupported_grant_type"
	ErrorCodeInvalidScope           = "invalid_scope"
	ErrorCodeServerError            = "server_error"
	ErrorCodeTemporarilyUnavailable = "temporarily_unavailable"
)

// Causes carried by *Error. Match them with errors.Is.
var (
	// ErrMissingCode is returned when no authorization code is supplied.
	ErrMissingCode = errors.New("authorization code is required")

	// ErrTransport indicates that no HTTP response was received
	// (connection failure, DNS failure, per-attempt timeout).
	ErrTransport = errors.New("token endpoint unreachable")

	// ErrEmptyResponse indicates a 2xx response without a body.
	ErrEmptyResponse = errors.New("empty token response")

	// ErrMalformedResponse indicates a 2xx body that is not a valid token response.
	ErrMalformedResponse = errors.New("malformed token response")

	// ErrProviderError indicates an OAuth error response from the provider.
	ErrProviderError = errors.New("provider returned an error")

	// ErrUnexpectedStatus indicates a status code outside 2xx, 4xx and 5xx.
	ErrUnexpectedStatus = errors.New("unexpected token endpoint status")
)

// Kind classifies an exchange failure for the retry engine.
type Kind int

const (
	// KindFatal failures are never retried. The authorization code must be
	// treated as consumed.
	KindFatal Kind = iota

	// KindRetryable failures may succeed on a later attempt.
	KindRetryable
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFatal:
		return "fatal"
	case KindRetryable:
		return "retryable"
	default:
		return "unknown"
	}
}

// Error is a failed token exchange attempt.
type Error struct {
	// Kind tells whether the attempt may be retried.
	Kind Kind

	// StatusCode is the HTTP status code (0 when no response was received).
	StatusCode int

	// Header holds the response headers, if any.
	Header http.Header

	// Code is the OAuth error code from the response body (e.g. "invalid_grant").
	Code string

	// Description is the provider's error_description.
	Description string

	// URI is the provider's error_uri.
	URI string

	// Body is a bounded, single-line copy of a response body that could not be
	// parsed as an OAuth error.
	Body string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := "token exchange failed"
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("%s: %s: %s", msg, e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%s: %s", msg, e.Code)
	case e.Err != nil && e.Body != "":
		return fmt.Sprintf("%s: %v: %s", msg, e.Err, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	default:
		return msg
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindRetryable
}

// IsRetryable reports whether err is an *Error of kind KindRetryable.
func IsRetryable(err error) bool {
	var exErr *Error
	return errors.As(err, &exErr) && exErr.Retryable()
}

// ProviderCode returns the OAuth error code carried by err, if any.
func ProviderCode(err error) string {
	var exErr *Error
	if errors.As(err, &exErr) {
		return exErr.Code
	}
	return ""
}

func fatal(cause error) *Error {
	return &Error{Kind: KindFatal, Err: cause}
}

func retryable(cause error) *Error {
	return &Error{Kind: KindRetryable, Err: cause}
}
