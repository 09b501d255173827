package oauth

import (
	"errors"

	"github.com/giantswarm/x-oauth2/exchange"
	"github.com/giantswarm/x-oauth2/retry"
)

// Configuration and callback errors.
var (
	// ErrNoScopes is returned when a client is configured without scopes.
	ErrNoScopes = errors.New("at least one scope is required")

	// ErrStateMismatch is returned when the callback state differs from the
	// state the authorization URL was issued with.
	ErrStateMismatch = errors.New("state mismatch")

	// ErrMissingCode is returned when the callback carries no code.
	ErrMissingCode = errors.New("authorization code missing from callback")
)

// Terminal exchange outcomes, matched with errors.Is on Client.Exchange errors.
var (
	ErrFatal     = retry.ErrFatal
	ErrExhausted = retry.ErrExhausted
	ErrTimeout   = retry.ErrTimeout
	ErrCanceled  = retry.ErrCanceled
)

// CallbackError is an error reported by the authorization server on the
// redirect (for example access_denied when the user declines).
type CallbackError struct {
	Code        string // OAuth error code (e.g., "access_denied")
	Description string // Human-readable error description
	URI         string // Optional error_uri
}

// Error implements the error interface
func (e *CallbackError) Error() string {
	if e.Description == "" {
		return "authorization failed: " + e.Code
	}
	return "authorization failed: " + e.Code + ": " + e.Description
}

// ErrorCode returns the OAuth error code carried by err, if any.
func ErrorCode(err error) string {
	var cbErr *CallbackError
	if errors.As(err, &cbErr) {
		return cbErr.Code
	}
	return exchange.ProviderCode(err)
}
