package providers

import (
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
)

// Construction errors for client identities.
var (
	// ErrMissingClientID is returned when a ClientIdentity has no client ID.
	ErrMissingClientID = errors.New("client ID is required")

	// ErrInvalidRedirectURI is returned when the redirect URI cannot be parsed
	// or is not an absolute URL.
	ErrInvalidRedirectURI = errors.New("invalid redirect URI")
)

// Provider describes a single OAuth 2.0 authorization server.
type Provider interface {
	// Name returns the provider name (e.g., "x")
	Name() string

	// Endpoint returns the authorization and token endpoints together with the
	// client authentication style the token endpoint expects.
	Endpoint() oauth2.Endpoint

	// ValidateScopes reports an error if any scope is outside the provider's vocabulary.
	ValidateScopes(scopes []string) error
}

// ClientIdentity holds the credentials a client presents to the provider.
// It is an immutable value and is never modified after construction.
type ClientIdentity struct {
	// ClientID is the OAuth 2.0 client identifier (the "client key").
	ClientID string

	// ClientSecret is the client secret. Public clients leave it empty.
	ClientSecret string

	// RedirectURI is the registered callback URL.
	RedirectURI string
}

// Validate checks that the identity can be used to build requests.
func (c ClientIdentity) Validate() error {
	if c.ClientID == "" {
		return ErrMissingClientID
	}
	return ValidateRedirectURI(c.RedirectURI)
}

// ValidateRedirectURI checks that uri parses and is absolute.
func ValidateRedirectURI(uri string) error {
	if uri == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRedirectURI)
	}
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRedirectURI, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidRedirectURI, uri)
	}
	if u.Fragment != "" {
		return fmt.Errorf("%w: %q must not contain a fragment", ErrInvalidRedirectURI, uri)
	}
	return nil
}
