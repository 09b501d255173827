// Package authorize builds authorization endpoint URLs for the OAuth 2.0
// authorization code flow with PKCE.
package authorize

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/giantswarm/x-oauth2/pkce"
	"github.com/giantswarm/x-oauth2/providers"
)

// ResponseTypeCode is the only response type used by this flow.
const ResponseTypeCode = "code"

// Construction errors. They are returned synchronously and never retried.
var (
	// ErrInvalidRedirectURI aliases providers.ErrInvalidRedirectURI so callers
	// can match it without importing providers.
	ErrInvalidRedirectURI = providers.ErrInvalidRedirectURI

	// ErrInvalidScope is returned for an empty, duplicated or unknown scope.
	ErrInvalidScope = errors.New("invalid scope")

	// ErrMissingState is returned when no anti-forgery state is supplied.
	ErrMissingState = errors.New("state is required")

	// ErrInvalidChallenge is returned when the code challenge is empty.
	ErrInvalidChallenge = errors.New("code challenge is required")
)

// Request holds everything that goes into one authorization URL.
type Request struct {
	// Identity is the client identity; only the ID and redirect URI are used.
	Identity providers.ClientIdentity

	// Scopes are the requested scopes, serialized space-delimited in order.
	Scopes []string

	// State is the opaque anti-CSRF value echoed back on the callback.
	State string

	// Challenge is the S256 PKCE challenge.
	Challenge pkce.Challenge
}

// Validate checks the request against the provider.
func (r Request) Validate(provider providers.Provider) error {
	if err := r.Identity.Validate(); err != nil {
		return err
	}
	if len(r.Scopes) == 0 {
		return fmt.Errorf("%w: at least one scope is required", ErrInvalidScope)
	}
	seen := make(map[string]bool, len(r.Scopes))
	for _, s := range r.Scopes {
		if seen[s] {
			return fmt.Errorf("%w: duplicate scope %q", ErrInvalidScope, s)
		}
		seen[s] = true
	}
	if err := provider.ValidateScopes(r.Scopes); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}
	if r.State == "" {
		return ErrMissingState
	}
	if r.Challenge == "" {
		return ErrInvalidChallenge
	}
	return nil
}

// BuildURL returns the provider's authorization URL for req.
//
// The query carries response_type=code, client_id, redirect_uri, scope, state,
// code_challenge and code_challenge_method=S256. Parameters are percent-encoded
// and sorted by key, so identical inputs always produce identical URLs.
func BuildURL(provider providers.Provider, req Request) (string, error) {
	if err := req.Validate(provider); err != nil {
		return "", err
	}

	config := oauth2.Config{
		ClientID:    req.Identity.ClientID,
		RedirectURL: req.Identity.RedirectURI,
		Scopes:      req.Scopes,
		Endpoint:    provider.Endpoint(),
	}

	return config.AuthCodeURL(req.State,
		oauth2.SetAuthURLParam("code_challenge", string(req.Challenge)),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.MethodS256),
	), nil
}
