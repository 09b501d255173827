package x

import (
	"golang.org/x/oauth2"

	"github.com/giantswarm/x-oauth2/providers"
)

// Compile-time check that Provider implements the providers.Provider interface.
var _ providers.Provider = (*Provider)(nil)

// providerName is the name returned by Provider.Name().
const providerName = "x"

// X OAuth 2.0 endpoints
const (
	AuthorizeURL = "https://x.com/i/oauth2/authorize"
	TokenURL     = "https://api.x.com/2/oauth2/token"
)

// Endpoint is the X OAuth 2.0 endpoint. Confidential clients use HTTP Basic auth.
var Endpoint = oauth2.Endpoint{
	AuthURL:   AuthorizeURL,
	TokenURL:  TokenURL,
	AuthStyle: oauth2.AuthStyleInHeader,
}

// Provider implements the providers.Provider interface for X.
type Provider struct {
	endpoint oauth2.Endpoint
}

// Option configures a Provider.
type Option func(*Provider)

// WithEndpoint overrides the endpoints, typically to point at a test server.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// NewProvider creates a new X provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{endpoint: Endpoint}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Endpoint returns the configured endpoints.
func (p *Provider) Endpoint() oauth2.Endpoint {
	return p.endpoint
}

// ValidateScopes checks every scope against the X vocabulary.
func (p *Provider) ValidateScopes(scopes []string) error {
	_, err := ParseScopes(scopes...)
	return err
}
