package oauth

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/giantswarm/x-oauth2/exchange"
	"github.com/giantswarm/x-oauth2/instrumentation"
	"github.com/giantswarm/x-oauth2/providers"
	"github.com/giantswarm/x-oauth2/providers/x"
	"github.com/giantswarm/x-oauth2/retry"
)

// DefaultAttemptTimeout bounds a single token request.
const DefaultAttemptTimeout = exchange.DefaultAttemptTimeout

// Config holds the client configuration
// Structured using composition for better organization and maintainability
type Config struct {
	// ClientID is the X OAuth 2.0 client ID (required).
	ClientID string

	// ClientSecret is the X OAuth 2.0 client secret.
	// Leave empty for public clients.
	ClientSecret string

	// RedirectURI is the registered callback URL (required).
	RedirectURI string

	// Scopes requested in every authorization URL (required).
	// Use x.AllScopes() to request everything.
	Scopes []x.Scope

	// Provider overrides the authorization server.
	// Default: X (x.NewProvider())
	Provider providers.Provider

	// Retry is the retry policy for token exchange.
	// Zero value uses retry.DefaultConfig().
	Retry retry.Config

	// AttemptTimeout bounds each token request.
	// Default: 10 seconds
	AttemptTimeout time.Duration

	// RateLimit paces token requests made through this client.
	RateLimit RateLimitConfig

	// Entropy is the randomness source for PKCE verifiers.
	// Default: crypto/rand
	Entropy io.Reader

	// Observer receives every token exchange attempt outcome (optional).
	Observer retry.Observer

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// HTTPClient is a custom HTTP client for token requests
	// If not provided, a new client is created
	// Share one client between Clients to share the connection pool
	HTTPClient *http.Client

	// Instrumentation for OpenTelemetry spans and metrics (optional)
	Instrumentation *instrumentation.Instrumentation
}

// RateLimitConfig holds token endpoint rate limiting configuration
type RateLimitConfig struct {
	// Rate is token requests per second. Zero disables limiting.
	Rate float64

	// Burst is the maximum burst size. Defaults to 1 when Rate is set.
	Burst int
}

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	if c.Provider == nil {
		c.Provider = x.NewProvider()
	}
	if c.Retry == (retry.Config{}) {
		c.Retry = retry.DefaultConfig()
	}
	if c.AttemptTimeout == 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.RateLimit.Rate > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// identity returns the client identity described by the config.
func (c *Config) identity() providers.ClientIdentity {
	return providers.ClientIdentity{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURI:  c.RedirectURI,
	}
}

// scopeStrings returns the configured scopes in vocabulary order.
func (c *Config) scopeStrings() []string {
	return x.NewScopeSet(c.Scopes...).Strings()
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if err := c.identity().Validate(); err != nil {
		return err
	}
	if len(c.Scopes) == 0 {
		return ErrNoScopes
	}
	for _, s := range c.Scopes {
		if !s.Valid() {
			return fmt.Errorf("%w: %q", x.ErrUnknownScope, s)
		}
	}
	if err := c.Retry.Validate(); err != nil {
		return err
	}
	if c.AttemptTimeout < 0 {
		return fmt.Errorf("attempt timeout must not be negative, got %s", c.AttemptTimeout)
	}
	if c.RateLimit.Rate < 0 {
		return fmt.Errorf("rate limit must not be negative, got %g", c.RateLimit.Rate)
	}
	return nil
}
