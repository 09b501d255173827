package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/giantswarm/x-oauth2/authorize"
	"github.com/giantswarm/x-oauth2/exchange"
	"github.com/giantswarm/x-oauth2/instrumentation"
	"github.com/giantswarm/x-oauth2/pkce"
	"github.com/giantswarm/x-oauth2/providers"
	"github.com/giantswarm/x-oauth2/retry"
)

// Client runs the authorization code flow with PKCE against one provider.
// It is safe for concurrent use; no per-flow state is kept between
// AuthorizationURL and Exchange.
type Client struct {
	provider  providers.Provider
	identity  providers.ClientIdentity
	scopes    []string
	pkce      *pkce.Generator
	exchanger *exchange.Client
	engine    *retry.Engine
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *instrumentation.Metrics
}

// NewClient validates cfg, applies defaults and creates a client.
func NewClient(cfg Config) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	scopes := cfg.scopeStrings()
	if err := cfg.Provider.ValidateScopes(scopes); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.Rate), cfg.RateLimit.Burst)
	}

	exchanger, err := exchange.New(exchange.Config{
		Identity:        cfg.identity(),
		Endpoint:        cfg.Provider.Endpoint(),
		HTTPClient:      cfg.HTTPClient,
		AttemptTimeout:  cfg.AttemptTimeout,
		Limiter:         limiter,
		Logger:          cfg.Logger,
		Instrumentation: cfg.Instrumentation,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token exchange client: %w", err)
	}

	engine, err := retry.NewEngine(cfg.Retry,
		retry.WithLogger(cfg.Logger),
		retry.WithObserver(cfg.Observer),
		retry.WithInstrumentation(cfg.Instrumentation),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry engine: %w", err)
	}

	return &Client{
		provider:  cfg.Provider,
		identity:  cfg.identity(),
		scopes:    scopes,
		pkce:      pkce.NewGenerator(cfg.Entropy),
		exchanger: exchanger,
		engine:    engine,
		logger:    cfg.Logger,
		tracer:    instrumentation.TracerOrNoop(cfg.Instrumentation, "oauth"),
		metrics:   instrumentation.MetricsOrNil(cfg.Instrumentation),
	}, nil
}

// NewState returns a random state value for AuthorizationURL.
func NewState() string {
	return uuid.NewString()
}

// Scopes returns the requested scopes in vocabulary order.
func (c *Client) Scopes() []string {
	return append([]string(nil), c.scopes...)
}

// RetryConfig returns the retry policy used by Exchange.
func (c *Client) RetryConfig() retry.Config {
	return c.engine.Config()
}

// AuthorizationURL starts a flow. It returns the URL to send the user to and
// the PKCE verifier the caller must keep until the callback arrives.
func (c *Client) AuthorizationURL(state string) (string, pkce.Verifier, error) {
	return c.AuthorizationURLContext(context.Background(), state)
}

// AuthorizationURLContext is AuthorizationURL with a context for tracing.
func (c *Client) AuthorizationURLContext(ctx context.Context, state string) (string, pkce.Verifier, error) {
	ctx, span := c.tracer.Start(ctx, "oauth.authorize")
	defer span.End()

	pair := c.pkce.Generate()
	authURL, err := authorize.BuildURL(c.provider, authorize.Request{
		Identity:  c.identity,
		Scopes:    c.scopes,
		State:     state,
		Challenge: pair.Challenge,
	})
	if err != nil {
		instrumentation.RecordError(span, err)
		return "", "", err
	}

	instrumentation.AddOAuthFlowAttributes(span, c.identity.ClientID, strings.Join(c.scopes, " "))
	instrumentation.AddPKCEAttributes(span, pair.Method())
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrResponseType, authorize.ResponseTypeCode),
		attribute.String(instrumentation.AttrProviderName, c.provider.Name()),
	)
	instrumentation.SetSpanSuccess(span)
	c.metrics.RecordAuthorizationStarted(ctx, c.provider.Name())

	c.logger.Debug("Authorization URL issued",
		"provider", c.provider.Name(),
		"client_id", c.identity.ClientID,
		"scopes", len(c.scopes))

	return authURL, pair.Verifier, nil
}

// Exchange trades the authorization code for tokens, retrying transient
// failures according to the retry policy.
//
// Terminal failures match ErrFatal, ErrExhausted, ErrTimeout or ErrCanceled
// with errors.Is and unwrap to the last attempt's *exchange.Error.
func (c *Client) Exchange(ctx context.Context, code string, verifier pkce.Verifier) (*providers.Token, error) {
	token, err := retry.Do(ctx, c.engine, func(ctx context.Context) (*providers.Token, error) {
		return c.exchanger.Exchange(ctx, code, verifier)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Token exchange succeeded",
		"provider", c.provider.Name(),
		"client_id", c.identity.ClientID,
		"token", token)
	return token, nil
}
