package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/giantswarm/x-oauth2/instrumentation"
	"github.com/giantswarm/x-oauth2/pkce"
	"github.com/giantswarm/x-oauth2/providers"
)

const (
	// GrantTypeAuthorizationCode is the grant type sent to the token endpoint.
	GrantTypeAuthorizationCode = "authorization_code"

	// DefaultAttemptTimeout bounds a single HTTP attempt.
	DefaultAttemptTimeout = 10 * time.Second

	// maxResponseBodySize caps how much of a token response is read.
	maxResponseBodySize = 1 << 20
)

// Attempt outcome labels used in logs, spans and metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeRetryable = "retryable"
	OutcomeFatal     = "fatal"
	OutcomeCanceled  = "canceled"
)

// Config holds token exchange configuration.
type Config struct {
	// Identity is the client identity presented to the token endpoint (required).
	Identity providers.ClientIdentity

	// Endpoint supplies TokenURL and AuthStyle (required).
	// AuthStyleAutoDetect is treated as AuthStyleInHeader.
	Endpoint oauth2.Endpoint

	// HTTPClient is the shared transport. Defaults to a new client without a
	// client-level timeout; attempts are bounded by AttemptTimeout.
	HTTPClient *http.Client

	// AttemptTimeout bounds each HTTP attempt (default: 10s).
	AttemptTimeout time.Duration

	// Limiter optionally paces requests to the token endpoint. Share one
	// limiter between clients to bound the aggregate request rate.
	Limiter *rate.Limiter

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// Instrumentation for spans and metrics (optional)
	Instrumentation *instrumentation.Instrumentation
}

// Client exchanges authorization codes for tokens. It holds no per-exchange
// state and is safe for concurrent use.
type Client struct {
	identity       providers.ClientIdentity
	tokenURL       string
	authStyle      oauth2.AuthStyle
	httpClient     *http.Client
	attemptTimeout time.Duration
	limiter        *rate.Limiter
	logger         *slog.Logger
	tracer         trace.Tracer
	metrics        *instrumentation.Metrics
}

// New creates a new token exchange client.
func New(cfg Config) (*Client, error) {
	if err := cfg.Identity.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client identity: %w", err)
	}
	if cfg.Endpoint.TokenURL == "" {
		return nil, fmt.Errorf("token URL is required")
	}
	u, err := url.Parse(cfg.Endpoint.TokenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid token URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("token URL %q is not an absolute URL", cfg.Endpoint.TokenURL)
	}
	if cfg.AttemptTimeout < 0 {
		return nil, fmt.Errorf("attempt timeout must not be negative, got %s", cfg.AttemptTimeout)
	}

	attemptTimeout := cfg.AttemptTimeout
	if attemptTimeout == 0 {
		attemptTimeout = DefaultAttemptTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authStyle := cfg.Endpoint.AuthStyle
	if authStyle == oauth2.AuthStyleAutoDetect {
		authStyle = oauth2.AuthStyleInHeader
	}

	return &Client{
		identity:       cfg.Identity,
		tokenURL:       cfg.Endpoint.TokenURL,
		authStyle:      authStyle,
		httpClient:     httpClient,
		attemptTimeout: attemptTimeout,
		limiter:        cfg.Limiter,
		logger:         logger,
		tracer:         instrumentation.TracerOrNoop(cfg.Instrumentation, "exchange"),
		metrics:        instrumentation.MetricsOrNil(cfg.Instrumentation),
	}, nil
}

// AttemptTimeout returns the per-attempt timeout.
func (c *Client) AttemptTimeout() time.Duration {
	return c.attemptTimeout
}

// Exchange trades code and verifier for tokens in a single attempt.
//
// Failures are returned as *Error, except when ctx is done: then ctx.Err() is
// returned so callers can tell abandonment apart from provider failures.
func (c *Client) Exchange(ctx context.Context, code string, verifier pkce.Verifier) (*providers.Token, error) {
	ctx, span := c.tracer.Start(ctx, "oauth.exchange.attempt")
	defer span.End()

	instrumentation.AddOAuthFlowAttributes(span, c.identity.ClientID, "")
	instrumentation.AddPKCEAttributes(span, pkce.MethodS256)
	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrGrantType, GrantTypeAuthorizationCode),
		attribute.String(instrumentation.AttrAuthStyle, authStyleName(c.authStyle)),
	)

	start := time.Now()
	token, statusCode, err := c.exchange(ctx, code, verifier)
	duration := time.Since(start)

	outcome := outcomeOf(err)
	c.metrics.RecordExchangeAttempt(ctx, outcome, statusCode, duration)
	instrumentation.AddHTTPAttributes(span, http.MethodPost, c.tokenURL, statusCode)
	instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrAttemptOutcome, outcome))

	if err != nil {
		var exErr *Error
		if errors.As(err, &exErr) && exErr.Code != "" {
			instrumentation.SetSpanAttributes(span, attribute.String(instrumentation.AttrError, exErr.Code))
		}
		instrumentation.RecordError(span, err)
		c.logger.Debug("Token exchange attempt failed",
			"client_id", c.identity.ClientID,
			"outcome", outcome,
			"status", statusCode,
			"duration", duration,
			"error", err)
		return nil, err
	}

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrTokenType, token.TokenType),
		attribute.Int64(instrumentation.AttrExpiresIn, int64(token.ExpiresIn/time.Second)),
		attribute.Bool(instrumentation.AttrRefreshToken, token.RefreshToken != ""),
		attribute.String(instrumentation.AttrScope, token.Scope()),
	)
	instrumentation.SetSpanSuccess(span)
	c.logger.Debug("Token exchange attempt succeeded",
		"client_id", c.identity.ClientID,
		"status", statusCode,
		"duration", duration,
		"token", token)

	return token, nil
}

// exchange performs the HTTP round trip and returns the status code seen.
func (c *Client) exchange(ctx context.Context, code string, verifier pkce.Verifier) (*providers.Token, int, error) {
	if code == "" {
		return nil, 0, fatal(ErrMissingCode)
	}
	if err := pkce.ValidateVerifier(verifier); err != nil {
		return nil, 0, fatal(err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			return nil, 0, retryable(fmt.Errorf("waiting for rate limiter: %w", err))
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := c.newRequest(attemptCtx, code, verifier)
	if err != nil {
		return nil, 0, fatal(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, retryable(fmt.Errorf("%w: %w", ErrTransport, err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, resp.StatusCode, ctx.Err()
		}
		exErr := retryable(fmt.Errorf("%w: reading response: %w", ErrTransport, err))
		exErr.StatusCode = resp.StatusCode
		exErr.Header = resp.Header
		return nil, resp.StatusCode, exErr
	}

	token, err := parseResponse(resp, body)
	return token, resp.StatusCode, err
}

// newRequest builds the token request. client_id is always sent in the body;
// the secret goes in the Authorization header or the body depending on the
// endpoint's auth style. Public clients (no secret) send neither.
func (c *Client) newRequest(ctx context.Context, code string, verifier pkce.Verifier) (*http.Request, error) {
	form := url.Values{
		"grant_type":    {GrantTypeAuthorizationCode},
		"code":          {code},
		"redirect_uri":  {c.identity.RedirectURI},
		"code_verifier": {string(verifier)},
		"client_id":     {c.identity.ClientID},
	}
	if c.authStyle == oauth2.AuthStyleInParams && c.identity.ClientSecret != "" {
		form.Set("client_secret", c.identity.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	if c.authStyle == oauth2.AuthStyleInHeader && c.identity.ClientSecret != "" {
		// RFC 6749 section 2.3.1: credentials are form-encoded before Basic encoding
		req.SetBasicAuth(url.QueryEscape(c.identity.ClientID), url.QueryEscape(c.identity.ClientSecret))
	}
	return req, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case IsRetryable(err):
		return OutcomeRetryable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeFatal
	}
}

func authStyleName(style oauth2.AuthStyle) string {
	if style == oauth2.AuthStyleInParams {
		return "params"
	}
	return "header"
}
