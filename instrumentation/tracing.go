package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span and metric attribute keys
//
// SECURITY WARNING: Never record actual sensitive values (access tokens, refresh tokens,
// authorization codes, client secrets, PKCE verifiers) in traces or metrics. Only record
// metadata such as token types, expiry times and outcomes.
const (
	// OAuth flow attributes - SAFE to use for metadata only
	AttrClientID     = "oauth.client_id"     // Client identifier (non-secret)
	AttrScope        = "oauth.scope"         // Requested or granted scopes
	AttrPKCEMethod   = "oauth.pkce.method"   // PKCE method used (S256)
	AttrGrantType    = "oauth.grant_type"    // OAuth grant type
	AttrResponseType = "oauth.response_type" // OAuth response type
	AttrAuthStyle    = "oauth.auth_style"    // Client authentication style (header, params)
	AttrTokenType    = "oauth.token_type"    //nolint:gosec // Token type (bearer) - NOT the actual token
	AttrExpiresIn    = "oauth.expires_in"    // Token lifetime in seconds
	AttrRefreshToken = "oauth.refresh_token_present"
	AttrError        = "oauth.error"             // Error code
	AttrErrorDesc    = "oauth.error_description" // Error description

	// Provider attributes
	AttrProviderName = "provider.name"

	// Exchange attempt attributes
	AttrAttemptOutcome = "oauth.exchange.outcome" // success, retryable, fatal, canceled

	// Retry engine attributes
	AttrRetryAttempt  = "oauth.retry.attempt"
	AttrRetryAttempts = "oauth.retry.attempts"
	AttrRetryState    = "oauth.retry.state"
	AttrRetryDelayMs  = "oauth.retry.delay_ms"

	// HTTP attributes (in addition to standard semantic conventions)
	AttrHTTPEndpoint   = "http.endpoint"
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddOAuthFlowAttributes adds common OAuth flow attributes to a span (nil-safe)
func AddOAuthFlowAttributes(span trace.Span, clientID, scope string) {
	if clientID != "" {
		SetSpanAttributes(span, attribute.String(AttrClientID, clientID))
	}
	if scope != "" {
		SetSpanAttributes(span, attribute.String(AttrScope, scope))
	}
}

// AddPKCEAttributes adds PKCE-related attributes to a span (nil-safe)
func AddPKCEAttributes(span trace.Span, method string) {
	if method != "" {
		SetSpanAttributes(span, attribute.String(AttrPKCEMethod, method))
	}
}

// AddHTTPAttributes adds HTTP request attributes to a span (nil-safe)
func AddHTTPAttributes(span trace.Span, method, endpoint string, statusCode int) {
	SetSpanAttributes(span,
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPEndpoint, endpoint),
		attribute.Int(AttrHTTPStatusCode, statusCode),
	)
}

// AddRetryAttributes adds retry engine attributes to a span (nil-safe)
func AddRetryAttributes(span trace.Span, state string, attempts int) {
	SetSpanAttributes(span,
		attribute.String(AttrRetryState, state),
		attribute.Int(AttrRetryAttempts, attempts),
	)
}
