package exchange

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/giantswarm/x-oauth2/instrumentation"
	"github.com/giantswarm/x-oauth2/internal/testutil"
	"github.com/giantswarm/x-oauth2/pkce"
	"github.com/giantswarm/x-oauth2/providers"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestClient(t *testing.T, endpoint oauth2.Endpoint, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		Identity: testutil.TestIdentity(),
		Endpoint: endpoint,
		Logger:   quietLogger,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	client, err := New(cfg)
	require.NoError(t, err)
	return client
}

func TestNew_Validation(t *testing.T) {
	identity := testutil.TestIdentity()
	endpoint := oauth2.Endpoint{TokenURL: "https://api.x.com/2/oauth2/token"}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Identity: identity, Endpoint: endpoint}, false},
		{"missing client id", Config{Identity: providers.ClientIdentity{RedirectURI: identity.RedirectURI}, Endpoint: endpoint}, true},
		{"bad redirect", Config{Identity: providers.ClientIdentity{ClientID: "id", RedirectURI: "not a url"}, Endpoint: endpoint}, true},
		{"missing token url", Config{Identity: identity}, true},
		{"relative token url", Config{Identity: identity, Endpoint: oauth2.Endpoint{TokenURL: "/token"}}, true},
		{"negative timeout", Config{Identity: identity, Endpoint: endpoint, AttemptTimeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	client := newTestClient(t, oauth2.Endpoint{TokenURL: "https://api.x.com/2/oauth2/token"})
	assert.Equal(t, DefaultAttemptTimeout, client.AttemptTimeout())
	assert.Equal(t, oauth2.AuthStyleInHeader, client.authStyle)
}

func TestExchange_Success(t *testing.T) {
	server := testutil.NewTokenServer(t, testutil.SuccessResponse("access-123"))
	client := newTestClient(t, server.Endpoint())
	pair := testutil.GeneratePKCEPair()
	code := testutil.GenerateRandomString(32)

	token, err := client.Exchange(context.Background(), code, pair.Verifier)
	require.NoError(t, err)

	assert.Equal(t, "access-123", token.AccessToken)
	assert.Equal(t, "test-refresh-token", token.RefreshToken)
	assert.Equal(t, "bearer", token.TokenType)
	assert.Equal(t, 2*time.Hour, token.ExpiresIn)
	assert.Equal(t, []string{"tweet.read", "users.read", "offline.access"}, token.Scopes)

	require.Equal(t, 1, server.Calls())
	req := server.Requests()[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
	assert.Equal(t, "authorization_code", req.Form.Get("grant_type"))
	assert.Equal(t, code, req.Form.Get("code"))
	assert.Equal(t, "http://localhost:8000/callback", req.Form.Get("redirect_uri"))
	assert.Equal(t, string(pair.Verifier), req.Form.Get("code_verifier"))
	assert.Equal(t, "test-client-id", req.Form.Get("client_id"))
	assert.Empty(t, req.Form.Get("client_secret"))

	id, secret, ok := (&http.Request{Header: req.Header}).BasicAuth()
	require.True(t, ok, "expected HTTP Basic credentials")
	assert.Equal(t, "test-client-id", id)
	assert.Equal(t, "test-client-secret", secret)
}

func TestExchange_ClientAuthentication(t *testing.T) {
	t.Run("credentials are form-escaped before basic encoding", func(t *testing.T) {
		server := testutil.NewTokenServer(t)
		client := newTestClient(t, server.Endpoint(), func(c *Config) {
			c.Identity.ClientID = "id with space"
			c.Identity.ClientSecret = "s3cr&t"
		})
		_, err := client.Exchange(context.Background(), "code", testutil.GeneratePKCEPair().Verifier)
		require.NoError(t, err)

		id, secret, ok := (&http.Request{Header: server.Requests()[0].Header}).BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "id+with+space", id)
		assert.Equal(t, "s3cr%26t", secret)
	})

	t.Run("params style", func(t *testing.T) {
		server := testutil.NewTokenServer(t)
		endpoint := server.Endpoint()
		endpoint.AuthStyle = oauth2.AuthStyleInParams
		client := newTestClient(t, endpoint)
		_, err := client.Exchange(context.Background(), "code", testutil.GeneratePKCEPair().Verifier)
		require.NoError(t, err)

		req := server.Requests()[0]
		assert.Empty(t, req.Header.Get("Authorization"))
		assert.Equal(t, "test-client-secret", req.Form.Get("client_secret"))
		assert.Equal(t, "test-client-id", req.Form.Get("client_id"))
	})

	t.Run("public client", func(t *testing.T) {
		server := testutil.NewTokenServer(t)
		client := newTestClient(t, server.Endpoint(), func(c *Config) {
			c.Identity.ClientSecret = ""
		})
		_, err := client.Exchange(context.Background(), "code", testutil.GeneratePKCEPair().Verifier)
		require.NoError(t, err)

		req := server.Requests()[0]
		assert.Empty(t, req.Header.Get("Authorization"))
		assert.Empty(t, req.Form.Get("client_secret"))
	})
}

func TestExchange_Classification(t *testing.T) {
	tests := []struct {
		name      string
		response  testutil.TokenResponse
		retryable bool
		cause     error
		code      string
	}{
		{
			name:      "empty 200",
			response:  testutil.TokenResponse{Status: http.StatusOK},
			retryable: true,
			cause:     ErrEmptyResponse,
		},
		{
			name:     "invalid json",
			response: testutil.TokenResponse{Status: http.StatusOK, Body: "<html>oops</html>"},
			cause:    ErrMalformedResponse,
		},
		{
			name:     "missing access token",
			response: testutil.TokenResponse{Status: http.StatusOK, Body: `{"token_type":"bearer","expires_in":7200}`},
			cause:    ErrMalformedResponse,
		},
		{
			name:     "missing token type",
			response: testutil.TokenResponse{Status: http.StatusOK, Body: `{"access_token":"a","expires_in":7200}`},
			cause:    ErrMalformedResponse,
		},
		{
			name:     "missing expires_in",
			response: testutil.TokenResponse{Status: http.StatusOK, Body: `{"access_token":"a","token_type":"bearer"}`},
			cause:    ErrMalformedResponse,
		},
		{
			name:     "fractional expires_in",
			response: testutil.TokenResponse{Status: http.StatusOK, Body: `{"access_token":"a","token_type":"bearer","expires_in":1.5}`},
			cause:    ErrMalformedResponse,
		},
		{
			name:     "expires_in beyond duration range",
			response: testutil.TokenResponse{Status: http.StatusOK, Body: `{"access_token":"a","token_type":"bearer","expires_in":10000000000000}`},
			cause:    ErrMalformedResponse,
		},
		{
			name:     "error member on 200",
			response: testutil.ErrorResponse(http.StatusOK, ErrorCodeInvalidGrant, "code expired"),
			cause:    ErrProviderError,
			code:     ErrorCodeInvalidGrant,
		},
		{
			name:     "invalid_grant",
			response: testutil.ErrorResponse(http.StatusBadRequest, ErrorCodeInvalidGrant, "Value passed for the authorization code was invalid."),
			cause:    ErrProviderError,
			code:     ErrorCodeInvalidGrant,
		},
		{
			name:     "invalid_client",
			response: testutil.ErrorResponse(http.StatusUnauthorized, ErrorCodeInvalidClient, "Missing valid authorization header"),
			cause:    ErrProviderError,
			code:     ErrorCodeInvalidClient,
		},
		{
			name:     "invalid_request",
			response: testutil.ErrorResponse(http.StatusBadRequest, ErrorCodeInvalidRequest, ""),
			cause:    ErrProviderError,
			code:     ErrorCodeInvalidRequest,
		},
		{
			name:     "4xx without oauth body",
			response: testutil.TokenResponse{Status: http.StatusForbidden, Body: "forbidden"},
			cause:    ErrUnexpectedStatus,
		},
		{
			name:      "408",
			response:  testutil.TokenResponse{Status: http.StatusRequestTimeout},
			retryable: true,
			cause:     ErrUnexpectedStatus,
		},
		{
			name:      "429",
			response:  testutil.TokenResponse{Status: http.StatusTooManyRequests, Headers: map[string]string{"Retry-After": "1"}},
			retryable: true,
			cause:     ErrUnexpectedStatus,
		},
		{
			name:      "500",
			response:  testutil.TokenResponse{Status: http.StatusInternalServerError, Body: "internal"},
			retryable: true,
			cause:     ErrUnexpectedStatus,
		},
		{
			name:      "503 with oauth body",
			response:  testutil.ErrorResponse(http.StatusServiceUnavailable, ErrorCodeTemporarilyUnavailable, "try later"),
			retryable: true,
			cause:     ErrProviderError,
			code:      ErrorCodeTemporarilyUnavailable,
		},
		{
			name:     "3xx",
			response: testutil.TokenResponse{Status: http.StatusNotModified},
			cause:    ErrUnexpectedStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testutil.NewTokenServer(t, tt.response)
			client := newTestClient(t, server.Endpoint())

			token, err := client.Exchange(context.Background(), "code", testutil.GeneratePKCEPair().Verifier)
			require.Error(t, err)
			assert.Nil(t, token)

			var exErr *Error
			require.ErrorAs(t, err, &exErr)
			assert.Equal(t, tt.retryable, exErr.Retryable())
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.ErrorIs(t, err, tt.cause)
			assert.Equal(t, tt.code, ProviderCode(err))
			assert.Equal(t, tt.response.Status, exErr.StatusCode)
			assert.NotNil(t, exErr.Header)
		})
	}
}

func TestExchange_ProviderErrorDetails(t *testing.T) {
	server := testutil.NewTokenServer(t, testutil.TokenResponse{
		Status:  http.StatusBadRequest,
		Body:    `{"error":"invalid_grant","error_description":"code expired","error_uri":"https://docs.x.com/oauth"}`,
		Headers: map[string]string{"X-Transaction-Id": "abc"},
	})
	client := newTestClient(t, server.Endpoint())

	_, err := client.Exchange(context.Background(), "code", testutil.GeneratePKCEPair().Verifier)

	var exErr *Error
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, KindFatal, exErr.Kind)
	assert.Equal(t, "code expired", exErr.Description)
	assert.Equal(t, "https://docs.x.com/oauth", exErr.URI)
	assert.Equal(t, "abc", exErr.Header.Get("X-Transaction-Id"))
	assert.Equal(t, "token exchange failed (HTTP 400): invalid_grant: code expired", exErr.Error())
}

func TestExchange_FormEncodedResponse(t *testing.T) {
	server := testutil.NewTokenServer(t, testutil.TokenResponse{
		Status:  http.StatusOK,
		Body:    "access_token=form-token&token_type=bearer&expires_in=60&scope=tweet.read",
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	})
	client := newTestClient(t, server.Endpoint())

	token, err := client.Exchange(context.Background(), "code", testutil.GeneratePKCEPair().Verifier)
	require.NoError(t, err)
	assert.Equal(t, "form-token", token.AccessToken)
	assert.Equal(t, time.Minute, token.ExpiresIn)
	assert.Equal(t, []string{"tweet.read"}, token.Scopes)
}

func TestExchange_ExpiresInAsString(t *testing.T) {
	server := testutil.NewTokenServer(t, testutil.TokenResponse{
		Status: http.StatusOK,
		Body:   `{"access_token":"a","token_type":"bearer","expires_in":"3600"}`,
	})
	client := newTestClient(t, server.Endpoint())

	token, err := client.Exchange(context.Background(), "code", testutil.GeneratePKCEPair().Verifier)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, token.ExpiresIn)
	assert.Empty(t, token.RefreshToken)
}

func TestExchange_ExpiresInUpperBound(t *testing.T) {
	server := testutil.NewTokenServer(t, testutil.TokenResponse{
		Status: http.StatusOK,
		Body:   `{"access_token":"a","token_type":"bearer","expires_in":9223372036}`,
	})
	client := newTestClient(t, server.Endpoint())

	token, err := client.Exchange(context.Background(), "code", testutil.GeneratePKCEPair().Verifier)
	require.NoError(t, err)
	assert.Equal(t, 9223372036*time.Second, token.ExpiresIn)
	assert.Positive(t, token.ExpiresIn)
}

func TestExchange_InvalidInput(t *testing.T) {
	server := testutil.NewTokenServer(t)
	client := newTestClient(t, server.Endpoint())

	t.Run("missing code", func(t *testing.T) {
		_, err := client.Exchange(context.Background(), "", testutil.GeneratePKCEPair().Verifier)
		assert.ErrorIs(t, err, ErrMissingCode)
		assert.False(t, IsRetryable(err))
	})

	t.Run("short verifier", func(t *testing.T) {
		_, err := client.Exchange(context.Background(), "code", pkce.Verifier("short"))
		assert.ErrorIs(t, err, pkce.ErrInvalidVerifier)
		assert.False(t, IsRetryable(err))
	})

	assert.Equal(t, 0, server.Calls())
}

func TestExchange_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := oauth2.Endpoint{TokenURL: server.URL + "/token"}
	server.Close()

	client := newTestClient(t, endpoint)
	_, err := client.Exchange(context.Background(), "code", testutil.GeneratePKCEPair().Verifier)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.True(t, IsRetryable(err))

	var exErr *Error
	require.ErrorAs(t, err, &exErr)
	assert.Zero(t, exErr.StatusCode)
}

func TestExchange_AttemptTimeout(t *testing.T) {
	server := testutil.NewTokenServer(t, testutil.TokenResponse{Delay: 5 * time.Second})
	client := newTestClient(t, server.Endpoint(), func(c *Config) {
		c.AttemptTimeout = 50 * time.Millisecond
	})

	start := time.Now()
	_, err := client.Exchange(context.Background(), "code", testutil.GeneratePKCEPair().Verifier)
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Error(t, err)
	assert.True(t, IsRetryable(err), "per-attempt timeout must be retryable, got %v", err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExchange_CallerCanceled(t *testing.T) {
	server := testutil.NewTokenServer(t, testutil.TokenResponse{Delay: 5 * time.Second})
	client := newTestClient(t, server.Endpoint())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Exchange(ctx, "code", testutil.GeneratePKCEPair().Verifier)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, IsRetryable(err), "caller abandonment is not retryable")

	var exErr *Error
	assert.False(t, errors.As(err, &exErr))
}

func TestExchange_RateLimiter(t *testing.T) {
	server := testutil.NewTokenServer(t)
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	client := newTestClient(t, server.Endpoint(), func(c *Config) {
		c.Limiter = limiter
	})

	_, err := client.Exchange(context.Background(), "code", testutil.GeneratePKCEPair().Verifier)
	require.NoError(t, err)

	// the bucket is empty; the next wait cannot finish before the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Exchange(ctx, "code", testutil.GeneratePKCEPair().Verifier)
	require.Error(t, err)
	assert.Equal(t, 1, server.Calls())
}

func TestExchange_LargeBodyIsBounded(t *testing.T) {
	server := testutil.NewTokenServer(t, testutil.TokenResponse{
		Status: http.StatusBadGateway,
		Body:   strings.Repeat("x", 2*maxResponseBodySize),
	})
	client := newTestClient(t, server.Endpoint())

	_, err := client.Exchange(context.Background(), "code", testutil.GeneratePKCEPair().Verifier)

	var exErr *Error
	require.ErrorAs(t, err, &exErr)
	assert.True(t, exErr.Retryable())
	assert.LessOrEqual(t, len(exErr.Body), maxBodySummaryLength+len("..."))
}

func TestExchange_Instrumentation(t *testing.T) {
	tel := testutil.NewTelemetry(t)
	server := testutil.NewTokenServer(t,
		testutil.TokenResponse{Status: http.StatusInternalServerError},
		testutil.SuccessResponse("ok"),
	)
	client := newTestClient(t, server.Endpoint(), func(c *Config) {
		c.Instrumentation = tel.Instrumentation
	})

	_, err := client.Exchange(context.Background(), "code", testutil.GeneratePKCEPair().Verifier)
	require.Error(t, err)
	_, err = client.Exchange(context.Background(), "code", testutil.GeneratePKCEPair().Verifier)
	require.NoError(t, err)

	assert.Equal(t, []string{"oauth.exchange.attempt", "oauth.exchange.attempt"}, tel.SpanNames())
	assert.Equal(t, int64(2), tel.Counter(t, instrumentation.MetricExchangeAttempts))
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"bare", &Error{}, "token exchange failed"},
		{"status and code", &Error{StatusCode: 400, Code: "invalid_grant"}, "token exchange failed (HTTP 400): invalid_grant"},
		{"cause and body", &Error{StatusCode: 502, Err: ErrUnexpectedStatus, Body: "bad gateway"}, "token exchange failed (HTTP 502): unexpected token endpoint status: bad gateway"},
		{"cause only", &Error{Err: ErrEmptyResponse}, "token exchange failed: empty token response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "fatal", KindFatal.String())
	assert.Equal(t, "retryable", KindRetryable.String())
	assert.Equal(t, "unknown", Kind(7).String())
}
