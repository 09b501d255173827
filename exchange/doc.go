// Package exchange performs a single OAuth 2.0 authorization code exchange
// against a token endpoint and classifies the outcome.
//
// Every failed attempt is returned as *Error whose Retryable method tells the
// retry engine whether another attempt may succeed:
//
//   - 2xx with a valid token body: success
//   - 2xx with an empty body: retryable
//   - 2xx with an unparseable body or an OAuth error member: fatal
//   - 408 and 429: retryable
//   - other 4xx: fatal (invalid_grant, invalid_client, ...)
//   - 5xx: retryable
//   - transport failures and per-attempt timeouts: retryable
//
// When the caller's context is done the context error is returned as is.
//
// Example usage:
//
//	client, err := exchange.New(exchange.Config{
//	    Identity: identity,
//	    Endpoint: x.Endpoint,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	token, err := client.Exchange(ctx, code, verifier)
//
// Client performs exactly one attempt per call. Wrap it with the retry package
// for backoff and an overall deadline.
package exchange
