// Package instrumentation provides OpenTelemetry (OTEL) instrumentation for the x-oauth2 module.
//
// Components accept an optional *Instrumentation. When none is configured, or
// when Config.Enabled is false, no-op providers are used and recording has no cost.
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-x-bot",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//		MeterProvider:  meterProvider,  // optional, defaults to otel.GetMeterProvider()
//		TracerProvider: tracerProvider, // optional, defaults to otel.GetTracerProvider()
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
// # Available Metrics
//
//   - oauth.authorization.started{provider.name} - Authorization URLs issued
//   - oauth.exchange.attempts{oauth.exchange.outcome, http.status_code} - Token endpoint attempts
//   - oauth.exchange.duration{oauth.exchange.outcome, http.status_code} - Attempt duration in milliseconds
//   - oauth.retry.backoff{oauth.retry.attempt} - Backoff slept before an attempt in milliseconds
//   - oauth.exchange.completed{oauth.retry.state, oauth.retry.attempts} - Finished retry loops
//
// # Distributed Tracing
//
//	oauth.exchange                  (retry loop, one per Exchange call)
//	├── oauth.exchange.attempt      (one per HTTP attempt)
//	├── oauth.exchange.attempt
//	└── oauth.exchange.attempt
//
// # Security Considerations
//
// Never record token values, authorization codes, client secrets or PKCE
// verifiers. Only metadata (token type, expiry, outcome, status code) is recorded.
package instrumentation
