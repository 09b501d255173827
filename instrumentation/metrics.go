package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricAuthorizationStarted = "oauth.authorization.started"
	MetricExchangeAttempts     = "oauth.exchange.attempts"
	MetricExchangeDuration     = "oauth.exchange.duration"
	MetricRetryBackoff         = "oauth.retry.backoff"
	MetricExchangeCompleted    = "oauth.exchange.completed"
)

// Metrics holds all metric instruments for the module
type Metrics struct {
	// Authorization
	AuthorizationStarted metric.Int64Counter

	// Token exchange, one data point per HTTP attempt
	ExchangeAttempts metric.Int64Counter
	ExchangeDuration metric.Float64Histogram

	// Retry engine
	RetryBackoff      metric.Float64Histogram
	ExchangeCompleted metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	authorizeMeter := inst.Meter("authorize")
	exchangeMeter := inst.Meter("exchange")
	retryMeter := inst.Meter("retry")

	var err error
	m.AuthorizationStarted, err = authorizeMeter.Int64Counter(
		MetricAuthorizationStarted,
		metric.WithDescription("Number of authorization URLs issued"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization.started counter: %w", err)
	}

	m.ExchangeAttempts, err = exchangeMeter.Int64Counter(
		MetricExchangeAttempts,
		metric.WithDescription("Number of token exchange HTTP attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create exchange.attempts counter: %w", err)
	}

	m.ExchangeDuration, err = exchangeMeter.Float64Histogram(
		MetricExchangeDuration,
		metric.WithDescription("Token exchange attempt duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create exchange.duration histogram: %w", err)
	}

	m.RetryBackoff, err = retryMeter.Float64Histogram(
		MetricRetryBackoff,
		metric.WithDescription("Backoff delay slept between attempts in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry.backoff histogram: %w", err)
	}

	m.ExchangeCompleted, err = retryMeter.Int64Counter(
		MetricExchangeCompleted,
		metric.WithDescription("Number of retry loops finished by terminal state"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create exchange.completed counter: %w", err)
	}

	return m, nil
}

// RecordAuthorizationStarted records an issued authorization URL (nil-safe)
func (m *Metrics) RecordAuthorizationStarted(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.AuthorizationStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrProviderName, provider),
	))
}

// RecordExchangeAttempt records one token endpoint attempt (nil-safe).
// statusCode is 0 when no HTTP response was received.
func (m *Metrics) RecordExchangeAttempt(ctx context.Context, outcome string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrAttemptOutcome, outcome),
		attribute.Int(AttrHTTPStatusCode, statusCode),
	)
	m.ExchangeAttempts.Add(ctx, 1, attrs)
	m.ExchangeDuration.Record(ctx, float64(duration)/float64(time.Millisecond), attrs)
}

// RecordRetryBackoff records a backoff sleep before the given attempt (nil-safe)
func (m *Metrics) RecordRetryBackoff(ctx context.Context, attempt int, delay time.Duration) {
	if m == nil {
		return
	}
	m.RetryBackoff.Record(ctx, float64(delay)/float64(time.Millisecond), metric.WithAttributes(
		attribute.Int(AttrRetryAttempt, attempt),
	))
}

// RecordExchangeCompleted records the terminal state of a retry loop (nil-safe)
func (m *Metrics) RecordExchangeCompleted(ctx context.Context, state string, attempts int) {
	if m == nil {
		return
	}
	m.ExchangeCompleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrRetryState, state),
		attribute.Int(AttrRetryAttempts, attempts),
	))
}
