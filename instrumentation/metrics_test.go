package instrumentation

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestInstrumentation(t *testing.T) (*Instrumentation, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	inst, err := New(Config{
		Enabled:       true,
		MeterProvider: provider,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	inst.RegisterShutdown(provider.Shutdown)
	t.Cleanup(func() { _ = inst.Shutdown(context.Background()) })
	return inst, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumInt64(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is %T, want Sum[int64]", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordExchangeAttempt(t *testing.T) {
	inst, reader := newTestInstrumentation(t)
	ctx := context.Background()

	tests := []struct {
		outcome    string
		statusCode int
		duration   time.Duration
	}{
		{"success", 200, 120 * time.Millisecond},
		{"retryable", 503, 80 * time.Millisecond},
		{"retryable", 0, 10 * time.Second},
		{"fatal", 400, 40 * time.Millisecond},
	}
	for _, tt := range tests {
		inst.Metrics().RecordExchangeAttempt(ctx, tt.outcome, tt.statusCode, tt.duration)
	}

	metrics := collect(t, reader)
	if got := sumInt64(t, metrics[MetricExchangeAttempts]); got != int64(len(tests)) {
		t.Errorf("%s = %d, want %d", MetricExchangeAttempts, got, len(tests))
	}

	hist, ok := metrics[MetricExchangeDuration].Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("%s is %T, want Histogram[float64]", MetricExchangeDuration, metrics[MetricExchangeDuration].Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != uint64(len(tests)) {
		t.Errorf("%s count = %d, want %d", MetricExchangeDuration, count, len(tests))
	}
}

func TestMetrics_RecordRetryLifecycle(t *testing.T) {
	inst, reader := newTestInstrumentation(t)
	ctx := context.Background()
	m := inst.Metrics()

	m.RecordAuthorizationStarted(ctx, "x")
	m.RecordRetryBackoff(ctx, 1, 100*time.Millisecond)
	m.RecordRetryBackoff(ctx, 2, 200*time.Millisecond)
	m.RecordExchangeCompleted(ctx, "failed_exhausted", 3)

	metrics := collect(t, reader)
	if got := sumInt64(t, metrics[MetricAuthorizationStarted]); got != 1 {
		t.Errorf("%s = %d, want 1", MetricAuthorizationStarted, got)
	}
	if got := sumInt64(t, metrics[MetricExchangeCompleted]); got != 1 {
		t.Errorf("%s = %d, want 1", MetricExchangeCompleted, got)
	}

	hist, ok := metrics[MetricRetryBackoff].Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("%s is %T, want Histogram[float64]", MetricRetryBackoff, metrics[MetricRetryBackoff].Data)
	}
	var total float64
	for _, dp := range hist.DataPoints {
		total += dp.Sum
	}
	if total != 300 {
		t.Errorf("%s sum = %v, want 300", MetricRetryBackoff, total)
	}
}

func TestMetrics_NoOpBehavior(t *testing.T) {
	inst, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	// Should not panic with no-op providers
	inst.Metrics().RecordAuthorizationStarted(ctx, "x")
	inst.Metrics().RecordExchangeAttempt(ctx, "fatal", 401, time.Millisecond)
	inst.Metrics().RecordRetryBackoff(ctx, 1, time.Millisecond)
	inst.Metrics().RecordExchangeCompleted(ctx, "succeeded", 1)
}
