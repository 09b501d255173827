package testutil

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/giantswarm/x-oauth2/instrumentation"
	"github.com/giantswarm/x-oauth2/pkce"
	"github.com/giantswarm/x-oauth2/providers"
)

// TestIdentity returns a confidential client identity
func TestIdentity() providers.ClientIdentity {
	return providers.ClientIdentity{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURI:  "http://localhost:8000/callback",
	}
}

// GenerateRandomString generates a random base64url string of the given length
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}

// GeneratePKCEPair returns a fresh verifier/challenge pair.
func GeneratePKCEPair() pkce.Pair {
	return pkce.Generate()
}

// Telemetry gives tests access to recorded spans and metrics.
type Telemetry struct {
	Instrumentation *instrumentation.Instrumentation
	Reader          *sdkmetric.ManualReader
	Spans           *tracetest.SpanRecorder
}

// NewTelemetry creates enabled instrumentation backed by in-memory exporters.
func NewTelemetry(t *testing.T) *Telemetry {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	spans := tracetest.NewSpanRecorder()
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	inst, err := instrumentation.New(instrumentation.Config{
		Enabled:        true,
		MeterProvider:  meterProvider,
		TracerProvider: tracerProvider,
	})
	if err != nil {
		t.Fatalf("instrumentation.New() error = %v", err)
	}
	inst.RegisterShutdown(meterProvider.Shutdown)
	inst.RegisterShutdown(tracerProvider.Shutdown)
	t.Cleanup(func() { _ = inst.Shutdown(context.Background()) })

	return &Telemetry{Instrumentation: inst, Reader: reader, Spans: spans}
}

// SpanNames returns the names of ended spans in end order.
func (tel *Telemetry) SpanNames() []string {
	var names []string
	for _, s := range tel.Spans.Ended() {
		names = append(names, s.Name())
	}
	return names
}

// Counter returns the summed value of an int64 counter, 0 when absent.
func (tel *Telemetry) Counter(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := tel.Reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is %T, want Sum[int64]", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}
