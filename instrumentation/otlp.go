package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DefaultMetricInterval is the default OTLP metric export interval
const DefaultMetricInterval = 15 * time.Second

// OTLPConfig configures OTLP/HTTP export of spans and metrics
type OTLPConfig struct {
	// Endpoint is the collector host:port (e.g., "localhost:4318")
	Endpoint string

	// Insecure disables TLS (for local collectors)
	Insecure bool

	// MetricInterval is the metric export interval (default: 15s)
	MetricInterval time.Duration
}

// NewOTLP creates enabled instrumentation that exports over OTLP/HTTP.
// The exporters are flushed and closed by Shutdown.
func NewOTLP(ctx context.Context, config Config, otlp OTLPConfig) (*Instrumentation, error) {
	if otlp.Endpoint == "" {
		return nil, fmt.Errorf("OTLP endpoint is required")
	}
	if otlp.MetricInterval <= 0 {
		otlp.MetricInterval = DefaultMetricInterval
	}

	traceOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(otlp.Endpoint)}
	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(otlp.Endpoint)}
	if otlp.Insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}

	traceExporter, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	metricExporter, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}
	res, err := newResource(config)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		_ = metricExporter.Shutdown(ctx)
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(otlp.MetricInterval))),
		sdkmetric.WithResource(res),
	)

	config.Enabled = true
	config.Resource = res
	config.TracerProvider = tracerProvider
	config.MeterProvider = meterProvider

	inst, err := New(config)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
		return nil, err
	}
	inst.RegisterShutdown(tracerProvider.Shutdown)
	inst.RegisterShutdown(meterProvider.Shutdown)
	return inst, nil
}
