package instrumentation

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultServiceName is used when Config.ServiceName is empty
	DefaultServiceName = "x-oauth2"

	// DefaultServiceVersion is the default service version used when none is provided
	DefaultServiceVersion = "unknown"

	// instrumentationName prefixes every meter and tracer scope
	instrumentationName = "github.com/giantswarm/x-oauth2/"
)

// Config holds instrumentation configuration
type Config struct {
	// ServiceName is the name of the service (e.g., "x-oauth2", "my-x-bot")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Enabled controls whether instrumentation is active
	// When false, uses no-op providers (zero overhead)
	Enabled bool

	// MeterProvider is used when Enabled is true.
	// If nil, the global provider from otel.GetMeterProvider() is used.
	MeterProvider metric.MeterProvider

	// TracerProvider is used when Enabled is true.
	// If nil, the global provider from otel.GetTracerProvider() is used.
	TracerProvider trace.TracerProvider

	// Resource allows custom resource attributes
	// If nil, default resource is created with service name and version
	Resource *resource.Resource
}

// Instrumentation provides OpenTelemetry instrumentation components
type Instrumentation struct {
	config   Config
	resource *resource.Resource

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	metrics *Metrics

	// Shutdown functions (must be registered during New() only, not thread-safe after initialization)
	shutdownFuncs []func(context.Context) error
	shutdownOnce  sync.Once
}

// New creates a new instrumentation instance
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}

	res, err := newResource(config)
	if err != nil {
		return nil, err
	}

	inst := &Instrumentation{
		config:   config,
		resource: res,
	}

	if config.Enabled {
		inst.initializeProviders()
	} else {
		// Use no-op providers for zero overhead
		inst.meterProvider = noop.NewMeterProvider()
		inst.tracerProvider = tracenoop.NewTracerProvider()
	}

	inst.metrics, err = newMetrics(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	return inst, nil
}

// newResource returns config.Resource or a resource describing the service.
func newResource(config Config) (*resource.Resource, error) {
	if config.Resource != nil {
		return config.Resource, nil
	}
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// initializeProviders picks the configured providers, falling back to the
// globally registered ones so applications that call otel.SetMeterProvider
// get metrics without extra wiring.
func (i *Instrumentation) initializeProviders() {
	i.meterProvider = i.config.MeterProvider
	if i.meterProvider == nil {
		i.meterProvider = otel.GetMeterProvider()
	}
	i.tracerProvider = i.config.TracerProvider
	if i.tracerProvider == nil {
		i.tracerProvider = otel.GetTracerProvider()
	}
}

// RegisterShutdown adds fn to the functions run by Shutdown.
// It must only be called during setup, before the instrumentation is shared.
func (i *Instrumentation) RegisterShutdown(fn func(context.Context) error) {
	i.shutdownFuncs = append(i.shutdownFuncs, fn)
}

// Shutdown gracefully shuts down all instrumentation providers
// This should be called when the application is terminating
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	var shutdownErr error

	i.shutdownOnce.Do(func() {
		for _, fn := range i.shutdownFuncs {
			if err := fn(ctx); err != nil {
				// Capture first error, but continue shutting down other components
				if shutdownErr == nil {
					shutdownErr = err
				}
			}
		}
	})

	return shutdownErr
}

// Meter returns a named meter for the given scope
// Scopes are layer names like "authorize", "exchange", "retry"
// The full name will be "github.com/giantswarm/x-oauth2/{scope}"
func (i *Instrumentation) Meter(scope string) metric.Meter {
	return i.meterProvider.Meter(instrumentationName + scope)
}

// Tracer returns a named tracer for the given scope
// The full name will be "github.com/giantswarm/x-oauth2/{scope}"
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	return i.tracerProvider.Tracer(instrumentationName + scope)
}

// Metrics returns the metrics holder for recording metric values
func (i *Instrumentation) Metrics() *Metrics {
	return i.metrics
}

// Resource returns the resource describing this service
func (i *Instrumentation) Resource() *resource.Resource {
	return i.resource
}

// TracerProvider returns the underlying tracer provider
func (i *Instrumentation) TracerProvider() trace.TracerProvider {
	return i.tracerProvider
}

// MeterProvider returns the underlying meter provider
func (i *Instrumentation) MeterProvider() metric.MeterProvider {
	return i.meterProvider
}

// TracerOrNoop returns the tracer for scope, or a no-op tracer when inst is nil.
// Components call this so that instrumentation stays optional.
func TracerOrNoop(inst *Instrumentation, scope string) trace.Tracer {
	if inst == nil {
		return tracenoop.NewTracerProvider().Tracer(instrumentationName + scope)
	}
	return inst.Tracer(scope)
}

// MetricsOrNil returns the metrics holder of inst, or nil when inst is nil.
// All Metrics methods are nil-safe.
func MetricsOrNil(inst *Instrumentation) *Metrics {
	if inst == nil {
		return nil
	}
	return inst.metrics
}
