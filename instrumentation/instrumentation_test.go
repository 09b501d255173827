package instrumentation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "default config",
			config: Config{
				Enabled: false,
			},
			wantErr: false,
		},
		{
			name: "with service name and version",
			config: Config{
				Enabled:        true,
				ServiceName:    "test-service",
				ServiceVersion: "1.0.0",
			},
			wantErr: false,
		},
		{
			name: "empty service name gets default",
			config: Config{
				Enabled:        true,
				ServiceName:    "",
				ServiceVersion: "",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil {
				return
			}
			if inst == nil {
				t.Fatal("New() returned nil instrumentation")
			}

			if inst.Meter("exchange") == nil {
				t.Error("Meter('exchange') returned nil")
			}
			if inst.Tracer("retry") == nil {
				t.Error("Tracer('retry') returned nil")
			}
			if inst.Metrics() == nil {
				t.Error("Metrics() returned nil")
			}
			if inst.TracerProvider() == nil {
				t.Error("TracerProvider() returned nil")
			}
			if inst.MeterProvider() == nil {
				t.Error("MeterProvider() returned nil")
			}
			if inst.Resource() == nil {
				t.Error("Resource() returned nil")
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	inst, err := New(Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if inst.config.ServiceName != DefaultServiceName {
		t.Errorf("ServiceName = %q, want %q", inst.config.ServiceName, DefaultServiceName)
	}
	if inst.config.ServiceVersion != DefaultServiceVersion {
		t.Errorf("ServiceVersion = %q, want %q", inst.config.ServiceVersion, DefaultServiceVersion)
	}
}

func TestInstrumentation_Shutdown(t *testing.T) {
	inst, err := New(Config{Enabled: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	calls := 0
	first := fmt.Errorf("first")
	inst.RegisterShutdown(func(context.Context) error { calls++; return first })
	inst.RegisterShutdown(func(context.Context) error { calls++; return fmt.Errorf("second") })

	if err := inst.Shutdown(context.Background()); err != first {
		t.Errorf("Shutdown() error = %v, want %v", err, first)
	}
	if calls != 2 {
		t.Errorf("shutdown functions called %d times, want 2", calls)
	}

	// Second shutdown is a no-op
	if err := inst.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("shutdown functions called %d times after second Shutdown, want 2", calls)
	}
}

func TestNilHelpers(t *testing.T) {
	if TracerOrNoop(nil, "exchange") == nil {
		t.Error("TracerOrNoop(nil) returned nil")
	}
	if MetricsOrNil(nil) != nil {
		t.Error("MetricsOrNil(nil) should return nil")
	}

	// Nil metrics must not panic
	var m *Metrics
	ctx := context.Background()
	m.RecordAuthorizationStarted(ctx, "x")
	m.RecordExchangeAttempt(ctx, "success", 200, 0)
	m.RecordRetryBackoff(ctx, 1, 0)
	m.RecordExchangeCompleted(ctx, "succeeded", 1)
}

func TestInstrumentation_ConcurrentAccess(t *testing.T) {
	inst, err := New(Config{Enabled: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ctx := context.Background()
			_, span := inst.Tracer("exchange").Start(ctx, fmt.Sprintf("span-%d", id))
			inst.Metrics().RecordExchangeAttempt(ctx, "retryable", 503, 0)
			span.End()
		}(i)
	}
	wg.Wait()
}

func BenchmarkMetrics_RecordExchangeAttempt_NoOp(b *testing.B) {
	inst, _ := New(Config{Enabled: false})
	metrics := inst.Metrics()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		metrics.RecordExchangeAttempt(ctx, "success", 200, 0)
	}
}

func TestNewOTLP(t *testing.T) {
	t.Run("requires endpoint", func(t *testing.T) {
		if _, err := NewOTLP(context.Background(), Config{}, OTLPConfig{}); err == nil {
			t.Error("NewOTLP() expected error for empty endpoint")
		}
	})

	t.Run("builds enabled instrumentation", func(t *testing.T) {
		inst, err := NewOTLP(context.Background(), Config{ServiceName: "otlp-test"}, OTLPConfig{
			Endpoint: "127.0.0.1:1",
			Insecure: true,
		})
		if err != nil {
			t.Fatalf("NewOTLP() error = %v", err)
		}
		if inst.Metrics() == nil {
			t.Error("Metrics() returned nil")
		}
		if !inst.config.Enabled {
			t.Error("NewOTLP() instrumentation should be enabled")
		}
		if len(inst.shutdownFuncs) != 2 {
			t.Errorf("registered %d shutdown funcs, want 2", len(inst.shutdownFuncs))
		}

		// nothing listens on the endpoint; only check that Shutdown returns
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		_ = inst.Shutdown(ctx)
	})
}
