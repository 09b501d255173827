package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/x-oauth2/instrumentation"
)

// Event describes the outcome of one attempt.
type Event struct {
	// Attempt is the 1-based attempt number.
	Attempt int

	// State is the state entered after the attempt: Retrying or a terminal state.
	State State

	// Err is the attempt's error, nil on success.
	Err error

	// Delay is the backoff before the next attempt (Retrying only).
	Delay time.Duration

	// Elapsed is the time since the first attempt started.
	Elapsed time.Duration
}

// Observer receives every attempt outcome. It is called synchronously from
// the retry loop and must not block.
type Observer func(Event)

// Engine runs operations under a retry policy. It holds no per-call state and
// is safe for concurrent use.
type Engine struct {
	config   Config
	clock    Clock
	rand     func() float64
	observer Observer
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *instrumentation.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source for deadlines and sleeps.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRand sets the jitter source. fn must return values in [0, 1).
func WithRand(fn func() float64) Option {
	return func(e *Engine) {
		if fn != nil {
			e.rand = fn
		}
	}
}

// WithObserver sets the progress hook.
func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithInstrumentation enables spans and metrics.
func WithInstrumentation(inst *instrumentation.Instrumentation) Option {
	return func(e *Engine) {
		e.tracer = instrumentation.TracerOrNoop(inst, "retry")
		e.metrics = instrumentation.MetricsOrNil(inst)
	}
}

// NewEngine validates config and creates an engine.
func NewEngine(config Config, opts ...Option) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		config: config,
		clock:  realClock{},
		rand:   rand.Float64,
		logger: slog.Default(),
		tracer: instrumentation.TracerOrNoop(nil, "retry"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine's retry policy.
func (e *Engine) Config() Config {
	return e.config
}

// backoff returns the jittered delay before retry n (0-indexed).
func (e *Engine) backoff(n int) time.Duration {
	d := float64(e.config.Delay(n))
	if j := e.config.JitterFactor; j > 0 {
		// uniform in [d(1-j), d(1+j)]
		d = d * (1 - j + 2*j*e.rand())
	}
	return time.Duration(max(d, 0))
}

// Do runs op until it succeeds, fails fatally, runs out of attempts, hits the
// overall deadline or ctx is done.
//
// Each attempt receives a context bounded by the overall deadline. Terminal
// failures are returned as *Error wrapping the last attempt's error.
func Do[T any](ctx context.Context, e *Engine, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	ctx, span := e.tracer.Start(ctx, "oauth.exchange")
	defer span.End()

	start := e.clock.Now()
	deadline := start.Add(e.config.OverallTimeout)

	r := &run{engine: e, ctx: ctx, span: span, start: start}

	for attempt := 1; ; attempt++ {
		// Attempting
		if ctx.Err() != nil {
			return zero, r.fail(Canceled, attempt-1, nil)
		}
		remaining := deadline.Sub(e.clock.Now())
		if remaining <= 0 {
			return zero, r.fail(FailedTimeout, attempt-1, r.lastErr)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, remaining)
		result, err := op(attemptCtx)
		attemptExpired := attemptCtx.Err() != nil
		cancel()

		if err == nil {
			r.succeed(attempt)
			return result, nil
		}
		r.lastErr = err

		switch {
		case ctx.Err() != nil:
			return zero, r.fail(Canceled, attempt, err)
		case !IsRetryable(err) && !(attemptExpired && errors.Is(err, context.DeadlineExceeded)):
			// a definitive answer wins over a deadline that passed meanwhile
			return zero, r.fail(FailedFatal, attempt, err)
		case attemptExpired:
			return zero, r.fail(FailedTimeout, attempt, err)
		case attempt >= e.config.MaxAttempts:
			return zero, r.fail(FailedExhausted, attempt, err)
		}

		delay := e.backoff(attempt - 1)
		// waking exactly at the deadline leaves no time for another attempt
		if !e.clock.Now().Add(delay).Before(deadline) {
			return zero, r.fail(FailedTimeout, attempt, err)
		}

		// Retrying
		r.retrying(attempt, err, delay)
		select {
		case <-ctx.Done():
			return zero, r.fail(Canceled, attempt, err)
		case <-e.clock.After(delay):
		}
	}
}

// run carries the bookkeeping of one Do call.
type run struct {
	engine  *Engine
	ctx     context.Context
	span    trace.Span
	start   time.Time
	lastErr error
}

func (r *run) elapsed() time.Duration {
	return r.engine.clock.Now().Sub(r.start)
}

func (r *run) notify(ev Event) {
	if r.engine.observer != nil {
		r.engine.observer(ev)
	}
}

func (r *run) succeed(attempt int) {
	r.notify(Event{Attempt: attempt, State: Succeeded, Elapsed: r.elapsed()})
	r.engine.metrics.RecordExchangeCompleted(r.ctx, Succeeded.String(), attempt)
	instrumentation.AddRetryAttributes(r.span, Succeeded.String(), attempt)
	instrumentation.SetSpanSuccess(r.span)

	if attempt > 1 {
		r.engine.logger.Info("Operation succeeded after retry",
			"attempts", attempt,
			"elapsed", r.elapsed())
	}
}

func (r *run) retrying(attempt int, err error, delay time.Duration) {
	r.notify(Event{Attempt: attempt, State: Retrying, Err: err, Delay: delay, Elapsed: r.elapsed()})
	r.engine.metrics.RecordRetryBackoff(r.ctx, attempt, delay)
	r.span.AddEvent("retry", trace.WithAttributes(
		attribute.Int(instrumentation.AttrRetryAttempt, attempt),
		attribute.Int64(instrumentation.AttrRetryDelayMs, delay.Milliseconds()),
		attribute.String(instrumentation.AttrError, err.Error()),
	))

	r.engine.logger.Warn("Attempt failed, retrying",
		"attempt", attempt,
		"max_attempts", r.engine.config.MaxAttempts,
		"delay", delay,
		"error", err)
}

func (r *run) fail(state State, attempts int, err error) error {
	retryErr := &Error{State: state, Attempts: attempts, Err: err}
	if state == Canceled {
		retryErr.ctxErr = r.ctx.Err()
	}

	r.notify(Event{Attempt: attempts, State: state, Err: err, Elapsed: r.elapsed()})
	r.engine.metrics.RecordExchangeCompleted(r.ctx, state.String(), attempts)
	instrumentation.AddRetryAttributes(r.span, state.String(), attempts)
	instrumentation.RecordError(r.span, retryErr)

	if state == Canceled {
		r.engine.logger.Debug("Retry loop canceled",
			"attempts", attempts,
			"error", retryErr.ctxErr)
	} else {
		r.engine.logger.Warn("Operation failed",
			"state", state.String(),
			"attempts", attempts,
			"elapsed", r.elapsed(),
			"error", err)
	}
	return retryErr
}
