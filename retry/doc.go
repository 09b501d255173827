// Package retry drives a single-attempt operation through bounded retries with
// exponential backoff, jitter and an overall deadline.
//
// The loop is an explicit state machine:
//
//	Idle -> Attempting -> Succeeded
//	                   -> FailedFatal
//	                   -> Retrying -> Attempting
//	                               -> FailedExhausted
//	                               -> FailedTimeout
//	any non-terminal state -> Canceled (caller context done)
//
// An attempt error is retryable when it implements Retryable and reports true
// (exchange.Error does). Every other error is fatal.
//
// Backoff for retry n (0-indexed) is min(BaseDelay*2^n, MaxDelay), with jitter
// sampled uniformly from [d*(1-JitterFactor), d*(1+JitterFactor)]. The engine
// never sleeps into the overall deadline: when the next delay would reach or
// cross it the loop ends immediately with FailedTimeout.
//
// Example usage:
//
//	engine, err := retry.NewEngine(retry.DefaultConfig(), retry.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	token, err := retry.Do(ctx, engine, func(ctx context.Context) (*providers.Token, error) {
//	    return client.Exchange(ctx, code, verifier)
//	})
//	switch {
//	case errors.Is(err, retry.ErrFatal):
//	    // the authorization code is consumed; restart the flow
//	case errors.Is(err, retry.ErrCanceled):
//	    // caller gave up
//	}
//
// Time and randomness are injected with WithClock and WithRand so the loop is
// deterministic under test.
package retry
