package retry

import (
	"errors"
	"fmt"
)

// Terminal failure classes. Match them with errors.Is on the error returned by Do.
var (
	// ErrFatal means an attempt failed with a non-retryable error.
	ErrFatal = errors.New("fatal failure")

	// ErrExhausted means every allowed attempt failed with a retryable error.
	ErrExhausted = errors.New("retry attempts exhausted")

	// ErrTimeout means the overall deadline was reached or would have been
	// crossed by the next backoff sleep.
	ErrTimeout = errors.New("overall timeout exceeded")

	// ErrCanceled means the caller's context was done.
	ErrCanceled = errors.New("retry canceled")
)

// Retryable is implemented by errors that know whether another attempt may
// succeed.
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err, or an error it wraps, is Retryable and
// reports true.
func IsRetryable(err error) bool {
	var r Retryable
	return errors.As(err, &r) && r.Retryable()
}

// Error is a terminal failure of the retry loop.
type Error struct {
	// State is the terminal state.
	State State

	// Attempts is the number of attempts made.
	Attempts int

	// Err is the last attempt's error.
	Err error

	// ctxErr is the caller's context error for Canceled.
	ctxErr error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s after %d attempt(s)", e.class(), e.Attempts)
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.ctxErr != nil {
		return fmt.Sprintf("%s: %v", msg, e.ctxErr)
	}
	return msg
}

// Unwrap returns the last attempt's error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the failure class sentinels and, for Canceled, the context error.
func (e *Error) Is(target error) bool {
	if target == e.class() {
		return true
	}
	return e.ctxErr != nil && errors.Is(e.ctxErr, target)
}

func (e *Error) class() error {
	switch e.State {
	case FailedFatal:
		return ErrFatal
	case FailedExhausted:
		return ErrExhausted
	case FailedTimeout:
		return ErrTimeout
	case Canceled:
		return ErrCanceled
	default:
		return fmt.Errorf("retry failed in state %s", e.State)
	}
}
