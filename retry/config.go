package retry

import (
	"errors"
	"fmt"
	"time"
)

// Default retry configuration values.
const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = 500 * time.Millisecond
	DefaultMaxDelay       = 8 * time.Second
	DefaultJitterFactor   = 0.2
	DefaultOverallTimeout = 30 * time.Second
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid retry config")

// Config is an immutable retry policy.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first (>= 1).
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential delay before jitter is applied.
	MaxDelay time.Duration

	// JitterFactor in [0, 1] spreads each delay by up to that fraction.
	JitterFactor float64

	// OverallTimeout bounds the whole loop, sleeps included.
	OverallTimeout time.Duration
}

// DefaultConfig returns the default retry policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      DefaultBaseDelay,
		MaxDelay:       DefaultMaxDelay,
		JitterFactor:   DefaultJitterFactor,
		OverallTimeout: DefaultOverallTimeout,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidConfig, c.MaxAttempts)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("%w: base delay must be positive, got %s", ErrInvalidConfig, c.BaseDelay)
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("%w: max delay %s is less than base delay %s", ErrInvalidConfig, c.MaxDelay, c.BaseDelay)
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1 {
		return fmt.Errorf("%w: jitter factor must be within [0, 1], got %g", ErrInvalidConfig, c.JitterFactor)
	}
	if c.OverallTimeout <= 0 {
		return fmt.Errorf("%w: overall timeout must be positive, got %s", ErrInvalidConfig, c.OverallTimeout)
	}
	return nil
}

// Delay returns the un-jittered delay before retry n (0-indexed):
// min(BaseDelay * 2^n, MaxDelay).
func (c Config) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	d := c.BaseDelay
	for i := 0; i < n; i++ {
		if d >= c.MaxDelay/2 {
			return c.MaxDelay
		}
		d *= 2
	}
	return min(d, c.MaxDelay)
}
