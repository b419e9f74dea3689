package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/routeros-upgrade/internal/util/clock"
)

// Backoff returns the delay to wait before retry number n (1-based).
type Backoff func(n int) time.Duration

// Linear waits n*step before retry n, so delays strictly increase.
func Linear(step time.Duration) Backoff {
	return func(n int) time.Duration {
		return time.Duration(n) * step
	}
}

// Config holds retry configuration.
type Config struct {
	MaxRetries int
	Backoff    Backoff
	Clock      clock.Clock

	// OnRetry is called after a failed attempt that will be retried,
	// with the 1-based retry number, the delay about to be slept and the error.
	OnRetry func(n int, delay time.Duration, err error)
}

// Option is a functional option for retry configuration.
type Option func(*Config)

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithBackoff sets the delay policy.
func WithBackoff(b Backoff) Option {
	return func(c *Config) {
		c.Backoff = b
	}
}

// WithClock sets the clock used for sleeping between attempts.
func WithClock(clk clock.Clock) Option {
	return func(c *Config) {
		c.Clock = clk
	}
}

// WithOnRetry registers a hook invoked before each retry sleep.
func WithOnRetry(fn func(n int, delay time.Duration, err error)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

// Do runs operation until it succeeds, returns a fatal error, the retries are
// exhausted, or ctx is done. The operation receives the 0-based attempt index.
func Do(ctx context.Context, operation func(ctx context.Context, attempt int) error, opts ...Option) error {
	cfg := &Config{
		MaxRetries: 5,
		Backoff:    Linear(time.Second),
		Clock:      clock.New(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := operation(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsFatal(err) {
			return fmt.Errorf("fatal error (not retrying): %w", err)
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.Backoff(attempt + 1)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, delay, err)
		}
		if err := cfg.Clock.Sleep(ctx, delay); err != nil {
			return fmt.Errorf("context cancelled after %d attempts: %w", attempt+1, err)
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

// FatalError wraps an error to mark it as fatal (non-retryable).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal (non-retryable).
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
