package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts  = 3
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// Func is one attempt of a retried operation.
type Func func(ctx context.Context) error

// Predicate decides whether an attempt error may be retried.
type Predicate func(err error) bool

// Meta reports how a retried call went.
type Meta struct {
	Attempts   int
	TotalDelay time.Duration
}

type config struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	onRetry      func(attempt int, err error)
}

// Option configures Do.
type Option func(*config) error

// Do runs fn until it succeeds, returns an error retryable rejects, or
// maxAttempts is reached. Delays grow as baseDelay * 2^(attempt-1) plus jitter.
// The last error is returned when attempts run out.
func Do(ctx context.Context, retryable Predicate, fn Func, options ...Option) (Meta, error) {
	cfg := &config{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}
	for _, option := range options {
		if err := option(cfg); err != nil {
			return Meta{}, err
		}
	}

	var (
		meta    Meta
		lastErr error
	)

	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * cfg.jitterFactor //nolint:gosec // jitter only
			backoff := delay + time.Duration(jitter)

			select {
			case <-time.After(backoff):
				meta.TotalDelay += backoff
			case <-ctx.Done():
				return meta, ctx.Err()
			}
		}

		meta.Attempts++
		lastErr = fn(ctx)
		if lastErr == nil {
			return meta, nil
		}
		if retryable == nil || !retryable(lastErr) {
			return meta, lastErr
		}
		if cfg.onRetry != nil && attempt < cfg.maxAttempts-1 {
			cfg.onRetry(attempt+1, lastErr)
		}
	}

	return meta, lastErr
}

// WithMaxAttempts sets the total number of attempts, first one included.
func WithMaxAttempts(attempts int) Option {
	return func(c *config) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		c.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the delay before the second attempt.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *config) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}
		c.baseDelay = delay
		return nil
	}
}

// WithJitterFactor sets jitter as a fraction of the backoff delay, 0.0 to 1.0.
func WithJitterFactor(factor float64) Option {
	return func(c *config) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}
		c.jitterFactor = factor
		return nil
	}
}

// OnRetry registers a hook called before each retry.
func OnRetry(hook func(attempt int, err error)) Option {
	return func(c *config) error {
		c.onRetry = hook
		return nil
	}
}
