package eventhandling

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts  = 3
	defaultBaseDelay    = 50 * time.Millisecond
	defaultJitterFactor = 0.3
)

var ErrInvalidMaxAttempts = errors.New("max attempts must be positive")
var ErrNegativeBaseDelay = errors.New("base delay must not be negative")
var ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")

// retryConfig holds configuration for the exponential backoff of failed batches.
type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	transient    []error
}

// isTransient reports whether err matches one of the declared transient errors.
func (c *retryConfig) isTransient(err error) bool {
	for _, target := range c.transient {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// backoffDelay returns the delay before the given retry: baseDelay * 2^(attempt-1) plus jitter.
func (c *retryConfig) backoffDelay(attempt int) time.Duration {
	delay := c.baseDelay * time.Duration(1<<(attempt-1))
	jitter := rand.Float64() * float64(delay) * c.jitterFactor //nolint:gosec //math/rand is sufficient for jitter

	return delay + time.Duration(jitter)
}

// sleep waits for the delay or until ctx is done.
func sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
