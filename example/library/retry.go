package library

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	ErrInvalidMaxAttempts  = errors.New("max attempts must be positive")
	ErrNegativeBaseDelay   = errors.New("base delay must not be negative")
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
}

// RetryOption configures how often a command is retried after a concurrency conflict.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets how often a command is tried in total.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the delay before the first retry. It doubles with every further attempt.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the share of the delay that is added at random, between 0.0 and 1.0.
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

func buildRetryConfig(options []RetryOption) (retryConfig, error) {
	config := retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(&config); err != nil {
			return retryConfig{}, err
		}
	}

	return config, nil
}

// retryOnConflict runs fn until it succeeds, fails with an error other than a concurrency conflict,
// or maxAttempts is reached. Timeouts are never retried.
func (l *Library) retryOnConflict(ctx context.Context, command string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < l.retry.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := l.retry.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * l.retry.jitterFactor //nolint:gosec // math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			l.observer.RecordDuration(ctx, metricCommandRetryDelay, backoffDelay, map[string]string{
				eventsourcing.LabelOperation: command,
				logAttrAttempt:               strconv.Itoa(attempt),
			})

			select {
			case <-time.After(backoffDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil || !errors.Is(lastErr, eventsourcing.ErrConcurrencyConflict) {
			return lastErr
		}

		l.observer.IncrementCounter(ctx, metricCommandRetries, map[string]string{
			eventsourcing.LabelOperation: command,
			eventsourcing.LabelStatus:    eventsourcing.StatusConflict,
		})
	}

	l.observer.Warn(ctx, logMsgMaxRetriesReached,
		logAttrCommand, command,
		eventsourcing.LogAttrError, lastErr.Error())

	return lastErr
}
