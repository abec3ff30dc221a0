package eventhandling

import (
	"time"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// TransactionalOption defines a functional option for configuring a TransactionalListener.
type TransactionalOption func(*transactionalConfig) error

type transactionalConfig struct {
	defaultCommitThreshold int
	yieldPolicy            YieldPolicy
	retry                  retryConfig
	observer               eventsourcing.Observer
}

// WithDefaultCommitThreshold sets the batch size for events without their own commit threshold, 50 by default.
func WithDefaultCommitThreshold(threshold int) TransactionalOption {
	return func(c *transactionalConfig) error {
		if threshold <= 0 {
			return ErrInvalidCommitThreshold
		}

		c.defaultCommitThreshold = threshold

		return nil
	}
}

// WithDefaultYieldPolicy sets the YieldPolicy every transaction starts with.
func WithDefaultYieldPolicy(policy YieldPolicy) TransactionalOption {
	return func(c *transactionalConfig) error {
		c.yieldPolicy = policy
		return nil
	}
}

// WithTransientErrors declares the errors, matched with errors.Is, after which a failed batch is retried.
// Without them no batch is retried.
func WithTransientErrors(errs ...error) TransactionalOption {
	return func(c *transactionalConfig) error {
		c.retry.transient = append(c.retry.transient, errs...)
		return nil
	}
}

// WithRetries sets the maximum number of attempts per batch and the base delay of the exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, etc., plus jitter.
func WithRetries(maxAttempts int, baseDelay time.Duration) TransactionalOption {
	return func(c *transactionalConfig) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		if baseDelay < 0 {
			return ErrNegativeBaseDelay
		}

		c.retry.maxAttempts = maxAttempts
		c.retry.baseDelay = baseDelay

		return nil
	}
}

// WithJitterFactor sets the jitter added as a share of each backoff delay.
// Valid range: 0.0 (no jitter) to 1.0 (100% jitter).
func WithJitterFactor(factor float64) TransactionalOption {
	return func(c *transactionalConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		c.retry.jitterFactor = factor

		return nil
	}
}

// WithBatchLogger sets the logger for the TransactionalListener.
func WithBatchLogger(logger eventsourcing.Logger) TransactionalOption {
	return func(c *transactionalConfig) error {
		c.observer.Logger = logger
		return nil
	}
}

// WithBatchContextualLogger sets the contextual logger for the TransactionalListener.
func WithBatchContextualLogger(logger eventsourcing.ContextualLogger) TransactionalOption {
	return func(c *transactionalConfig) error {
		c.observer.ContextualLogger = logger
		return nil
	}
}

// WithBatchMetrics sets the metrics collector, which receives batch durations and sizes, retries and dropped batches.
func WithBatchMetrics(collector eventsourcing.MetricsCollector) TransactionalOption {
	return func(c *transactionalConfig) error {
		c.observer.Metrics = collector
		return nil
	}
}

// WithBatchTracing sets the tracing collector, which gets one span per transaction.
func WithBatchTracing(collector eventsourcing.TracingCollector) TransactionalOption {
	return func(c *transactionalConfig) error {
		c.observer.Tracing = collector
		return nil
	}
}
