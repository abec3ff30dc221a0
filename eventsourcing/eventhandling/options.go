package eventhandling

import (
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// Option defines a functional option for configuring an AsyncEventBus.
type Option func(*config) error

type config struct {
	executor      Executor
	workerCount   int
	queueCapacity int
	observer      eventsourcing.Observer
}

// WithExecutor makes the bus run its tasks on the executor, which the bus does not shut down.
func WithExecutor(executor Executor) Option {
	return func(c *config) error {
		if executor == nil {
			return ErrNilExecutor
		}

		c.executor = executor

		return nil
	}
}

// WithWorkerCount sets the number of workers of the pool the bus creates, 5 by default.
func WithWorkerCount(workerCount int) Option {
	return func(c *config) error {
		if workerCount <= 0 {
			return ErrInvalidWorkerCount
		}

		c.workerCount = workerCount

		return nil
	}
}

// WithQueueCapacity bounds the task queue of the pool the bus creates. It is unbounded by default.
func WithQueueCapacity(queueCapacity int) Option {
	return func(c *config) error {
		if queueCapacity < 0 {
			return ErrInvalidQueueCapacity
		}

		c.queueCapacity = queueCapacity

		return nil
	}
}

// WithLogger sets the logger for the bus.
//
// Debug level: yields that continue in place
// Warn level: rejected events
// Error level: failed and panicking handlers.
func WithLogger(logger eventsourcing.Logger) Option {
	return func(c *config) error {
		c.observer.Logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the bus, preferred over the plain logger.
// Handler failures are logged with the context of the publisher.
func WithContextualLogger(logger eventsourcing.ContextualLogger) Option {
	return func(c *config) error {
		c.observer.ContextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the bus.
// It receives published and rejected events, handler durations and failures, and scheduler yields.
func WithMetrics(collector eventsourcing.MetricsCollector) Option {
	return func(c *config) error {
		c.observer.Metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the bus, which gets one span per handler invocation.
func WithTracing(collector eventsourcing.TracingCollector) Option {
	return func(c *config) error {
		c.observer.Tracing = collector
		return nil
	}
}
