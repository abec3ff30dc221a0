package repository

import (
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// Option defines a functional option for configuring a Repository.
type Option func(*config) error

type config struct {
	eventBus        eventsourcing.EventBus
	lockManager     LockManager
	lockingStrategy LockingStrategy
	observer        eventsourcing.Observer
}

// WithEventBus sets the bus that receives the events after they were persisted.
// Without a bus, saved events are not published.
func WithEventBus(bus eventsourcing.EventBus) Option {
	return func(c *config) error {
		c.eventBus = bus
		return nil
	}
}

// WithLockingStrategy selects the built-in LockManager, Optimistic by default.
func WithLockingStrategy(strategy LockingStrategy) Option {
	return func(c *config) error {
		if _, err := newLockManager(strategy); err != nil {
			return err
		}

		c.lockingStrategy = strategy

		return nil
	}
}

// WithLockManager sets a LockManager instance, for example one shared by several repositories.
// It takes precedence over WithLockingStrategy.
func WithLockManager(lockManager LockManager) Option {
	return func(c *config) error {
		c.lockManager = lockManager
		return nil
	}
}

// WithLogger sets the logger for the Repository.
//
// Debug level: loaded and saved aggregates with timing
// Info level: concurrency conflicts
// Error level: storage and publishing failures.
func WithLogger(logger eventsourcing.Logger) Option {
	return func(c *config) error {
		c.observer.Logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Repository, preferred over the plain logger.
func WithContextualLogger(logger eventsourcing.ContextualLogger) Option {
	return func(c *config) error {
		c.observer.ContextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Repository.
// It receives load/save durations, saved event counts and concurrency conflicts.
func WithMetrics(collector eventsourcing.MetricsCollector) Option {
	return func(c *config) error {
		c.observer.Metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Repository, which gets one span per load and save.
func WithTracing(collector eventsourcing.TracingCollector) Option {
	return func(c *config) error {
		c.observer.Tracing = collector
		return nil
	}
}
