package eventstore

import (
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// Settings are the options shared by all engines.
type Settings struct {
	// TableName is the events table of postgresengine and the root bucket of boltengine.
	TableName string
	Observer  eventsourcing.Observer
}

// Option defines a functional option for configuring an EventStore engine.
type Option func(*Settings) error

// BuildSettings applies the options on top of the defaults.
func BuildSettings(options ...Option) (Settings, error) {
	settings := Settings{TableName: DefaultEventsTableName}

	for _, option := range options {
		if err := option(&settings); err != nil {
			return Settings{}, err
		}
	}

	return settings, nil
}

// WithTableName sets the events table (postgres) or root bucket (bolt) name.
func WithTableName(tableName string) Option {
	return func(s *Settings) error {
		if tableName == "" {
			return ErrEmptyEventsTableName
		}

		s.TableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the EventStore.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: appended and read events with execution timing
// Info level: concurrency conflicts
// Error level: failures that cause operation failures.
func WithLogger(logger eventsourcing.Logger) Option {
	return func(s *Settings) error {
		s.Observer.Logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the EventStore, preferred over the plain logger.
func WithContextualLogger(logger eventsourcing.ContextualLogger) Option {
	return func(s *Settings) error {
		s.Observer.ContextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the EventStore.
// It receives append/read durations, event counts, concurrency conflicts and storage errors.
func WithMetrics(collector eventsourcing.MetricsCollector) Option {
	return func(s *Settings) error {
		s.Observer.Metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the EventStore.
func WithTracing(collector eventsourcing.TracingCollector) Option {
	return func(s *Settings) error {
		s.Observer.Tracing = collector
		return nil
	}
}
