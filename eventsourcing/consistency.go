package eventsourcing

import "context"

// ConsistencyLevel defines the read consistency requirements for EventStore operations.
type ConsistencyLevel int

const (
	// StrongConsistency requires reads from the primary storage, so that a load sees every committed event.
	// It is the default, and Repository.Load always asks for it.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows engines with read replicas to serve reads from a replica.
	// Suitable for read models and diagnostics that can tolerate slightly stale histories.
	EventualConsistency
)

type contextKey string

// ConsistencyLevelKey is the context key used to store consistency level preferences.
const ConsistencyLevelKey contextKey = "eventsourcing.consistency_level"

// WithStrongConsistency returns a context that asks EventStore reads to use the primary storage.
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency returns a context that allows EventStore reads from a replica.
//
// Example usage:
//
//	ctx = eventsourcing.WithEventualConsistency(ctx)
//	stream, err := store.ReadEvents(ctx, "account", accountID)
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, EventualConsistency)
}

// GetConsistencyLevel extracts the consistency level from the context, StrongConsistency if none is set.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(ConsistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
