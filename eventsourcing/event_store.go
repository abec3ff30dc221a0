package eventsourcing

import (
	"context"

	"github.com/google/uuid"
)

// EventStore persists the event history of aggregates, one append-only sequence per (aggregate type, aggregate id).
//
// Implementations return errors joined with ErrEventStorage for I/O failures,
// ErrAggregateNotFound if no events exist for the aggregate,
// and ErrConcurrencyConflict if appended events do not continue the stored sequence.
type EventStore interface {
	AppendEvents(ctx context.Context, aggregateType string, events EventStream) error
	ReadEvents(ctx context.Context, aggregateType string, aggregateID uuid.UUID) (EventStream, error)
}

// EventBus delivers committed events to listeners.
type EventBus interface {
	Publish(ctx context.Context, events ...Event) error
}
