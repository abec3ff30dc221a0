// Package memoryengine provides the default EventStore, keeping all events in process memory.
//
// It stores the event values themselves, so no EventRegistry is needed. Events are immutable once
// their aggregate id and sequence number are assigned, which makes sharing them with readers safe.
package memoryengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore"
)

const engineName = "memory"

type streamKey struct {
	aggregateType string
	aggregateID   uuid.UUID
}

// EventStore is an in-memory eventsourcing.EventStore. It is safe for concurrent use.
type EventStore struct {
	mu       sync.RWMutex
	streams  map[streamKey][]eventsourcing.Event
	settings eventstore.Settings
}

// NewEventStore creates an empty EventStore. The table name option is ignored.
func NewEventStore(options ...eventstore.Option) (*EventStore, error) {
	settings, err := eventstore.BuildSettings(options...)
	if err != nil {
		return nil, err
	}

	return &EventStore{
		streams:  make(map[streamKey][]eventsourcing.Event),
		settings: settings,
	}, nil
}

// AppendEvents appends the events of one aggregate.
// Returns an error matching eventsourcing.ErrConcurrencyConflict if the first event does not directly follow
// the stored ones, in which case nothing is appended.
func (es *EventStore) AppendEvents(ctx context.Context, aggregateType string, events eventsourcing.EventStream) error {
	_, op := es.settings.Begin(ctx, engineName, eventstore.OperationAppend, aggregateType, events.AggregateID().String())

	batch, err := eventstore.CollectAppendBatch(aggregateType, events)
	if err != nil {
		op.Fail(eventstore.ErrorTypeInvalidInput, err)
		return err
	}

	if batch.IsEmpty() {
		op.Succeed(0)
		return nil
	}

	key := streamKey{aggregateType: aggregateType, aggregateID: batch.AggregateID}

	es.mu.Lock()
	stored := es.streams[key]

	lastStored, hasStored := int64(0), len(stored) > 0
	if hasStored {
		lastStored, _ = stored[len(stored)-1].SequenceNumber()
	}

	if err = batch.ContinuesFrom(lastStored, hasStored); err != nil {
		es.mu.Unlock()
		op.Conflict(err)

		return err
	}

	es.streams[key] = append(stored, batch.Events...)
	es.mu.Unlock()

	op.Succeed(len(batch.Events))

	return nil
}

// ReadEvents returns the events of the aggregate in sequence order.
// Returns an error matching eventsourcing.ErrAggregateNotFound if there are none.
func (es *EventStore) ReadEvents(ctx context.Context, aggregateType string, aggregateID uuid.UUID) (eventsourcing.EventStream, error) {
	_, op := es.settings.Begin(ctx, engineName, eventstore.OperationRead, aggregateType, aggregateID.String())

	es.mu.RLock()
	stored := es.streams[streamKey{aggregateType: aggregateType, aggregateID: aggregateID}]
	snapshot := make([]eventsourcing.Event, len(stored))
	copy(snapshot, stored)
	es.mu.RUnlock()

	if len(snapshot) == 0 {
		err := fmt.Errorf("%w: %s %s", eventsourcing.ErrAggregateNotFound, aggregateType, aggregateID)
		op.Fail(eventstore.ErrorTypeNotFound, err)

		return nil, err
	}

	op.Succeed(len(snapshot))

	return eventsourcing.NewEventStream(snapshot...), nil
}

// AggregateCount returns the number of aggregates with stored events.
func (es *EventStore) AggregateCount() int {
	es.mu.RLock()
	defer es.mu.RUnlock()

	return len(es.streams)
}
