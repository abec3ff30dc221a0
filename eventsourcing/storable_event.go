package eventsourcing

import (
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// StorableEvents is an alias type for a slice of StorableEvent
type StorableEvents = []StorableEvent

// StorableEvent is a DTO (data transfer object) used by the EventStore engines to persist events and read them back.
//
// It is built on scalars to be agnostic of the Go types of the domain events.
//
// While its properties are exported, it should only be constructed with BuildStorableEvent or EventRegistry.ToStorable.
type StorableEvent struct {
	EventID        uuid.UUID
	AggregateType  string
	AggregateID    uuid.UUID
	SequenceNumber int64
	EventType      string
	OccurredAt     time.Time
	PayloadJSON    []byte
}

// BuildStorableEvent is a factory method for StorableEvent.
//
// Returns ErrInvalidPayloadJSON if payloadJSON is not valid JSON and ErrEmptyEventType for an empty event type.
func BuildStorableEvent(
	eventID uuid.UUID,
	aggregateType string,
	aggregateID uuid.UUID,
	sequenceNumber int64,
	eventType string,
	occurredAt time.Time,
	payloadJSON []byte,
) (StorableEvent, error) {

	if eventType == "" {
		return StorableEvent{}, ErrEmptyEventType
	}

	if !jsoniter.ConfigFastest.Valid(payloadJSON) {
		return StorableEvent{}, ErrInvalidPayloadJSON
	}

	return StorableEvent{
		EventID:        eventID,
		AggregateType:  aggregateType,
		AggregateID:    aggregateID,
		SequenceNumber: sequenceNumber,
		EventType:      eventType,
		OccurredAt:     occurredAt,
		PayloadJSON:    payloadJSON,
	}, nil
}
