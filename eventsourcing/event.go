package eventsourcing

import (
	"time"

	"github.com/google/uuid"
)

// Event is one state change of an aggregate.
//
// Domain events implement it by embedding EventBase:
//
//	type MoneyDeposited struct {
//		eventsourcing.EventBase
//		Amount int64 `json:"amount"`
//	}
//
// The fields of EventBase are not part of the JSON payload, storage engines persist them in their own columns.
type Event interface {
	EventID() uuid.UUID
	AggregateID() uuid.UUID
	SequenceNumber() (int64, bool)
	OccurredAt() time.Time
	base() *EventBase
}

// EventBase carries the identity and position of an event.
// The aggregate id and the sequence number can each be assigned exactly once.
type EventBase struct {
	eventID        uuid.UUID
	aggregateID    uuid.UUID
	sequenceNumber int64
	hasSequence    bool
	occurredAt     time.Time
}

// NewEventBase returns an EventBase with a fresh event id, occurring now.
func NewEventBase() EventBase {
	return EventBase{
		eventID:    uuid.New(),
		occurredAt: time.Now().UTC(),
	}
}

// NewEventBaseOccurredAt returns an EventBase with a fresh event id and the given occurrence time.
func NewEventBaseOccurredAt(occurredAt time.Time) EventBase {
	return EventBase{
		eventID:    uuid.New(),
		occurredAt: occurredAt.UTC(),
	}
}

// EventID returns the unique id of the event.
func (b *EventBase) EventID() uuid.UUID {
	return b.eventID
}

// AggregateID returns uuid.Nil as long as no aggregate id was assigned.
func (b *EventBase) AggregateID() uuid.UUID {
	return b.aggregateID
}

// SequenceNumber returns false as long as no sequence number was assigned.
func (b *EventBase) SequenceNumber() (int64, bool) {
	return b.sequenceNumber, b.hasSequence
}

// OccurredAt returns when the event happened.
func (b *EventBase) OccurredAt() time.Time {
	return b.occurredAt
}

// AssignAggregateID binds the event to an aggregate.
func (b *EventBase) AssignAggregateID(aggregateID uuid.UUID) error {
	if b.aggregateID != uuid.Nil {
		return ErrAggregateIDAlreadyAssigned
	}

	b.aggregateID = aggregateID

	return nil
}

// AssignSequenceNumber fixes the position of the event in its aggregate's history.
func (b *EventBase) AssignSequenceNumber(sequenceNumber int64) error {
	if b.hasSequence {
		return ErrSequenceNumberAlreadyAssigned
	}

	b.sequenceNumber = sequenceNumber
	b.hasSequence = true

	return nil
}

func (b *EventBase) base() *EventBase {
	return b
}

// ensureIdentity fills in the event id and the occurrence time for events built from a zero EventBase.
func (b *EventBase) ensureIdentity() {
	if b.eventID == uuid.Nil {
		b.eventID = uuid.New()
	}

	if b.occurredAt.IsZero() {
		b.occurredAt = time.Now().UTC()
	}
}

// restore overwrites all fields, used when an event is rebuilt from storage.
func (b *EventBase) restore(eventID, aggregateID uuid.UUID, sequenceNumber int64, occurredAt time.Time) {
	b.eventID = eventID
	b.aggregateID = aggregateID
	b.sequenceNumber = sequenceNumber
	b.hasSequence = true
	b.occurredAt = occurredAt
}
