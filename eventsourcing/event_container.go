package eventsourcing

import (
	"errors"

	"github.com/google/uuid"
)

// EventContainer holds the uncommitted events of one aggregate and assigns their aggregate id and sequence numbers.
//
// It is owned by exactly one aggregate instance and is not safe for concurrent use.
type EventContainer struct {
	aggregateID         uuid.UUID
	events              []Event
	firstSequenceNumber int64
	lastSequenceNumber  int64
	hasLastSequence     bool
	used                bool
}

// NewEventContainer creates an empty container for the given aggregate id, starting at sequence number 0.
func NewEventContainer(aggregateID uuid.UUID) *EventContainer {
	return &EventContainer{aggregateID: aggregateID}
}

// AddEvent appends the event.
//
// An event without aggregate id gets the container's id, an event without sequence number gets the next one.
// Returns ErrIdentityMismatch for an event of another aggregate and
// ErrInvalidSequence if a present sequence number does not directly follow the last one.
func (c *EventContainer) AddEvent(event Event) error {
	b := event.base()

	if b.aggregateID != uuid.Nil && b.aggregateID != c.aggregateID {
		return errors.Join(ErrIdentityMismatch, &identityMismatch{expected: c.aggregateID, actual: b.aggregateID})
	}

	if b.hasSequence && c.hasLastSequence && b.sequenceNumber != c.lastSequenceNumber+1 {
		return ErrInvalidSequence
	}

	b.ensureIdentity()

	if b.aggregateID == uuid.Nil {
		b.aggregateID = c.aggregateID
	}

	if !b.hasSequence {
		b.sequenceNumber = c.nextSequenceNumber()
		b.hasSequence = true
	}

	c.lastSequenceNumber = b.sequenceNumber
	c.hasLastSequence = true
	c.used = true
	c.events = append(c.events, event)

	return nil
}

// EventStream returns an independent snapshot of the events added so far.
func (c *EventContainer) EventStream() EventStream {
	snapshot := make([]Event, len(c.events))
	copy(snapshot, c.events)

	return newSliceEventStream(c.aggregateID, snapshot)
}

// SetFirstSequenceNumber configures the number assigned to the first event.
// It returns ErrIllegalState once an event was added.
func (c *EventContainer) SetFirstSequenceNumber(firstSequenceNumber int64) error {
	if c.used {
		return ErrIllegalState
	}

	c.firstSequenceNumber = firstSequenceNumber

	return nil
}

// Size returns the number of events in the container.
func (c *EventContainer) Size() int {
	return len(c.events)
}

// Clear drops the events. The sequence counter keeps running.
func (c *EventContainer) Clear() {
	c.events = nil
}

// AggregateID returns the identity assigned to events without one.
func (c *EventContainer) AggregateID() uuid.UUID {
	return c.aggregateID
}

// LastSequenceNumber returns the last assigned sequence number, or false if none was assigned yet.
func (c *EventContainer) LastSequenceNumber() (int64, bool) {
	return c.lastSequenceNumber, c.hasLastSequence
}

func (c *EventContainer) nextSequenceNumber() int64 {
	if c.hasLastSequence {
		return c.lastSequenceNumber + 1
	}

	return c.firstSequenceNumber
}

type identityMismatch struct {
	expected uuid.UUID
	actual   uuid.UUID
}

func (e *identityMismatch) Error() string {
	return "expected aggregate " + e.expected.String() + ", got " + e.actual.String()
}
