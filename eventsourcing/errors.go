package eventsourcing

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

var ErrInvalidSequence = errors.New("event sequence number is not the successor of the last assigned one")
var ErrIdentityMismatch = errors.New("event belongs to a different aggregate")
var ErrIllegalState = errors.New("operation not allowed in the current state")
var ErrAggregateIDAlreadyAssigned = errors.New("aggregate id of the event was already assigned")
var ErrSequenceNumberAlreadyAssigned = errors.New("sequence number of the event was already assigned")
var ErrAlreadyInitialized = errors.New("aggregate state was already initialized")
var ErrUnhandledEvent = errors.New("no handler registered for event")
var ErrConcurrencyConflict = errors.New("aggregate was modified concurrently")
var ErrNoLockHeld = errors.New("no lock held for aggregate")
var ErrIllegalMonitorState = errors.New("lock for aggregate is not held by the caller")
var ErrEventStorage = errors.New("event storage failed")
var ErrAggregateNotFound = errors.New("aggregate not found")
var ErrDecodingEventFailed = errors.New("decoding event failed")
var ErrEncodingEventFailed = errors.New("encoding event failed")
var ErrStreamExhausted = errors.New("event stream has no more events")
var ErrUnknownEventType = errors.New("event type is not registered")
var ErrEmptyEventType = errors.New("empty event type supplied")
var ErrInvalidPayloadJSON = errors.New("payload json is not valid")

// UnhandledEventError is returned when an event is folded into or dispatched to a target
// that has no handler for the event's type.
type UnhandledEventError struct {
	Event Event
}

func (e *UnhandledEventError) Error() string {
	return fmt.Sprintf("%s: %s (event %s)", ErrUnhandledEvent, reflect.TypeOf(e.Event), e.Event.EventID())
}

func (e *UnhandledEventError) Unwrap() error {
	return ErrUnhandledEvent
}

// ConcurrencyError reports an optimistic locking conflict for one aggregate.
// The caller is expected to reload the aggregate and retry the whole load-modify-save cycle.
type ConcurrencyError struct {
	AggregateID     uuid.UUID
	ExpectedVersion int64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("%s: aggregate %s, expected version %d", ErrConcurrencyConflict, e.AggregateID, e.ExpectedVersion)
}

func (e *ConcurrencyError) Unwrap() error {
	return ErrConcurrencyConflict
}
