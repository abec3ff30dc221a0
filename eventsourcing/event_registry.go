package eventsourcing

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventRegistry maps event type names to the Go types of domain events,
// so that storage engines can turn events into StorableEvent records and back.
type EventRegistry struct {
	mu        sync.RWMutex
	factories map[string]func() Event
	names     map[reflect.Type]string
}

// NewEventRegistry creates an empty EventRegistry.
func NewEventRegistry() *EventRegistry {
	return &EventRegistry{
		factories: make(map[string]func() Event),
		names:     make(map[reflect.Type]string),
	}
}

// Register binds the event type name to the Go type returned by factory.
// The factory must return a new pointer to a zero event on every call.
func (r *EventRegistry) Register(eventType string, factory func() Event) error {
	if eventType == "" {
		return ErrEmptyEventType
	}

	sample := factory()
	if sample == nil {
		return fmt.Errorf("register %s: factory returned nil", eventType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[eventType] = factory
	r.names[reflect.TypeOf(sample)] = eventType

	return nil
}

// MustRegister is like Register but panics on error, meant for package level wiring.
func (r *EventRegistry) MustRegister(eventType string, factory func() Event) *EventRegistry {
	if err := r.Register(eventType, factory); err != nil {
		panic(err)
	}

	return r
}

// EventTypeOf returns the registered name of the event's Go type.
func (r *EventRegistry) EventTypeOf(event Event) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.names[reflect.TypeOf(event)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEventType, reflect.TypeOf(event))
	}

	return name, nil
}

// ToStorable encodes an event whose aggregate id and sequence number are assigned.
func (r *EventRegistry) ToStorable(aggregateType string, event Event) (StorableEvent, error) {
	eventType, err := r.EventTypeOf(event)
	if err != nil {
		return StorableEvent{}, errors.Join(ErrEncodingEventFailed, err)
	}

	sequenceNumber, ok := event.SequenceNumber()
	if !ok || event.AggregateID() == uuid.Nil {
		return StorableEvent{}, errors.Join(ErrEncodingEventFailed, ErrIllegalState)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return StorableEvent{}, errors.Join(ErrEncodingEventFailed, err)
	}

	return BuildStorableEvent(
		event.EventID(),
		aggregateType,
		event.AggregateID(),
		sequenceNumber,
		eventType,
		event.OccurredAt(),
		payload,
	)
}

// FromStorable rebuilds the domain event from a stored record.
func (r *EventRegistry) FromStorable(record StorableEvent) (Event, error) {
	r.mu.RLock()
	factory, ok := r.factories[record.EventType]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Join(ErrEventStorage, ErrDecodingEventFailed, fmt.Errorf("%w: %s", ErrUnknownEventType, record.EventType))
	}

	event := factory()
	if err := json.Unmarshal(record.PayloadJSON, event); err != nil {
		return nil, errors.Join(ErrEventStorage, ErrDecodingEventFailed, err)
	}

	event.base().restore(record.EventID, record.AggregateID, record.SequenceNumber, record.OccurredAt)

	return event, nil
}

// Stream returns a stream that decodes the records lazily while being consumed.
func (r *EventRegistry) Stream(aggregateID uuid.UUID, records StorableEvents) EventStream {
	if len(records) > 0 {
		aggregateID = records[0].AggregateID
	}

	return &decodingEventStream{aggregateID: aggregateID, records: records, registry: r}
}

// ToStorableEvents drains the stream and encodes every event.
func (r *EventRegistry) ToStorableEvents(aggregateType string, stream EventStream) (StorableEvents, error) {
	records := make(StorableEvents, 0)

	for stream.HasNext() {
		event, err := stream.Next()
		if err != nil {
			return nil, err
		}

		record, err := r.ToStorable(aggregateType, event)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}
