package eventsourcing

import (
	"github.com/google/uuid"
)

// EventStream is a forward-only cursor over the ordered events of one aggregate.
// Once Next returned the last event the stream is exhausted and cannot be restarted.
type EventStream interface {
	// AggregateID is the aggregate id of the first event in the stream.
	AggregateID() uuid.UUID
	HasNext() bool
	// Next returns ErrStreamExhausted after the last event.
	Next() (Event, error)
}

type sliceEventStream struct {
	aggregateID uuid.UUID
	events      []Event
	position    int
}

// NewEventStream returns a stream over the given events in the given order.
func NewEventStream(events ...Event) EventStream {
	aggregateID := uuid.Nil
	if len(events) > 0 {
		aggregateID = events[0].AggregateID()
	}

	return newSliceEventStream(aggregateID, events)
}

func newSliceEventStream(fallbackAggregateID uuid.UUID, events []Event) *sliceEventStream {
	aggregateID := fallbackAggregateID
	if len(events) > 0 && events[0].AggregateID() != uuid.Nil {
		aggregateID = events[0].AggregateID()
	}

	return &sliceEventStream{aggregateID: aggregateID, events: events}
}

// AggregateID returns the aggregate id of the first event.
func (s *sliceEventStream) AggregateID() uuid.UUID {
	return s.aggregateID
}

// HasNext reports whether Next returns another event.
func (s *sliceEventStream) HasNext() bool {
	return s.position < len(s.events)
}

// Next returns the next event and advances the stream.
func (s *sliceEventStream) Next() (Event, error) {
	if !s.HasNext() {
		return nil, ErrStreamExhausted
	}

	event := s.events[s.position]
	s.position++

	return event, nil
}

// decodingEventStream decodes the stored records one by one while the stream is consumed.
type decodingEventStream struct {
	aggregateID uuid.UUID
	records     StorableEvents
	registry    *EventRegistry
	position    int
}

func (s *decodingEventStream) AggregateID() uuid.UUID {
	return s.aggregateID
}

func (s *decodingEventStream) HasNext() bool {
	return s.position < len(s.records)
}

// Next decodes and returns the next stored event.
func (s *decodingEventStream) Next() (Event, error) {
	if !s.HasNext() {
		return nil, ErrStreamExhausted
	}

	record := s.records[s.position]
	s.position++

	return s.registry.FromStorable(record)
}

// ReadAll drains the stream into a slice.
func ReadAll(stream EventStream) ([]Event, error) {
	events := make([]Event, 0)

	for stream.HasNext() {
		event, err := stream.Next()
		if err != nil {
			return events, err
		}

		events = append(events, event)
	}

	return events, nil
}
