package eventstore

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

// AppendBatch is the drained content of an EventStream that is about to be appended.
type AppendBatch struct {
	AggregateType       string
	AggregateID         uuid.UUID
	FirstSequenceNumber int64
	LastSequenceNumber  int64
	Events              []eventsourcing.Event
}

// CollectAppendBatch drains the stream and checks that its events belong to one aggregate
// and carry contiguous sequence numbers.
func CollectAppendBatch(aggregateType string, stream eventsourcing.EventStream) (AppendBatch, error) {
	if aggregateType == "" {
		return AppendBatch{}, ErrEmptyAggregateType
	}

	batch := AppendBatch{AggregateType: aggregateType, AggregateID: stream.AggregateID()}

	for stream.HasNext() {
		event, err := stream.Next()
		if err != nil {
			return AppendBatch{}, err
		}

		sequenceNumber, ok := event.SequenceNumber()
		if !ok {
			return AppendBatch{}, errors.Join(eventsourcing.ErrIllegalState, fmt.Errorf("event %s has no sequence number", event.EventID()))
		}

		if event.AggregateID() != batch.AggregateID {
			return AppendBatch{}, fmt.Errorf("%w: %s and %s", ErrMixedAggregates, batch.AggregateID, event.AggregateID())
		}

		if len(batch.Events) == 0 {
			batch.FirstSequenceNumber = sequenceNumber
		} else if sequenceNumber != batch.LastSequenceNumber+1 {
			return AppendBatch{}, fmt.Errorf("%w: expected %d, got %d",
				eventsourcing.ErrInvalidSequence, batch.LastSequenceNumber+1, sequenceNumber)
		}

		batch.LastSequenceNumber = sequenceNumber
		batch.Events = append(batch.Events, event)
	}

	return batch, nil
}

// IsEmpty reports whether there is nothing to append.
func (b AppendBatch) IsEmpty() bool {
	return len(b.Events) == 0
}

// ContinuesFrom checks that the batch directly follows the last stored sequence number of the aggregate.
// An aggregate without stored events accepts any first sequence number.
func (b AppendBatch) ContinuesFrom(lastStored int64, hasStored bool) error {
	if !hasStored || b.FirstSequenceNumber == lastStored+1 {
		return nil
	}

	return &eventsourcing.ConcurrencyError{AggregateID: b.AggregateID, ExpectedVersion: b.FirstSequenceNumber - 1}
}

// ToStorableEvents encodes the events of the batch with the registry.
func (b AppendBatch) ToStorableEvents(registry *eventsourcing.EventRegistry) (eventsourcing.StorableEvents, error) {
	records := make(eventsourcing.StorableEvents, 0, len(b.Events))

	for _, event := range b.Events {
		record, err := registry.ToStorable(b.AggregateType, event)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}
