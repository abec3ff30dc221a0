package eventhandling_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing/eventhandling"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/eventstore/estesthelpers"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/fixtures"
)

type lendingProjection struct {
	lentTo map[uuid.UUID]uuid.UUID
}

func newLendingProjectionAdapter(policy eventhandling.SequencingPolicy) *eventhandling.ListenerAdapter[*lendingProjection] {
	table := eventsourcing.NewHandlerTable[*lendingProjection]()

	eventsourcing.On(table, func(_ context.Context, p *lendingProjection, e *fixtures.BookCopyLentToReader) error {
		p.lentTo[e.AggregateID()] = e.ReaderID
		return nil
	}, eventsourcing.WithCommitThreshold(25))

	eventsourcing.On(table, func(_ context.Context, p *lendingProjection, e *fixtures.BookCopyReturnedByReader) error {
		if _, ok := p.lentTo[e.AggregateID()]; !ok {
			return errHandlerFailed
		}

		delete(p.lentTo, e.AggregateID())

		return nil
	})

	return eventhandling.NewListenerAdapter(&lendingProjection{lentTo: map[uuid.UUID]uuid.UUID{}}, table, policy)
}

func Test_ListenerAdapter_DispatchesToTheResolvedHandler(t *testing.T) {
	// setup
	ctx := context.Background()
	adapter := newLendingProjectionAdapter(nil)
	bookID := estesthelpers.GivenUniqueID(t)
	events := givenEvents(t, bookID, 3) // added, lent, returned

	// act & assert
	assert.False(t, adapter.CanHandle(reflect.TypeOf(events[0])))
	assert.True(t, adapter.CanHandle(reflect.TypeOf(events[1])))

	require.NoError(t, adapter.Handle(ctx, events[1]))
	assert.Contains(t, adapter.Target().lentTo, bookID)

	require.NoError(t, adapter.Handle(ctx, events[2]))
	assert.NotContains(t, adapter.Target().lentTo, bookID)

	assert.ErrorIs(t, adapter.Handle(ctx, events[2]), errHandlerFailed)

	var unhandled *eventsourcing.UnhandledEventError
	assert.ErrorAs(t, adapter.Handle(ctx, events[0]), &unhandled)
}

func Test_ListenerAdapter_CommitThresholdAndPolicy(t *testing.T) {
	// setup
	events := givenEvents(t, estesthelpers.GivenUniqueID(t), 3)

	// act
	defaulted := newLendingProjectionAdapter(nil)
	perAggregate := newLendingProjectionAdapter(eventhandling.SequentialPerAggregatePolicy{})

	// assert
	assert.Equal(t, 25, defaulted.CommitThreshold(events[1]))
	assert.Equal(t, 0, defaulted.CommitThreshold(events[2]))
	assert.IsType(t, eventhandling.SequentialPolicy{}, defaulted.SequencingPolicy())
	assert.IsType(t, eventhandling.SequentialPerAggregatePolicy{}, perAggregate.SequencingPolicy())
}

func Test_SequencingPolicies(t *testing.T) {
	// setup
	first := givenEvents(t, estesthelpers.GivenUniqueID(t), 2)
	second := givenEvents(t, estesthelpers.GivenUniqueID(t), 1)

	// sequential: one key for everything
	keyA, okA := eventhandling.SequentialPolicy{}.SequenceKey(first[0])
	keyB, okB := eventhandling.SequentialPolicy{}.SequenceKey(second[0])
	assert.True(t, okA && okB)
	assert.Equal(t, keyA, keyB)

	// full concurrency: no key at all
	_, ok := eventhandling.FullConcurrencyPolicy{}.SequenceKey(first[0])
	assert.False(t, ok)

	// per aggregate: the aggregate id
	keyA, _ = eventhandling.SequentialPerAggregatePolicy{}.SequenceKey(first[0])
	keyB, _ = eventhandling.SequentialPerAggregatePolicy{}.SequenceKey(first[1])
	keyC, _ := eventhandling.SequentialPerAggregatePolicy{}.SequenceKey(second[0])
	assert.Equal(t, keyA, keyB)
	assert.NotEqual(t, keyA, keyC)

	// func adapter
	policy := eventhandling.SequencingPolicyFunc(func(event eventsourcing.Event) (any, bool) {
		return reflect.TypeOf(event), true
	})
	key, ok := policy.SequenceKey(first[1])
	assert.True(t, ok)
	assert.Equal(t, reflect.TypeOf(first[1]), key)
}
