package eventsourcing_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/fixtures"
)

type handledBy struct {
	calls []string
}

func Test_HandlerTable_Dispatch_PrefersTheExactType(t *testing.T) {
	// arrange
	table := eventsourcing.NewHandlerTable[*handledBy]()
	eventsourcing.When(table, func(h *handledBy, _ fixtures.BookCopyEvent) { h.calls = append(h.calls, "any book copy event") })
	eventsourcing.When(table, func(h *handledBy, _ *fixtures.BookCopyLentToReader) { h.calls = append(h.calls, "lent") })
	target := &handledBy{}

	// act
	err := table.Dispatch(context.Background(), target, fixtures.BuildBookCopyLentToReader(uuid.New(), time.Now()))

	// assert
	require.NoError(t, err)
	assert.Equal(t, []string{"lent"}, target.calls)
}

func Test_HandlerTable_Dispatch_PrefersTheMoreSpecificInterface(t *testing.T) {
	// arrange
	table := eventsourcing.NewHandlerTable[*handledBy]()
	eventsourcing.When(table, func(h *handledBy, _ eventsourcing.Event) { h.calls = append(h.calls, "event") })
	eventsourcing.When(table, func(h *handledBy, _ fixtures.BookCopyEvent) { h.calls = append(h.calls, "book copy") })
	eventsourcing.When(table, func(h *handledBy, _ fixtures.LendingEvent) { h.calls = append(h.calls, "lending") })
	target := &handledBy{}

	// act
	require.NoError(t, table.Dispatch(context.Background(), target, fixtures.BuildBookCopyReturnedByReader(uuid.New(), time.Now())))
	require.NoError(t, table.Dispatch(context.Background(), target, fixtures.BuildBookCopyRemovedFromCirculation(time.Now())))
	require.NoError(t, table.Dispatch(context.Background(), target, fixtures.BuildSomethingHasHappened("x", time.Now())))

	// assert
	assert.Equal(t, []string{"lending", "book copy", "event"}, target.calls)
}

func Test_HandlerTable_Dispatch_When_TwoUnrelatedInterfacesMatch_TheFirstRegisteredWins(t *testing.T) {
	// arrange
	type reader interface{ Reader() uuid.UUID }

	table := eventsourcing.NewHandlerTable[*handledBy]()
	eventsourcing.When(table, func(h *handledBy, _ fixtures.BookCopyEvent) { h.calls = append(h.calls, "book copy") })
	eventsourcing.On(table, func(_ context.Context, h *handledBy, _ interface {
		eventsourcing.Event
		reader
	}) error {
		h.calls = append(h.calls, "reader")
		return nil
	})
	target := &handledBy{}

	// act
	err := table.Dispatch(context.Background(), target, fixtures.BuildBookCopyLentToReader(uuid.New(), time.Now()))

	// assert
	require.NoError(t, err)
	assert.Equal(t, []string{"book copy"}, target.calls)
}

func Test_HandlerTable_Dispatch_When_NoHandlerMatches(t *testing.T) {
	// arrange
	table := eventsourcing.NewHandlerTable[*handledBy]()
	eventsourcing.When(table, func(h *handledBy, _ fixtures.BookCopyEvent) {})
	unknown := fixtures.BuildSomethingHasHappened("x", time.Now())

	// act
	err := table.Dispatch(context.Background(), &handledBy{}, unknown)

	// assert
	var unhandledErr *eventsourcing.UnhandledEventError
	require.True(t, errors.As(err, &unhandledErr))
	assert.Same(t, unknown, unhandledErr.Event)
	assert.False(t, table.CanHandle(reflect.TypeOf(unknown)))
}

func Test_HandlerTable_On_PropagatesHandlerErrorsAndCommitThreshold(t *testing.T) {
	// arrange
	errBoom := errors.New("boom")
	table := eventsourcing.NewHandlerTable[*handledBy]()
	eventsourcing.On(table, func(_ context.Context, _ *handledBy, _ *fixtures.BookCopyAddedToCirculation) error {
		return errBoom
	}, eventsourcing.WithCommitThreshold(25))
	event := fixtures.BuildBookCopyAddedToCirculation("isbn", "title", time.Now())

	// act
	err := table.Dispatch(context.Background(), &handledBy{}, event)

	// assert
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, table.CanHandle(reflect.TypeOf(event)))
	assert.Equal(t, 25, table.CommitThreshold(reflect.TypeOf(event)))
	assert.Equal(t, 0, table.CommitThreshold(reflect.TypeOf(&fixtures.SomethingHasHappened{})))
}
