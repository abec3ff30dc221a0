package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventstore/memoryengine"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/oteladapters"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/eventstore/estesthelpers"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/testutil/fixtures"
)

func givenTracingCollector(t *testing.T) (*oteladapters.TracingCollector, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return oteladapters.NewTracingCollector(provider.Tracer("test")), recorder
}

func hasAttribute(span sdktrace.ReadOnlySpan, key, value string) bool {
	for _, attr := range span.Attributes() {
		if attr.Key == attribute.Key(key) && attr.Value.AsString() == value {
			return true
		}
	}

	return false
}

func Test_TracingCollector_FinishSpan_MapsTheStatus(t *testing.T) {
	testCases := []struct {
		status       string
		expectedCode codes.Code
	}{
		{status: eventsourcing.StatusSuccess, expectedCode: codes.Ok},
		{status: eventsourcing.StatusError, expectedCode: codes.Error},
		{status: eventsourcing.StatusConflict, expectedCode: codes.Error},
		{status: "rejected", expectedCode: codes.Unset},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			// setup
			collector, recorder := givenTracingCollector(t)

			// act
			_, span := collector.StartSpan(context.Background(), "repository.save", map[string]string{"aggregate_type": "BookCopy"})
			collector.FinishSpan(span, tc.status, map[string]string{"event_count": "2"})

			// assert
			ended := recorder.Ended()
			require.Len(t, ended, 1)
			assert.Equal(t, "repository.save", ended[0].Name())
			assert.Equal(t, tc.expectedCode, ended[0].Status().Code)
			assert.True(t, hasAttribute(ended[0], "aggregate_type", "BookCopy"))
			assert.True(t, hasAttribute(ended[0], "event_count", "2"))
			assert.True(t, hasAttribute(ended[0], "status", tc.status))
		})
	}
}

func Test_TracingCollector_StartSpan_NestsUnderTheSpanOfTheContext(t *testing.T) {
	// setup
	collector, recorder := givenTracingCollector(t)

	// act
	parentCtx, parent := collector.StartSpan(context.Background(), "repository.save", nil)
	_, child := collector.StartSpan(parentCtx, "eventstore.append", nil)
	collector.FinishSpan(child, eventsourcing.StatusSuccess, nil)
	collector.FinishSpan(parent, eventsourcing.StatusSuccess, nil)

	// assert
	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
	assert.Equal(t, ended[1].SpanContext().TraceID(), ended[0].SpanContext().TraceID())
}

func Test_TracingCollector_When_WiredIntoAnEventStore(t *testing.T) {
	// setup
	ctx := context.Background()
	collector, recorder := givenTracingCollector(t)
	es, err := memoryengine.NewEventStore(eventstore.WithTracing(collector))
	require.NoError(t, err)
	bookID := estesthelpers.GivenUniqueID(t)

	// act
	estesthelpers.GivenEventsWereAppended(t, ctx, es, estesthelpers.GivenBookCopyEvents(t, bookID, 0, 2))
	_, err = es.ReadEvents(ctx, fixtures.BookCopyAggregateType, estesthelpers.GivenUniqueID(t))

	// assert
	require.ErrorIs(t, err, eventsourcing.ErrAggregateNotFound)
	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "eventstore.append", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	assert.Equal(t, "eventstore.read", ended[1].Name())
	assert.True(t, hasAttribute(ended[1], "error_type", "not_found"))
}
