package logrusadapter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
	"github.com/AntonStoeckl/eventsourcing-dispatch-go/logrusadapter"
)

func givenLogger(t *testing.T) (*logrusadapter.Logger, *test.Hook) {
	t.Helper()

	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)

	return logrusadapter.New(base.WithField("component", "eventbus")), hook
}

func Test_Logger_WritesArgsAsFields(t *testing.T) {
	// setup
	logger, hook := givenLogger(t)

	// act
	logger.Info("event published", "listener", "lending", "event_count", 3)

	// assert
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "event published", entry.Message)
	assert.Equal(t, "eventbus", entry.Data["component"])
	assert.Equal(t, "lending", entry.Data["listener"])
	assert.Equal(t, 3, entry.Data["event_count"])
}

func Test_Logger_When_TheArgsCarryAnError(t *testing.T) {
	// setup
	logger, hook := givenLogger(t)
	handlerErr := errors.New("handler failed")

	// act
	logger.ErrorContext(context.Background(), "event handler failed", eventsourcing.LogAttrError, handlerErr, "listener", "lending")
	logger.Warn("releasing the lock failed", eventsourcing.LogAttrError, "lock not held")

	// assert
	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, handlerErr, entries[0].Data[logrus.ErrorKey])
	assert.Equal(t, "lending", entries[0].Data["listener"])
	assert.EqualError(t, entries[1].Data[logrus.ErrorKey].(error), "lock not held")
}

func Test_Logger_When_TheArgsAreMalformed(t *testing.T) {
	// setup
	logger, hook := givenLogger(t)

	// act
	logger.Debug("executed sql", 42, "dangling")

	// assert
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.DebugLevel, entry.Level)
	assert.Contains(t, entry.Data, "!BADKEY")
}

func Test_Logger_AddsTheIDsOfTheActiveSpan(t *testing.T) {
	// setup
	logger, hook := givenLogger(t)
	provider := sdktrace.NewTracerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	ctx, span := provider.Tracer("test").Start(context.Background(), "repository.save")
	defer span.End()

	// act
	logger.DebugContext(ctx, "aggregate saved")

	// assert
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, span.SpanContext().TraceID().String(), entry.Data["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry.Data["span_id"])
	assert.Equal(t, ctx, entry.Context)
}
