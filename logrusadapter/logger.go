// Package logrusadapter lets a logrus logger serve as eventsourcing.Logger and eventsourcing.ContextualLogger.
package logrusadapter

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/eventsourcing-dispatch-go/eventsourcing"
)

const (
	fieldTraceID = "trace_id"
	fieldSpanID  = "span_id"
	fieldBadKey  = "!BADKEY"
)

// Logger writes key-value args as logrus fields.
// The contextual methods add the trace and span ids of an active OpenTelemetry span.
type Logger struct {
	entry *logrus.Entry
}

// New creates a Logger on the entry, e.g. logrus.WithField("component", "eventbus").
func New(entry *logrus.Entry) *Logger {
	return &Logger{entry: entry}
}

// NewFromLogger creates a Logger on the logger.
func NewFromLogger(logger *logrus.Logger) *Logger {
	return &Logger{entry: logrus.NewEntry(logger)}
}

// Debug logs at debug level with the args as fields.
func (l *Logger) Debug(msg string, args ...any) {
	l.withFields(context.Background(), args).Debug(msg)
}

// Info logs at info level with the args as fields.
func (l *Logger) Info(msg string, args ...any) {
	l.withFields(context.Background(), args).Info(msg)
}

// Warn logs at warn level with the args as fields.
func (l *Logger) Warn(msg string, args ...any) {
	l.withFields(context.Background(), args).Warn(msg)
}

// Error logs at error level with the args as fields.
func (l *Logger) Error(msg string, args ...any) {
	l.withFields(context.Background(), args).Error(msg)
}

// DebugContext logs at debug level, adding the trace and span ids of ctx.
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.withFields(ctx, args).Debug(msg)
}

// InfoContext logs at info level, adding the trace and span ids of ctx.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.withFields(ctx, args).Info(msg)
}

// WarnContext logs at warn level, adding the trace and span ids of ctx.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.withFields(ctx, args).Warn(msg)
}

// ErrorContext logs at error level, adding the trace and span ids of ctx.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.withFields(ctx, args).Error(msg)
}

func (l *Logger) withFields(ctx context.Context, args []any) *logrus.Entry {
	fields := make(logrus.Fields, len(args)/2+2)

	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || i+1 == len(args) {
			fields[fieldBadKey] = args[i]
			continue
		}

		fields[key] = args[i+1]
	}

	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields[fieldTraceID] = spanCtx.TraceID().String()
		fields[fieldSpanID] = spanCtx.SpanID().String()
	}

	if errValue, ok := fields[eventsourcing.LogAttrError]; ok {
		delete(fields, eventsourcing.LogAttrError)
		return l.entry.WithContext(ctx).WithFields(fields).WithError(asError(errValue))
	}

	return l.entry.WithContext(ctx).WithFields(fields)
}

func asError(value any) error {
	if err, ok := value.(error); ok {
		return err
	}

	return fmt.Errorf("%v", value)
}

var (
	_ eventsourcing.Logger           = (*Logger)(nil)
	_ eventsourcing.ContextualLogger = (*Logger)(nil)
)
