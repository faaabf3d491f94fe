package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationScope = "github.com/MrWong99/mockinterview"

// SessionIDKey is the attribute key carrying the interview session id on
// spans and log records.
const SessionIDKey = "session_id"

type sessionKey struct{}

// WithSessionID returns a copy of ctx tagged with an interview session id.
// Spans started with [StartSpan] and loggers obtained from [Logger] pick it
// up automatically.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID returns the session id stored by [WithSessionID], or "".
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// StartSpan starts a span on the global tracer provider. A session id found
// in ctx is recorded as a span attribute. The caller ends the span, usually
// through [EndSpan].
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if id := SessionID(ctx); id != "" {
		opts = append(opts, trace.WithAttributes(attribute.String(SessionIDKey, id)))
	}
	return otel.Tracer(instrumentationScope).Start(ctx, name, opts...)
}

// EndSpan marks span as failed when err is non-nil, using status as the
// description, and then ends it.
func EndSpan(span trace.Span, err error, status string) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
	}
	span.End()
}

// CorrelationID is the hex trace id of the span in ctx, or "" without one.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with the session id and the active
// trace and span ids from ctx attached, where present.
func Logger(ctx context.Context) *slog.Logger {
	var attrs []any
	if id := SessionID(ctx); id != "" {
		attrs = append(attrs, slog.String(SessionIDKey, id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if len(attrs) == 0 {
		return slog.Default()
	}
	return slog.Default().With(attrs...)
}
