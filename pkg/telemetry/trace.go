// Package telemetry extracts OpenTelemetry span context for log
// correlation (FromContext) and exposes a small helper surface for
// annotating spans, used by the retry executor, without requiring
// every caller to import the otel SDK directly.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext holds the identifiers a log line needs to correlate
// with a trace backend.
type TraceContext struct {
	TraceID string
	SpanID  string
	Sampled bool
}

// FromContext extracts the active span's trace context for log
// correlation. Returns the zero value if ctx carries no valid span.
func FromContext(ctx context.Context) TraceContext {
	if ctx == nil {
		return TraceContext{}
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return TraceContext{}
	}
	return TraceContext{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
		Sampled: sc.IsSampled(),
	}
}

// AddEvent records a named event on ctx's active span, if any. Safe to
// call with a nil ctx or no active span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

// RecordError marks ctx's active span as failed and attaches err, if
// there is an active span. Safe to call with a nil ctx or nil err.
func RecordError(ctx context.Context, err error) {
	if ctx == nil || err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
