package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of application spans
const TracerName = "github.com/finsync/backend"

// Span attribute keys used by the synchronization and dashboard services
const (
	SpanAttrEntityType   = "sync.entity_type"
	SpanAttrPeriod       = "sync.period"
	SpanAttrRunID        = "sync.run_id"
	SpanAttrRowsInserted = "sync.rows_inserted"
	SpanAttrRowsDeleted  = "sync.rows_deleted"
	SpanAttrBranches     = "sync.branches"
)

// StartSpan starts an internal span on the global tracer provider. The caller
// ends it.
//
//	ctx, span := telemetry.StartSpan(ctx, "ledgersync.receivables",
//	    attribute.String(telemetry.SpanAttrPeriod, period.String()))
//	defer span.End()
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// RecordError records an error on the span and sets the span status to error.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span as successful.
func SetOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID of the span in ctx, or "" without one
func GetTraceID(ctx context.Context) string {
	traceID := trace.SpanFromContext(ctx).SpanContext().TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}
