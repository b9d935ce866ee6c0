// Package telemetry wraps OpenTelemetry tracing for the merge, encode, and
// reconcile paths. Without a configured provider the global no-op tracer is
// used, so spans cost nothing in the CLI's default mode.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer.
const InstrumentationName = "github.com/roach88/galactic"

// Span names.
const (
	SpanApply     = "merge.Apply"
	SpanBucket    = "merge.bucket"
	SpanEncode    = "codec.Encode"
	SpanReadFiles = "codec.ReadBatchFiles"
	SpanReconcile = "mel.Reconcile"
	SpanSave      = "workspace.Save"
)

// Tracer returns the package tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Start opens a span with the given attributes.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Counts attaches integer results to span.
func Counts(span trace.Span, kv map[string]int) {
	attrs := make([]attribute.KeyValue, 0, len(kv))
	for k, v := range kv {
		attrs = append(attrs, attribute.Int(k, v))
	}
	span.SetAttributes(attrs...)
}
