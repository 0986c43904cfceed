// Package otel names the spans of the sync pipeline and tags failed spans
// with the kind of failure.
package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer name of the ingest and batch layers
const InstrumentationName = "github.com/stacklok/billing-sync-server/sync"

// Span names
const (
	SpanNotify       = "sync.Notify"
	SpanProcessBatch = "sync.ProcessBatch"
	SpanSyncEntity   = "sync.SyncEntity"
)

// Attribute keys used on sync spans
const (
	AttrShardKey      = attribute.Key("sync.shard")
	AttrEntityID      = attribute.Key("sync.entity_id")
	AttrSnapshotCount = attribute.Key("sync.snapshot_count")
	AttrBatchSize     = attribute.Key("sync.batch_size")
	AttrResultCount   = attribute.Key("sync.processed")
	AttrRearmed       = attribute.Key("sync.rearmed")
	AttrErrorKind     = attribute.Key("sync.error_kind")
)

// failedStatus is deliberately generic: upstream payloads and DSNs stay in the exception event
const failedStatus = "sync step failed"

// KindedError is an error that classifies itself, such as a rejected upstream call
type KindedError interface {
	error
	ErrorKind() string
}

// Tracer returns the sync tracer of provider, or nil when provider is nil
func Tracer(provider trace.TracerProvider) trace.Tracer {
	if provider == nil {
		return nil
	}
	return provider.Tracer(InstrumentationName)
}

// Start opens an internal span carrying attrs. A nil tracer yields the span
// already in ctx, which is a no-op when there is none.
func Start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...))
}

// Fail marks span as failed with err. When err wraps a KindedError the kind
// is added as AttrErrorKind. Nil spans and nil errors are ignored.
func Fail(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, failedStatus)

	var kinded KindedError
	if errors.As(err, &kinded) {
		span.SetAttributes(AttrErrorKind.String(kinded.ErrorKind()))
	}
}
