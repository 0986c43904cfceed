// Package telemetry provides OpenTelemetry instrumentation for the billing sync server.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/stacklok/billing-sync-server/sync"

	// IngestMetricsMeterName is the name used for the notification ingestion meter
	IngestMetricsMeterName = "github.com/stacklok/billing-sync-server/ingest"
)

// Entity outcomes reported by RecordEntityOutcome
const (
	OutcomeSynced   = "synced"
	OutcomeRetained = "retained"
	OutcomeFailed   = "failed"
)

// SyncMetrics holds the OpenTelemetry instruments for batch pass metrics
type SyncMetrics struct {
	passDuration  metric.Float64Histogram
	entitiesTotal metric.Int64Counter
	pendingDepth  metric.Int64Gauge
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	passDuration, err := meter.Float64Histogram(
		"billing_sync_pass_duration_seconds",
		metric.WithDescription("Duration of batch sync passes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	entitiesTotal, err := meter.Int64Counter(
		"billing_sync_entities_total",
		metric.WithDescription("Number of entities processed by batch passes, by outcome"),
		metric.WithUnit("{entity}"),
	)
	if err != nil {
		return nil, err
	}

	pendingDepth, err := meter.Int64Gauge(
		"billing_sync_pending_depth",
		metric.WithDescription("Number of entities awaiting a sync"),
		metric.WithUnit("{entity}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		passDuration:  passDuration,
		entitiesTotal: entitiesTotal,
		pendingDepth:  pendingDepth,
	}, nil
}

// RecordPassDuration records the duration of one batch pass of a shard
func (m *SyncMetrics) RecordPassDuration(ctx context.Context, shardKey string, duration time.Duration, success bool) {
	if m == nil || m.passDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("shard", shardKey),
		attribute.Bool("success", success),
	}

	m.passDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordEntityOutcome counts one processed entity with the given outcome
func (m *SyncMetrics) RecordEntityOutcome(ctx context.Context, shardKey, outcome string) {
	if m == nil || m.entitiesTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("shard", shardKey),
		attribute.String("outcome", outcome),
	}

	m.entitiesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPendingDepth records the number of entities still awaiting a sync
func (m *SyncMetrics) RecordPendingDepth(ctx context.Context, shardKey string, depth int64) {
	if m == nil || m.pendingDepth == nil {
		return
	}

	m.pendingDepth.Record(ctx, depth, metric.WithAttributes(attribute.String("shard", shardKey)))
}

// IngestMetrics holds the OpenTelemetry instruments for notification ingestion
type IngestMetrics struct {
	notificationsTotal metric.Int64Counter
}

// NewIngestMetrics creates a new IngestMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewIngestMetrics(provider metric.MeterProvider) (*IngestMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(IngestMetricsMeterName)

	notificationsTotal, err := meter.Int64Counter(
		"billing_sync_notifications_total",
		metric.WithDescription("Number of change notifications received"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	return &IngestMetrics{
		notificationsTotal: notificationsTotal,
	}, nil
}

// RecordNotification counts one notification. armed reports whether it armed the wake timer.
func (m *IngestMetrics) RecordNotification(ctx context.Context, shardKey string, armed bool) {
	if m == nil || m.notificationsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("shard", shardKey),
		attribute.Bool("armed", armed),
	}

	m.notificationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}
