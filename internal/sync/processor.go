package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/stacklok/billing-sync-server/internal/config"
	"github.com/stacklok/billing-sync-server/internal/otel"
	"github.com/stacklok/billing-sync-server/internal/sync/state"
	"github.com/stacklok/billing-sync-server/internal/telemetry"
)

// BatchResult summarizes one batch pass.
type BatchResult struct {
	// Read is the number of rows read, including the look-ahead probe
	Read int `json:"read"`
	// Processed is the number of entities handed to the sync client
	Processed int `json:"processed"`
	// Synced is the number of entities synced and removed from the pending set
	Synced int `json:"synced"`
	// Failed is the number of entities whose sync failed; their rows are kept
	Failed int `json:"failed"`
	// Retained is the number of entities synced while a newer notification
	// arrived; their rows are kept for a later pass
	Retained int `json:"retained"`
	// Rearmed reports whether the pass armed the next wake, either because it
	// found more work than one batch holds or because an entity failed
	Rearmed bool `json:"rearmed"`
}

type entityOutcome struct {
	entityID string
	outcome  string
}

// BatchProcessor runs bounded passes over the oldest pending entities.
type BatchProcessor struct {
	pending state.PendingWorkStore
	timer   state.WakeTimer
	client  SyncClient

	batchSize          int
	interval           time.Duration
	concurrency        int
	alertAfterFailures int64
	shardKey           string

	clock   clock.PassiveClock
	metrics *telemetry.SyncMetrics
	tracer  trace.Tracer

	// mu keeps passes from overlapping
	mu gosync.Mutex
}

// ProcessorOption configures a BatchProcessor
type ProcessorOption func(*BatchProcessor)

// WithConcurrency sets the number of workers of a pass
func WithConcurrency(n int) ProcessorOption {
	return func(p *BatchProcessor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithAlertAfterFailures makes the processor log an alert once an entity has
// failed n times in a row. Zero disables alerting.
func WithAlertAfterFailures(n int64) ProcessorOption {
	return func(p *BatchProcessor) {
		p.alertAfterFailures = n
	}
}

// WithProcessorClock sets the clock used for re-arming and failure stamps
func WithProcessorClock(clk clock.PassiveClock) ProcessorOption {
	return func(p *BatchProcessor) {
		p.clock = clk
	}
}

// WithSyncMetrics sets the pass metrics
func WithSyncMetrics(metrics *telemetry.SyncMetrics) ProcessorOption {
	return func(p *BatchProcessor) {
		p.metrics = metrics
	}
}

// WithProcessorTracer sets the tracer used for pass and entity spans
func WithProcessorTracer(tracer trace.Tracer) ProcessorOption {
	return func(p *BatchProcessor) {
		p.tracer = tracer
	}
}

// WithProcessorShardKey sets the shard key reported in logs and metrics
func WithProcessorShardKey(shardKey string) ProcessorOption {
	return func(p *BatchProcessor) {
		p.shardKey = shardKey
	}
}

// NewBatchProcessor creates a BatchProcessor. batchSize and interval must be positive.
func NewBatchProcessor(
	pending state.PendingWorkStore,
	timer state.WakeTimer,
	client SyncClient,
	batchSize int,
	interval time.Duration,
	opts ...ProcessorOption,
) (*BatchProcessor, error) {
	if batchSize <= 0 {
		return nil, &config.ConfigurationError{Field: "sync.batchSize", Message: "must be greater than zero"}
	}
	if interval <= 0 {
		return nil, &config.ConfigurationError{Field: "sync.syncIntervalSeconds", Message: "must be greater than zero"}
	}

	p := &BatchProcessor{
		pending:     pending,
		timer:       timer,
		client:      client,
		batchSize:   batchSize,
		interval:    interval,
		concurrency: config.DefaultConcurrency,
		shardKey:    config.DefaultShardKey,
		clock:       clock.RealClock{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// ProcessBatch runs one pass: it reads the oldest batchSize entities plus one
// look-ahead row, re-arms the wake timer when the probe shows more work,
// syncs the batch with a fixed pool of workers and removes each synced entity
// only if no notification arrived for it since the read.
//
// A failure to read the pending set or to re-arm is returned as a
// *PersistenceError. Per-entity failures are recorded on the entity's row
// and reported in the result only.
func (p *BatchProcessor) ProcessBatch(ctx context.Context) (*BatchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := otel.Start(ctx, p.tracer, otel.SpanProcessBatch,
		otel.AttrShardKey.String(p.shardKey),
		otel.AttrBatchSize.Int(p.batchSize))
	defer span.End()

	start := p.clock.Now()
	result, err := p.processBatch(ctx)
	p.metrics.RecordPassDuration(ctx, p.shardKey, p.clock.Since(start), err == nil)
	if err != nil {
		otel.Fail(span, err)
		return nil, err
	}

	span.SetAttributes(
		otel.AttrResultCount.Int(result.Processed),
		otel.AttrRearmed.Bool(result.Rearmed),
	)

	if depth, err := p.pending.Depth(ctx); err != nil {
		slog.Warn("Failed to read pending depth", "shard", p.shardKey, "error", err)
	} else {
		p.metrics.RecordPendingDepth(ctx, p.shardKey, depth)
	}

	return result, nil
}

func (p *BatchProcessor) processBatch(ctx context.Context) (*BatchResult, error) {
	rows, err := p.pending.ListOldest(ctx, p.batchSize+1)
	if err != nil {
		return nil, &PersistenceError{Op: "list pending work", Err: err}
	}

	result := &BatchResult{Read: len(rows)}
	if len(rows) == 0 {
		slog.Debug("No pending work", "shard", p.shardKey)
		return result, nil
	}

	if len(rows) > p.batchSize {
		if err := p.rearm(ctx); err != nil {
			return nil, err
		}
		result.Rearmed = true
		rows = rows[:p.batchSize]
	}
	result.Processed = len(rows)

	slog.Info("Starting batch pass",
		"shard", p.shardKey,
		"entities", len(rows),
		"rearmed", result.Rearmed)

	for _, o := range p.fanOut(ctx, rows) {
		switch o.outcome {
		case telemetry.OutcomeSynced:
			result.Synced++
		case telemetry.OutcomeRetained:
			result.Retained++
		default:
			result.Failed++
		}
	}

	// Failed rows are still pending but the wake that led here was claimed
	if result.Failed > 0 && !result.Rearmed {
		if err := p.rearm(ctx); err != nil {
			return nil, err
		}
		result.Rearmed = true
	}

	slog.Info("Batch pass completed",
		"shard", p.shardKey,
		"synced", result.Synced,
		"retained", result.Retained,
		"failed", result.Failed,
		"rearmed", result.Rearmed)

	return result, nil
}

// rearm schedules the next pass one sync interval from now
func (p *BatchProcessor) rearm(ctx context.Context) error {
	wakeAt := p.clock.Now().UTC().Add(p.interval)
	if _, err := p.timer.ArmIfIdle(context.WithoutCancel(ctx), wakeAt); err != nil {
		return &PersistenceError{Op: "re-arm wake timer", Err: err}
	}
	return nil
}

// fanOut feeds rows to a fixed pool of workers and collects one outcome per
// row. Workers never return an error so one entity cannot cancel another.
// Once ctx is done no further entity is started; rows not started stay
// pending.
func (p *BatchProcessor) fanOut(ctx context.Context, rows []state.PendingWork) []entityOutcome {
	work := make(chan state.PendingWork)
	outcomes := make(chan entityOutcome, len(rows))

	var g errgroup.Group
	for range min(p.concurrency, len(rows)) {
		g.Go(func() error {
			for item := range work {
				outcomes <- entityOutcome{
					entityID: item.EntityID,
					outcome:  p.processEntity(ctx, item),
				}
			}
			return nil
		})
	}

dispatch:
	for _, item := range rows {
		select {
		case work <- item:
		case <-ctx.Done():
			slog.Warn("Batch pass interrupted, remaining entities stay pending",
				"shard", p.shardKey,
				"error", ctx.Err())
			break dispatch
		}
	}
	close(work)
	_ = g.Wait()
	close(outcomes)

	collected := make([]entityOutcome, 0, len(rows))
	for o := range outcomes {
		collected = append(collected, o)
	}
	return collected
}

// processEntity syncs one entity and settles its pending row. A started sync
// is not cancelled with the pass.
func (p *BatchProcessor) processEntity(ctx context.Context, item state.PendingWork) (outcome string) {
	ctx = context.WithoutCancel(ctx)

	ctx, span := otel.Start(ctx, p.tracer, otel.SpanSyncEntity,
		otel.AttrEntityID.String(item.EntityID),
		otel.AttrSnapshotCount.Int64(item.Count))
	defer span.End()

	defer func() {
		p.metrics.RecordEntityOutcome(ctx, p.shardKey, outcome)
	}()

	if err := p.syncEntity(ctx, item.EntityID); err != nil {
		otel.Fail(span, err)
		p.recordFailure(ctx, item, err)
		return telemetry.OutcomeFailed
	}

	deleted, err := p.pending.DeleteIfCount(ctx, item.EntityID, item.Count)
	if err != nil {
		otel.Fail(span, err)
		slog.Error("Failed to remove synced entity, it will be synced again",
			"shard", p.shardKey,
			"entity_id", item.EntityID,
			"error", err)
		return telemetry.OutcomeFailed
	}
	if !deleted {
		slog.Debug("Entity changed during sync, keeping it pending",
			"shard", p.shardKey,
			"entity_id", item.EntityID,
			"snapshot_count", item.Count)
		return telemetry.OutcomeRetained
	}

	slog.Debug("Entity synced", "shard", p.shardKey, "entity_id", item.EntityID)
	return telemetry.OutcomeSynced
}

// syncEntity calls the sync client, turning a panic into a transient SyncError.
func (p *BatchProcessor) syncEntity(ctx context.Context, entityID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SyncError{
				Kind:     SyncErrorTransient,
				EntityID: entityID,
				Err:      fmt.Errorf("panic during sync: %v", r),
			}
		}
	}()

	if err := p.client.Sync(ctx, entityID); err != nil {
		var syncErr *SyncError
		if errors.As(err, &syncErr) {
			return err
		}
		return &SyncError{Kind: SyncErrorTransient, EntityID: entityID, Err: err}
	}
	return nil
}

func (p *BatchProcessor) recordFailure(ctx context.Context, item state.PendingWork, syncErr error) {
	if err := p.pending.RecordFailure(ctx, item.EntityID, syncErr.Error(), p.clock.Now().UTC()); err != nil {
		slog.Error("Failed to record sync failure",
			"shard", p.shardKey,
			"entity_id", item.EntityID,
			"error", err)
	}

	attempts := item.Attempts + 1
	if p.alertAfterFailures > 0 && attempts >= p.alertAfterFailures {
		slog.Error("Entity keeps failing to sync",
			"shard", p.shardKey,
			"entity_id", item.EntityID,
			"attempts", attempts,
			"alert", true,
			"error", syncErr)
		return
	}

	slog.Warn("Entity sync failed, keeping it pending",
		"shard", p.shardKey,
		"entity_id", item.EntityID,
		"attempts", attempts,
		"error", syncErr)
}
