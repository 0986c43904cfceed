package sync

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"k8s.io/utils/clock"

	"github.com/stacklok/billing-sync-server/internal/otel"
	"github.com/stacklok/billing-sync-server/internal/sync/state"
	"github.com/stacklok/billing-sync-server/internal/telemetry"
)

// Notifier accepts change notifications for entities.
type Notifier interface {
	Notify(ctx context.Context, entityID string) error
}

// Ingestor records change notifications durably and arms the wake timer.
type Ingestor struct {
	pending  state.PendingWorkStore
	timer    state.WakeTimer
	interval time.Duration
	shardKey string

	clock   clock.PassiveClock
	metrics *telemetry.IngestMetrics
	tracer  trace.Tracer

	nudge chan struct{}
}

// IngestorOption configures an Ingestor
type IngestorOption func(*Ingestor)

// WithIngestClock sets the clock used to stamp notifications
func WithIngestClock(clk clock.PassiveClock) IngestorOption {
	return func(i *Ingestor) {
		i.clock = clk
	}
}

// WithIngestMetrics sets the notification metrics
func WithIngestMetrics(metrics *telemetry.IngestMetrics) IngestorOption {
	return func(i *Ingestor) {
		i.metrics = metrics
	}
}

// WithIngestTracer sets the tracer used for notification spans
func WithIngestTracer(tracer trace.Tracer) IngestorOption {
	return func(i *Ingestor) {
		i.tracer = tracer
	}
}

// WithIngestShardKey sets the shard key reported in metrics
func WithIngestShardKey(shardKey string) IngestorOption {
	return func(i *Ingestor) {
		i.shardKey = shardKey
	}
}

// NewIngestor creates an Ingestor. interval is the delay between the first
// notification of a quiet period and the wake it schedules.
func NewIngestor(
	pending state.PendingWorkStore,
	timer state.WakeTimer,
	interval time.Duration,
	opts ...IngestorOption,
) *Ingestor {
	i := &Ingestor{
		pending:  pending,
		timer:    timer,
		interval: interval,
		clock:    clock.RealClock{},
		nudge:    make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Notify records one change of entityID. It never calls the billing provider.
// A failure to persist is a *PersistenceError; the caller is expected to retry.
func (i *Ingestor) Notify(ctx context.Context, entityID string) error {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return ErrInvalidEntityID
	}

	ctx, span := otel.Start(ctx, i.tracer, otel.SpanNotify, otel.AttrEntityID.String(entityID))
	defer span.End()

	now := i.clock.Now().UTC()

	work, err := i.pending.Upsert(ctx, entityID, now)
	if err != nil {
		otel.Fail(span, err)
		return &PersistenceError{Op: "upsert pending work", Err: err}
	}

	armed, err := i.timer.ArmIfIdle(ctx, now.Add(i.interval))
	if err != nil {
		otel.Fail(span, err)
		return &PersistenceError{Op: "arm wake timer", Err: err}
	}

	i.metrics.RecordNotification(ctx, i.shardKey, armed)

	if armed {
		slog.Debug("Armed wake timer",
			"entity_id", entityID,
			"wake_at", now.Add(i.interval))
		i.signal()
	}

	slog.Debug("Recorded notification",
		"entity_id", entityID,
		"count", work.Count)

	return nil
}

// Nudges delivers a signal whenever a notification arms an idle wake timer.
// Signals coalesce; a reader sees at most one pending signal.
func (i *Ingestor) Nudges() <-chan struct{} {
	return i.nudge
}

func (i *Ingestor) signal() {
	select {
	case i.nudge <- struct{}{}:
	default:
	}
}
