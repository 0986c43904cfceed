// Package kafka consumes billing provider events from a Kafka topic and
// turns the relevant ones into change notifications.
//
// A message is committed only after its notification has been recorded, so
// a crash between fetch and commit redelivers the event. Redelivery is
// harmless because notifications for the same entity coalesce.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"

	"github.com/stacklok/billing-sync-server/internal/config"
	"github.com/stacklok/billing-sync-server/internal/ingress/event"
	"github.com/stacklok/billing-sync-server/internal/sync"
)

const (
	defaultMinBytes = 1
	defaultMaxBytes = 10 << 20

	// DefaultMaxRetryInterval caps the wait between attempts to record a notification
	DefaultMaxRetryInterval = 30 * time.Second
)

// MessageReader is the subset of *kafka.Reader used by the consumer
//
//go:generate mockgen -destination=mocks/mock_reader.go -package=mocks -source=consumer.go MessageReader
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads provider events and notifies the ingestor
type Consumer struct {
	reader           MessageReader
	notifier         sync.Notifier
	maxRetryInterval time.Duration

	mu         gosync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// Option configures a Consumer
type Option func(*Consumer)

// WithMaxRetryInterval caps the backoff between attempts to record a notification
func WithMaxRetryInterval(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.maxRetryInterval = d
		}
	}
}

// NewReader creates a consumer-group reader for the configured topic.
// Offsets are committed explicitly by the consumer.
func NewReader(cfg *config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: defaultMinBytes,
		MaxBytes: defaultMaxBytes,
	})
}

// NewConsumer creates a Consumer reading from reader
func NewConsumer(reader MessageReader, notifier sync.Notifier, opts ...Option) *Consumer {
	c := &Consumer{
		reader:           reader,
		notifier:         notifier,
		maxRetryInterval: DefaultMaxRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins consuming in the background
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		return fmt.Errorf("kafka consumer already started")
	}

	consumerCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		if err := c.Run(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Kafka consumer stopped", "error", err)
		}
	}()

	slog.Info("Kafka consumer started")
	return nil
}

// Stop cancels consumption, waits for the loop to exit and closes the reader
func (c *Consumer) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancelFunc, c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close kafka reader: %w", err)
	}

	slog.Info("Kafka consumer stopped")
	return nil
}

// Run fetches, handles and commits messages until ctx is cancelled or the
// reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		if err := c.handle(ctx, msg); err != nil {
			// Only cancellation ends handling without a recorded notification
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to commit offset %d of partition %d: %w", msg.Offset, msg.Partition, err)
		}
	}
}

// handle returns nil once the message may be committed
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	logger := slog.With("partition", msg.Partition, "offset", msg.Offset)

	ev, err := event.Parse(msg.Value)
	if err != nil {
		logger.Warn("Skipping malformed billing event", "error", err)
		return nil
	}
	if !ev.Relevant() {
		logger.Debug("Ignoring billing event", "event_id", ev.ID, "event_type", ev.Type)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = c.maxRetryInterval
	b.InitialInterval = min(b.InitialInterval, c.maxRetryInterval)

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		err := c.notifier.Notify(ctx, ev.EntityID)
		if err == nil {
			return struct{}{}, nil
		}
		var persistErr *sync.PersistenceError
		if errors.As(err, &persistErr) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Failed to record notification, retrying",
				"entity_id", ev.EntityID,
				"error", err,
				"retry_in", next,
			)
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Non-retryable: the event can never be recorded
		logger.Error("Dropping billing event", "event_id", ev.ID, "entity_id", ev.EntityID, "error", err)
		return nil
	}

	logger.Debug("Billing event accepted", "event_id", ev.ID, "event_type", ev.Type, "entity_id", ev.EntityID)
	return nil
}
