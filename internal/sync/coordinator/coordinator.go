package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"k8s.io/utils/clock"

	pkgsync "github.com/stacklok/billing-sync-server/internal/sync"
	"github.com/stacklok/billing-sync-server/internal/status"
	"github.com/stacklok/billing-sync-server/internal/sync/state"
)

// Coordinator drives batch passes from the durable wake timer
type Coordinator interface {
	// Start runs the wake loop.
	// Blocks until context is cancelled or Stop is called
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator, waiting for a running pass to finish
	Stop() error
}

// BatchRunner runs one batch pass
type BatchRunner interface {
	ProcessBatch(ctx context.Context) (*pkgsync.BatchResult, error)
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	timer     state.WakeTimer
	processor BatchRunner

	clock        clock.WithTicker
	nudges       <-chan struct{}
	pollInterval time.Duration
	instanceID   string
	tracker      *status.Tracker

	// Lifecycle management
	mu         gosync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithClock sets the clock used for timers
func WithClock(clk clock.WithTicker) Option {
	return func(c *defaultCoordinator) {
		c.clock = clk
	}
}

// WithNudges sets a channel that wakes the coordinator before its poll
// interval elapses, typically fed by the ingestor when it arms the timer
func WithNudges(nudges <-chan struct{}) Option {
	return func(c *defaultCoordinator) {
		c.nudges = nudges
	}
}

// WithPollInterval sets the idle poll interval
func WithPollInterval(interval time.Duration) Option {
	return func(c *defaultCoordinator) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithInstanceID sets the identifier of this replica reported in logs
func WithInstanceID(id string) Option {
	return func(c *defaultCoordinator) {
		c.instanceID = id
	}
}

// WithStatusTracker sets the tracker that records the outcome of each pass
func WithStatusTracker(tracker *status.Tracker) Option {
	return func(c *defaultCoordinator) {
		c.tracker = tracker
	}
}

// New creates a new coordinator with injected dependencies
func New(timer state.WakeTimer, processor BatchRunner, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		timer:        timer,
		processor:    processor,
		clock:        clock.RealClock{},
		pollInterval: DefaultPollInterval,
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start runs the wake loop: claim a due wake and run a pass, then sleep until
// the next wake, a nudge or the poll interval, whichever comes first.
func (c *defaultCoordinator) Start(ctx context.Context) error {
	slog.Info("Starting sync coordinator",
		"instance_id", c.instanceID,
		"poll_interval", c.pollInterval)

	coordCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		close(c.done)
		slog.Info("Sync coordinator shut down", "instance_id", c.instanceID)
	}()

	// Pending rows may have outlived their wake if the previous process died
	// between claiming it and reading the batch. Arming for now runs a
	// recovery pass right away; an armed timer is left as it is.
	if _, err := c.timer.ArmIfIdle(coordCtx, c.clock.Now().UTC()); err != nil {
		return fmt.Errorf("failed to arm recovery wake: %w", err)
	}

	for {
		c.runIfDue(coordCtx)

		wait := c.nextWait(coordCtx)
		timer := c.clock.NewTimer(wait)

		select {
		case <-coordCtx.Done():
			timer.Stop()
			slog.Info("Sync coordinator stopping", "instance_id", c.instanceID)
			return nil
		case <-c.nudges:
			slog.Debug("Coordinator nudged")
		case <-timer.C():
		}
		timer.Stop()
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping sync coordinator")
		cancel()
		// Wait for the loop to finish its current pass
		<-c.done
	}
	return nil
}

// nextWait reads the wake timer and returns how long to sleep
func (c *defaultCoordinator) nextWait(ctx context.Context) time.Duration {
	poll := jitteredPollInterval(c.pollInterval)

	wake, err := c.timer.CurrentWake(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Error reading wake timer", "error", err)
		}
		return poll
	}

	return waitFor(c.clock.Now(), wake, poll)
}

// runIfDue claims a due wake and, if this replica won it, runs one pass
func (c *defaultCoordinator) runIfDue(ctx context.Context) {
	now := c.clock.Now().UTC()

	claimed, err := c.timer.ClaimDue(ctx, now)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Error claiming wake timer", "error", err)
		}
		return
	}
	if claimed == nil {
		return
	}

	slog.Debug("Claimed wake",
		"instance_id", c.instanceID,
		"wake_at", *claimed,
		"lag", now.Sub(*claimed))

	c.performPass(ctx)
}

// performPass runs one pass and records its outcome. When the pass fails the
// wake it consumed is re-armed so pending work is retried.
func (c *defaultCoordinator) performPass(ctx context.Context) {
	start := c.clock.Now().UTC()
	c.updateStatus(ctx, func(s *status.PassStatus) {
		s.Phase = status.PassPhaseRunning
		s.Message = "Pass in progress"
		s.LastAttempt = &start
		s.PassCount++
	})

	result, err := c.processor.ProcessBatch(ctx)

	end := c.clock.Now().UTC()
	if err != nil {
		slog.Error("Batch pass failed", "instance_id", c.instanceID, "error", err)

		retryAt := end.Add(c.pollInterval)
		if _, armErr := c.timer.ArmIfIdle(context.WithoutCancel(ctx), retryAt); armErr != nil {
			slog.Error("Failed to re-arm wake after failed pass", "error", armErr)
		}

		c.updateStatus(ctx, func(s *status.PassStatus) {
			s.Phase = status.PassPhaseFailed
			s.Message = err.Error()
			s.ConsecutiveFailures++
		})
		return
	}

	c.updateStatus(ctx, func(s *status.PassStatus) {
		s.Phase = status.PassPhaseComplete
		s.Message = fmt.Sprintf("Synced %d of %d entities", result.Synced, result.Processed)
		s.LastSuccess = &end
		s.ConsecutiveFailures = 0
		s.Last = &status.PassCounts{
			Read:      result.Read,
			Processed: result.Processed,
			Synced:    result.Synced,
			Failed:    result.Failed,
			Retained:  result.Retained,
			Rearmed:   result.Rearmed,
		}
	})
}

func (c *defaultCoordinator) updateStatus(ctx context.Context, fn func(s *status.PassStatus)) {
	if c.tracker == nil {
		return
	}
	c.tracker.Update(context.WithoutCancel(ctx), fn)
}
