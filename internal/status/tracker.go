package status

import (
	"context"
	"log/slog"
	"sync"
)

// Tracker holds the pass status of one shard in memory and mirrors every
// change to an optional persistence.
type Tracker struct {
	shardKey    string
	persistence StatusPersistence

	mu      sync.RWMutex
	current PassStatus
}

// NewTracker creates a tracker for shardKey. When persistence is non-nil the
// last saved status is loaded; a status saved as running is reported as
// failed, since the process that ran it is gone.
func NewTracker(ctx context.Context, shardKey string, persistence StatusPersistence) (*Tracker, error) {
	t := &Tracker{
		shardKey:    shardKey,
		persistence: persistence,
		current:     PassStatus{Phase: PassPhaseIdle},
	}

	if persistence == nil {
		return t, nil
	}

	loaded, err := persistence.LoadStatus(ctx, shardKey)
	if err != nil {
		return nil, err
	}
	if loaded.Phase == PassPhaseRunning {
		loaded.Phase = PassPhaseFailed
		loaded.Message = "Pass interrupted by shutdown"
	}
	t.current = *loaded
	return t, nil
}

// Get returns a copy of the current status
func (t *Tracker) Get() PassStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.current
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	return s
}

// Update applies fn to the status under lock and persists the result.
// A persistence failure is logged and never reverts the in-memory status.
func (t *Tracker) Update(ctx context.Context, fn func(s *PassStatus)) {
	t.mu.Lock()
	fn(&t.current)
	snapshot := t.current
	t.mu.Unlock()

	if t.persistence == nil {
		return
	}
	if err := t.persistence.SaveStatus(ctx, t.shardKey, &snapshot); err != nil {
		slog.Warn("Failed to persist pass status", "shard", t.shardKey, "error", err)
	}
}
