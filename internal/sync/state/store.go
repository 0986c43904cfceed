// Package state contains the durable scheduling state of the synchronizer:
// the set of entities awaiting a sync and the single wake-up timer that
// drives batch passes.
package state

import (
	"context"
	"errors"
	"time"
)

// ErrPendingWorkNotFound is returned when an entity has no pending work.
var ErrPendingWorkNotFound = errors.New("pending work not found")

// PendingWork is the coalesced record of outstanding notifications for one entity.
type PendingWork struct {
	// EntityID identifies the tenant whose billing state needs a sync
	EntityID string `json:"entityId"`
	// Count is the number of notifications received since the last successful sync
	Count int64 `json:"count"`
	// EnqueuedAt is set when the row is created and never changes afterwards
	EnqueuedAt time.Time `json:"enqueuedAt"`

	// Attempts is the number of failed sync attempts since the row was created
	Attempts int64 `json:"attempts,omitempty"`
	// LastError is the message of the most recent failure
	LastError string `json:"lastError,omitempty"`
	// LastAttemptAt is the time of the most recent failure
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
}

// PendingWorkStore persists the set of entities awaiting a sync.
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go -exclude_interfaces=Store
type PendingWorkStore interface {
	// Upsert records one notification for the entity. A new row starts with
	// a count of 1 and EnqueuedAt set to now; an existing row has its count
	// incremented and keeps its EnqueuedAt. The operation is atomic.
	Upsert(ctx context.Context, entityID string, now time.Time) (*PendingWork, error)
	// ListOldest returns at most limit rows ordered by EnqueuedAt, then EntityID.
	ListOldest(ctx context.Context, limit int) ([]PendingWork, error)
	// DeleteIfCount deletes the entity's row only if its count still equals
	// count. It reports whether a row was deleted.
	DeleteIfCount(ctx context.Context, entityID string, count int64) (bool, error)
	// RecordFailure bumps the attempt counter of the entity's row and stores
	// the failure message. The count is never touched. A missing row is not an error.
	RecordFailure(ctx context.Context, entityID string, message string, at time.Time) error
	// Get returns the entity's row or ErrPendingWorkNotFound.
	Get(ctx context.Context, entityID string) (*PendingWork, error)
	// Depth returns the number of entities awaiting a sync.
	Depth(ctx context.Context) (int64, error)
}

// WakeTimer is the durable single-slot timer of one shard.
type WakeTimer interface {
	// CurrentWake returns the armed wake time, or nil when the timer is idle.
	CurrentWake(ctx context.Context) (*time.Time, error)
	// ArmIfIdle sets the wake time only if none is set. An armed timer is
	// never moved. It reports whether this call armed the timer.
	ArmIfIdle(ctx context.Context, at time.Time) (bool, error)
	// ClaimDue clears the wake time if it is at or before now and returns
	// the claimed value. It returns nil when nothing is due or another
	// caller claimed it first.
	ClaimDue(ctx context.Context, now time.Time) (*time.Time, error)
}

// Store is a backend that provides both halves of the scheduling state.
type Store interface {
	PendingWorkStore
	WakeTimer
}

func copyWork(w *PendingWork) *PendingWork {
	c := *w
	if w.LastAttemptAt != nil {
		t := *w.LastAttemptAt
		c.LastAttemptAt = &t
	}
	return &c
}
