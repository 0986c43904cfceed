package state

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/billing-sync-server/internal/db/sqlc"
)

type dbStore struct {
	pool       *pgxpool.Pool
	shardKey   string
	instanceID string
}

// NewDBStore creates a PostgreSQL-backed store for the given shard.
// instanceID is recorded on the wake timer row whenever this process claims it.
func NewDBStore(pool *pgxpool.Pool, shardKey, instanceID string) Store {
	return &dbStore{
		pool:       pool,
		shardKey:   shardKey,
		instanceID: instanceID,
	}
}

func fromDBPendingWork(row sqlc.PendingWork) *PendingWork {
	w := &PendingWork{
		EntityID:   row.EntityID,
		Count:      row.Count,
		EnqueuedAt: row.EnqueuedAt.UTC(),
		Attempts:   row.Attempts,
		LastError:  row.LastError,
	}
	if row.LastAttemptAt != nil {
		t := row.LastAttemptAt.UTC()
		w.LastAttemptAt = &t
	}
	return w
}

func (d *dbStore) Upsert(ctx context.Context, entityID string, now time.Time) (*PendingWork, error) {
	row, err := sqlc.New(d.pool).UpsertPendingWork(ctx, sqlc.UpsertPendingWorkParams{
		ShardKey:   d.shardKey,
		EntityID:   entityID,
		EnqueuedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert pending work for %s: %w", entityID, err)
	}
	return fromDBPendingWork(row), nil
}

func (d *dbStore) ListOldest(ctx context.Context, limit int) ([]PendingWork, error) {
	if limit > math.MaxInt32 {
		limit = math.MaxInt32
	}

	rows, err := sqlc.New(d.pool).ListOldestPendingWork(ctx, sqlc.ListOldestPendingWorkParams{
		ShardKey: d.shardKey,
		MaxRows:  int32(limit), //nolint:gosec // bounded above
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending work: %w", err)
	}

	result := make([]PendingWork, 0, len(rows))
	for _, row := range rows {
		result = append(result, *fromDBPendingWork(row))
	}
	return result, nil
}

func (d *dbStore) DeleteIfCount(ctx context.Context, entityID string, count int64) (bool, error) {
	n, err := sqlc.New(d.pool).DeletePendingWorkIfCount(ctx, sqlc.DeletePendingWorkIfCountParams{
		ShardKey: d.shardKey,
		EntityID: entityID,
		Count:    count,
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete pending work for %s: %w", entityID, err)
	}
	return n == 1, nil
}

func (d *dbStore) RecordFailure(ctx context.Context, entityID string, message string, at time.Time) error {
	_, err := sqlc.New(d.pool).RecordPendingWorkFailure(ctx, sqlc.RecordPendingWorkFailureParams{
		LastError:     message,
		LastAttemptAt: &at,
		ShardKey:      d.shardKey,
		EntityID:      entityID,
	})
	if err != nil {
		return fmt.Errorf("failed to record failure for %s: %w", entityID, err)
	}
	return nil
}

func (d *dbStore) Get(ctx context.Context, entityID string) (*PendingWork, error) {
	row, err := sqlc.New(d.pool).GetPendingWork(ctx, sqlc.GetPendingWorkParams{
		ShardKey: d.shardKey,
		EntityID: entityID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPendingWorkNotFound
		}
		return nil, fmt.Errorf("failed to get pending work for %s: %w", entityID, err)
	}
	return fromDBPendingWork(row), nil
}

func (d *dbStore) Depth(ctx context.Context) (int64, error) {
	depth, err := sqlc.New(d.pool).CountPendingWork(ctx, d.shardKey)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending work: %w", err)
	}
	return depth, nil
}

func (d *dbStore) CurrentWake(ctx context.Context) (*time.Time, error) {
	next, err := sqlc.New(d.pool).GetWakeTimer(ctx, d.shardKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read wake timer: %w", err)
	}
	if next == nil {
		return nil, nil
	}
	wake := next.UTC()
	return &wake, nil
}

func (d *dbStore) ArmIfIdle(ctx context.Context, at time.Time) (bool, error) {
	n, err := sqlc.New(d.pool).ArmWakeTimerIfIdle(ctx, sqlc.ArmWakeTimerIfIdleParams{
		ShardKey:   d.shardKey,
		NextWakeAt: &at,
	})
	if err != nil {
		return false, fmt.Errorf("failed to arm wake timer: %w", err)
	}
	return n == 1, nil
}

func (d *dbStore) ClaimDue(ctx context.Context, now time.Time) (*time.Time, error) {
	due, err := sqlc.New(d.pool).ClaimDueWakeTimer(ctx, sqlc.ClaimDueWakeTimerParams{
		ShardKey:  d.shardKey,
		Now:       &now,
		ClaimedBy: d.instanceID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim wake timer: %w", err)
	}
	if due == nil {
		return nil, nil
	}
	wake := due.UTC()
	return &wake, nil
}
