package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/billing-sync-server/internal/db/sqlitec"
)

// sqliteStore keeps a shard's scheduling state in SQLite. Times are stored as
// unix microseconds so that ordering by column is ordering by time.
type sqliteStore struct {
	queries  *sqlitec.Queries
	shardKey string
}

// NewSQLiteStore creates a SQLite-backed store for the given shard. The
// database must already carry the schema (see db.OpenSQLite).
func NewSQLiteStore(db *sql.DB, shardKey string) Store {
	return &sqliteStore{queries: sqlitec.New(db), shardKey: shardKey}
}

func micros(t time.Time) sql.NullInt64 {
	return sql.NullInt64{Int64: t.UnixMicro(), Valid: true}
}

func fromMicros(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMicro(v.Int64).UTC()
	return &t
}

func sqlitePendingWork(row sqlitec.PendingWork) PendingWork {
	return PendingWork{
		EntityID:      row.EntityID,
		Count:         row.Count,
		EnqueuedAt:    time.UnixMicro(row.EnqueuedAt).UTC(),
		Attempts:      row.Attempts,
		LastError:     row.LastError,
		LastAttemptAt: fromMicros(row.LastAttemptAt),
	}
}

func (s *sqliteStore) Upsert(ctx context.Context, entityID string, now time.Time) (*PendingWork, error) {
	row, err := s.queries.UpsertPendingWork(ctx, sqlitec.UpsertPendingWorkParams{
		ShardKey:   s.shardKey,
		EntityID:   entityID,
		EnqueuedAt: now.UnixMicro(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert pending work for %s: %w", entityID, err)
	}
	w := sqlitePendingWork(row)
	return &w, nil
}

func (s *sqliteStore) ListOldest(ctx context.Context, limit int) ([]PendingWork, error) {
	rows, err := s.queries.ListOldestPendingWork(ctx, sqlitec.ListOldestPendingWorkParams{
		ShardKey: s.shardKey,
		MaxRows:  int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending work: %w", err)
	}

	result := make([]PendingWork, 0, len(rows))
	for _, row := range rows {
		result = append(result, sqlitePendingWork(row))
	}
	return result, nil
}

func (s *sqliteStore) DeleteIfCount(ctx context.Context, entityID string, count int64) (bool, error) {
	n, err := s.queries.DeletePendingWorkIfCount(ctx, sqlitec.DeletePendingWorkIfCountParams{
		ShardKey: s.shardKey,
		EntityID: entityID,
		Count:    count,
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete pending work for %s: %w", entityID, err)
	}
	return n == 1, nil
}

func (s *sqliteStore) RecordFailure(ctx context.Context, entityID string, message string, at time.Time) error {
	_, err := s.queries.RecordPendingWorkFailure(ctx, sqlitec.RecordPendingWorkFailureParams{
		LastError:     message,
		LastAttemptAt: micros(at),
		ShardKey:      s.shardKey,
		EntityID:      entityID,
	})
	if err != nil {
		return fmt.Errorf("failed to record failure for %s: %w", entityID, err)
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, entityID string) (*PendingWork, error) {
	row, err := s.queries.GetPendingWork(ctx, sqlitec.GetPendingWorkParams{
		ShardKey: s.shardKey,
		EntityID: entityID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPendingWorkNotFound
		}
		return nil, fmt.Errorf("failed to get pending work for %s: %w", entityID, err)
	}
	w := sqlitePendingWork(row)
	return &w, nil
}

func (s *sqliteStore) Depth(ctx context.Context) (int64, error) {
	depth, err := s.queries.CountPendingWork(ctx, s.shardKey)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending work: %w", err)
	}
	return depth, nil
}

func (s *sqliteStore) CurrentWake(ctx context.Context) (*time.Time, error) {
	next, err := s.queries.GetWakeTimer(ctx, s.shardKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read wake timer: %w", err)
	}
	return fromMicros(next), nil
}

func (s *sqliteStore) ArmIfIdle(ctx context.Context, at time.Time) (bool, error) {
	n, err := s.queries.ArmWakeTimerIfIdle(ctx, sqlitec.ArmWakeTimerIfIdleParams{
		ShardKey:   s.shardKey,
		NextWakeAt: micros(at),
	})
	if err != nil {
		return false, fmt.Errorf("failed to arm wake timer: %w", err)
	}
	return n == 1, nil
}

func (s *sqliteStore) ClaimDue(ctx context.Context, now time.Time) (*time.Time, error) {
	due, err := s.CurrentWake(ctx)
	if err != nil || due == nil || due.After(now) {
		return nil, err
	}

	// Compare-and-clear: only the caller that still sees the same wake value wins.
	n, err := s.queries.ClaimWakeTimer(ctx, sqlitec.ClaimWakeTimerParams{
		ClaimedAt:  micros(now),
		ShardKey:   s.shardKey,
		NextWakeAt: micros(*due),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim wake timer: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return due, nil
}
