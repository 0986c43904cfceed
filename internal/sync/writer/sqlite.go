package writer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stacklok/billing-sync-server/internal/db/sqlitec"
)

// sqliteStateWriter persists billing state to SQLite. Times are stored as unix microseconds.
type sqliteStateWriter struct {
	queries *sqlitec.Queries
}

// NewSQLiteStateWriter creates a SQLite-backed writer. The database must
// already carry the schema (see db.OpenSQLite).
func NewSQLiteStateWriter(db *sql.DB) StateWriter {
	return &sqliteStateWriter{queries: sqlitec.New(db)}
}

func (s *sqliteStateWriter) Upsert(ctx context.Context, state *BillingState) error {
	if state == nil {
		return fmt.Errorf("billing state is required")
	}

	var cancelAtPeriodEnd int64
	if state.CancelAtPeriodEnd {
		cancelAtPeriodEnd = 1
	}

	err := s.queries.UpsertBillingState(ctx, sqlitec.UpsertBillingStateParams{
		EntityID:           state.EntityID,
		SubscriptionID:     state.SubscriptionID,
		Status:             state.Status,
		PriceID:            state.PriceID,
		CurrentPeriodStart: toNullMicros(state.CurrentPeriodStart),
		CurrentPeriodEnd:   toNullMicros(state.CurrentPeriodEnd),
		CancelAtPeriodEnd:  cancelAtPeriodEnd,
		PaymentMethodBrand: state.PaymentMethodBrand,
		PaymentMethodLast4: state.PaymentMethodLast4,
		SyncedAt:           state.SyncedAt.UnixMicro(),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert billing state for %s: %w", state.EntityID, err)
	}
	return nil
}

func (s *sqliteStateWriter) Get(ctx context.Context, entityID string) (*BillingState, error) {
	row, err := s.queries.GetBillingState(ctx, entityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBillingStateNotFound
		}
		return nil, fmt.Errorf("failed to get billing state for %s: %w", entityID, err)
	}

	return &BillingState{
		EntityID:           row.EntityID,
		SubscriptionID:     row.SubscriptionID,
		Status:             row.Status,
		PriceID:            row.PriceID,
		CurrentPeriodStart: fromNullMicros(row.CurrentPeriodStart),
		CurrentPeriodEnd:   fromNullMicros(row.CurrentPeriodEnd),
		CancelAtPeriodEnd:  row.CancelAtPeriodEnd != 0,
		PaymentMethodBrand: row.PaymentMethodBrand,
		PaymentMethodLast4: row.PaymentMethodLast4,
		SyncedAt:           time.UnixMicro(row.SyncedAt).UTC(),
	}, nil
}

func toNullMicros(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMicro(), Valid: true}
}

func fromNullMicros(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMicro(v.Int64).UTC()
	return &t
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
