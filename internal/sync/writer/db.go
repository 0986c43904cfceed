package writer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/billing-sync-server/internal/db/sqlc"
)

// dbStateWriter persists billing state to PostgreSQL
type dbStateWriter struct {
	pool *pgxpool.Pool
}

// NewDBStateWriter creates a new dbStateWriter with the given connection pool.
// The caller is responsible for closing the pool when done.
func NewDBStateWriter(pool *pgxpool.Pool) (StateWriter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}
	return &dbStateWriter{pool: pool}, nil
}

func (d *dbStateWriter) Upsert(ctx context.Context, state *BillingState) error {
	if state == nil {
		return fmt.Errorf("billing state is required")
	}

	err := sqlc.New(d.pool).UpsertBillingState(ctx, sqlc.UpsertBillingStateParams{
		EntityID:           state.EntityID,
		SubscriptionID:     state.SubscriptionID,
		Status:             state.Status,
		PriceID:            state.PriceID,
		CurrentPeriodStart: state.CurrentPeriodStart,
		CurrentPeriodEnd:   state.CurrentPeriodEnd,
		CancelAtPeriodEnd:  state.CancelAtPeriodEnd,
		PaymentMethodBrand: state.PaymentMethodBrand,
		PaymentMethodLast4: state.PaymentMethodLast4,
		SyncedAt:           state.SyncedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert billing state for %s: %w", state.EntityID, err)
	}
	return nil
}

func (d *dbStateWriter) Get(ctx context.Context, entityID string) (*BillingState, error) {
	row, err := sqlc.New(d.pool).GetBillingState(ctx, entityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBillingStateNotFound
		}
		return nil, fmt.Errorf("failed to get billing state for %s: %w", entityID, err)
	}

	return &BillingState{
		EntityID:           row.EntityID,
		SubscriptionID:     row.SubscriptionID,
		Status:             row.Status,
		PriceID:            row.PriceID,
		CurrentPeriodStart: utcPtr(row.CurrentPeriodStart),
		CurrentPeriodEnd:   utcPtr(row.CurrentPeriodEnd),
		CancelAtPeriodEnd:  row.CancelAtPeriodEnd,
		PaymentMethodBrand: row.PaymentMethodBrand,
		PaymentMethodLast4: row.PaymentMethodLast4,
		SyncedAt:           row.SyncedAt.UTC(),
	}, nil
}
