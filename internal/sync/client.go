package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"
	"k8s.io/utils/clock"

	"github.com/stacklok/billing-sync-server/internal/sync/writer"
	"github.com/stacklok/billing-sync-server/internal/upstream"
)

//go:generate mockgen -destination=mocks/mock_sync_client.go -package=mocks -source=client.go SyncClient

// Paths of the upstream subscription fields cached locally.
const (
	pathSubscriptionID     = "id"
	pathStatus             = "status"
	pathPriceID            = "items.data.0.price.id"
	pathCurrentPeriodStart = "current_period_start"
	pathCurrentPeriodEnd   = "current_period_end"
	pathCancelAtPeriodEnd  = "cancel_at_period_end"
	pathCardBrand          = "default_payment_method.card.brand"
	pathCardLast4          = "default_payment_method.card.last4"
)

// SyncClient brings the local state of one entity in line with the billing provider.
type SyncClient interface {
	// Sync fetches the most recent upstream record of the entity and writes
	// it locally in one upsert. A failure is always a *SyncError.
	Sync(ctx context.Context, entityID string) error
}

type defaultSyncClient struct {
	fetcher upstream.Client
	writer  writer.StateWriter
	clock   clock.PassiveClock
}

// NewSyncClient creates a SyncClient reading from fetcher and writing through w.
func NewSyncClient(fetcher upstream.Client, w writer.StateWriter, clk clock.PassiveClock) SyncClient {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &defaultSyncClient{
		fetcher: fetcher,
		writer:  w,
		clock:   clk,
	}
}

// Sync implements SyncClient.
func (c *defaultSyncClient) Sync(ctx context.Context, entityID string) error {
	record, err := c.fetcher.FetchLatest(ctx, entityID)
	if err != nil {
		kind := SyncErrorTransient
		if errors.Is(err, upstream.ErrMalformedResponse) {
			kind = SyncErrorMalformedUpstreamRecord
		}
		return &SyncError{Kind: kind, EntityID: entityID, Err: err}
	}

	now := c.clock.Now().UTC()

	var state *writer.BillingState
	if record == nil {
		slog.Debug("No upstream subscription, clearing local state", "entity_id", entityID)
		state = writer.ClearedState(entityID, now)
	} else {
		state, err = toBillingState(record, now)
		if err != nil {
			return &SyncError{Kind: SyncErrorMalformedUpstreamRecord, EntityID: entityID, Err: err}
		}
	}

	if err := c.writer.Upsert(ctx, state); err != nil {
		return &SyncError{Kind: SyncErrorLocalWrite, EntityID: entityID, Err: err}
	}
	return nil
}

// toBillingState validates the required fields of record and maps it to the
// local cache row. Optional fields are taken only when they have the expected type.
func toBillingState(record *upstream.Record, syncedAt time.Time) (*writer.BillingState, error) {
	var missing []error
	required := func(path string) string {
		v := record.Get(path)
		if v.Type != gjson.String || v.Str == "" {
			missing = append(missing, fmt.Errorf("%s must be a non-empty string", path))
			return ""
		}
		return v.Str
	}

	state := &writer.BillingState{
		EntityID:       record.EntityID,
		SubscriptionID: required(pathSubscriptionID),
		Status:         required(pathStatus),
		PriceID:        required(pathPriceID),
		SyncedAt:       syncedAt,
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}

	state.CurrentPeriodStart = unixTime(record.Get(pathCurrentPeriodStart))
	state.CurrentPeriodEnd = unixTime(record.Get(pathCurrentPeriodEnd))
	state.CancelAtPeriodEnd = record.Get(pathCancelAtPeriodEnd).Type == gjson.True
	if brand := record.Get(pathCardBrand); brand.Type == gjson.String {
		state.PaymentMethodBrand = brand.Str
	}
	if last4 := record.Get(pathCardLast4); last4.Type == gjson.String {
		state.PaymentMethodLast4 = last4.Str
	}

	return state, nil
}

func unixTime(v gjson.Result) *time.Time {
	if v.Type != gjson.Number {
		return nil
	}
	t := time.Unix(v.Int(), 0).UTC()
	return &t
}
