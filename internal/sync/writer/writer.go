// Package writer contains the StateWriter interface, which persists the local
// billing state cache, and its implementations.
package writer

import (
	"context"
	"errors"
	"time"
)

//go:generate mockgen -destination=mocks/mock_state_writer.go -package=mocks -source=writer.go StateWriter

// StatusNone is the status of an entity with no upstream subscription.
const StatusNone = "none"

// ErrBillingStateNotFound is returned when an entity has never been synced.
var ErrBillingStateNotFound = errors.New("billing state not found")

// BillingState is the locally cached view of one entity's billing state.
type BillingState struct {
	EntityID           string     `json:"entityId"`
	SubscriptionID     string     `json:"subscriptionId,omitempty"`
	Status             string     `json:"status"`
	PriceID            string     `json:"priceId,omitempty"`
	CurrentPeriodStart *time.Time `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancelAtPeriodEnd"`
	PaymentMethodBrand string     `json:"paymentMethodBrand,omitempty"`
	PaymentMethodLast4 string     `json:"paymentMethodLast4,omitempty"`
	SyncedAt           time.Time  `json:"syncedAt"`
}

// ClearedState returns the state written for an entity that has no upstream subscription.
func ClearedState(entityID string, syncedAt time.Time) *BillingState {
	return &BillingState{
		EntityID: entityID,
		Status:   StatusNone,
		SyncedAt: syncedAt,
	}
}

// IsCleared reports whether s carries no subscription data.
func (s *BillingState) IsCleared() bool {
	return s.Status == StatusNone &&
		s.SubscriptionID == "" &&
		s.PriceID == "" &&
		s.CurrentPeriodStart == nil &&
		s.CurrentPeriodEnd == nil &&
		!s.CancelAtPeriodEnd &&
		s.PaymentMethodBrand == "" &&
		s.PaymentMethodLast4 == ""
}

// StateWriter persists billing state keyed by entity id.
type StateWriter interface {
	// Upsert replaces the entity's cached state in a single atomic write.
	Upsert(ctx context.Context, state *BillingState) error
	// Get returns the entity's cached state or ErrBillingStateNotFound.
	Get(ctx context.Context, entityID string) (*BillingState, error)
}
