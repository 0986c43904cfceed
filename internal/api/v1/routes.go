// Package v1 implements the version 1 ingress and inspection API of the
// billing sync server.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/billing-sync-server/internal/api/common"
	"github.com/stacklok/billing-sync-server/internal/ingress/event"
	"github.com/stacklok/billing-sync-server/internal/status"
	"github.com/stacklok/billing-sync-server/internal/sync"
	"github.com/stacklok/billing-sync-server/internal/sync/state"
)

const (
	// maxWebhookBodyBytes bounds the size of a provider event
	maxWebhookBodyBytes = 1 << 20

	// maxNotifyBodyBytes bounds a notify request, which carries one entity id
	maxNotifyBodyBytes = 4 << 10
)

// PendingReader is the read side of the pending work store used by the API
type PendingReader interface {
	Get(ctx context.Context, entityID string) (*state.PendingWork, error)
	Depth(ctx context.Context) (int64, error)
}

// WakeReader exposes the armed wake time of the shard
type WakeReader interface {
	CurrentWake(ctx context.Context) (*time.Time, error)
}

// StatusProvider returns the status of the most recent batch pass
type StatusProvider interface {
	Get() status.PassStatus
}

// NotifyRequest is the body of POST /v1/notify
type NotifyRequest struct {
	EntityID string `json:"entityId"`
}

// AcceptedResponse is returned when a notification has been recorded
type AcceptedResponse struct {
	Status   string `json:"status"`
	EntityID string `json:"entityId,omitempty"`
	EventID  string `json:"eventId,omitempty"`
}

// StatusResponse is the body of GET /v1/status
type StatusResponse struct {
	ShardKey   string             `json:"shardKey"`
	Depth      int64              `json:"depth"`
	NextWakeAt *time.Time         `json:"nextWakeAt,omitempty"`
	LastPass   *status.PassStatus `json:"lastPass,omitempty"`
}

// Routes handles the v1 endpoints
type Routes struct {
	notifier sync.Notifier
	pending  PendingReader
	wake     WakeReader
	status   StatusProvider
	shardKey string

	webhookMiddlewares []func(http.Handler) http.Handler
}

// RoutesOption configures the v1 routes
type RoutesOption func(*Routes)

// WithStatusProvider exposes the last pass status on GET /v1/status
func WithStatusProvider(p StatusProvider) RoutesOption {
	return func(r *Routes) {
		r.status = p
	}
}

// WithShardKey sets the shard reported by GET /v1/status
func WithShardKey(shardKey string) RoutesOption {
	return func(r *Routes) {
		r.shardKey = shardKey
	}
}

// WithWebhookMiddleware guards the billing webhook endpoint, e.g. with signature verification
func WithWebhookMiddleware(mw func(http.Handler) http.Handler) RoutesOption {
	return func(r *Routes) {
		r.webhookMiddlewares = append(r.webhookMiddlewares, mw)
	}
}

// NewRoutes creates the v1 handlers
func NewRoutes(notifier sync.Notifier, pending PendingReader, wake WakeReader, opts ...RoutesOption) *Routes {
	routes := &Routes{
		notifier: notifier,
		pending:  pending,
		wake:     wake,
	}
	for _, opt := range opts {
		opt(routes)
	}
	return routes
}

// Router mounts the v1 endpoints
func Router(notifier sync.Notifier, pending PendingReader, wake WakeReader, opts ...RoutesOption) http.Handler {
	routes := NewRoutes(notifier, pending, wake, opts...)

	r := chi.NewRouter()
	r.Post("/notify", routes.notify)
	r.With(routes.webhookMiddlewares...).Post("/webhooks/billing", routes.billingWebhook)
	r.Get("/pending/{entityId}", routes.getPending)
	r.Get("/status", routes.getStatus)

	return r
}

func (rr *Routes) notify(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNotifyBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.WriteErrorResponse(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		common.WriteErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := rr.notifier.Notify(r.Context(), req.EntityID); err != nil {
		writeNotifyError(w, err)
		return
	}

	common.WriteJSONResponse(w, AcceptedResponse{
		Status:   "accepted",
		EntityID: strings.TrimSpace(req.EntityID),
	}, http.StatusAccepted)
}

func (rr *Routes) billingWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.WriteErrorResponse(w, "Event body too large", http.StatusRequestEntityTooLarge)
			return
		}
		common.WriteErrorResponse(w, "Failed to read event body", http.StatusBadRequest)
		return
	}

	ev, err := event.Parse(body)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !ev.Relevant() {
		slog.Debug("Ignoring billing event", "event_id", ev.ID, "event_type", ev.Type)
		common.WriteJSONResponse(w, AcceptedResponse{Status: "ignored", EventID: ev.ID}, http.StatusOK)
		return
	}

	if err := rr.notifier.Notify(r.Context(), ev.EntityID); err != nil {
		writeNotifyError(w, err)
		return
	}

	slog.Debug("Billing event accepted",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"entity_id", ev.EntityID,
	)
	common.WriteJSONResponse(w, AcceptedResponse{
		Status:   "accepted",
		EntityID: ev.EntityID,
		EventID:  ev.ID,
	}, http.StatusAccepted)
}

func (rr *Routes) getPending(w http.ResponseWriter, r *http.Request) {
	entityID, err := common.URLParam(r, "entityId")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	work, err := rr.pending.Get(r.Context(), entityID)
	if err != nil {
		if errors.Is(err, state.ErrPendingWorkNotFound) {
			common.WriteErrorResponse(w, "No pending work for "+entityID, http.StatusNotFound)
			return
		}
		slog.Error("Failed to read pending work", "entity_id", entityID, "error", err)
		common.WriteErrorResponse(w, "Failed to read pending work", http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, work, http.StatusOK)
}

func (rr *Routes) getStatus(w http.ResponseWriter, r *http.Request) {
	depth, err := rr.pending.Depth(r.Context())
	if err != nil {
		slog.Error("Failed to count pending work", "error", err)
		common.WriteErrorResponse(w, "Failed to read sync status", http.StatusInternalServerError)
		return
	}

	wake, err := rr.wake.CurrentWake(r.Context())
	if err != nil {
		slog.Error("Failed to read wake timer", "error", err)
		common.WriteErrorResponse(w, "Failed to read sync status", http.StatusInternalServerError)
		return
	}

	resp := StatusResponse{
		ShardKey:   rr.shardKey,
		Depth:      depth,
		NextWakeAt: wake,
	}
	if rr.status != nil {
		last := rr.status.Get()
		resp.LastPass = &last
	}

	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// writeNotifyError maps ingestion failures onto status codes. Persistence
// failures are 503 so the sender retries.
func writeNotifyError(w http.ResponseWriter, err error) {
	var persistErr *sync.PersistenceError
	switch {
	case errors.Is(err, sync.ErrInvalidEntityID):
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &persistErr):
		slog.Error("Failed to record notification", "error", err)
		common.WriteErrorResponse(w, "Notification could not be recorded, retry later", http.StatusServiceUnavailable)
	default:
		slog.Error("Unexpected notification failure", "error", err)
		common.WriteErrorResponse(w, "Internal error", http.StatusInternalServerError)
	}
}
