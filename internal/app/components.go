package app

import (
	"github.com/stacklok/billing-sync-server/internal/ingress/kafka"
	"github.com/stacklok/billing-sync-server/internal/status"
	pkgsync "github.com/stacklok/billing-sync-server/internal/sync"
	"github.com/stacklok/billing-sync-server/internal/sync/coordinator"
	"github.com/stacklok/billing-sync-server/internal/sync/state"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// SyncCoordinator drives batch passes from the wake timer
	SyncCoordinator coordinator.Coordinator

	// Ingestor records change notifications
	Ingestor *pkgsync.Ingestor

	// Processor runs one batch pass
	Processor *pkgsync.BatchProcessor

	// Store holds pending work and the wake timer
	Store state.Store

	// StatusTracker reports the outcome of the last pass
	StatusTracker *status.Tracker

	// KafkaConsumer feeds billing provider events to the ingestor (optional)
	KafkaConsumer *kafka.Consumer
}
