// Package sync keeps the local billing state cache consistent with the
// billing provider under bursty change notifications.
//
// # Core Types
//
//   - Ingestor: records a change notification durably and arms the wake timer
//   - BatchProcessor: runs one bounded pass over the oldest pending entities
//   - SyncClient: fetches the authoritative record of one entity and writes it locally
//
// # Coalescing
//
// Notifications for the same entity collapse into one pending row whose
// count grows with every notification. A pass snapshots each row's count
// before syncing and deletes the row only if the count is unchanged
// afterwards (compare-and-delete). A notification that lands mid-sync bumps
// the count, so the row survives and is synced again on a later pass.
//
// # Scheduling
//
// The first notification after a quiet period arms the durable wake timer
// for now + sync interval; further notifications leave it untouched. The
// coordinator subpackage waits for the timer, claims it and runs a pass. A
// pass that sees more pending rows than its batch size re-arms the timer
// so that the remainder is handled without a new notification.
package sync
