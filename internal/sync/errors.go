package sync

import (
	"errors"
	"fmt"
)

// ErrInvalidEntityID is returned when a notification carries an empty entity id.
var ErrInvalidEntityID = errors.New("entity id must not be empty")

// PersistenceError reports a failure of the durable store. The operation
// that produced it may be retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ErrorKind tags failed spans
func (*PersistenceError) ErrorKind() string {
	return "persistence"
}

// SyncErrorKind classifies a failed entity sync.
type SyncErrorKind string

const (
	// SyncErrorTransient is a network or upstream failure; the next pass retries it.
	SyncErrorTransient SyncErrorKind = "transient"
	// SyncErrorMalformedUpstreamRecord is an upstream record lacking required
	// fields. Nothing is written locally.
	SyncErrorMalformedUpstreamRecord SyncErrorKind = "malformed_upstream_record"
	// SyncErrorLocalWrite is a failure to persist the fetched state locally.
	SyncErrorLocalWrite SyncErrorKind = "local_write"
)

// SyncError describes why one entity could not be synced.
type SyncError struct {
	Kind     SyncErrorKind
	EntityID string
	Err      error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync of %s failed (%s): %v", e.EntityID, e.Kind, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// ErrorKind tags failed sync spans
func (e *SyncError) ErrorKind() string {
	return string(e.Kind)
}

// IsSyncErrorKind reports whether err is a *SyncError of the given kind.
func IsSyncErrorKind(err error, kind SyncErrorKind) bool {
	var syncErr *SyncError
	return errors.As(err, &syncErr) && syncErr.Kind == kind
}
