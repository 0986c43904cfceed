package state

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/stacklok/billing-sync-server/internal/jsonfile"
)

// StateFileName is the name of the document holding a shard's scheduling state
const StateFileName = "state.json"

// fileDocument is the on-disk form of one shard's scheduling state.
type fileDocument struct {
	Pending    map[string]*PendingWork `json:"pending"`
	NextWakeAt *time.Time              `json:"nextWakeAt,omitempty"`
	ClaimedAt  *time.Time              `json:"claimedAt,omitempty"`
}

func (d *fileDocument) clone() *fileDocument {
	c := &fileDocument{
		Pending:    make(map[string]*PendingWork, len(d.Pending)),
		NextWakeAt: d.NextWakeAt,
		ClaimedAt:  d.ClaimedAt,
	}
	for id, w := range d.Pending {
		c.Pending[id] = copyWork(w)
	}
	return c
}

// fileStore keeps a shard's scheduling state in a single JSON document.
// Every mutation rewrites the document atomically before it becomes visible,
// so a reopened store sees exactly what was acknowledged. It is meant for a
// single process; replicas must use a database backend.
type fileStore struct {
	path string

	mu  sync.Mutex
	doc *fileDocument
}

// NewFileStore opens (or creates) the file-backed store of the given shard under dir.
func NewFileStore(dir, shardKey string) (Store, error) {
	path := filepath.Join(dir, shardKey, StateFileName)

	doc := &fileDocument{}
	if _, err := jsonfile.Read(path, doc); err != nil {
		return nil, fmt.Errorf("failed to load state for shard '%s': %w", shardKey, err)
	}
	if doc.Pending == nil {
		doc.Pending = make(map[string]*PendingWork)
	}

	return &fileStore{path: path, doc: doc}, nil
}

// update applies fn to a copy of the document, persists the copy and only
// then publishes it. A failed write leaves the in-memory state untouched.
func (f *fileStore) update(fn func(doc *fileDocument) error) error {
	next := f.doc.clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := jsonfile.Write(f.path, next); err != nil {
		return err
	}
	f.doc = next
	return nil
}

func (f *fileStore) Upsert(_ context.Context, entityID string, now time.Time) (*PendingWork, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result *PendingWork
	err := f.update(func(doc *fileDocument) error {
		w, ok := doc.Pending[entityID]
		if !ok {
			w = &PendingWork{EntityID: entityID, EnqueuedAt: now.UTC()}
			doc.Pending[entityID] = w
		}
		w.Count++
		result = copyWork(w)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (f *fileStore) ListOldest(_ context.Context, limit int) ([]PendingWork, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows := slices.SortedFunc(maps.Values(f.doc.Pending), func(a, b *PendingWork) int {
		if c := a.EnqueuedAt.Compare(b.EnqueuedAt); c != 0 {
			return c
		}
		return strings.Compare(a.EntityID, b.EntityID)
	})

	if limit < len(rows) {
		rows = rows[:max(limit, 0)]
	}

	result := make([]PendingWork, 0, len(rows))
	for _, w := range rows {
		result = append(result, *copyWork(w))
	}
	return result, nil
}

func (f *fileStore) DeleteIfCount(_ context.Context, entityID string, count int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.doc.Pending[entityID]
	if !ok || w.Count != count {
		return false, nil
	}

	err := f.update(func(doc *fileDocument) error {
		delete(doc.Pending, entityID)
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (f *fileStore) RecordFailure(_ context.Context, entityID string, message string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.doc.Pending[entityID]; !ok {
		return nil
	}

	return f.update(func(doc *fileDocument) error {
		w := doc.Pending[entityID]
		w.Attempts++
		w.LastError = message
		attemptAt := at.UTC()
		w.LastAttemptAt = &attemptAt
		return nil
	})
}

func (f *fileStore) Get(_ context.Context, entityID string) (*PendingWork, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.doc.Pending[entityID]
	if !ok {
		return nil, ErrPendingWorkNotFound
	}
	return copyWork(w), nil
}

func (f *fileStore) Depth(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return int64(len(f.doc.Pending)), nil
}

func (f *fileStore) CurrentWake(_ context.Context) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.doc.NextWakeAt == nil {
		return nil, nil
	}
	wake := *f.doc.NextWakeAt
	return &wake, nil
}

func (f *fileStore) ArmIfIdle(_ context.Context, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.doc.NextWakeAt != nil {
		return false, nil
	}

	err := f.update(func(doc *fileDocument) error {
		wake := at.UTC()
		doc.NextWakeAt = &wake
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (f *fileStore) ClaimDue(_ context.Context, now time.Time) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.doc.NextWakeAt == nil || f.doc.NextWakeAt.After(now) {
		return nil, nil
	}

	due := *f.doc.NextWakeAt
	err := f.update(func(doc *fileDocument) error {
		claimedAt := now.UTC()
		doc.NextWakeAt = nil
		doc.ClaimedAt = &claimedAt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &due, nil
}
