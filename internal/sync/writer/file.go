package writer

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"sync"

	"github.com/stacklok/billing-sync-server/internal/jsonfile"
)

// BillingStateFileName is the name of the document holding the billing state cache
const BillingStateFileName = "billing_state.json"

// fileStateWriter keeps the billing state cache as one JSON document keyed by entity id.
type fileStateWriter struct {
	path string

	mu     sync.Mutex
	states map[string]*BillingState
}

// NewFileStateWriter opens (or creates) the file-backed billing state cache under dir.
func NewFileStateWriter(dir string) (StateWriter, error) {
	path := filepath.Join(dir, BillingStateFileName)

	states := make(map[string]*BillingState)
	if _, err := jsonfile.Read(path, &states); err != nil {
		return nil, fmt.Errorf("failed to load billing state: %w", err)
	}

	return &fileStateWriter{path: path, states: states}, nil
}

func (f *fileStateWriter) Upsert(_ context.Context, state *BillingState) error {
	if state == nil {
		return fmt.Errorf("billing state is required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	next := maps.Clone(f.states)
	stored := *state
	next[state.EntityID] = &stored

	if err := jsonfile.Write(f.path, next); err != nil {
		return fmt.Errorf("failed to upsert billing state for %s: %w", state.EntityID, err)
	}
	f.states = next
	return nil
}

func (f *fileStateWriter) Get(_ context.Context, entityID string) (*BillingState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.states[entityID]
	if !ok {
		return nil, ErrBillingStateNotFound
	}
	c := *s
	return &c, nil
}
