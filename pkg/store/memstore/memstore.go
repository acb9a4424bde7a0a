// Package memstore is the in-memory ThreadStore used by tests and by runs
// that do not configure a database.
package memstore

import (
	"context"
	"sync"

	"github.com/dimdasci/agent-primitives/pkg/errmodel"
	"github.com/dimdasci/agent-primitives/pkg/thread"
)

// Store keeps threads in a map guarded by a RWMutex. Snapshots are copied on
// the way in and out, so callers can keep appending to their copy without
// racing the store.
type Store struct {
	mu      sync.RWMutex
	threads map[string][]thread.Event
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{threads: map[string][]thread.Event{}}
}

// Create stores a new thread seeded with the given events.
func (s *Store) Create(ctx context.Context, seed ...thread.Event) (*thread.Thread, error) {
	_ = ctx
	th := thread.New(seed...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[th.ID] = append([]thread.Event(nil), th.Events...)
	return th, nil
}

// Get loads a copy of the thread by id.
func (s *Store) Get(ctx context.Context, id string) (*thread.Thread, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	events, ok := s.threads[id]
	if !ok {
		return nil, false, nil
	}
	return &thread.Thread{ID: id, Events: append([]thread.Event(nil), events...)}, true, nil
}

// Save persists events appended since the last Create/Get. A thread whose
// log does not extend the stored one is rejected.
func (s *Store) Save(ctx context.Context, th *thread.Thread) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.threads[th.ID]
	if !ok {
		return errmodel.New(errmodel.CategoryValidation, "not_found",
			"unknown thread "+th.ID, nil)
	}
	if len(th.Events) < len(stored) {
		return errmodel.New(errmodel.CategoryValidation, "conflict",
			"thread "+th.ID+" would lose stored events", map[string]any{
				"stored": len(stored), "incoming": len(th.Events),
			})
	}
	for i := range stored {
		if stored[i].Kind != th.Events[i].Kind {
			return errmodel.New(errmodel.CategoryValidation, "conflict",
				"thread "+th.ID+" diverges from stored log", map[string]any{"at": i})
		}
	}
	s.threads[th.ID] = append([]thread.Event(nil), th.Events...)
	return nil
}
