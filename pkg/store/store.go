// Package store defines persistence for threads. Implementations must treat
// a thread's event log as append-only: saving a thread whose log is not an
// extension of the stored one is a conflict.
package store

import (
	"context"

	"github.com/dimdasci/agent-primitives/pkg/thread"
)

// ThreadStore persists threads across loop runs.
type ThreadStore interface {
	// Create stores a new thread seeded with the given events and returns it.
	Create(ctx context.Context, seed ...thread.Event) (*thread.Thread, error)

	// Get loads a thread by id. The second return is false when no thread
	// with that id exists.
	Get(ctx context.Context, id string) (*thread.Thread, bool, error)

	// Save persists the events appended to th since it was created or
	// loaded. Rewriting or truncating stored events fails with a conflict.
	Save(ctx context.Context, th *thread.Thread) error
}
