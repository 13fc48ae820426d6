package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/mfnet/internal/engine"
)

// Recorder buffers evaluator events in memory and writes them to a Store
// together with their run. Pass it to engine.WithObserver.
//
// Thread-safety: Observe is safe for concurrent use by evaluator workers.
type Recorder struct {
	store *Store

	mu     sync.Mutex
	events map[string][]NodeEvent // by run id
}

var _ engine.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder writing to s.
func NewRecorder(s *Store) *Recorder {
	return &Recorder{store: s, events: make(map[string][]NodeEvent)}
}

// Observe implements engine.Observer.
func (r *Recorder) Observe(e engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[e.RunID] = append(r.events[e.RunID], NodeEventFrom(e))
}

// Pending returns the number of buffered events for runID.
func (r *Recorder) Pending(runID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events[runID])
}

// Flush writes run with every buffered event for run.ID in one
// transaction, then drops them from the buffer. Events are written in seq
// order. On error the buffer is kept so the flush can be retried.
func (r *Recorder) Flush(ctx context.Context, run Run) error {
	r.mu.Lock()
	events := slices.Clone(r.events[run.ID])
	r.mu.Unlock()

	slices.SortFunc(events, func(a, b NodeEvent) int { return cmp.Compare(a.Seq, b.Seq) })

	if _, err := r.store.WriteRun(ctx, run, events); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	r.mu.Lock()
	delete(r.events, run.ID)
	r.mu.Unlock()
	return nil
}
