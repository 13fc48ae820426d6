package testutil

import (
	"cmp"
	"slices"
	"sync"

	"github.com/roach88/mfnet/internal/engine"
)

// EventLog is an engine.Observer that keeps every event in memory.
//
// Workers report concurrently, so the order of Events is the order in
// which the log received them. Sort by Seq when order matters.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type EventLog struct {
	mu     sync.Mutex
	events []engine.Event
}

var _ engine.Observer = (*EventLog)(nil)

// NewEventLog creates an empty log.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Observe implements engine.Observer.
func (l *EventLog) Observe(e engine.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// Events returns a copy of the logged events.
func (l *EventLog) Events() []engine.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

// Count returns how many events of kind were logged for the node named name.
func (l *EventLog) Count(kind engine.EventKind, name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Kind == kind && e.NodeName == name {
			n++
		}
	}
	return n
}

// Executed returns the names of executed nodes in seq order. A node
// executed twice appears twice.
func (l *EventLog) Executed() []string {
	events := l.Events()
	slices.SortFunc(events, func(a, b engine.Event) int { return cmp.Compare(a.Seq, b.Seq) })
	var names []string
	for _, e := range events {
		if e.Kind == engine.EventExecuted {
			names = append(names, e.NodeName)
		}
	}
	return names
}

// Reset clears the log for reuse.
func (l *EventLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}
