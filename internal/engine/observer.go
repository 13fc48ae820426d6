package engine

import (
	"fmt"

	"github.com/roach88/mfnet/internal/network"
)

// EventKind is a node lifecycle transition.
type EventKind string

const (
	EventScheduled EventKind = "scheduled"
	EventExecuted  EventKind = "executed"
	EventFinished  EventKind = "finished"
)

// Event describes one node lifecycle transition.
type Event struct {
	RunID    string
	Seq      int64
	Kind     EventKind
	Node     network.NodeID
	NodeName string
	// Worker is the worker index running the node, or -1 when the event
	// is not tied to one.
	Worker int
}

func (e Event) String() string {
	return fmt.Sprintf("%d %s %s#%d", e.Seq, e.Kind, e.NodeName, e.Node)
}

// Observer receives events from worker goroutines. Implementations must be
// safe for concurrent use and must not call back into the evaluator.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }
