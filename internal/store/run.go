package store

import (
	"github.com/roach88/mfnet/internal/engine"
	"github.com/roach88/mfnet/internal/ir"
)

// RunStatus is the outcome of a stored run.
type RunStatus string

const (
	StatusOK    RunStatus = "ok"
	StatusError RunStatus = "error"
)

// Run is one stored evaluation.
type Run struct {
	ID           string
	DocumentName string
	DocumentHash string
	InputsHash   string
	// OutputsHash is empty for failed runs.
	OutputsHash string
	Status      RunStatus
	Error       string
	BatchSize   int
	Threads     int
	Passes      []string
	Inputs      ir.IRObject
	Outputs     ir.IRObject
	// FirstSeq and LastSeq bound the run's events; both are 0 for a run
	// without events. Set by WriteRun.
	FirstSeq      int64
	LastSeq       int64
	EngineVersion string
	IRVersion     string
}

// NodeEvent is one stored node lifecycle event.
type NodeEvent struct {
	RunID    string
	Seq      int64
	Kind     engine.EventKind
	NodeID   int64
	NodeName string
	Worker   int
}

// NodeEventFrom converts an evaluator event for storage.
func NodeEventFrom(e engine.Event) NodeEvent {
	return NodeEvent{
		RunID:    e.RunID,
		Seq:      e.Seq,
		Kind:     e.Kind,
		NodeID:   int64(e.Node),
		NodeName: e.NodeName,
		Worker:   e.Worker,
	}
}
