package engine

import (
	"slices"
	"sync"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/network"
)

type scheduleState int

const (
	notScheduled scheduleState = iota
	scheduled
	running
	runningAndRescheduled
)

// multiInput collects one value per origin, in origin order.
type multiInput struct {
	origins  []network.SocketID
	values   []ctype.Buffer
	provided int
}

func (m *multiInput) missing() int { return len(m.origins) - m.provided }

type inputState struct {
	usage ValueUsage
	// wasReadyForExecution is set once the value is complete and visible
	// to the node's executor.
	wasReadyForExecution bool
	value                ctype.Buffer
	multi                *multiInput
}

func (s *inputState) missingValues() int {
	if s.multi != nil {
		return s.multi.missing()
	}
	if s.value == nil {
		return 1
	}
	return 0
}

func (s *inputState) hasCompleteValue() bool {
	return s.missingValues() == 0
}

func (s *inputState) release() {
	if s.multi != nil {
		for i, v := range s.multi.values {
			if v != nil {
				v.Release()
				s.multi.values[i] = nil
			}
		}
		return
	}
	if s.value != nil {
		s.value.Release()
		s.value = nil
	}
}

type outputState struct {
	usage             ValueUsage
	usageForExecution ValueUsage
	// potentialUsers counts linked inputs on reachable nodes that have not
	// yet declared the value unused.
	potentialUsers  int
	hasBeenComputed bool
}

type nodeState struct {
	mu       sync.Mutex
	inputs   []inputState
	outputs  []outputState
	schedule scheduleState

	missingRequiredInputs int
	nonLazyInputsHandled  bool
	finished              bool
}

func newNodeState(g Graph, id network.NodeID, reachable []bool) *nodeState {
	ins, outs := g.NodeInputs(id), g.NodeOutputs(id)
	st := &nodeState{
		inputs:  make([]inputState, len(ins)),
		outputs: make([]outputState, len(outs)),
	}
	for i, in := range ins {
		st.inputs[i].usage = UsageMaybe
		if origins := g.Origins(in); len(origins) > 1 {
			st.inputs[i].multi = &multiInput{
				origins: slices.Clone(origins),
				values:  make([]ctype.Buffer, len(origins)),
			}
		}
	}
	for i, out := range outs {
		users := 0
		for _, t := range g.Targets(out) {
			if reachable[g.SocketNode(t)] {
				users++
			}
		}
		st.outputs[i].potentialUsers = users
		st.outputs[i].usage = UsageMaybe
		if users == 0 {
			st.outputs[i].usage = UsageUnused
		}
	}
	return st
}

// lockedNode is handed to code running under a node's lock. Side effects
// on other nodes are queued here and performed after unlocking.
type lockedNode struct {
	id    network.NodeID
	state *nodeState

	delayedRequiredOutputs []network.SocketID
	delayedUnusedOutputs   []network.SocketID
	delayedScheduledNodes  []network.NodeID
}

// runState is owned by one goroutine and stands in for thread-local data.
type runState struct {
	worker     int
	holdsLock  bool
	lockedNode network.NodeID
}
