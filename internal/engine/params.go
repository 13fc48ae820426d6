package engine

import (
	"fmt"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/network"
)

// NodeParams is the executor's view of one node during one execution.
// It is only valid inside ExecuteNode.
type NodeParams struct {
	e     *Evaluator
	node  network.NodeID
	state *nodeState
	rs    *runState
}

// Node returns the executing node.
func (p *NodeParams) Node() network.NodeID { return p.node }

// Worker returns the index of the worker running the node, or -1 on the
// caller's goroutine.
func (p *NodeParams) Worker() int { return p.rs.worker }

func (p *NodeParams) readyInput(i int) *inputState {
	in := &p.state.inputs[i]
	if !in.wasReadyForExecution {
		panic(fmt.Sprintf("engine: node %d input %d read before it was available", p.node, i))
	}
	return in
}

// Input returns the value of a single-origin input without taking
// ownership. The input must be available.
func (p *NodeParams) Input(i int) ctype.Buffer {
	in := p.readyInput(i)
	if in.multi != nil {
		panic(fmt.Sprintf("engine: node %d input %d is a multi-input", p.node, i))
	}
	if in.value == nil {
		panic(fmt.Sprintf("engine: node %d input %d was already extracted", p.node, i))
	}
	return in.value
}

// ExtractInput takes ownership of an input value.
func (p *NodeParams) ExtractInput(i int) ctype.Buffer {
	v := p.Input(i)
	p.state.inputs[i].value = nil
	return v
}

// MultiInput returns one value per origin, in link order.
func (p *NodeParams) MultiInput(i int) []ctype.Buffer {
	in := p.readyInput(i)
	if in.multi == nil {
		if in.value == nil {
			return nil
		}
		return []ctype.Buffer{in.value}
	}
	return in.multi.values
}

// InputIsAvailable reports whether input i can be read in this execution.
func (p *NodeParams) InputIsAvailable(i int) bool {
	return p.state.inputs[i].wasReadyForExecution
}

// LazyRequireInput requests a lazy input. When the value is not ready, the
// node runs again once it arrives.
func (p *NodeParams) LazyRequireInput(i int) Availability {
	if p.state.inputs[i].wasReadyForExecution {
		return Ready
	}
	p.e.withLockedNode(p.node, p.rs, func(ln *lockedNode) {
		if p.e.setInputRequired(ln, i) {
			p.e.scheduleNode(ln)
		}
	})
	return NotYetAvailable
}

// SetInputUnused declares that the node will never read input i.
func (p *NodeParams) SetInputUnused(i int) {
	p.e.withLockedNode(p.node, p.rs, func(ln *lockedNode) {
		p.e.setInputUnused(ln, i)
	})
}

// OutputUsage returns the demand on output i as of the start of this
// execution.
func (p *NodeParams) OutputUsage(i int) ValueUsage {
	return p.state.outputs[i].usageForExecution
}

// OutputIsRequired reports whether output i must be set by this execution.
func (p *NodeParams) OutputIsRequired(i int) bool {
	out := &p.state.outputs[i]
	return out.usageForExecution == UsageRequired && !p.OutputWasSet(i)
}

// OutputWasSet reports whether output i already has a value.
func (p *NodeParams) OutputWasSet(i int) bool {
	st := p.state
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.outputs[i].hasBeenComputed
}

// SetOutput publishes the value of output i and hands ownership to the
// evaluator. Each output may be set once.
func (p *NodeParams) SetOutput(i int, value ctype.Buffer) {
	if value == nil {
		panic(fmt.Sprintf("engine: node %d output %d set to nil", p.node, i))
	}
	st := p.state
	st.mu.Lock()
	if st.outputs[i].hasBeenComputed {
		st.mu.Unlock()
		panic(fmt.Sprintf("engine: node %d output %d set twice", p.node, i))
	}
	st.outputs[i].hasBeenComputed = true
	st.mu.Unlock()

	p.e.forwardOutput(p.outputSocket(i), value, p.rs)
}

func (p *NodeParams) outputSocket(i int) network.SocketID {
	return p.e.graph.NodeOutputs(p.node)[i]
}
