package engine

import (
	"fmt"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/network"
)

// Graph is the socket graph an Evaluator walks. *network.Network
// implements it.
type Graph interface {
	NodeBound() int
	SocketBound() int
	HasNode(id network.NodeID) bool
	NodeName(id network.NodeID) string
	NodeInputs(id network.NodeID) []network.SocketID
	NodeOutputs(id network.NodeID) []network.SocketID
	SocketNode(id network.SocketID) network.NodeID
	SocketIndex(id network.SocketID) int
	IsOutputSocket(id network.SocketID) bool
	// Origins returns the outputs feeding an input. More than one origin
	// makes the input a multi-input.
	Origins(id network.SocketID) []network.SocketID
	Targets(id network.SocketID) []network.SocketID
}

// NodeExecutor runs nodes on behalf of an Evaluator. Implementations must
// be safe for concurrent use across different nodes.
type NodeExecutor interface {
	// ExecuteNode computes some or all of a node's outputs.
	ExecuteNode(params *NodeParams)
	// IsLazyInput reports whether ExecuteNode requests the input itself
	// through LazyRequireInput instead of having it required up front.
	IsLazyInput(node network.NodeID, input int) bool
	// LoadUnlinkedInput returns the value for an input with no origin.
	// The evaluator takes ownership.
	LoadUnlinkedInput(node network.NodeID, input int) ctype.Buffer
}

// ValueUsage is the demand on a socket.
type ValueUsage int

const (
	UsageMaybe ValueUsage = iota
	UsageRequired
	UsageUnused
)

func (u ValueUsage) String() string {
	switch u {
	case UsageMaybe:
		return "maybe"
	case UsageRequired:
		return "required"
	case UsageUnused:
		return "unused"
	default:
		return fmt.Sprintf("ValueUsage(%d)", int(u))
	}
}

// Availability is the result of LazyRequireInput.
type Availability int

const (
	// Ready means the value can be read in the current execution.
	Ready Availability = iota
	// NotYetAvailable means the node will run again once it arrives.
	NotYetAvailable
)

func (a Availability) String() string {
	if a == Ready {
		return "ready"
	}
	return "not_yet_available"
}

var _ Graph = (*network.Network)(nil)
