package network

import (
	"fmt"

	"github.com/roach88/mfnet/internal/fn"
)

// NodeID identifies a node within one builder or network.
type NodeID int

// SocketID identifies a socket within one builder or network.
type SocketID int

// NoSocket marks an unlinked input.
const NoSocket SocketID = -1

// NodeKind distinguishes function nodes from dummy nodes.
type NodeKind int

const (
	KindFunction NodeKind = iota
	KindDummy
)

func (k NodeKind) String() string {
	if k == KindDummy {
		return "dummy"
	}
	return "function"
}

type nodeData struct {
	kind        NodeKind
	name        string
	function    fn.Function
	inputParams []int
	outputParam []int
	inputs      []SocketID
	outputs     []SocketID
}

type socketData struct {
	node     NodeID
	index    int
	isOutput bool
	dataType fn.DataType
	name     string
	origin   SocketID
	targets  []SocketID
}

// graph is the arena shared by Builder and Network.
type graph struct {
	nodes   []*nodeData
	sockets []*socketData
}

func (g *graph) clone() *graph {
	c := &graph{
		nodes:   make([]*nodeData, len(g.nodes)),
		sockets: make([]*socketData, len(g.sockets)),
	}
	for i, n := range g.nodes {
		if n == nil {
			continue
		}
		cp := *n
		cp.inputs = append([]SocketID(nil), n.inputs...)
		cp.outputs = append([]SocketID(nil), n.outputs...)
		cp.inputParams = append([]int(nil), n.inputParams...)
		cp.outputParam = append([]int(nil), n.outputParam...)
		c.nodes[i] = &cp
	}
	for i, s := range g.sockets {
		if s == nil {
			continue
		}
		cp := *s
		cp.targets = append([]SocketID(nil), s.targets...)
		c.sockets[i] = &cp
	}
	return c
}

func (g *graph) node(id NodeID) *nodeData {
	if id < 0 || int(id) >= len(g.nodes) || g.nodes[id] == nil {
		panic(fmt.Sprintf("network: node %d does not exist", id))
	}
	return g.nodes[id]
}

func (g *graph) socket(id SocketID) *socketData {
	if id < 0 || int(id) >= len(g.sockets) || g.sockets[id] == nil {
		panic(fmt.Sprintf("network: socket %d does not exist", id))
	}
	return g.sockets[id]
}

// NodeBound returns one past the largest node id ever assigned.
func (g *graph) NodeBound() int { return len(g.nodes) }

// SocketBound returns one past the largest socket id ever assigned.
func (g *graph) SocketBound() int { return len(g.sockets) }

// HasNode reports whether id names a live node.
func (g *graph) HasNode(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes) && g.nodes[id] != nil
}

// NodeInputs returns the input socket ids of a node in order.
func (g *graph) NodeInputs(id NodeID) []SocketID { return g.node(id).inputs }

// NodeOutputs returns the output socket ids of a node in order.
func (g *graph) NodeOutputs(id NodeID) []SocketID { return g.node(id).outputs }

// NodeName returns a node's display name.
func (g *graph) NodeName(id NodeID) string { return g.node(id).name }

// SocketNode returns the node owning a socket.
func (g *graph) SocketNode(id SocketID) NodeID { return g.socket(id).node }

// SocketIndex returns a socket's position among its node's inputs or outputs.
func (g *graph) SocketIndex(id SocketID) int { return g.socket(id).index }

// IsOutputSocket reports whether id is an output socket.
func (g *graph) IsOutputSocket(id SocketID) bool { return g.socket(id).isOutput }

// Origins returns the output sockets feeding an input: zero or one.
func (g *graph) Origins(id SocketID) []SocketID {
	s := g.socket(id)
	if s.isOutput {
		panic(fmt.Sprintf("network: socket %d is an output", id))
	}
	if s.origin == NoSocket {
		return nil
	}
	return []SocketID{s.origin}
}

// Targets returns the input sockets fed by an output.
func (g *graph) Targets(id SocketID) []SocketID {
	s := g.socket(id)
	if !s.isOutput {
		panic(fmt.Sprintf("network: socket %d is an input", id))
	}
	return s.targets
}

// Node is a read-only handle to a node.
type Node struct {
	g  *graph
	id NodeID
}

func (n Node) data() *nodeData { return n.g.node(n.id) }

func (n Node) ID() NodeID                { return n.id }
func (n Node) Kind() NodeKind            { return n.data().kind }
func (n Node) IsFunction() bool          { return n.data().kind == KindFunction }
func (n Node) IsDummy() bool             { return n.data().kind == KindDummy }
func (n Node) Name() string              { return n.data().name }
func (n Node) Function() fn.Function     { return n.data().function }
func (n Node) InputParamIndices() []int  { return n.data().inputParams }
func (n Node) OutputParamIndices() []int { return n.data().outputParam }
func (n Node) InputCount() int           { return len(n.data().inputs) }
func (n Node) OutputCount() int          { return len(n.data().outputs) }

// Input returns input socket i.
func (n Node) Input(i int) Socket { return Socket{g: n.g, id: n.data().inputs[i]} }

// Output returns output socket i.
func (n Node) Output(i int) Socket { return Socket{g: n.g, id: n.data().outputs[i]} }

// Inputs returns all input sockets in order.
func (n Node) Inputs() []Socket { return n.g.handles(n.data().inputs) }

// Outputs returns all output sockets in order.
func (n Node) Outputs() []Socket { return n.g.handles(n.data().outputs) }

func (n Node) String() string {
	return fmt.Sprintf("%s#%d(%s)", n.Kind(), n.id, n.Name())
}

func (g *graph) handles(ids []SocketID) []Socket {
	out := make([]Socket, len(ids))
	for i, id := range ids {
		out[i] = Socket{g: g, id: id}
	}
	return out
}

// Socket is a read-only handle to a socket.
type Socket struct {
	g  *graph
	id SocketID
}

func (s Socket) data() *socketData { return s.g.socket(s.id) }

func (s Socket) ID() SocketID          { return s.id }
func (s Socket) Node() Node            { return Node{g: s.g, id: s.data().node} }
func (s Socket) Index() int            { return s.data().index }
func (s Socket) IsOutput() bool        { return s.data().isOutput }
func (s Socket) IsInput() bool         { return !s.data().isOutput }
func (s Socket) DataType() fn.DataType { return s.data().dataType }
func (s Socket) Name() string          { return s.data().name }

// Origin returns the output feeding this input, if linked.
func (s Socket) Origin() (Socket, bool) {
	d := s.data()
	if d.isOutput || d.origin == NoSocket {
		return Socket{}, false
	}
	return Socket{g: s.g, id: d.origin}, true
}

// Targets returns the inputs this output feeds.
func (s Socket) Targets() []Socket { return s.g.handles(s.data().targets) }

func (s Socket) String() string {
	d := s.data()
	dir := "in"
	if d.isOutput {
		dir = "out"
	}
	return fmt.Sprintf("%s.%s%d(%s)", s.Node(), dir, d.index, d.name)
}
