package network

import (
	"slices"
)

// Network is a frozen graph. All methods are read-only.
type Network struct {
	g *graph
}

// NodeBound returns one past the largest node id.
func (n *Network) NodeBound() int { return n.g.NodeBound() }

// SocketBound returns one past the largest socket id.
func (n *Network) SocketBound() int { return n.g.SocketBound() }

// HasNode reports whether id names a live node.
func (n *Network) HasNode(id NodeID) bool { return n.g.HasNode(id) }

func (n *Network) NodeInputs(id NodeID) []SocketID  { return n.g.NodeInputs(id) }
func (n *Network) NodeOutputs(id NodeID) []SocketID { return n.g.NodeOutputs(id) }
func (n *Network) NodeName(id NodeID) string        { return n.g.NodeName(id) }
func (n *Network) SocketNode(id SocketID) NodeID    { return n.g.SocketNode(id) }
func (n *Network) SocketIndex(id SocketID) int      { return n.g.SocketIndex(id) }
func (n *Network) IsOutputSocket(id SocketID) bool  { return n.g.IsOutputSocket(id) }
func (n *Network) Origins(id SocketID) []SocketID   { return n.g.Origins(id) }
func (n *Network) Targets(id SocketID) []SocketID   { return n.g.Targets(id) }

// NodeByID returns the node with the given id.
func (n *Network) NodeByID(id NodeID) (Node, bool) {
	if !n.g.HasNode(id) {
		return Node{}, false
	}
	return Node{g: n.g, id: id}, true
}

// SocketByID returns the socket with the given id.
func (n *Network) SocketByID(id SocketID) (Socket, bool) {
	if id < 0 || int(id) >= len(n.g.sockets) || n.g.sockets[id] == nil {
		return Socket{}, false
	}
	return Socket{g: n.g, id: id}, true
}

// Nodes returns every live node ordered by id.
func (n *Network) Nodes() []Node {
	var out []Node
	for id, d := range n.g.nodes {
		if d != nil {
			out = append(out, Node{g: n.g, id: NodeID(id)})
		}
	}
	return out
}

// FunctionNodes returns every function node ordered by id.
func (n *Network) FunctionNodes() []Node {
	return slices.DeleteFunc(n.Nodes(), func(nd Node) bool { return !nd.IsFunction() })
}

// DummyNodes returns every dummy node ordered by id.
func (n *Network) DummyNodes() []Node {
	return slices.DeleteFunc(n.Nodes(), func(nd Node) bool { return !nd.IsDummy() })
}

// InputSockets returns every input socket ordered by id.
func (n *Network) InputSockets() []Socket {
	return n.sockets(false)
}

// OutputSockets returns every output socket ordered by id.
func (n *Network) OutputSockets() []Socket {
	return n.sockets(true)
}

func (n *Network) sockets(outputs bool) []Socket {
	var out []Socket
	for id, s := range n.g.sockets {
		if s != nil && s.isOutput == outputs {
			out = append(out, Socket{g: n.g, id: SocketID(id)})
		}
	}
	return out
}

// LinkCount returns the number of linked inputs.
func (n *Network) LinkCount() int {
	count := 0
	for _, s := range n.g.sockets {
		if s != nil && !s.isOutput && s.origin != NoSocket {
			count++
		}
	}
	return count
}

// MaskNodesToTheLeft marks every node the given nodes depend on, including
// the nodes themselves. The result is indexed by NodeID.
func (n *Network) MaskNodesToTheLeft(roots []NodeID) []bool {
	return n.walk(roots, func(d *nodeData, visit func(NodeID)) {
		for _, in := range d.inputs {
			if o := n.g.sockets[in].origin; o != NoSocket {
				visit(n.g.sockets[o].node)
			}
		}
	})
}

// MaskNodesToTheRight marks every node depending on the given nodes,
// including the nodes themselves.
func (n *Network) MaskNodesToTheRight(roots []NodeID) []bool {
	return n.walk(roots, func(d *nodeData, visit func(NodeID)) {
		for _, out := range d.outputs {
			for _, t := range n.g.sockets[out].targets {
				visit(n.g.sockets[t].node)
			}
		}
	})
}

func (n *Network) walk(roots []NodeID, next func(*nodeData, func(NodeID))) []bool {
	seen := make([]bool, len(n.g.nodes))
	stack := slices.Clone(roots)
	for _, r := range roots {
		seen[r] = true
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		next(n.g.node(id), func(m NodeID) {
			if !seen[m] {
				seen[m] = true
				stack = append(stack, m)
			}
		})
	}
	return seen
}

// NodeIDs returns the ids of nodes.
func NodeIDs(nodes []Node) []NodeID {
	out := make([]NodeID, len(nodes))
	for i, nd := range nodes {
		out[i] = nd.id
	}
	return out
}

// Node returns the node with the given id and panics if it does not exist.
func (n *Network) Node(id NodeID) Node {
	n.g.node(id)
	return Node{g: n.g, id: id}
}
