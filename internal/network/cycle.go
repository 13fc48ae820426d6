package network

import "slices"

// Cycles returns every strongly connected component of the node graph that
// forms a cycle: components with more than one node, and single nodes
// feeding themselves. Each component is sorted by id and the list is
// ordered by its first id. An acyclic network returns nil.
func (n *Network) Cycles() [][]NodeID {
	var (
		index   = 0
		stack   []NodeID
		indices = make(map[NodeID]int)
		lowlink = make(map[NodeID]int)
		onStack = make(map[NodeID]bool)
		cycles  [][]NodeID
	)

	successors := func(v NodeID) []NodeID {
		var out []NodeID
		for _, s := range n.g.node(v).outputs {
			for _, t := range n.g.sockets[s].targets {
				out = append(out, n.g.sockets[t].node)
			}
		}
		return out
	}

	var strongConnect func(NodeID)
	strongConnect = func(v NodeID) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		selfLoop := false
		for _, w := range successors(v) {
			if w == v {
				selfLoop = true
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] != indices[v] {
			return
		}
		var scc []NodeID
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		if len(scc) > 1 || selfLoop {
			slices.Sort(scc)
			cycles = append(cycles, scc)
		}
	}

	for _, nd := range n.Nodes() {
		if _, visited := indices[nd.id]; !visited {
			strongConnect(nd.id)
		}
	}
	slices.SortFunc(cycles, func(a, b []NodeID) int { return int(a[0] - b[0]) })
	return cycles
}

// IsAcyclic reports whether the network has no cycles.
func (n *Network) IsAcyclic() bool {
	return len(n.Cycles()) == 0
}
