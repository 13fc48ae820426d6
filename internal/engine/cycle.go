package engine

import (
	"slices"

	"github.com/roach88/mfnet/internal/network"
)

// findCycle returns the nodes of one cycle among the reachable nodes, in
// link order, or nil when the reachable subgraph is acyclic.
//
// The walk follows inputs to their origins, the same direction demand
// travels during evaluation.
func findCycle(g Graph, reachable []bool) []network.NodeID {
	const (
		white = iota
		grey
		black
	)
	color := make([]uint8, len(reachable))
	var path []network.NodeID

	var visit func(id network.NodeID) []network.NodeID
	visit = func(id network.NodeID) []network.NodeID {
		color[id] = grey
		path = append(path, id)
		for _, in := range g.NodeInputs(id) {
			for _, origin := range g.Origins(in) {
				next := g.SocketNode(origin)
				if !reachable[next] {
					continue
				}
				switch color[next] {
				case grey:
					start := slices.Index(path, next)
					cycle := slices.Clone(path[start:])
					slices.Reverse(cycle)
					return cycle
				case white:
					if c := visit(next); c != nil {
						return c
					}
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return nil
	}

	for id, ok := range reachable {
		if ok && color[id] == white {
			if c := visit(network.NodeID(id)); c != nil {
				return c
			}
		}
	}
	return nil
}
