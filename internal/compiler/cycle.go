package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/mfnet/internal/ir"
)

// CycleWarning reports nodes whose links form a directed cycle.
//
// Cycles are reported at load time so tools can point at them early. The
// evaluator still rejects them at run time with CYCLE_DETECTED.
type CycleWarning struct {
	Path    []string `json:"path"`    // cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // human-readable description
	Level   string   `json:"level"`   // "warning"
}

// AnalyzeCycles finds every strongly connected component of the node graph
// formed by doc's links. Boundary references are ignored since the graph
// inputs and outputs cannot take part in a cycle.
//
// The algorithm:
//  1. Build node -> consumer node edges from links
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
//
// Results follow document node order.
func AnalyzeCycles(doc *ir.Document) []CycleWarning {
	graph, order := buildLinkGraph(doc)

	var warnings []CycleWarning
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// linkGraph maps node id -> node ids consuming one of its outputs.
type linkGraph map[string][]string

func buildLinkGraph(doc *ir.Document) (linkGraph, []string) {
	graph := make(linkGraph, len(doc.Nodes))
	order := make([]string, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if _, ok := graph[n.ID]; !ok {
			graph[n.ID] = nil
			order = append(order, n.ID)
		}
	}
	for _, l := range doc.Links {
		from, _, err := l.From.Split()
		if err != nil {
			continue
		}
		to, _, err := l.To.Split()
		if err != nil {
			continue
		}
		if _, ok := graph[from]; !ok {
			continue
		}
		if _, ok := graph[to]; !ok {
			continue
		}
		graph[from] = append(graph[from], to)
	}
	return graph, order
}

func hasSelfLoop(node string, graph linkGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components, visiting roots in order.
func tarjanSCC(graph linkGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleSCCToWarning(scc []string, graph linkGraph) CycleWarning {
	if len(scc) == 1 {
		id := scc[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("node %s feeds itself", id),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("cycle detected: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// reconstructCyclePath walks edges inside the SCC from its last-popped
// member until it returns to the start.
func reconstructCyclePath(scc []string, graph linkGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
