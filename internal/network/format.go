package network

import (
	"fmt"
	"strings"
)

// String renders a stable, line-oriented dump of the network.
func (n *Network) String() string {
	var b strings.Builder
	nodes := n.Nodes()
	fmt.Fprintf(&b, "nodes %d, links %d\n", len(nodes), n.LinkCount())
	for _, nd := range nodes {
		fmt.Fprintf(&b, "#%d %s %q\n", nd.id, nd.Kind(), nd.Name())
		for _, s := range nd.Inputs() {
			origin := "unlinked"
			if o, ok := s.Origin(); ok {
				origin = socketRef(o)
			}
			fmt.Fprintf(&b, "  in%d %s %s <- %s\n", s.Index(), s.Name(), s.DataType(), origin)
		}
		for _, s := range nd.Outputs() {
			targets := s.Targets()
			refs := make([]string, len(targets))
			for i, t := range targets {
				refs[i] = socketRef(t)
			}
			dst := "none"
			if len(refs) > 0 {
				dst = strings.Join(refs, ", ")
			}
			fmt.Fprintf(&b, "  out%d %s %s -> %s\n", s.Index(), s.Name(), s.DataType(), dst)
		}
	}
	return b.String()
}

func socketRef(s Socket) string {
	dir := "in"
	if s.IsOutput() {
		dir = "out"
	}
	return fmt.Sprintf("#%d.%s%d", s.Node().id, dir, s.Index())
}

// Dot renders the network in Graphviz format.
func (n *Network) Dot() string {
	var b strings.Builder
	b.WriteString("digraph network {\n  rankdir=LR;\n")
	for _, nd := range n.Nodes() {
		shape := "box"
		if nd.IsDummy() {
			shape = "ellipse"
		}
		fmt.Fprintf(&b, "  n%d [label=%q shape=%s];\n", nd.id, nd.Name(), shape)
	}
	for _, s := range n.InputSockets() {
		o, ok := s.Origin()
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  n%d -> n%d [label=%q];\n", o.Node().id, s.Node().id, o.Name()+":"+s.Name())
	}
	b.WriteString("}\n")
	return b.String()
}
