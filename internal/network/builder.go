package network

import (
	"fmt"
	"slices"

	"github.com/roach88/mfnet/internal/fn"
)

// Builder constructs a network. It is not safe for concurrent use.
type Builder struct {
	g *graph
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{g: &graph{}}
}

func (b *Builder) graph() *graph {
	if b.g == nil {
		panic("network: builder used after Build")
	}
	return b.g
}

// AddFunction adds a node for f with one input socket per input-or-mutable
// parameter and one output socket per output-or-mutable parameter, in
// parameter order.
func (b *Builder) AddFunction(f fn.Function) Node {
	sig := f.Signature()
	return b.AddFunctionWithIndices(f, sig.InputOrMutableIndices(), sig.OutputOrMutableIndices())
}

// AddFunctionWithIndices adds a node for f whose sockets map to the given
// parameter indices. The lists must cover exactly the input-or-mutable and
// output-or-mutable parameters, without duplicates. Only mutable
// parameters may appear in both.
func (b *Builder) AddFunctionWithIndices(f fn.Function, inputParams, outputParams []int) Node {
	g := b.graph()
	sig := f.Signature()
	validateParamIndices(sig, inputParams, outputParams)

	id := NodeID(len(g.nodes))
	n := &nodeData{
		kind:        KindFunction,
		name:        sig.Name,
		function:    f,
		inputParams: slices.Clone(inputParams),
		outputParam: slices.Clone(outputParams),
	}
	g.nodes = append(g.nodes, n)
	for i, p := range inputParams {
		n.inputs = append(n.inputs, g.newSocket(id, i, false, sig.Params[p].Type.DataType(), sig.Params[p].Name))
	}
	for i, p := range outputParams {
		n.outputs = append(n.outputs, g.newSocket(id, i, true, sig.Params[p].Type.DataType(), sig.Params[p].Name))
	}
	return Node{g: g, id: id}
}

func validateParamIndices(sig *fn.Signature, inputParams, outputParams []int) {
	check := func(kind string, got []int, want []int) {
		seen := make(map[int]bool, len(got))
		for _, p := range got {
			if p < 0 || p >= sig.ParamCount() {
				panic(fmt.Sprintf("network: %s: %s parameter index %d out of range", sig.Name, kind, p))
			}
			if seen[p] {
				panic(fmt.Sprintf("network: %s: duplicate %s parameter index %d", sig.Name, kind, p))
			}
			seen[p] = true
		}
		if len(seen) != len(want) {
			panic(fmt.Sprintf("network: %s: %s parameters %v, want %v", sig.Name, kind, got, want))
		}
		for _, p := range want {
			if !seen[p] {
				panic(fmt.Sprintf("network: %s: %s parameters %v miss %d", sig.Name, kind, got, p))
			}
		}
	}
	check("input", inputParams, sig.InputOrMutableIndices())
	check("output", outputParams, sig.OutputOrMutableIndices())
	for _, p := range inputParams {
		if slices.Contains(outputParams, p) && sig.ParamType(p).InterfaceType() != fn.Mutable {
			panic(fmt.Sprintf("network: %s: parameter %d used as input and output", sig.Name, p))
		}
	}
}

// DummySocket declares one socket of a dummy node.
type DummySocket struct {
	Name string
	Type fn.DataType
}

// AddDummy adds a boundary node with the given socket types. Sockets are
// named in0, in1, ... and out0, out1, ...
func (b *Builder) AddDummy(name string, inputTypes, outputTypes []fn.DataType) Node {
	named := func(prefix string, types []fn.DataType) []DummySocket {
		out := make([]DummySocket, len(types))
		for i, t := range types {
			out[i] = DummySocket{Name: fmt.Sprintf("%s%d", prefix, i), Type: t}
		}
		return out
	}
	return b.AddNamedDummy(name, named("in", inputTypes), named("out", outputTypes))
}

// AddNamedDummy adds a boundary node with named sockets.
func (b *Builder) AddNamedDummy(name string, inputs, outputs []DummySocket) Node {
	g := b.graph()
	id := NodeID(len(g.nodes))
	n := &nodeData{kind: KindDummy, name: name}
	g.nodes = append(g.nodes, n)
	for i, s := range inputs {
		n.inputs = append(n.inputs, g.newSocket(id, i, false, s.Type, s.Name))
	}
	for i, s := range outputs {
		n.outputs = append(n.outputs, g.newSocket(id, i, true, s.Type, s.Name))
	}
	return Node{g: g, id: id}
}

func (g *graph) newSocket(node NodeID, index int, isOutput bool, dt fn.DataType, name string) SocketID {
	if dt.IsZero() {
		panic(fmt.Sprintf("network: node %d socket %q has no type", node, name))
	}
	id := SocketID(len(g.sockets))
	g.sockets = append(g.sockets, &socketData{
		node:     node,
		index:    index,
		isOutput: isOutput,
		dataType: dt,
		name:     name,
		origin:   NoSocket,
	})
	return id
}

func (b *Builder) own(s Socket) *socketData {
	if s.g != b.graph() {
		panic(fmt.Sprintf("network: socket %d belongs to another builder", s.id))
	}
	return s.g.socket(s.id)
}

// AddLink connects an output socket to an input socket. The input must be
// unlinked and both sockets must have the same data type.
func (b *Builder) AddLink(from, to Socket) {
	src, dst := b.own(from), b.own(to)
	if !src.isOutput {
		panic(fmt.Sprintf("network: link source %s is not an output", from))
	}
	if dst.isOutput {
		panic(fmt.Sprintf("network: link target %s is not an input", to))
	}
	if dst.origin != NoSocket {
		panic(fmt.Sprintf("network: input %s is already linked", to))
	}
	if src.dataType != dst.dataType {
		panic(fmt.Sprintf("network: cannot link %s (%s) to %s (%s)", from, src.dataType, to, dst.dataType))
	}
	dst.origin = from.id
	src.targets = append(src.targets, to.id)
}

// RemoveLink detaches an input from its origin, if any.
func (b *Builder) RemoveLink(to Socket) {
	dst := b.own(to)
	if dst.isOutput || dst.origin == NoSocket {
		return
	}
	src := b.g.socket(dst.origin)
	src.targets = slices.DeleteFunc(src.targets, func(t SocketID) bool { return t == to.id })
	dst.origin = NoSocket
}

// Relink moves every target of oldOutput to newOutput.
func (b *Builder) Relink(oldOutput, newOutput Socket) {
	oldSrc, newSrc := b.own(oldOutput), b.own(newOutput)
	if !oldSrc.isOutput || !newSrc.isOutput {
		panic("network: relink requires two output sockets")
	}
	if oldOutput.id == newOutput.id {
		return
	}
	if oldSrc.dataType != newSrc.dataType {
		panic(fmt.Sprintf("network: cannot relink %s (%s) to %s (%s)", oldOutput, oldSrc.dataType, newOutput, newSrc.dataType))
	}
	for _, t := range oldSrc.targets {
		b.g.socket(t).origin = newOutput.id
	}
	newSrc.targets = append(newSrc.targets, oldSrc.targets...)
	oldSrc.targets = nil
}

// Remove deletes nodes and every link touching them.
func (b *Builder) Remove(ids []NodeID) {
	g := b.graph()
	for _, id := range ids {
		n := g.node(id)
		for _, in := range n.inputs {
			b.RemoveLink(Socket{g: g, id: in})
		}
		for _, out := range n.outputs {
			for _, t := range g.socket(out).targets {
				g.socket(t).origin = NoSocket
			}
		}
	}
	for _, id := range ids {
		n := g.node(id)
		for _, s := range n.inputs {
			g.sockets[s] = nil
		}
		for _, s := range n.outputs {
			g.sockets[s] = nil
		}
		g.nodes[id] = nil
	}
}

// Node returns the live node id.
func (b *Builder) Node(id NodeID) Node {
	g := b.graph()
	g.node(id)
	return Node{g: g, id: id}
}

// Socket returns the live socket id.
func (b *Builder) Socket(id SocketID) Socket {
	g := b.graph()
	g.socket(id)
	return Socket{g: g, id: id}
}

// Snapshot freezes a copy of the current graph. The builder stays usable.
// Node and socket ids in the snapshot equal those in the builder.
func (b *Builder) Snapshot() *Network {
	return &Network{g: b.graph().clone()}
}

// Build freezes the graph and consumes the builder.
func (b *Builder) Build() *Network {
	n := &Network{g: b.graph().clone()}
	b.g = nil
	return n
}

// View returns a read-only network sharing the builder's storage. It is
// valid until the builder is next modified.
func (b *Builder) View() *Network {
	return &Network{g: b.graph()}
}
