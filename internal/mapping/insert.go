package mapping

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/mfnet/internal/compiler"
	"github.com/roach88/mfnet/internal/fn"
	"github.com/roach88/mfnet/internal/ir"
	"github.com/roach88/mfnet/internal/network"
)

// Mode selects what Insert does with parts of a document it cannot map.
type Mode int

const (
	// ModePlaceholder replaces unknown node types and missing conversions
	// with dummy nodes whose outputs carry default values.
	ModePlaceholder Mode = iota
	// ModeStrict aborts with a *MappingError instead.
	ModeStrict
)

func (m Mode) String() string {
	if m == ModeStrict {
		return "strict"
	}
	return "placeholder"
}

// ParseMode parses "placeholder" or "strict".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "placeholder", "":
		return ModePlaceholder, nil
	case "strict":
		return ModeStrict, nil
	}
	return 0, fmt.Errorf("unknown mapping mode %q: want placeholder or strict", s)
}

// Option configures Insert.
type Option func(*inserter)

// WithMode sets the failure policy. The default is ModePlaceholder.
func WithMode(m Mode) Option {
	return func(in *inserter) { in.mode = m }
}

// WithLogger sets the logger for insertion diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(in *inserter) { in.log = l }
}

// WithBuilder inserts into an existing builder instead of a new one.
func WithBuilder(b *network.Builder) Option {
	return func(in *inserter) { in.b = b }
}

// Result describes an inserted document.
type Result struct {
	Builder *network.Builder

	// InputNode publishes one output socket per graph input; OutputNode
	// consumes one input socket per graph output.
	InputNode  network.NodeID
	OutputNode network.NodeID

	// Origins maps every reference usable as a link source to its output
	// socket, including "inputs.<name>". Targets maps references usable as
	// link targets to input sockets, including "outputs.<name>".
	Origins map[ir.SocketRef]network.SocketID
	Targets map[ir.SocketRef]network.SocketID

	// Placeholders lists document node ids replaced by dummy nodes.
	Placeholders []string
	// Warnings describes links skipped or patched in placeholder mode.
	Warnings []string
}

// GraphInput returns the socket publishing a graph input.
func (r *Result) GraphInput(name string) (network.SocketID, bool) {
	id, ok := r.Origins[ir.Ref(ir.InputsNode, name)]
	return id, ok
}

// GraphOutput returns the socket consuming a graph output.
func (r *Result) GraphOutput(name string) (network.SocketID, bool) {
	id, ok := r.Targets[ir.Ref(ir.OutputsNode, name)]
	return id, ok
}

type inserter struct {
	doc  *ir.Document
	lib  *Library
	b    *network.Builder
	mode Mode
	log  *slog.Logger
	res  *Result

	// pending holds unknown-typed nodes until their socket types resolve.
	pending []ir.NodeSpec
}

// Insert adds the network for doc to a builder using lib.
//
// The document is validated first; invalid documents fail with code
// INVALID_DOCUMENT regardless of mode. Boundary types must resolve in the
// library's registry.
func Insert(doc *ir.Document, lib *Library, opts ...Option) (*Result, error) {
	if errs := compiler.Validate(doc); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, newError(CodeInvalidDocument, "", "%s", strings.Join(msgs, "; "))
	}

	in := &inserter{doc: doc, lib: lib, log: slog.Default()}
	for _, opt := range opts {
		opt(in)
	}
	if in.b == nil {
		in.b = network.NewBuilder()
	}
	in.res = &Result{
		Builder: in.b,
		Origins: make(map[ir.SocketRef]network.SocketID),
		Targets: make(map[ir.SocketRef]network.SocketID),
	}

	steps := []func() error{in.insertBoundary, in.insertNodes, in.insertPlaceholders, in.insertLinks}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	in.log.Debug("document inserted",
		"document", doc.Name,
		"nodes", len(doc.Nodes),
		"links", len(doc.Links),
		"placeholders", len(in.res.Placeholders),
		"mode", in.mode.String(),
	)
	return in.res, nil
}

func (in *inserter) insertBoundary() error {
	sockets := func(list []ir.BoundarySocket) ([]network.DummySocket, error) {
		out := make([]network.DummySocket, len(list))
		for i, s := range list {
			dt, err := in.lib.ParseDataType(s.Type)
			if err != nil {
				return nil, err
			}
			out[i] = network.DummySocket{Name: s.Name, Type: dt}
		}
		return out, nil
	}
	inputs, err := sockets(in.doc.Inputs)
	if err != nil {
		return err
	}
	outputs, err := sockets(in.doc.Outputs)
	if err != nil {
		return err
	}

	inNode := in.b.AddNamedDummy(ir.InputsNode, nil, inputs)
	outNode := in.b.AddNamedDummy(ir.OutputsNode, outputs, nil)
	in.res.InputNode, in.res.OutputNode = inNode.ID(), outNode.ID()
	for _, s := range inNode.Outputs() {
		in.res.Origins[ir.Ref(ir.InputsNode, s.Name())] = s.ID()
	}
	for _, s := range outNode.Inputs() {
		in.res.Targets[ir.Ref(ir.OutputsNode, s.Name())] = s.ID()
	}
	return nil
}

func (in *inserter) insertNodes() error {
	for _, spec := range in.doc.Nodes {
		insert, ok := in.lib.Lookup(spec.Type)
		if !ok {
			if in.mode == ModeStrict {
				return newError(CodeUnknownNodeType, spec.ID, "unknown node type %q", spec.Type)
			}
			in.pending = append(in.pending, spec)
			continue
		}

		ins, err := insert(&InsertContext{Builder: in.b, Library: in.lib, Node: spec})
		if err != nil {
			return &MappingError{Code: CodeInsertFailed, Node: spec.ID, Message: "insert " + spec.Type, Err: err}
		}
		for name, s := range ins.Inputs {
			in.res.Targets[ir.Ref(spec.ID, name)] = s.ID()
		}
		for name, s := range ins.Outputs {
			in.res.Origins[ir.Ref(spec.ID, name)] = s.ID()
		}
		in.log.Debug("node inserted", "node", spec.ID, "type", spec.Type)
	}
	return nil
}

// insertPlaceholders derives placeholder sockets from the links touching
// them. An input takes the type of its origin and an output the type of its
// first typed target. Placeholders feeding each other resolve iteratively.
func (in *inserter) insertPlaceholders() error {
	if len(in.pending) == 0 {
		return nil
	}

	isPending := make(map[string]bool, len(in.pending))
	for _, spec := range in.pending {
		isPending[spec.ID] = true
	}
	types := make(map[ir.SocketRef]fn.DataType)
	known := func(ref ir.SocketRef, sockets map[ir.SocketRef]network.SocketID) (fn.DataType, bool) {
		if dt, ok := types[ref]; ok {
			return dt, true
		}
		if id, ok := sockets[ref]; ok {
			return in.b.Socket(id).DataType(), true
		}
		return fn.DataType{}, false
	}

	for changed := true; changed; {
		changed = false
		for _, link := range in.doc.Links {
			fromNode, _, _ := link.From.Split()
			toNode, _, _ := link.To.Split()
			if isPending[toNode] {
				if _, done := types[link.To]; !done {
					if dt, ok := known(link.From, in.res.Origins); ok {
						types[link.To] = dt
						changed = true
					}
				}
			}
			if isPending[fromNode] {
				if _, done := types[link.From]; !done {
					if dt, ok := known(link.To, in.res.Targets); ok {
						types[link.From] = dt
						changed = true
					}
				}
			}
		}
	}

	for _, spec := range in.pending {
		var inputs, outputs []network.DummySocket
		var inRefs, outRefs []ir.SocketRef
		seen := make(map[ir.SocketRef]bool)
		for _, link := range in.doc.Links {
			for _, side := range []struct {
				ref    ir.SocketRef
				output bool
			}{{link.To, false}, {link.From, true}} {
				node, socket, err := side.ref.Split()
				if err != nil || node != spec.ID || seen[side.ref] {
					continue
				}
				seen[side.ref] = true
				dt, ok := types[side.ref]
				if !ok {
					return newError(CodeUnresolvedSocket, spec.ID, "cannot infer the type of socket %q", socket)
				}
				if side.output {
					outputs = append(outputs, network.DummySocket{Name: socket, Type: dt})
					outRefs = append(outRefs, side.ref)
				} else {
					inputs = append(inputs, network.DummySocket{Name: socket, Type: dt})
					inRefs = append(inRefs, side.ref)
				}
			}
		}

		node := in.b.AddNamedDummy("placeholder "+spec.ID, inputs, outputs)
		for i, ref := range inRefs {
			in.res.Targets[ref] = node.Input(i).ID()
		}
		for i, ref := range outRefs {
			in.res.Origins[ref] = node.Output(i).ID()
		}
		in.res.Placeholders = append(in.res.Placeholders, spec.ID)
		in.log.Warn("unknown node type replaced by placeholder", "node", spec.ID, "type", spec.Type)
	}
	return nil
}

func (in *inserter) insertLinks() error {
	for i, link := range in.doc.Links {
		fromID, okFrom := in.res.Origins[link.From]
		toID, okTo := in.res.Targets[link.To]
		if !okFrom || !okTo {
			missing := link.From
			if okFrom {
				missing = link.To
			}
			node, _, _ := missing.Split()
			if in.mode == ModeStrict {
				return newError(CodeUnknownSocket, node, "links[%d]: no socket %q", i, missing)
			}
			in.warn(fmt.Sprintf("links[%d]: no socket %q, link skipped", i, missing))
			continue
		}

		from, to := in.b.Socket(fromID), in.b.Socket(toID)
		if from.DataType() == to.DataType() {
			in.b.AddLink(from, to)
			continue
		}
		if conv, ok := in.lib.Conversion(from.DataType(), to.DataType()); ok {
			node := in.b.AddFunction(conv)
			in.b.AddLink(from, node.Input(0))
			in.b.AddLink(node.Output(0), to)
			continue
		}

		node, _, _ := link.To.Split()
		if in.mode == ModeStrict {
			return newError(CodeNoConversion, node, "links[%d]: no conversion from %s to %s", i, from.DataType(), to.DataType())
		}
		dummy := in.b.AddNamedDummy(
			fmt.Sprintf("conversion %s to %s", from.DataType(), to.DataType()),
			[]network.DummySocket{{Name: "input", Type: from.DataType()}},
			[]network.DummySocket{{Name: "output", Type: to.DataType()}},
		)
		in.b.AddLink(from, dummy.Input(0))
		in.b.AddLink(dummy.Output(0), to)
		in.warn(fmt.Sprintf("links[%d]: no conversion from %s to %s, placeholder inserted", i, from.DataType(), to.DataType()))
	}
	return nil
}

func (in *inserter) warn(msg string) {
	in.res.Warnings = append(in.res.Warnings, msg)
	in.log.Warn(msg, "document", in.doc.Name)
}
