package engine

import (
	"fmt"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/fn"
	"github.com/roach88/mfnet/internal/mask"
	"github.com/roach88/mfnet/internal/network"
)

// NetworkExecutor evaluates the nodes of a *network.Network over one batch.
//
// Function nodes require every input and run through fn.CallAuto. Dummy
// nodes publish caller-supplied values on their outputs and never read
// their inputs. Values missing from the caller default to a single
// default-constructed value, or an empty vector for vector sockets.
//
// Single sockets carry *ctype.Array (one element per index) or
// *ctype.SingleValue. Vector sockets carry *ctype.VectorArray or a
// *ctype.Array holding one vector shared by every index.
type NetworkExecutor struct {
	net      *network.Network
	mask     mask.IndexMask
	size     int
	inputs   map[network.SocketID]ctype.Buffer
	unlinked map[network.SocketID]ctype.Buffer
	context  *fn.Context
	callOpts []fn.CallOption
}

// ExecutorOption configures a NetworkExecutor.
type ExecutorOption func(*NetworkExecutor)

// WithInput supplies the value published by a dummy node's output socket.
// The executor keeps ownership and publishes copies.
func WithInput(socket network.SocketID, value ctype.Buffer) ExecutorOption {
	return func(x *NetworkExecutor) { x.inputs[socket] = value }
}

// WithUnlinkedValue supplies the value of an input socket with no origin.
func WithUnlinkedValue(socket network.SocketID, value ctype.Buffer) ExecutorOption {
	return func(x *NetworkExecutor) { x.unlinked[socket] = value }
}

// WithFunctionContext sets the context passed to every function call.
func WithFunctionContext(ctx *fn.Context) ExecutorOption {
	return func(x *NetworkExecutor) { x.context = ctx }
}

// WithCallOptions forwards options to fn.CallAuto.
func WithCallOptions(opts ...fn.CallOption) ExecutorOption {
	return func(x *NetworkExecutor) { x.callOpts = append(x.callOpts, opts...) }
}

// NewNetworkExecutor creates an executor evaluating net over m.
func NewNetworkExecutor(net *network.Network, m mask.IndexMask, opts ...ExecutorOption) *NetworkExecutor {
	x := &NetworkExecutor{
		net:      net,
		mask:     m,
		size:     m.MinArraySize(),
		inputs:   make(map[network.SocketID]ctype.Buffer),
		unlinked: make(map[network.SocketID]ctype.Buffer),
	}
	for _, opt := range opts {
		opt(x)
	}
	for s, v := range x.inputs {
		x.checkValue(s, v, true)
	}
	for s, v := range x.unlinked {
		x.checkValue(s, v, false)
	}
	return x
}

func (x *NetworkExecutor) checkValue(id network.SocketID, v ctype.Buffer, output bool) {
	s, ok := x.net.SocketByID(id)
	if !ok {
		panic(fmt.Sprintf("engine: value supplied for unknown socket %d", id))
	}
	if s.IsOutput() != output {
		panic(fmt.Sprintf("engine: value supplied for %s on the wrong side", s))
	}
	if want := s.DataType().Type(); v.Type() != want {
		panic(fmt.Sprintf("engine: value for %s has type %s, want %s", s, v.Type().Name(), want.Name()))
	}
}

// IsLazyInput implements NodeExecutor. Dummy inputs are lazy so boundary
// sinks never pull values nobody requested.
func (x *NetworkExecutor) IsLazyInput(node network.NodeID, _ int) bool {
	return x.net.Node(node).IsDummy()
}

// LoadUnlinkedInput implements NodeExecutor.
func (x *NetworkExecutor) LoadUnlinkedInput(node network.NodeID, input int) ctype.Buffer {
	s := x.net.Node(node).Input(input)
	if v, ok := x.unlinked[s.ID()]; ok {
		return v.Clone()
	}
	return defaultValue(s.DataType())
}

// ExecuteNode implements NodeExecutor.
func (x *NetworkExecutor) ExecuteNode(p *NodeParams) {
	node := x.net.Node(p.Node())
	if node.IsDummy() {
		x.executeDummy(p, node)
		return
	}
	x.executeFunction(p, node)
}

func (x *NetworkExecutor) executeDummy(p *NodeParams, node network.Node) {
	for i, s := range node.Outputs() {
		if p.OutputUsage(i) == UsageUnused || p.OutputWasSet(i) {
			continue
		}
		if v, ok := x.inputs[s.ID()]; ok {
			p.SetOutput(i, v.Clone())
			continue
		}
		p.SetOutput(i, defaultValue(s.DataType()))
	}
}

func defaultValue(dt fn.DataType) ctype.Buffer {
	if dt.IsVector() {
		return ctype.NewArray(dt.Type(), 0)
	}
	return ctype.NewSingleValue(dt.Type())
}

func (x *NetworkExecutor) executeFunction(p *NodeParams, node network.Node) {
	f := node.Function()
	sig := f.Signature()

	inputOf := make(map[int]int, node.InputCount())
	for i, param := range node.InputParamIndices() {
		inputOf[param] = i
	}
	outputOf := make(map[int]int, node.OutputCount())
	for i, param := range node.OutputParamIndices() {
		outputOf[param] = i
	}

	outputs := make([]ctype.Buffer, node.OutputCount())
	b := fn.NewParamsBuilder(sig, x.size)
	for pi, param := range sig.Params {
		t := param.Type.DataType().Type()
		switch param.Type.Category() {
		case fn.SingleInput:
			b.AddReadonlySingleInput(x.varray(p.Input(inputOf[pi])))
		case fn.VectorInput:
			b.AddReadonlyVectorInput(x.vvector(p.Input(inputOf[pi])))
		case fn.SingleOutput:
			arr := ctype.NewArrayUninitialized(t, x.size)
			outputs[outputOf[pi]] = arr
			b.AddUninitializedSingleOutput(arr.MutableSpan())
		case fn.VectorOutput:
			va := ctype.NewVectorArray(t, x.size)
			outputs[outputOf[pi]] = va
			b.AddVectorOutput(va)
		case fn.SingleMutable:
			arr := x.ownedArray(p.ExtractInput(inputOf[pi]))
			outputs[outputOf[pi]] = arr
			b.AddSingleMutable(arr.MutableSpan())
		case fn.VectorMutable:
			va := x.ownedVectors(p.ExtractInput(inputOf[pi]))
			outputs[outputOf[pi]] = va
			b.AddVectorMutable(va)
		}
	}

	fn.CallAuto(f, x.mask, b.Build(), x.context, x.callOpts...)

	for i, v := range outputs {
		if p.OutputUsage(i) == UsageUnused || p.OutputWasSet(i) {
			v.Release()
			continue
		}
		p.SetOutput(i, v)
	}
}

func (x *NetworkExecutor) varray(v ctype.Buffer) ctype.VArray {
	switch v := v.(type) {
	case *ctype.Array:
		return ctype.VArrayForSpan(v.Span())
	case *ctype.SingleValue:
		return v.VArray(x.size)
	default:
		panic(fmt.Sprintf("engine: %T cannot feed a single input", v))
	}
}

func (x *NetworkExecutor) vvector(v ctype.Buffer) ctype.VVectorArray {
	switch v := v.(type) {
	case *ctype.VectorArray:
		return ctype.VVectorArrayFor(v)
	case *ctype.Array:
		return ctype.VVectorArrayForSingle(v.Span(), x.size)
	default:
		panic(fmt.Sprintf("engine: %T cannot feed a vector input", v))
	}
}

// ownedArray turns an extracted single value into a per-index array the
// function can mutate.
func (x *NetworkExecutor) ownedArray(v ctype.Buffer) *ctype.Array {
	switch v := v.(type) {
	case *ctype.Array:
		return v
	case *ctype.SingleValue:
		arr := ctype.NewArrayUninitialized(v.Type(), x.size)
		v.VArray(x.size).MaterializeToUninitialized(mask.Range(0, x.size), arr.Data())
		v.Release()
		return arr
	default:
		panic(fmt.Sprintf("engine: %T cannot feed a single mutable", v))
	}
}

func (x *NetworkExecutor) ownedVectors(v ctype.Buffer) *ctype.VectorArray {
	switch v := v.(type) {
	case *ctype.VectorArray:
		return v
	case *ctype.Array:
		va := ctype.NewVectorArray(v.Type(), x.size)
		va.ExtendIndices(mask.Range(0, x.size), ctype.VVectorArrayForSingle(v.Span(), x.size))
		v.Release()
		return va
	default:
		panic(fmt.Sprintf("engine: %T cannot feed a vector mutable", v))
	}
}
