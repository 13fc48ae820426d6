package mapping

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/fn"
	"github.com/roach88/mfnet/internal/ir"
	"github.com/roach88/mfnet/internal/network"
)

// InsertFunc adds the network nodes for one document node and reports
// which sockets the document may link to.
type InsertFunc func(ic *InsertContext) (*Inserted, error)

// FunctionFactory builds the function for a document node from its params.
type FunctionFactory func(ic *InsertContext) (fn.Function, error)

// InsertContext is handed to an InsertFunc.
type InsertContext struct {
	Builder *network.Builder
	Library *Library
	Node    ir.NodeSpec
}

// Registry returns the library's type registry.
func (ic *InsertContext) Registry() *ctype.Registry { return ic.Library.reg }

// Inserted names the sockets an InsertFunc exposes to document links.
type Inserted struct {
	Inputs  map[string]network.Socket
	Outputs map[string]network.Socket
}

// SocketsOf exposes every socket of n under its own name.
func SocketsOf(n network.Node) *Inserted {
	ins := &Inserted{
		Inputs:  make(map[string]network.Socket, n.InputCount()),
		Outputs: make(map[string]network.Socket, n.OutputCount()),
	}
	for _, s := range n.Inputs() {
		ins.Inputs[s.Name()] = s
	}
	for _, s := range n.Outputs() {
		ins.Outputs[s.Name()] = s
	}
	return ins
}

type conversionKey struct {
	from, to *ctype.Type
}

// Library maps node type identifiers to insertion callbacks, type pairs to
// conversion functions and value types to IR codecs.
//
// A Library is configured once and then only read; concurrent Insert calls
// sharing one Library are safe.
type Library struct {
	reg         *ctype.Registry
	nodes       map[string]InsertFunc
	conversions map[conversionKey]fn.Function
	codecs      map[*ctype.Type]codec
}

// NewLibrary creates an empty library over reg.
func NewLibrary(reg *ctype.Registry) *Library {
	return &Library{
		reg:         reg,
		nodes:       make(map[string]InsertFunc),
		conversions: make(map[conversionKey]fn.Function),
		codecs:      make(map[*ctype.Type]codec),
	}
}

// Registry returns the type registry the library resolves names against.
func (l *Library) Registry() *ctype.Registry { return l.reg }

// RegisterNode binds a node type identifier. Registering an identifier
// twice panics.
func (l *Library) RegisterNode(id string, f InsertFunc) {
	if _, dup := l.nodes[id]; dup {
		panic(fmt.Sprintf("mapping: node type %q registered twice", id))
	}
	l.nodes[id] = f
}

// RegisterFunction binds a node type that inserts exactly one function node
// and exposes all of its sockets.
func (l *Library) RegisterFunction(id string, factory FunctionFactory) {
	l.RegisterNode(id, func(ic *InsertContext) (*Inserted, error) {
		f, err := factory(ic)
		if err != nil {
			return nil, err
		}
		return SocketsOf(ic.Builder.AddFunction(f)), nil
	})
}

// RegisterConversion adds an implicit conversion. f must take one single
// input and produce one single output.
func (l *Library) RegisterConversion(f fn.Function) {
	sig := f.Signature()
	in, out := sig.InputOrMutableIndices(), sig.OutputOrMutableIndices()
	if len(in) != 1 || len(out) != 1 {
		panic(fmt.Sprintf("mapping: conversion %s must have one input and one output", sig))
	}
	from, to := sig.ParamType(in[0]).DataType(), sig.ParamType(out[0]).DataType()
	if !from.IsSingle() || !to.IsSingle() {
		panic(fmt.Sprintf("mapping: conversion %s must map single values", sig))
	}
	key := conversionKey{from: from.Type(), to: to.Type()}
	if _, dup := l.conversions[key]; dup {
		panic(fmt.Sprintf("mapping: conversion %s to %s registered twice", from, to))
	}
	l.conversions[key] = f
}

// Lookup returns the insertion callback for a node type.
func (l *Library) Lookup(id string) (InsertFunc, bool) {
	f, ok := l.nodes[id]
	return f, ok
}

// Conversion returns the function converting from into to. Only single
// values convert.
func (l *Library) Conversion(from, to fn.DataType) (fn.Function, bool) {
	if !from.IsSingle() || !to.IsSingle() {
		return nil, false
	}
	f, ok := l.conversions[conversionKey{from: from.Type(), to: to.Type()}]
	return f, ok
}

// NodeTypes returns the registered node type identifiers, sorted.
func (l *Library) NodeTypes() []string {
	return slices.Sorted(maps.Keys(l.nodes))
}

// ParseDataType resolves "name" or "vector<name>" against the registry.
func (l *Library) ParseDataType(s string) (fn.DataType, error) {
	name, vector := strings.CutPrefix(strings.TrimSpace(s), "vector<")
	if vector {
		var ok bool
		if name, ok = strings.CutSuffix(name, ">"); !ok {
			return fn.DataType{}, newError(CodeUnknownType, "", "malformed vector type %q", s)
		}
	}
	t, ok := l.reg.Lookup(name)
	if !ok {
		return fn.DataType{}, newError(CodeUnknownType, "", "unknown type %q", s)
	}
	if vector {
		return fn.Vector(t), nil
	}
	return fn.Single(t), nil
}

// Param returns a raw parameter value.
func (ic *InsertContext) Param(key string) (ir.IRValue, bool) {
	v, ok := ic.Node.Params[key]
	if _, null := v.(ir.IRNull); null {
		return nil, false
	}
	return v, ok
}

// StringParam returns a string parameter or def when absent.
func (ic *InsertContext) StringParam(key, def string) (string, error) {
	v, ok := ic.Param(key)
	if !ok {
		return def, nil
	}
	s, ok := ir.AsString(v)
	if !ok {
		return "", fmt.Errorf("param %s: want string", key)
	}
	return s, nil
}

// IntParam returns an integer parameter or def when absent.
func (ic *InsertContext) IntParam(key string, def int64) (int64, error) {
	v, ok := ic.Param(key)
	if !ok {
		return def, nil
	}
	n, ok := ir.AsInt(v)
	if !ok {
		return 0, fmt.Errorf("param %s: want integer", key)
	}
	return n, nil
}

// TypeParam resolves a registry type name parameter, def when absent.
func (ic *InsertContext) TypeParam(key, def string) (*ctype.Type, error) {
	name, err := ic.StringParam(key, def)
	if err != nil {
		return nil, err
	}
	t, ok := ic.Library.reg.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("param %s: unknown type %q", key, name)
	}
	return t, nil
}

// ValueParam decodes a parameter as one value of type t. An absent
// parameter yields the type's default value.
func (ic *InsertContext) ValueParam(key string, t *ctype.Type) (*ctype.SingleValue, error) {
	v, ok := ic.Param(key)
	if !ok {
		return ctype.NewSingleValue(t), nil
	}
	sv, err := ic.Library.DecodeSingle(t, v)
	if err != nil {
		return nil, fmt.Errorf("param %s: %w", key, err)
	}
	return sv, nil
}
