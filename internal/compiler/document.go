package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/mfnet/internal/ir"
)

// CompileDocument parses a CUE value into a graph document.
// Uses the CUE Go API directly (not a CLI subprocess).
//
// The value is the graph struct itself:
//
//	graph: scale: {
//		inputs: x: "float32"
//		outputs: y: "float32"
//		nodes: {
//			k: {type: "value.float", params: value: 2.5}
//			mul: type: "math.multiply"
//		}
//		links: [
//			{from: "inputs.x", to: "mul.a"},
//			{from: "k.value", to: "mul.b"},
//			{from: "mul.result", to: "outputs.y"},
//		]
//	}
//
// Struct fields keep their declaration order, so inputs, outputs and nodes
// are listed in the order written. The name defaults to the struct label.
func CompileDocument(v cue.Value) (*ir.Document, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	doc := &ir.Document{}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		doc.Name = labels[len(labels)-1].String()
	}
	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		doc.Name = name
	}

	var err error
	if doc.Inputs, err = parseBoundary(v, "inputs"); err != nil {
		return nil, err
	}
	if doc.Outputs, err = parseBoundary(v, "outputs"); err != nil {
		return nil, err
	}
	if doc.Nodes, err = parseNodes(v); err != nil {
		return nil, err
	}
	if doc.Links, err = parseLinks(v); err != nil {
		return nil, err
	}

	Normalize(doc)
	return doc, nil
}

// parseBoundary reads a struct of socket name to type name.
func parseBoundary(v cue.Value, field string) ([]ir.BoundarySocket, error) {
	val := v.LookupPath(cue.ParsePath(field))
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var sockets []ir.BoundarySocket
	for iter.Next() {
		typ, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s.%s", field, iter.Label()),
				Message: "socket type must be a string",
				Pos:     iter.Value().Pos(),
			}
		}
		sockets = append(sockets, ir.BoundarySocket{Name: iter.Label(), Type: typ})
	}
	return sockets, nil
}

// parseNodes reads a struct of node id to {type, params}.
func parseNodes(v cue.Value) ([]ir.NodeSpec, error) {
	val := v.LookupPath(cue.ParsePath("nodes"))
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var nodes []ir.NodeSpec
	for iter.Next() {
		id := iter.Label()
		nodeVal := iter.Value()

		typeVal := nodeVal.LookupPath(cue.ParsePath("type"))
		if !typeVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("nodes.%s.type", id),
				Message: "node type is required",
				Pos:     nodeVal.Pos(),
			}
		}
		typ, err := typeVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		node := ir.NodeSpec{ID: id, Type: typ}
		if paramsVal := nodeVal.LookupPath(cue.ParsePath("params")); paramsVal.Exists() {
			params, err := cueToIR(paramsVal, fmt.Sprintf("nodes.%s.params", id))
			if err != nil {
				return nil, err
			}
			obj, ok := params.(ir.IRObject)
			if !ok {
				return nil, &CompileError{
					Field:   fmt.Sprintf("nodes.%s.params", id),
					Message: "params must be a struct",
					Pos:     paramsVal.Pos(),
				}
			}
			node.Params = obj
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// parseLinks reads a list of {from, to}.
func parseLinks(v cue.Value) ([]ir.LinkSpec, error) {
	val := v.LookupPath(cue.ParsePath("links"))
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var links []ir.LinkSpec
	for i := 0; iter.Next(); i++ {
		from, err := requiredString(iter.Value(), "from", fmt.Sprintf("links[%d]", i))
		if err != nil {
			return nil, err
		}
		to, err := requiredString(iter.Value(), "to", fmt.Sprintf("links[%d]", i))
		if err != nil {
			return nil, err
		}
		links = append(links, ir.LinkSpec{From: ir.SocketRef(from), To: ir.SocketRef(to)})
	}
	return links, nil
}

func requiredString(v cue.Value, field, context string) (string, error) {
	val := v.LookupPath(cue.ParsePath(field))
	if !val.Exists() {
		return "", &CompileError{
			Field:   context + "." + field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// cueToIR converts a concrete CUE value into an IRValue literal.
func cueToIR(v cue.Value, field string) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRFloat(f), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var arr ir.IRArray
		for i := 0; iter.Next(); i++ {
			elem, err := cueToIR(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		if arr == nil {
			arr = ir.IRArray{}
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			key := iter.Label()
			elem, err := cueToIR(iter.Value(), field+"."+key)
			if err != nil {
				return nil, err
			}
			obj[key] = elem
		}
		return obj, nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("parameter values must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// Normalize rewrites every identifier in doc to Unicode NFC so that
// visually identical ids written with different code point sequences
// refer to the same node or socket.
func Normalize(doc *ir.Document) {
	doc.Name = norm.NFC.String(doc.Name)
	for i := range doc.Inputs {
		doc.Inputs[i].Name = norm.NFC.String(doc.Inputs[i].Name)
	}
	for i := range doc.Outputs {
		doc.Outputs[i].Name = norm.NFC.String(doc.Outputs[i].Name)
	}
	for i := range doc.Nodes {
		doc.Nodes[i].ID = norm.NFC.String(doc.Nodes[i].ID)
		doc.Nodes[i].Type = norm.NFC.String(doc.Nodes[i].Type)
	}
	for i := range doc.Links {
		doc.Links[i].From = ir.SocketRef(norm.NFC.String(string(doc.Links[i].From)))
		doc.Links[i].To = ir.SocketRef(norm.NFC.String(string(doc.Links[i].To)))
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
