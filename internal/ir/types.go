package ir

import (
	"fmt"
	"strings"
)

// Reserved node ids naming the graph boundary in socket references.
// "inputs.x" is graph input x; "outputs.y" is graph output y.
const (
	InputsNode  = "inputs"
	OutputsNode = "outputs"
)

// Document is a node graph as written by a user or an external editor.
type Document struct {
	Name    string           `json:"name"`
	Inputs  []BoundarySocket `json:"inputs,omitempty"`
	Outputs []BoundarySocket `json:"outputs,omitempty"`
	Nodes   []NodeSpec       `json:"nodes"`
	Links   []LinkSpec       `json:"links,omitempty"`
}

// BoundarySocket declares a graph input or output and its data type, written
// as a registry type name ("float32") or "vector<name>".
type BoundarySocket struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NodeSpec is one node: an id unique in the document, the identifier of
// the node type to insert, and literal parameters for that type.
type NodeSpec struct {
	ID     string   `json:"id"`
	Type   string   `json:"type"`
	Params IRObject `json:"params,omitempty"`
}

// LinkSpec connects an output socket to an input socket.
type LinkSpec struct {
	From SocketRef `json:"from"`
	To   SocketRef `json:"to"`
}

// SocketRef addresses a socket as "node.socket".
type SocketRef string

// Ref builds the reference to socket on node.
func Ref(node, socket string) SocketRef {
	return SocketRef(node + "." + socket)
}

// Split returns the node id and socket name of r.
func (r SocketRef) Split() (node, socket string, err error) {
	node, socket, ok := strings.Cut(string(r), ".")
	if !ok || node == "" || socket == "" {
		return "", "", fmt.Errorf("malformed socket reference %q: want \"node.socket\"", string(r))
	}
	return node, socket, nil
}

// Node returns the node with the given id.
func (d *Document) Node(id string) (NodeSpec, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeSpec{}, false
}

// IR renders the document as an IRObject for canonical serialization.
// Nil params become empty objects so that omitted and empty params hash
// identically.
func (d *Document) IR() IRObject {
	inputs := make(IRArray, len(d.Inputs))
	for i, s := range d.Inputs {
		inputs[i] = s.ir()
	}
	outputs := make(IRArray, len(d.Outputs))
	for i, s := range d.Outputs {
		outputs[i] = s.ir()
	}
	nodes := make(IRArray, len(d.Nodes))
	for i, n := range d.Nodes {
		params := n.Params
		if params == nil {
			params = IRObject{}
		}
		nodes[i] = IRObject{
			"id":     IRString(n.ID),
			"type":   IRString(n.Type),
			"params": params,
		}
	}
	links := make(IRArray, len(d.Links))
	for i, l := range d.Links {
		links[i] = IRObject{
			"from": IRString(l.From),
			"to":   IRString(l.To),
		}
	}
	return IRObject{
		"ir_version": IRString(IRVersion),
		"name":       IRString(d.Name),
		"inputs":     inputs,
		"outputs":    outputs,
		"nodes":      nodes,
		"links":      links,
	}
}

func (s BoundarySocket) ir() IRObject {
	return IRObject{"name": IRString(s.Name), "type": IRString(s.Type)}
}
