package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/mfnet/internal/ir"
)

// LoadFile reads a graph document from path, dispatching on the extension:
// .cue files go through the CUE API, .yaml and .yml through yaml.v3.
func LoadFile(path string) (*ir.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		return ParseCUE(data, path)
	case ".yaml", ".yml":
		doc, err := ParseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return doc, nil
	default:
		return nil, fmt.Errorf("unsupported document extension %q (want .cue, .yaml or .yml)", ext)
	}
}

// ParseCUE compiles CUE source that defines exactly one graph under the
// top-level "graph" field.
func ParseCUE(data []byte, filename string) (*ir.Document, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	graphs := v.LookupPath(cue.ParsePath("graph"))
	if !graphs.Exists() {
		return nil, &CompileError{Field: "graph", Message: "graph is required", Pos: v.Pos()}
	}
	iter, err := graphs.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var found []cue.Value
	for iter.Next() {
		found = append(found, iter.Value())
	}
	if len(found) != 1 {
		return nil, &CompileError{
			Field:   "graph",
			Message: fmt.Sprintf("exactly one graph is required, found %d", len(found)),
			Pos:     graphs.Pos(),
		}
	}
	return CompileDocument(found[0])
}

type yamlDocument struct {
	Name    string        `yaml:"name"`
	Inputs  []yamlSocket  `yaml:"inputs"`
	Outputs []yamlSocket  `yaml:"outputs"`
	Nodes   []yamlNode    `yaml:"nodes"`
	Links   []ir.LinkSpec `yaml:"links"`
}

type yamlSocket struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type yamlNode struct {
	ID     string         `yaml:"id"`
	Type   string         `yaml:"type"`
	Params map[string]any `yaml:"params"`
}

// ParseYAML decodes a YAML document. Unknown fields are rejected.
//
//	name: scale
//	inputs:
//	  - {name: x, type: float32}
//	nodes:
//	  - {id: k, type: value.float, params: {value: 2.5}}
//	links:
//	  - {from: inputs.x, to: mul.a}
func ParseYAML(data []byte) (*ir.Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw yamlDocument
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty document")
		}
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	doc := &ir.Document{Name: raw.Name, Links: raw.Links}
	for _, s := range raw.Inputs {
		doc.Inputs = append(doc.Inputs, ir.BoundarySocket{Name: s.Name, Type: s.Type})
	}
	for _, s := range raw.Outputs {
		doc.Outputs = append(doc.Outputs, ir.BoundarySocket{Name: s.Name, Type: s.Type})
	}
	for _, n := range raw.Nodes {
		node := ir.NodeSpec{ID: n.ID, Type: n.Type}
		if n.Params != nil {
			params, err := ir.FromGo(n.Params)
			if err != nil {
				return nil, fmt.Errorf("node %q params: %w", n.ID, err)
			}
			node.Params = params.(ir.IRObject)
		}
		doc.Nodes = append(doc.Nodes, node)
	}

	Normalize(doc)
	return doc, nil
}
