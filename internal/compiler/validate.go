package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/mfnet/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Document structure errors (E101-E109)
	ErrDocumentNameEmpty   = "E101" // name is required
	ErrNodeIDInvalid       = "E102" // empty, reserved or dotted node id
	ErrDuplicateNodeID     = "E103" // node id declared twice
	ErrNodeTypeEmpty       = "E104" // node type is required
	ErrDuplicateBoundary   = "E105" // boundary socket declared twice
	ErrBoundaryTypeEmpty   = "E106" // boundary socket type is required
	ErrBoundaryNameInvalid = "E107" // empty boundary socket name

	// Link errors (E110-E119)
	ErrMalformedSocketRef  = "E110" // reference is not "node.socket"
	ErrUnknownNode         = "E111" // reference names an undeclared node
	ErrUnknownBoundary     = "E112" // reference names an undeclared graph input/output
	ErrLinkDirection       = "E113" // link reads from outputs or writes to inputs
	ErrInputLinkedTwice    = "E114" // two links target the same input socket
	ErrGraphOutputUnlinked = "E115" // graph output has no incoming link
)

// ValidationError represents a document validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a document's structure and links.
// Returns all errors found (does not fail-fast). Node types and socket
// names are not checked here; that needs a mapping library.
func Validate(doc *ir.Document) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(doc.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "document name is required",
			Code:    ErrDocumentNameEmpty,
		})
	}

	inputs := validateBoundary(doc.Inputs, "inputs", &errs)
	outputs := validateBoundary(doc.Outputs, "outputs", &errs)

	nodes := make(map[string]bool, len(doc.Nodes))
	for i, n := range doc.Nodes {
		field := fmt.Sprintf("nodes[%d]", i)
		switch {
		case n.ID == "":
			errs = append(errs, ValidationError{Field: field + ".id", Message: "node id is required", Code: ErrNodeIDInvalid})
		case n.ID == ir.InputsNode || n.ID == ir.OutputsNode:
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("node id %q is reserved for the graph boundary", n.ID),
				Code:    ErrNodeIDInvalid,
			})
		case strings.Contains(n.ID, "."):
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("node id %q must not contain '.'", n.ID),
				Code:    ErrNodeIDInvalid,
			})
		case nodes[n.ID]:
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: fmt.Sprintf("duplicate node id: %q", n.ID),
				Code:    ErrDuplicateNodeID,
			})
		}
		nodes[n.ID] = true

		if strings.TrimSpace(n.Type) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("node %q has no type", n.ID),
				Code:    ErrNodeTypeEmpty,
			})
		}
	}

	targets := make(map[ir.SocketRef]int)
	for i, l := range doc.Links {
		field := fmt.Sprintf("links[%d]", i)
		if e, ok := validateRef(l.From, field+".from", nodes, inputs, ir.InputsNode, ir.OutputsNode); !ok {
			errs = append(errs, e)
		}
		if e, ok := validateRef(l.To, field+".to", nodes, outputs, ir.OutputsNode, ir.InputsNode); !ok {
			errs = append(errs, e)
		}
		if prev, seen := targets[l.To]; seen {
			errs = append(errs, ValidationError{
				Field:   field + ".to",
				Message: fmt.Sprintf("input %q is already linked by links[%d]", l.To, prev),
				Code:    ErrInputLinkedTwice,
			})
			continue
		}
		targets[l.To] = i
	}

	for i, out := range doc.Outputs {
		if out.Name == "" {
			continue
		}
		if _, linked := targets[ir.Ref(ir.OutputsNode, out.Name)]; !linked {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("outputs[%d]", i),
				Message: fmt.Sprintf("graph output %q is not linked", out.Name),
				Code:    ErrGraphOutputUnlinked,
			})
		}
	}

	return errs
}

func validateBoundary(sockets []ir.BoundarySocket, field string, errs *[]ValidationError) map[string]bool {
	names := make(map[string]bool, len(sockets))
	for i, s := range sockets {
		path := fmt.Sprintf("%s[%d]", field, i)
		if s.Name == "" {
			*errs = append(*errs, ValidationError{Field: path + ".name", Message: "socket name is required", Code: ErrBoundaryNameInvalid})
			continue
		}
		if names[s.Name] {
			*errs = append(*errs, ValidationError{
				Field:   path + ".name",
				Message: fmt.Sprintf("duplicate %s socket: %q", field, s.Name),
				Code:    ErrDuplicateBoundary,
			})
		}
		names[s.Name] = true
		if strings.TrimSpace(s.Type) == "" {
			*errs = append(*errs, ValidationError{
				Field:   path + ".type",
				Message: fmt.Sprintf("socket %q has no type", s.Name),
				Code:    ErrBoundaryTypeEmpty,
			})
		}
	}
	return names
}

// validateRef checks one end of a link. own is the boundary node this end
// may name, with sockets declared in boundary; other is the boundary node it
// must not name.
func validateRef(ref ir.SocketRef, field string, nodes, boundary map[string]bool, own, other string) (ValidationError, bool) {
	node, socket, err := ref.Split()
	if err != nil {
		return ValidationError{Field: field, Message: err.Error(), Code: ErrMalformedSocketRef}, false
	}
	switch node {
	case own:
		if !boundary[socket] {
			return ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%q names undeclared graph %s socket %q", ref, own, socket),
				Code:    ErrUnknownBoundary,
			}, false
		}
	case other:
		return ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%q cannot be used on this end of a link", ref),
			Code:    ErrLinkDirection,
		}, false
	default:
		if !nodes[node] {
			return ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%q names unknown node %q", ref, node),
				Code:    ErrUnknownNode,
			}, false
		}
	}
	return ValidationError{}, true
}
