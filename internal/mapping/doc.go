// Package mapping turns graph documents into multi-function networks.
//
// A Library maps node type identifiers to insertion callbacks and pairs of
// data types to conversion functions. Insert walks a document, calls the
// callback for every node, links sockets (inserting conversions where the
// types differ) and reports which engine socket each document reference
// ended up on.
//
// Failures are policy-driven. In ModePlaceholder an unknown node type or a
// missing conversion becomes a dummy node with the right socket types, so
// the rest of the graph still evaluates. In ModeStrict the same situations
// abort with a *MappingError.
package mapping
