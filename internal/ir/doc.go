// Package ir defines graph documents: the serializable description of a
// node graph that the mapping layer turns into a multi-function network.
//
// This package imports nothing internal. Documents carry literal parameters
// as sealed IRValue trees, and DocumentHash gives every document a stable,
// content-addressed identity used to key evaluation traces.
//
// Key constraints:
//   - Node ids must not contain '.'; links address sockets as "node.socket"
//   - The ids "inputs" and "outputs" are reserved for the graph boundary
//   - Canonical JSON follows RFC 8785 (UTF-16 key order, NFC strings)
//   - All JSON tags use snake_case
package ir
