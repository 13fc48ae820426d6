// Package network composes multi-functions into a dataflow graph.
//
// A Builder accumulates function nodes, dummy (boundary) nodes and links.
// Build freezes it into a read-only Network. Nodes and sockets live in
// dense arenas addressed by NodeID and SocketID; every back reference
// (socket to node, input to origin, output to targets) is an id into the
// same arenas. Ids are assigned in creation order and never reused, so
// removed nodes leave holes. NodeBound and SocketBound size dense
// per-node and per-socket state.
//
// Builders are not safe for concurrent use. Networks are immutable and
// may be shared freely.
package network
