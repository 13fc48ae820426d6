// Package engine implements the lazy pull evaluator.
//
// Given a Graph, a NodeExecutor and a set of requested output sockets, an
// Evaluator computes exactly the values those outputs depend on.
//
// DEMAND PROPAGATION:
//
// Every reachable socket carries a ValueUsage. Requested outputs start
// Required; everything else starts Maybe, or Unused when nothing reachable
// consumes it. Requiring an input requires the outputs feeding it, which
// schedules their nodes. When a node finishes, its remaining Maybe inputs
// become Unused, which may let upstream nodes finish without running.
//
// LOCKING:
//
// Each node state has its own mutex, taken only through withLockedNode.
// Holding two node locks at once is a programming error and panics. Work
// discovered while a lock is held (newly required outputs, newly unused
// outputs, newly schedulable nodes) is queued on the locked node and
// handled after the lock is released.
//
// SCHEDULING:
//
// A fixed pool of workers drains an unbounded FIFO of ready nodes. A node
// is never run by two workers at once. Scheduling a running node marks it
// for another pass once the current one ends. Execute returns when no
// tasks remain.
//
// The reachable subgraph is checked for cycles before anything runs.
// There is no cancellation: evaluation always completes.
package engine
