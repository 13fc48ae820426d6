package engine

import (
	"sync"
	"sync/atomic"

	"github.com/roach88/mfnet/internal/network"
)

// taskQueue is an unbounded FIFO of scheduled nodes.
//
// A node task may schedule an arbitrary number of further nodes, so
// Enqueue never blocks. Workers wait on a signal channel with capacity one;
// Close wakes every waiter.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []network.NodeID
	closed bool
	signal chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]network.NodeID, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a node. It returns false once the queue is closed.
func (q *taskQueue) Enqueue(id network.NodeID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, id)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Dequeue blocks until a node is available or the queue is closed and
// drained.
func (q *taskQueue) Dequeue() (network.NodeID, bool) {
	for {
		if id, ok := q.TryDequeue(); ok {
			return id, true
		}
		q.mu.Lock()
		if q.closed && len(q.tasks) == 0 {
			q.mu.Unlock()
			return 0, false
		}
		q.mu.Unlock()
		<-q.signal
	}
}

// TryDequeue removes the front node without blocking.
func (q *taskQueue) TryDequeue() (network.NodeID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return 0, false
	}
	id := q.tasks[0]
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	// Re-signal so a second waiter does not sleep while work remains.
	if len(q.tasks) > 0 && !q.closed {
		select {
		case q.signal <- struct{}{}:
		default:
		}
	}
	return id, true
}

// Len returns the number of queued nodes.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close stops further enqueues and wakes all waiters.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// taskPool pairs the queue with a count of tasks that are queued or
// running. The pool closes its queue when the count drops to zero, which
// can only happen once no task is left to schedule more.
type taskPool struct {
	queue   *taskQueue
	pending atomic.Int64
}

func newTaskPool() *taskPool {
	return &taskPool{queue: newTaskQueue()}
}

func (p *taskPool) push(id network.NodeID) {
	p.pending.Add(1)
	p.queue.Enqueue(id)
}

func (p *taskPool) done() {
	if p.pending.Add(-1) == 0 {
		p.queue.Close()
	}
}
