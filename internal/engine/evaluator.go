package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/network"
)

// Evaluator computes requested outputs of a Graph on demand.
//
// An Evaluator borrows its graph and executor. The per-node state it
// builds lives until the next Execute call.
type Evaluator struct {
	graph    Graph
	executor NodeExecutor

	threads  int
	logger   *slog.Logger
	observer Observer
	clock    *Clock
	runIDs   RunIDGenerator

	runID     string
	states    []*nodeState
	requested map[network.SocketID]int
	results   []ctype.Buffer
	pool      *taskPool
	executed  atomic.Int64
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithThreads sets the number of workers. Zero or less uses GOMAXPROCS.
func WithThreads(n int) Option {
	return func(e *Evaluator) { e.threads = n }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// WithObserver receives node lifecycle events.
func WithObserver(o Observer) Option {
	return func(e *Evaluator) { e.observer = o }
}

// WithClock sets the clock stamping observer events.
func WithClock(c *Clock) Option {
	return func(e *Evaluator) { e.clock = c }
}

// WithRunIDGenerator sets how run ids are generated. Default: UUIDv7.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Evaluator) { e.runIDs = g }
}

// New creates an evaluator over graph.
func New(graph Graph, executor NodeExecutor, opts ...Option) *Evaluator {
	e := &Evaluator{
		graph:    graph,
		executor: executor,
		logger:   slog.Default(),
		clock:    NewClock(),
		runIDs:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.threads < 1 {
		e.threads = runtime.GOMAXPROCS(0)
	}
	return e
}

// RunID returns the id of the most recent Execute call.
func (e *Evaluator) RunID() string { return e.runID }

// ExecutedNodes returns how many node executions the last Execute ran.
func (e *Evaluator) ExecutedNodes() int { return int(e.executed.Load()) }

// Execute computes the requested output sockets and returns their values in
// request order. The caller owns the returned buffers.
//
// ctx carries tracing only; evaluation is not cancellable.
func (e *Evaluator) Execute(ctx context.Context, requested []network.SocketID) ([]ctype.Buffer, error) {
	e.runID = e.runIDs.Generate()
	ctx, span := tracer.Start(ctx, "engine.Execute", trace.WithAttributes(
		attribute.String("engine.run_id", e.runID),
		attribute.Int("engine.requested", len(requested)),
		attribute.Int("engine.threads", e.threads),
	))
	defer span.End()

	results, err := e.execute(ctx, requested)
	span.SetAttributes(attribute.Int64("engine.executed_nodes", e.executed.Load()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	recordExecution(ctx, e.executed.Load())
	return results, nil
}

func (e *Evaluator) execute(ctx context.Context, requested []network.SocketID) ([]ctype.Buffer, error) {
	if err := e.validateRequest(requested); err != nil {
		return nil, err
	}
	e.executed.Store(0)
	e.requested = make(map[network.SocketID]int, len(requested))
	for i, s := range requested {
		if _, dup := e.requested[s]; !dup {
			e.requested[s] = i
		}
	}
	e.results = make([]ctype.Buffer, len(requested))

	reachable := e.initializeReachableNodeStates(requested)
	if cycle := findCycle(e.graph, reachable); cycle != nil {
		return nil, NewCycleError(e.runID, e.nodeNames(cycle))
	}

	e.logger.Debug("evaluation started",
		"run_id", e.runID,
		"requested", len(requested),
		"threads", e.threads,
	)

	e.pool = newTaskPool()
	caller := &runState{worker: -1}
	for _, s := range requested {
		e.sendOutputRequiredNotification(s, caller)
	}
	e.runWorkers(ctx)

	for i, s := range requested {
		if first := e.requested[s]; first != i && e.results[first] != nil {
			e.results[i] = e.results[first].Clone()
		}
	}
	for i, s := range requested {
		if e.results[i] == nil {
			e.releaseResults()
			node := e.graph.SocketNode(s)
			return nil, NewOutputNotComputedError(e.runID, e.graph.NodeName(node), s)
		}
	}
	e.logger.Debug("evaluation finished",
		"run_id", e.runID,
		"executed_nodes", e.executed.Load(),
	)
	return e.results, nil
}

func (e *Evaluator) validateRequest(requested []network.SocketID) error {
	for _, s := range requested {
		if s < 0 || int(s) >= e.graph.SocketBound() || !e.graph.HasNode(e.graph.SocketNode(s)) {
			return NewInvalidRequestError(fmt.Sprintf("socket %d does not exist", s))
		}
		if !e.graph.IsOutputSocket(s) {
			return NewInvalidRequestError(fmt.Sprintf("socket %d is not an output", s))
		}
	}
	return nil
}

func (e *Evaluator) releaseResults() {
	for i, r := range e.results {
		if r != nil {
			r.Release()
			e.results[i] = nil
		}
	}
}

func (e *Evaluator) nodeNames(ids []network.NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = fmt.Sprintf("%s#%d", e.graph.NodeName(id), id)
	}
	return out
}

// HasBeenComputed reports whether an output socket's value was produced in
// the last Execute call.
func (e *Evaluator) HasBeenComputed(socket network.SocketID) bool {
	node := e.graph.SocketNode(socket)
	if int(node) >= len(e.states) || e.states[node] == nil {
		return false
	}
	st := e.states[node]
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.outputs[e.graph.SocketIndex(socket)].hasBeenComputed
}

// WasReached reports whether a node got state in the last Execute call.
func (e *Evaluator) WasReached(node network.NodeID) bool {
	return int(node) < len(e.states) && e.states[node] != nil
}

// initializeReachableNodeStates walks from the requested sockets along
// input-to-origin edges and creates one state per node found.
func (e *Evaluator) initializeReachableNodeStates(requested []network.SocketID) []bool {
	g := e.graph
	reachable := make([]bool, g.NodeBound())
	var stack []network.NodeID
	push := func(id network.NodeID) {
		if !reachable[id] {
			reachable[id] = true
			stack = append(stack, id)
		}
	}
	for _, s := range requested {
		push(g.SocketNode(s))
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, in := range g.NodeInputs(id) {
			for _, origin := range g.Origins(in) {
				push(g.SocketNode(origin))
			}
		}
	}

	e.states = make([]*nodeState, g.NodeBound())
	for id, ok := range reachable {
		if ok {
			e.states[id] = newNodeState(g, network.NodeID(id), reachable)
		}
	}
	return reachable
}

// withLockedNode runs fn while holding the node's lock, then performs the
// side effects fn queued.
func (e *Evaluator) withLockedNode(id network.NodeID, rs *runState, fn func(*lockedNode)) {
	if rs.holdsLock {
		panic(fmt.Sprintf("engine: locking node %d while node %d is locked", id, rs.lockedNode))
	}
	st := e.states[id]
	locked := &lockedNode{id: id, state: st}

	rs.holdsLock, rs.lockedNode = true, id
	func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		fn(locked)
	}()
	rs.holdsLock = false

	for _, s := range locked.delayedRequiredOutputs {
		e.sendOutputRequiredNotification(s, rs)
	}
	for _, s := range locked.delayedUnusedOutputs {
		e.sendOutputUnusedNotification(s, rs)
	}
	for _, n := range locked.delayedScheduledNodes {
		e.addNodeToTaskPool(n)
	}
}

func (e *Evaluator) sendOutputRequiredNotification(socket network.SocketID, rs *runState) {
	node := e.graph.SocketNode(socket)
	index := e.graph.SocketIndex(socket)
	e.withLockedNode(node, rs, func(ln *lockedNode) {
		out := &ln.state.outputs[index]
		if out.usage == UsageRequired {
			return
		}
		out.usage = UsageRequired
		if out.hasBeenComputed {
			return
		}
		e.scheduleNode(ln)
	})
}

func (e *Evaluator) sendOutputUnusedNotification(socket network.SocketID, rs *runState) {
	node := e.graph.SocketNode(socket)
	index := e.graph.SocketIndex(socket)
	e.withLockedNode(node, rs, func(ln *lockedNode) {
		out := &ln.state.outputs[index]
		out.potentialUsers--
		if out.potentialUsers == 0 && out.usage != UsageRequired {
			out.usage = UsageUnused
			// Let the node finish and release its own inputs.
			e.scheduleNode(ln)
		}
	})
}

func (e *Evaluator) scheduleNode(ln *lockedNode) {
	switch ln.state.schedule {
	case notScheduled:
		ln.state.schedule = scheduled
		ln.delayedScheduledNodes = append(ln.delayedScheduledNodes, ln.id)
	case running:
		ln.state.schedule = runningAndRescheduled
	}
}

func (e *Evaluator) addNodeToTaskPool(id network.NodeID) {
	e.notify(EventScheduled, id, -1)
	e.pool.push(id)
}

func (e *Evaluator) runWorkers(ctx context.Context) {
	if e.pool.pending.Load() == 0 {
		e.pool.queue.Close()
		return
	}
	var g errgroup.Group
	for w := 0; w < e.threads; w++ {
		g.Go(func() error {
			rs := &runState{worker: w}
			for {
				id, ok := e.pool.queue.Dequeue()
				if !ok {
					return nil
				}
				e.runNodeTask(id, rs)
				e.pool.done()
			}
		})
	}
	_ = g.Wait()
}

func (e *Evaluator) runNodeTask(id network.NodeID, rs *runState) {
	st := e.states[id]
	doExecute := false
	e.withLockedNode(id, rs, func(ln *lockedNode) {
		if st.schedule != scheduled {
			panic(fmt.Sprintf("engine: node %d run while %d", id, st.schedule))
		}
		st.schedule = running
		if st.finished {
			return
		}
		if !e.prepareNodeOutputsForExecution(ln) {
			return
		}
		if !e.prepareNodeInputsForExecution(ln) {
			return
		}
		doExecute = true
	})

	if doExecute {
		e.executed.Add(1)
		e.notify(EventExecuted, id, rs.worker)
		e.executor.ExecuteNode(&NodeParams{e: e, node: id, state: st, rs: rs})
	}

	e.withLockedNode(id, rs, func(ln *lockedNode) {
		e.finishNodeIfPossible(ln)
		reschedule := st.schedule == runningAndRescheduled
		st.schedule = notScheduled
		if reschedule && !st.finished {
			e.scheduleNode(ln)
		}
	})
}

// prepareNodeOutputsForExecution snapshots output usage and reports
// whether some required output is still missing.
func (e *Evaluator) prepareNodeOutputsForExecution(ln *lockedNode) bool {
	necessary := false
	for i := range ln.state.outputs {
		out := &ln.state.outputs[i]
		out.usageForExecution = out.usage
		if !out.hasBeenComputed && out.usage == UsageRequired {
			necessary = true
		}
	}
	return necessary
}

// prepareNodeInputsForExecution requires every non-lazy input and reports
// whether all required inputs have arrived.
func (e *Evaluator) prepareNodeInputsForExecution(ln *lockedNode) bool {
	st := ln.state
	if !st.nonLazyInputsHandled {
		for i := range st.inputs {
			if st.inputs[i].usage == UsageUnused || e.executor.IsLazyInput(ln.id, i) {
				continue
			}
			e.setInputRequired(ln, i)
		}
		st.nonLazyInputsHandled = true
	}
	if st.missingRequiredInputs > 0 {
		return false
	}
	for i := range st.inputs {
		in := &st.inputs[i]
		if !in.wasReadyForExecution && in.usage != UsageUnused && in.hasCompleteValue() {
			in.wasReadyForExecution = true
		}
	}
	return true
}

// setInputRequired promotes an input to Required. It reports whether the
// value is available now.
func (e *Evaluator) setInputRequired(ln *lockedNode, index int) bool {
	st := ln.state
	in := &st.inputs[index]
	if in.usage == UsageUnused {
		panic(fmt.Sprintf("engine: node %d input %d required after being declared unused", ln.id, index))
	}
	if in.wasReadyForExecution {
		return true
	}
	old := in.usage
	in.usage = UsageRequired
	if old == UsageRequired {
		return false
	}

	missing := in.missingValues()
	if missing == 0 {
		return true
	}
	st.missingRequiredInputs += missing

	socket := e.graph.NodeInputs(ln.id)[index]
	origins := e.graph.Origins(socket)
	if len(origins) == 0 {
		in.value = e.executor.LoadUnlinkedInput(ln.id, index)
		st.missingRequiredInputs--
		return true
	}
	for _, o := range origins {
		ln.delayedRequiredOutputs = append(ln.delayedRequiredOutputs, o)
	}
	return false
}

// setInputUnused declares that the node will never read an input.
func (e *Evaluator) setInputUnused(ln *lockedNode, index int) {
	in := &ln.state.inputs[index]
	if in.usage == UsageRequired {
		panic(fmt.Sprintf("engine: node %d input %d declared unused after being required", ln.id, index))
	}
	if in.usage == UsageUnused {
		return
	}
	in.usage = UsageUnused
	in.release()
	if in.wasReadyForExecution {
		return
	}
	socket := e.graph.NodeInputs(ln.id)[index]
	ln.delayedUnusedOutputs = append(ln.delayedUnusedOutputs, e.graph.Origins(socket)...)
}

// finishNodeIfPossible marks the node finished once no output can still be
// demanded and no required input is outstanding.
func (e *Evaluator) finishNodeIfPossible(ln *lockedNode) {
	st := ln.state
	if st.finished {
		return
	}
	for _, out := range st.outputs {
		if out.usage != UsageUnused && !out.hasBeenComputed {
			return
		}
	}
	for _, in := range st.inputs {
		if in.usage == UsageRequired && !in.wasReadyForExecution {
			return
		}
	}
	st.finished = true
	for i := range st.inputs {
		switch st.inputs[i].usage {
		case UsageMaybe:
			e.setInputUnused(ln, i)
		case UsageRequired:
			st.inputs[i].release()
		}
	}
	e.notify(EventFinished, ln.id, -1)
}

// forwardOutput hands a computed value to every reachable consumer that
// still wants it, and to the caller if the socket was requested.
func (e *Evaluator) forwardOutput(from network.SocketID, value ctype.Buffer, rs *runState) {
	var targets []network.SocketID
	for _, t := range e.graph.Targets(from) {
		if e.shouldForwardTo(t) {
			targets = append(targets, t)
		}
	}

	if slot, ok := e.requested[from]; ok {
		if len(targets) == 0 {
			e.results[slot] = value
			return
		}
		e.results[slot] = value.Clone()
	}
	if len(targets) == 0 {
		value.Release()
		return
	}
	for i, t := range targets {
		v := value
		if i < len(targets)-1 {
			v = value.Clone()
		}
		e.addValueToInputSocket(t, from, v, rs)
	}
}

func (e *Evaluator) shouldForwardTo(input network.SocketID) bool {
	node := e.graph.SocketNode(input)
	st := e.states[node]
	if st == nil {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.inputs[e.graph.SocketIndex(input)].usage != UsageUnused
}

func (e *Evaluator) addValueToInputSocket(input, origin network.SocketID, value ctype.Buffer, rs *runState) {
	node := e.graph.SocketNode(input)
	index := e.graph.SocketIndex(input)
	e.withLockedNode(node, rs, func(ln *lockedNode) {
		in := &ln.state.inputs[index]
		if in.usage == UsageUnused {
			value.Release()
			return
		}
		if in.multi != nil {
			slot := -1
			for k, o := range in.multi.origins {
				if o == origin {
					slot = k
					break
				}
			}
			if slot < 0 || in.multi.values[slot] != nil {
				panic(fmt.Sprintf("engine: unexpected value from socket %d for node %d input %d", origin, node, index))
			}
			in.multi.values[slot] = value
			in.multi.provided++
		} else {
			if in.value != nil {
				panic(fmt.Sprintf("engine: node %d input %d received two values", node, index))
			}
			in.value = value
		}
		if in.usage == UsageRequired {
			ln.state.missingRequiredInputs--
			if ln.state.missingRequiredInputs == 0 {
				e.scheduleNode(ln)
			}
		}
	})
}

func (e *Evaluator) notify(kind EventKind, node network.NodeID, worker int) {
	if e.observer == nil {
		return
	}
	e.observer.Observe(Event{
		RunID:    e.runID,
		Seq:      e.clock.Next(),
		Kind:     kind,
		Node:     node,
		NodeName: e.graph.NodeName(node),
		Worker:   worker,
	})
}
