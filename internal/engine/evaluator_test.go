package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/fn"
	"github.com/roach88/mfnet/internal/mask"
	"github.com/roach88/mfnet/internal/network"
)

type diamondNet struct {
	reg                               *ctype.Registry
	f32                               *ctype.Type
	net                               *network.Network
	in, double, inc, square, add, out network.Node
}

// newDiamond builds inputs -> double -> (inc, square) -> add -> outputs,
// computing y = (2x+1) + (2x)^2.
func newDiamond(t *testing.T) *diamondNet {
	t.Helper()
	reg := ctype.NewDefaultRegistry()
	f32 := ctype.TypeOf[float32](reg)
	single := fn.Single(f32)

	b := network.NewBuilder()
	in := b.AddNamedDummy("inputs", nil, []network.DummySocket{{Name: "x", Type: single}})
	double := b.AddFunction(fn.NewCustomSI1SO(reg, "double", func(a float32) float32 { return 2 * a }))
	inc := b.AddFunction(fn.NewCustomSI1SO(reg, "inc", func(a float32) float32 { return a + 1 }))
	square := b.AddFunction(fn.NewCustomSI1SO(reg, "square", func(a float32) float32 { return a * a }))
	add := b.AddFunction(fn.NewCustomSI2SO(reg, "add", func(a, b float32) float32 { return a + b }))
	out := b.AddNamedDummy("outputs", []network.DummySocket{{Name: "y", Type: single}}, nil)

	b.AddLink(in.Output(0), double.Input(0))
	b.AddLink(double.Output(0), inc.Input(0))
	b.AddLink(double.Output(0), square.Input(0))
	b.AddLink(inc.Output(0), add.Input(0))
	b.AddLink(square.Output(0), add.Input(1))
	b.AddLink(add.Output(0), out.Input(0))
	net := b.Build()

	return &diamondNet{
		reg: reg, f32: f32, net: net,
		in: net.Node(in.ID()), double: net.Node(double.ID()), inc: net.Node(inc.ID()),
		square: net.Node(square.ID()), add: net.Node(add.ID()), out: net.Node(out.ID()),
	}
}

// eventLog records observer events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Observe(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count(kind EventKind) map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int)
	for _, e := range l.events {
		if e.Kind == kind {
			out[e.NodeName]++
		}
	}
	return out
}

func floats(t *testing.T, b ctype.Buffer) []float32 {
	t.Helper()
	arr, ok := b.(*ctype.Array)
	require.True(t, ok, "want *ctype.Array, got %T", b)
	return ctype.Values[float32](arr)
}

func TestEvaluator_Diamond(t *testing.T) {
	tests := []struct {
		name    string
		threads int
		mask    mask.IndexMask
		want    []float32
	}{
		{"one worker", 1, mask.Range(0, 4), []float32{7, 21, 43, 73}},
		{"two workers", 2, mask.Range(0, 4), []float32{7, 21, 43, 73}},
		{"eight workers", 8, mask.Range(0, 4), []float32{7, 21, 43, 73}},
		{"sparse mask", 8, mask.FromIndices([]int{0, 2, 3}), []float32{7, 0, 43, 73}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDiamond(t)
			x := ctype.FromSlice(d.f32, []float32{1, 2, 3, 4})
			exec := NewNetworkExecutor(d.net, tt.mask, WithInput(d.in.Output(0).ID(), x))
			log := &eventLog{}
			e := New(d.net, exec, WithThreads(tt.threads), WithObserver(log))

			results, err := e.Execute(context.Background(), []network.SocketID{d.add.Output(0).ID()})
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, tt.want, floats(t, results[0]))

			assert.Equal(t, map[string]int{
				"inputs": 1, "double": 1, "inc": 1, "square": 1, "add": 1,
			}, log.count(EventExecuted), "every reachable node runs exactly once")
			assert.Equal(t, 5, e.ExecutedNodes())
			assert.True(t, e.HasBeenComputed(d.add.Output(0).ID()))
			assert.False(t, e.WasReached(d.out.ID()), "sink dummy is downstream of the request")
			assert.Equal(t, []float32{1, 2, 3, 4}, ctype.Values[float32](x), "caller input is copied, not consumed")
		})
	}
}

func TestEvaluator_OnlyRequestedBranchRuns(t *testing.T) {
	d := newDiamond(t)
	x := ctype.FromSlice(d.f32, []float32{1, 2})
	exec := NewNetworkExecutor(d.net, mask.Range(0, 2), WithInput(d.in.Output(0).ID(), x))
	log := &eventLog{}
	e := New(d.net, exec, WithThreads(4), WithObserver(log))

	results, err := e.Execute(context.Background(), []network.SocketID{d.inc.Output(0).ID()})
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 5}, floats(t, results[0]))

	executed := log.count(EventExecuted)
	assert.Equal(t, map[string]int{"inputs": 1, "double": 1, "inc": 1}, executed)
	assert.False(t, e.WasReached(d.square.ID()))
	assert.False(t, e.HasBeenComputed(d.square.Output(0).ID()))
}

func TestEvaluator_RequestedOutputWithConsumers(t *testing.T) {
	d := newDiamond(t)
	x := ctype.FromSlice(d.f32, []float32{1, 2, 3})
	exec := NewNetworkExecutor(d.net, mask.Range(0, 3), WithInput(d.in.Output(0).ID(), x))
	e := New(d.net, exec, WithThreads(3))

	requested := []network.SocketID{
		d.double.Output(0).ID(),
		d.add.Output(0).ID(),
		d.add.Output(0).ID(),
	}
	results, err := e.Execute(context.Background(), requested)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []float32{2, 4, 6}, floats(t, results[0]))
	assert.Equal(t, []float32{7, 21, 43}, floats(t, results[1]))
	assert.Equal(t, floats(t, results[1]), floats(t, results[2]))
	assert.NotSame(t, results[1], results[2], "duplicate requests get independent buffers")
	assert.Equal(t, 5, e.ExecutedNodes())
}

func TestEvaluator_UnlinkedInputs(t *testing.T) {
	reg := ctype.NewDefaultRegistry()
	f32 := ctype.TypeOf[float32](reg)

	b := network.NewBuilder()
	in := b.AddNamedDummy("inputs", nil, []network.DummySocket{{Name: "x", Type: fn.Single(f32)}})
	add := b.AddFunction(fn.NewCustomSI2SO(reg, "add", func(a, b float32) float32 { return a + b }))
	b.AddLink(in.Output(0), add.Input(0))
	net := b.Build()

	x := ctype.FromSlice(f32, []float32{1, 2})
	tests := []struct {
		name string
		opts []ExecutorOption
		want []float32
	}{
		{"default value", nil, []float32{1, 2}},
		{"caller value", []ExecutorOption{WithUnlinkedValue(add.Input(1).ID(), ctype.SingleOf(f32, float32(10)))}, []float32{11, 12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]ExecutorOption{WithInput(in.Output(0).ID(), x)}, tt.opts...)
			exec := NewNetworkExecutor(net, mask.Range(0, 2), opts...)
			results, err := New(net, exec).Execute(context.Background(), []network.SocketID{add.Output(0).ID()})
			require.NoError(t, err)
			assert.Equal(t, tt.want, floats(t, results[0]))
		})
	}
}

func TestEvaluator_MissingCallerInputUsesDefault(t *testing.T) {
	d := newDiamond(t)
	exec := NewNetworkExecutor(d.net, mask.Range(0, 2))
	results, err := New(d.net, exec).Execute(context.Background(), []network.SocketID{d.add.Output(0).ID()})
	require.NoError(t, err)
	// x defaults to 0: (0+1) + 0.
	assert.Equal(t, []float32{1, 1}, floats(t, results[0]))
}

func TestEvaluator_MutableAndVectorParams(t *testing.T) {
	reg := ctype.NewDefaultRegistry()
	f32 := ctype.TypeOf[float32](reg)
	single := fn.Single(f32)

	b := network.NewBuilder()
	in := b.AddNamedDummy("inputs", nil, []network.DummySocket{{Name: "x", Type: single}})
	double := b.AddFunction(fn.NewCustomSI1SO(reg, "double", func(a float32) float32 { return 2 * a }))
	negate := b.AddFunction(fn.NewCustomSM(reg, "negate", func(v *float32) { *v = -*v }))
	pack := b.AddFunction(fn.NewVectorBuilder(f32, 2))
	sum := b.AddFunction(fn.NewVectorSum[float32](reg))

	b.AddLink(in.Output(0), double.Input(0))
	b.AddLink(double.Output(0), negate.Input(0))
	b.AddLink(in.Output(0), pack.Input(0))
	b.AddLink(double.Output(0), pack.Input(1))
	b.AddLink(pack.Output(0), sum.Input(0))
	net := b.Build()

	x := ctype.FromSlice(f32, []float32{1, 2, 3})
	exec := NewNetworkExecutor(net, mask.Range(0, 3), WithInput(in.Output(0).ID(), x))
	results, err := New(net, exec, WithThreads(4)).Execute(context.Background(), []network.SocketID{
		negate.Output(0).ID(),
		sum.Output(0).ID(),
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{-2, -4, -6}, floats(t, results[0]))
	assert.Equal(t, []float32{3, 6, 9}, floats(t, results[1]))
}

func TestEvaluator_CycleIsReported(t *testing.T) {
	reg := ctype.NewDefaultRegistry()
	inc := fn.NewCustomSI1SO(reg, "inc", func(a int32) int32 { return a + 1 })

	b := network.NewBuilder()
	x := b.AddFunction(inc)
	y := b.AddFunction(inc)
	b.AddLink(x.Output(0), y.Input(0))
	b.AddLink(y.Output(0), x.Input(0))
	net := b.Build()

	exec := NewNetworkExecutor(net, mask.Range(0, 1))
	e := New(net, exec, WithRunIDGenerator(NewFixedGenerator("run-cycle")))
	_, err := e.Execute(context.Background(), []network.SocketID{y.Output(0).ID()})
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
	assert.Contains(t, err.Error(), "inc#0")
	assert.Contains(t, err.Error(), "run=run-cycle")
	assert.Equal(t, 0, e.ExecutedNodes())
}

func TestEvaluator_InvalidRequest(t *testing.T) {
	d := newDiamond(t)
	exec := NewNetworkExecutor(d.net, mask.Range(0, 1))

	tests := []struct {
		name   string
		socket network.SocketID
	}{
		{"input socket", d.add.Input(0).ID()},
		{"out of range", 999},
		{"negative", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(d.net, exec).Execute(context.Background(), []network.SocketID{tt.socket})
			require.Error(t, err)
			assert.True(t, IsInvalidRequest(err), "got %v", err)
		})
	}
}

func TestEvaluator_RunIDs(t *testing.T) {
	d := newDiamond(t)
	exec := NewNetworkExecutor(d.net, mask.Range(0, 1))
	log := &eventLog{}
	e := New(d.net, exec,
		WithRunIDGenerator(NewFixedGenerator("run-1", "run-2")),
		WithObserver(log),
		WithClock(NewClockAt(100)),
		WithThreads(1),
	)

	for _, want := range []string{"run-1", "run-2"} {
		_, err := e.Execute(context.Background(), []network.SocketID{d.inc.Output(0).ID()})
		require.NoError(t, err)
		assert.Equal(t, want, e.RunID())
	}

	seen := make(map[int64]bool)
	for _, ev := range log.events {
		assert.Greater(t, ev.Seq, int64(100))
		assert.False(t, seen[ev.Seq], "seq %d emitted twice", ev.Seq)
		seen[ev.Seq] = true
	}
	assert.Equal(t, map[string]int{"inputs": 2, "double": 2, "inc": 2}, log.count(EventExecuted))
}

// fakeGraph is a Graph with explicit sockets. Unlike network.Builder it
// allows several origins on one input.
type fakeGraph struct {
	names     []string
	inputs    [][]network.SocketID
	outputs   [][]network.SocketID
	sockNode  []network.NodeID
	sockIndex []int
	sockOut   []bool
	origins   map[network.SocketID][]network.SocketID
	targets   map[network.SocketID][]network.SocketID
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		origins: make(map[network.SocketID][]network.SocketID),
		targets: make(map[network.SocketID][]network.SocketID),
	}
}

func (g *fakeGraph) addNode(name string, nIn, nOut int) network.NodeID {
	id := network.NodeID(len(g.names))
	g.names = append(g.names, name)
	newSockets := func(n int, out bool) []network.SocketID {
		ids := make([]network.SocketID, n)
		for i := range ids {
			ids[i] = network.SocketID(len(g.sockNode))
			g.sockNode = append(g.sockNode, id)
			g.sockIndex = append(g.sockIndex, i)
			g.sockOut = append(g.sockOut, out)
		}
		return ids
	}
	g.inputs = append(g.inputs, newSockets(nIn, false))
	g.outputs = append(g.outputs, newSockets(nOut, true))
	return id
}

func (g *fakeGraph) link(from, to network.SocketID) {
	g.origins[to] = append(g.origins[to], from)
	g.targets[from] = append(g.targets[from], to)
}

func (g *fakeGraph) in(n network.NodeID, i int) network.SocketID  { return g.inputs[n][i] }
func (g *fakeGraph) out(n network.NodeID, i int) network.SocketID { return g.outputs[n][i] }

func (g *fakeGraph) NodeBound() int                                      { return len(g.names) }
func (g *fakeGraph) SocketBound() int                                    { return len(g.sockNode) }
func (g *fakeGraph) HasNode(id network.NodeID) bool                      { return id >= 0 && int(id) < len(g.names) }
func (g *fakeGraph) NodeName(id network.NodeID) string                   { return g.names[id] }
func (g *fakeGraph) NodeInputs(id network.NodeID) []network.SocketID     { return g.inputs[id] }
func (g *fakeGraph) NodeOutputs(id network.NodeID) []network.SocketID    { return g.outputs[id] }
func (g *fakeGraph) SocketNode(id network.SocketID) network.NodeID       { return g.sockNode[id] }
func (g *fakeGraph) SocketIndex(id network.SocketID) int                 { return g.sockIndex[id] }
func (g *fakeGraph) IsOutputSocket(id network.SocketID) bool             { return g.sockOut[id] }
func (g *fakeGraph) Origins(id network.SocketID) []network.SocketID      { return g.origins[id] }
func (g *fakeGraph) Targets(id network.SocketID) []network.SocketID      { return g.targets[id] }

// funcExecutor runs a closure per node.
type funcExecutor struct {
	run  map[network.NodeID]func(*NodeParams)
	lazy map[network.NodeID]bool

	mu    sync.Mutex
	calls map[network.NodeID]int
}

func newFuncExecutor() *funcExecutor {
	return &funcExecutor{
		run:   make(map[network.NodeID]func(*NodeParams)),
		lazy:  make(map[network.NodeID]bool),
		calls: make(map[network.NodeID]int),
	}
}

func (x *funcExecutor) ExecuteNode(p *NodeParams) {
	x.mu.Lock()
	x.calls[p.Node()]++
	x.mu.Unlock()
	if f := x.run[p.Node()]; f != nil {
		f(p)
	}
}

func (x *funcExecutor) IsLazyInput(node network.NodeID, input int) bool {
	return x.lazy[node] && input > 0
}

func (x *funcExecutor) LoadUnlinkedInput(network.NodeID, int) ctype.Buffer {
	panic("no unlinked inputs in this graph")
}

func source[T any](typ *ctype.Type, v T) func(*NodeParams) {
	return func(p *NodeParams) { p.SetOutput(0, ctype.SingleOf(typ, v)) }
}

func TestEvaluator_MultiInput(t *testing.T) {
	reg := ctype.NewDefaultRegistry()
	i64 := ctype.TypeOf[int64](reg)

	g := newFakeGraph()
	x := newFuncExecutor()
	var sources []network.NodeID
	for k := 1; k <= 3; k++ {
		id := g.addNode(fmt.Sprintf("src%d", k), 0, 1)
		x.run[id] = source(i64, int64(10*k))
		sources = append(sources, id)
	}
	join := g.addNode("join", 1, 1)
	for _, s := range sources {
		g.link(g.out(s, 0), g.in(join, 0))
	}

	var seen []int64
	x.run[join] = func(p *NodeParams) {
		var total int64
		for _, v := range p.MultiInput(0) {
			n := ctype.Get[int64](v.(*ctype.SingleValue))
			seen = append(seen, n)
			total += n
		}
		p.SetOutput(0, ctype.SingleOf(i64, total))
	}

	results, err := New(g, x, WithThreads(3)).Execute(context.Background(), []network.SocketID{g.out(join, 0)})
	require.NoError(t, err)
	assert.Equal(t, int64(60), ctype.Get[int64](results[0].(*ctype.SingleValue)))
	assert.Equal(t, []int64{10, 20, 30}, seen, "values arrive in link order")
	assert.Equal(t, 1, x.calls[join])
}

func TestEvaluator_LazyInputs(t *testing.T) {
	reg := ctype.NewDefaultRegistry()
	i64 := ctype.TypeOf[int64](reg)
	boolean := ctype.TypeOf[bool](reg)

	for _, cond := range []bool{true, false} {
		t.Run(fmt.Sprintf("cond=%v", cond), func(t *testing.T) {
			g := newFakeGraph()
			x := newFuncExecutor()
			c := g.addNode("cond", 0, 1)
			a := g.addNode("a", 0, 1)
			b := g.addNode("b", 0, 1)
			sw := g.addNode("switch", 3, 1)
			g.link(g.out(c, 0), g.in(sw, 0))
			g.link(g.out(a, 0), g.in(sw, 1))
			g.link(g.out(b, 0), g.in(sw, 2))

			x.run[c] = source(boolean, cond)
			x.run[a] = source(i64, int64(1))
			x.run[b] = source(i64, int64(2))
			x.lazy[sw] = true
			x.run[sw] = func(p *NodeParams) {
				pick := 2
				if ctype.Get[bool](p.Input(0).(*ctype.SingleValue)) {
					pick = 1
				}
				if p.LazyRequireInput(pick) == NotYetAvailable {
					return
				}
				p.SetOutput(0, p.ExtractInput(pick))
			}

			log := &eventLog{}
			e := New(g, x, WithThreads(2), WithObserver(log))
			results, err := e.Execute(context.Background(), []network.SocketID{g.out(sw, 0)})
			require.NoError(t, err)

			taken, skipped, want := a, b, int64(1)
			if !cond {
				taken, skipped, want = b, a, 2
			}
			assert.Equal(t, want, ctype.Get[int64](results[0].(*ctype.SingleValue)))
			assert.Equal(t, 2, x.calls[sw], "switch runs again once its lazy input arrives")
			assert.Equal(t, 1, x.calls[taken])
			assert.Equal(t, 0, x.calls[skipped], "unselected branch never runs")
			assert.Equal(t, 1, log.count(EventFinished)[g.names[skipped]], "unselected branch is finished as unused")
		})
	}
}

func TestEvaluator_OutputNotComputed(t *testing.T) {
	g := newFakeGraph()
	x := newFuncExecutor()
	n := g.addNode("idle", 0, 1)
	x.run[n] = func(*NodeParams) {}

	_, err := New(g, x).Execute(context.Background(), []network.SocketID{g.out(n, 0)})
	require.Error(t, err)
	assert.True(t, IsOutputNotComputed(err))
	assert.Contains(t, err.Error(), "idle")
}

func TestEvaluator_DuplicateRequestNotComputed(t *testing.T) {
	g := newFakeGraph()
	x := newFuncExecutor()
	n := g.addNode("idle", 0, 1)
	x.run[n] = func(*NodeParams) {}

	var err error
	require.NotPanics(t, func() {
		_, err = New(g, x).Execute(context.Background(), []network.SocketID{g.out(n, 0), g.out(n, 0)})
	})
	require.Error(t, err)
	assert.True(t, IsOutputNotComputed(err))
}

func TestEvaluator_NestedLockingPanics(t *testing.T) {
	d := newDiamond(t)
	e := New(d.net, NewNetworkExecutor(d.net, mask.Range(0, 1)))
	e.initializeReachableNodeStates([]network.SocketID{d.add.Output(0).ID()})

	rs := &runState{}
	assert.Panics(t, func() {
		e.withLockedNode(d.add.ID(), rs, func(*lockedNode) {
			e.withLockedNode(d.inc.ID(), rs, func(*lockedNode) {})
		})
	})
}

func TestEvaluator_SetOutputTwicePanics(t *testing.T) {
	reg := ctype.NewDefaultRegistry()
	i64 := ctype.TypeOf[int64](reg)
	g := newFakeGraph()
	x := newFuncExecutor()
	n := g.addNode("twice", 0, 1)

	var recovered any
	x.run[n] = func(p *NodeParams) {
		p.SetOutput(0, ctype.SingleOf(i64, int64(1)))
		defer func() { recovered = recover() }()
		p.SetOutput(0, ctype.SingleOf(i64, int64(2)))
	}

	results, err := New(g, x, WithThreads(1)).Execute(context.Background(), []network.SocketID{g.out(n, 0)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ctype.Get[int64](results[0].(*ctype.SingleValue)))
	assert.NotNil(t, recovered)
}
