package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/engine"
	"github.com/roach88/mfnet/internal/ir"
	"github.com/roach88/mfnet/internal/mapping"
	"github.com/roach88/mfnet/internal/parallel"
	"github.com/roach88/mfnet/internal/store"
	"github.com/roach88/mfnet/internal/testutil"
)

// offsetDocument computes y = x + k with k = 1.5.
func offsetDocument() *ir.Document {
	return &ir.Document{
		Name:    "offset",
		Inputs:  []ir.BoundarySocket{{Name: "x", Type: "float32"}},
		Outputs: []ir.BoundarySocket{{Name: "y", Type: "float32"}, {Name: "same", Type: "float32"}},
		Nodes: []ir.NodeSpec{
			{ID: "k", Type: "value.float", Params: ir.IRObject{"value": ir.IRFloat(1.5)}},
			{ID: "add", Type: "math.add"},
		},
		Links: []ir.LinkSpec{
			{From: "inputs.x", To: "add.a"},
			{From: "k.value", To: "add.b"},
			{From: "add.result", To: "outputs.y"},
			{From: "add.result", To: "outputs.same"},
		},
	}
}

func standardLibrary() *mapping.Library {
	return mapping.StandardLibrary(ctype.NewDefaultRegistry())
}

func TestEvaluate(t *testing.T) {
	events := testutil.NewEventLog()
	ev, err := Evaluate(context.Background(), offsetDocument(), standardLibrary(),
		WithInputs(ir.IRObject{"x": ir.IRArray{ir.IRInt(1), ir.IRInt(2)}}),
		WithBatchSize(2),
		WithThreads(1),
		WithObserver(events),
		WithRunIDGenerator(testutil.NewFixedRunIDGenerator("run-1")),
	)
	require.NoError(t, err)

	want := ir.IRArray{ir.IRFloat(2.5), ir.IRFloat(3.5)}
	assert.Equal(t, want, ev.Outputs["y"])
	assert.Equal(t, want, ev.Outputs["same"], "outputs sharing an origin")
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, 2, ev.BatchSize)
	assert.NotEmpty(t, ev.DocumentHash)
	assert.NotEmpty(t, ev.OutputsHash)
	assert.Equal(t, 1, events.Count(engine.EventExecuted, "add float32"))
	assert.Equal(t, 3, ev.Executed, "inputs, constant and add")
}

func TestEvaluate_Broadcast(t *testing.T) {
	ev, err := Evaluate(context.Background(), offsetDocument(), standardLibrary(),
		WithInputs(ir.IRObject{"x": ir.IRFloat(0.5)}),
		WithBatchSize(3),
	)
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{ir.IRFloat(2), ir.IRFloat(2), ir.IRFloat(2)}, ev.Outputs["y"])
}

func TestEvaluate_Deterministic(t *testing.T) {
	run := func(threads int) *Evaluation {
		ev, err := Evaluate(context.Background(), offsetDocument(), standardLibrary(),
			WithInputs(ir.IRObject{"x": ir.IRArray{ir.IRInt(1), ir.IRInt(2), ir.IRInt(3)}}),
			WithBatchSize(3),
			WithThreads(threads),
			WithPasses("default"),
		)
		require.NoError(t, err)
		return ev
	}
	a, b := run(1), run(4)
	assert.Equal(t, a.OutputsHash, b.OutputsHash)
	assert.Equal(t, a.InputsHash, b.InputsHash)
	assert.NotEqual(t, a.RunID, b.RunID, "UUIDv7 ids by default")
	assert.Len(t, a.Passes, 4)
}

func TestEvaluate_RecordsRun(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	inputs := ir.IRObject{"x": ir.IRArray{ir.IRInt(1), ir.IRInt(2)}}
	ev, err := Evaluate(ctx, offsetDocument(), standardLibrary(),
		WithInputs(inputs),
		WithBatchSize(2),
		WithThreads(1),
		WithPasses("dead-nodes"),
		WithStore(st),
		WithRunIDGenerator(engine.NewFixedGenerator("run-1")),
	)
	require.NoError(t, err)

	run, events, err := st.ReadRun(ctx, ev.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusOK, run.Status)
	assert.Equal(t, "offset", run.DocumentName)
	assert.Equal(t, ev.DocumentHash, run.DocumentHash)
	assert.Equal(t, ev.OutputsHash, run.OutputsHash)
	assert.Equal(t, []string{"dead-nodes"}, run.Passes)
	assert.Equal(t, 2, run.BatchSize)
	assert.Equal(t, 1, run.Threads)
	assert.Equal(t, ir.EngineVersion, run.EngineVersion)
	assert.NotEmpty(t, events)

	// A second run with the default thread count continues the seq
	// numbering and stores the resolved worker count.
	ev2, err := Evaluate(ctx, offsetDocument(), standardLibrary(),
		WithInputs(inputs),
		WithBatchSize(2),
		WithStore(st),
		WithRunIDGenerator(testutil.NewFixedRunIDGenerator("run-2")),
	)
	require.NoError(t, err)
	run2, _, err := st.ReadRun(ctx, ev2.RunID)
	require.NoError(t, err)
	assert.Greater(t, run2.FirstSeq, run.LastSeq)
	assert.Equal(t, parallel.DefaultThreads(), run2.Threads)

	divs, err := st.FindDivergentRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, divs)
}

func TestEvaluate_Errors(t *testing.T) {
	unlinked := offsetDocument()
	unlinked.Links[2].From = "add.missing"

	tests := []struct {
		name string
		doc  *ir.Document
		opts []EvalOption
		want string
	}{
		{
			name: "missing input",
			doc:  offsetDocument(),
			want: `input "x": no value`,
		},
		{
			name: "undeclared input",
			doc:  offsetDocument(),
			opts: []EvalOption{WithInputs(ir.IRObject{"x": ir.IRInt(1), "z": ir.IRInt(2)})},
			want: `input "z": not declared`,
		},
		{
			name: "bad input value",
			doc:  offsetDocument(),
			opts: []EvalOption{WithInputs(ir.IRObject{"x": ir.IRString("a")})},
			want: `input "x"`,
		},
		{
			name: "unknown pass",
			doc:  offsetDocument(),
			opts: []EvalOption{WithPasses("inline")},
			want: `unknown pass "inline"`,
		},
		{
			name: "negative batch",
			doc:  offsetDocument(),
			opts: []EvalOption{WithBatchSize(-1)},
			want: "batch size must be non-negative",
		},
		{
			name: "unlinked output",
			doc:  unlinked,
			opts: []EvalOption{WithInputs(ir.IRObject{"x": ir.IRInt(1)})},
			want: `output "y": not linked`,
		},
		{
			name: "strict mapping",
			doc: &ir.Document{
				Name:    "strict",
				Outputs: []ir.BoundarySocket{{Name: "y", Type: "float32"}},
				Nodes:   []ir.NodeSpec{{ID: "n", Type: "noise.perlin"}},
				Links:   []ir.LinkSpec{{From: "n.value", To: "outputs.y"}},
			},
			opts: []EvalOption{WithMode(mapping.ModeStrict)},
			want: "UNKNOWN_NODE_TYPE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(context.Background(), tt.doc, standardLibrary(), tt.opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEvaluate_ContextValues(t *testing.T) {
	doc := &ir.Document{
		Name:    "ctx",
		Outputs: []ir.BoundarySocket{{Name: "n", Type: "int32"}},
		Nodes: []ir.NodeSpec{
			{ID: "c", Type: "context.value", Params: ir.IRObject{"key": ir.IRString("count"), "type": ir.IRString("int32")}},
		},
		Links: []ir.LinkSpec{{From: "c.value", To: "outputs.n"}},
	}

	ev, err := Evaluate(context.Background(), doc, standardLibrary(),
		WithContextValues(map[string]any{"count": int32(7)}))
	require.NoError(t, err)
	assert.Equal(t, ir.IRArray{ir.IRInt(7)}, ev.Outputs["n"])
}

func TestOptimize(t *testing.T) {
	ctx := context.Background()

	plain, err := Optimize(ctx, offsetDocument(), standardLibrary())
	require.NoError(t, err)
	assert.Empty(t, plain.Passes)
	assert.NotEmpty(t, plain.DocumentHash)

	opt, err := Optimize(ctx, offsetDocument(), standardLibrary(), WithPasses("default"))
	require.NoError(t, err)
	require.Len(t, opt.Passes, 4)
	assert.Equal(t, plain.DocumentHash, opt.DocumentHash, "hash covers the document, not the passes")
	assert.Equal(t, len(plain.Network.Nodes()), opt.Passes[0].NodesBefore)

	_, err = Optimize(ctx, offsetDocument(), standardLibrary(), WithPasses("no-such-pass"))
	assert.Error(t, err)
}

func TestContextValue(t *testing.T) {
	lib := standardLibrary()

	v, err := ContextValue(lib, "float32", 0.5)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), v)

	v, err = ContextValue(lib, "int32", 3)
	require.NoError(t, err)
	assert.Equal(t, int32(3), v)

	_, err = ContextValue(lib, "vector<float32>", []any{1.0})
	assert.ErrorContains(t, err, "vector context values")

	_, err = ContextValue(lib, "nosuch", 1)
	assert.Error(t, err)
}
