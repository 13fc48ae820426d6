package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/fn"
	"github.com/roach88/mfnet/internal/ir"
	"github.com/roach88/mfnet/internal/network"
)

func testTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Kind: "scheduled", Node: "sum", Worker: -1},
		{Seq: 2, Kind: "scheduled", Node: "inputs", Worker: -1},
		{Seq: 3, Kind: "executed", Node: "inputs"},
		{Seq: 4, Kind: "finished", Node: "inputs", Worker: -1},
		{Seq: 5, Kind: "scheduled", Node: "sum", Worker: -1},
		{Seq: 6, Kind: "executed", Node: "sum"},
		{Seq: 7, Kind: "executed", Node: "sum"},
	}
}

func TestAssertExecuted(t *testing.T) {
	trace := testTrace()

	assert.NoError(t, assertExecuted(trace, Assertion{Type: AssertExecuted, Node: "sum"}, true))
	assert.NoError(t, assertExecuted(trace, Assertion{Type: AssertNotExecuted, Node: "negate"}, false))

	err := assertExecuted(trace, Assertion{Type: AssertNotExecuted, Node: "sum"}, false)
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "node sum never executed", ae.Expected)
	assert.Equal(t, "2 executions", ae.Actual)
}

func TestAssertExecutionCount(t *testing.T) {
	trace := testTrace()

	assert.NoError(t, assertExecutionCount(trace, Assertion{Node: "sum", Count: 2}))
	assert.NoError(t, assertExecutionCount(trace, Assertion{Node: "missing", Count: 0}))
	assert.Error(t, assertExecutionCount(trace, Assertion{Node: "inputs", Count: 2}))
}

func TestAssertExecutionOrder(t *testing.T) {
	trace := testTrace()

	tests := []struct {
		name  string
		nodes []string
		want  string
	}{
		{name: "in order", nodes: []string{"inputs", "sum"}},
		{name: "reversed", nodes: []string{"sum", "inputs"}, want: "sum (seq 6) should be before inputs (seq 3)"},
		{name: "missing", nodes: []string{"inputs", "negate"}, want: "node negate never executed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertExecutionOrder(trace, Assertion{Type: AssertExecutionOrder, Nodes: tt.nodes})
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAssertNodeCount(t *testing.T) {
	reg := ctype.NewDefaultRegistry()
	f32 := fn.Single(ctype.TypeOf[float32](reg))
	b := network.NewBuilder()
	in := b.AddDummy("in", nil, []fn.DataType{f32})
	neg := b.AddFunction(fn.NewCustomSI1SO(reg, "negate", func(a float32) float32 { return -a }))
	b.AddLink(in.Output(0), neg.Input(0))
	net := b.Build()

	assert.NoError(t, assertNodeCount(net, Assertion{Count: 2}))
	assert.NoError(t, assertNodeCount(net, Assertion{Kind: "function", Count: 1}))
	assert.NoError(t, assertNodeCount(net, Assertion{Kind: "dummy", Count: 1}))
	assert.ErrorContains(t, assertNodeCount(net, Assertion{Kind: "function", Count: 2}), "2 nodes of kind function")
	assert.ErrorContains(t, assertNodeCount(nil, Assertion{Count: 0}), "requires a network")
}

func TestAssertionError_ListsExecutedNodes(t *testing.T) {
	err := &AssertionError{
		Type:     AssertExecuted,
		Expected: "node x executed",
		Actual:   "0 executions",
		Trace:    testTrace(),
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: executed")
	assert.Contains(t, msg, "[1] inputs (seq 3)")
	assert.Contains(t, msg, "[3] sum (seq 7)")
	assert.NotContains(t, msg, "scheduled")
}

func TestCompareOutputs(t *testing.T) {
	actual := ir.IRObject{
		"y": ir.IRArray{ir.IRFloat(2), ir.IRFloat(0.1)},
		"b": ir.IRArray{ir.IRBool(true)},
	}

	assert.Empty(t, compareOutputs(map[string]any{"y": []any{2, 0.1}}, actual), "2 and 2.0 compare equal")
	assert.Empty(t, compareOutputs(map[string]any{"b": []any{true}}, actual))
	assert.Equal(t, []string{"output y: got [2,0.1], want [2,0.2]"},
		compareOutputs(map[string]any{"y": []any{2, 0.2}}, actual))
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = testTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertExecuted, Node: "sum"},
		{Type: AssertExecutionCount, Node: "sum", Count: 1},
		{Type: AssertNodeCount, Count: 1},
		{Type: "final_state"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "1 executions of sum")
	assert.Contains(t, errs[1], "node_count requires a network")
	assert.Contains(t, errs[2], `unknown assertion type "final_state"`)
}
