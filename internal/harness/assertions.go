package harness

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/mfnet/internal/ir"
	"github.com/roach88/mfnet/internal/network"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nExecuted nodes:\n")
		i := 0
		for _, event := range e.Trace {
			if event.Kind == "executed" {
				i++
				fmt.Fprintf(&buf, "  [%d] %s (seq %d)\n", i, event.Node, event.Seq)
			}
		}
	}
	return buf.String()
}

// assertExecuted checks whether the node executed at least once, or never
// when want is false.
func assertExecuted(trace []TraceEvent, a Assertion, want bool) error {
	n := executions(trace, a.Node)
	if (n > 0) == want {
		return nil
	}
	expected := fmt.Sprintf("node %s executed", a.Node)
	if !want {
		expected = fmt.Sprintf("node %s never executed", a.Node)
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   fmt.Sprintf("%d executions", n),
		Trace:    trace,
	}
}

// assertExecutionCount checks the node executed exactly a.Count times.
func assertExecutionCount(trace []TraceEvent, a Assertion) error {
	if n := executions(trace, a.Node); n != a.Count {
		return &AssertionError{
			Type:     AssertExecutionCount,
			Expected: fmt.Sprintf("%d executions of %s", a.Count, a.Node),
			Actual:   fmt.Sprintf("%d executions", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertExecutionOrder checks nodes were first executed in the given order.
// Other nodes may execute in between.
func assertExecutionOrder(trace []TraceEvent, a Assertion) error {
	first := make(map[string]int64)
	for _, event := range trace {
		if event.Kind != "executed" {
			continue
		}
		if _, ok := first[event.Node]; !ok {
			first[event.Node] = event.Seq
		}
	}

	for _, name := range a.Nodes {
		if _, ok := first[name]; !ok {
			return &AssertionError{
				Type:     AssertExecutionOrder,
				Expected: fmt.Sprintf("all nodes executed: %v", a.Nodes),
				Actual:   fmt.Sprintf("node %s never executed", name),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Nodes); i++ {
		prev, curr := a.Nodes[i-1], a.Nodes[i]
		if first[prev] >= first[curr] {
			return &AssertionError{
				Type:     AssertExecutionOrder,
				Expected: fmt.Sprintf("nodes in order: %v", a.Nodes),
				Actual: fmt.Sprintf("%s (seq %d) should be before %s (seq %d)",
					prev, first[prev], curr, first[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertNodeCount checks the number of nodes of a kind in net.
func assertNodeCount(net *network.Network, a Assertion) error {
	if net == nil {
		return fmt.Errorf("node_count assertion requires a network")
	}
	n := 0
	for _, node := range net.Nodes() {
		if a.Kind == "" || node.Kind().String() == a.Kind {
			n++
		}
	}
	if n != a.Count {
		kind := a.Kind
		if kind == "" {
			kind = "any"
		}
		return &AssertionError{
			Type:     AssertNodeCount,
			Expected: fmt.Sprintf("%d nodes of kind %s", a.Count, kind),
			Actual:   fmt.Sprintf("%d nodes", n),
		}
	}
	return nil
}

func executions(trace []TraceEvent, name string) int {
	n := 0
	for _, e := range trace {
		if e.Kind == "executed" && e.Node == name {
			n++
		}
	}
	return n
}

// compareOutputs checks every expected output against the computed ones.
// Values compare by canonical JSON, so 2 and 2.0 are equal.
// Returns a message per mismatch, sorted by output name.
func compareOutputs(expected map[string]any, actual ir.IRObject) []string {
	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []string
	for _, name := range names {
		want, err := ir.FromGo(expected[name])
		if err != nil {
			errs = append(errs, fmt.Sprintf("output %s: expected value: %v", name, err))
			continue
		}
		got, ok := actual[name]
		if !ok {
			errs = append(errs, fmt.Sprintf("output %s: not computed", name))
			continue
		}
		if !valuesEqual(got, want) {
			errs = append(errs, fmt.Sprintf("output %s: got %s, want %s", name, render(got), render(want)))
		}
	}
	return errs
}

// valuesEqual compares two values by their canonical encoding.
func valuesEqual(a, b ir.IRValue) bool {
	ab, errA := ir.MarshalCanonical(a)
	bb, errB := ir.MarshalCanonical(b)
	return errA == nil && errB == nil && bytes.Equal(ab, bb)
}

func render(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	// Network is the optimized network, required by node_count.
	Network *network.Network
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertExecuted:
			err = assertExecuted(result.Trace, assertion, true)
		case AssertNotExecuted:
			err = assertExecuted(result.Trace, assertion, false)
		case AssertExecutionCount:
			err = assertExecutionCount(result.Trace, assertion)
		case AssertExecutionOrder:
			err = assertExecutionOrder(result.Trace, assertion)
		case AssertNodeCount:
			if actx == nil {
				err = fmt.Errorf("assertion[%d]: node_count requires a network", i)
			} else {
				err = assertNodeCount(actx.Network, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
