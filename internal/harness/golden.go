package harness

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/mfnet/internal/ir"
)

// Snapshot renders the parts of a result that must not change between
// runs: outputs, per-node execution counts and the optimized network.
// Event order and workers vary with threads and are left out.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", scenarioName)

	outputs, err := ir.MarshalCanonical(result.Outputs)
	if err != nil {
		return nil, fmt.Errorf("snapshot outputs: %w", err)
	}
	fmt.Fprintf(&b, "outputs: %s\n", outputs)

	counts := make(map[string]int)
	for _, e := range result.Trace {
		if e.Kind == "executed" {
			counts[e.Node]++
		}
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	b.WriteString("executions:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s %d\n", name, counts[name])
	}

	if len(result.Warnings) > 0 {
		b.WriteString("warnings:\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "  %s\n", w)
		}
	}

	b.WriteString("network:\n")
	b.WriteString(result.Network)
	return []byte(b.String()), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)
	return nil
}
