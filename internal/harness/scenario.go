package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mfnet/internal/mapping"
	"github.com/roach88/mfnet/internal/optimize"
)

// Scenario defines one evaluation test: a document, the values fed to
// it, and what the evaluation must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Document is the path of the graph document (.cue, .yaml or .yml).
	Document string `yaml:"document"`

	// Mode is the mapping policy: "placeholder" (default) or "strict".
	Mode string `yaml:"mode,omitempty"`

	// BatchSize is the number of evaluated indices. Default: 1.
	BatchSize int `yaml:"batch_size,omitempty"`

	// Threads is the worker count. Default: 1, which keeps traces
	// reproducible.
	Threads int `yaml:"threads,omitempty"`

	// Passes lists optimization passes run before evaluation.
	Passes []string `yaml:"passes,omitempty"`

	// Inputs maps graph input names to literals: a scalar broadcast over
	// the batch, or an array with one value per index.
	Inputs map[string]any `yaml:"inputs,omitempty"`

	// Context supplies values read by context.value nodes.
	Context []ContextEntry `yaml:"context,omitempty"`

	// Expect is the expected outcome.
	Expect Expect `yaml:"expect"`

	// Assertions validate the trace and the optimized network.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// RunID fixes the run id for golden comparison.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// ContextEntry is one typed context value.
type ContextEntry struct {
	Key   string `yaml:"key"`
	Type  string `yaml:"type"`
	Value any    `yaml:"value"`
}

// Expect specifies the expected evaluation result. Exactly one of Outputs
// and Error is set.
type Expect struct {
	// Outputs maps graph output names to expected values. Every graph
	// output listed must match; unlisted outputs are not checked.
	Outputs map[string]any `yaml:"outputs,omitempty"`

	// Error is a substring the evaluation error must contain.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the optimized network.
type Assertion struct {
	// Type specifies the assertion type:
	// - "executed": Node executed at least once
	// - "not_executed": Node never executed
	// - "execution_count": Node executed exactly Count times
	// - "execution_order": Nodes first executed in the given order
	// - "node_count": Optimized network has Count nodes of Kind
	Type string `yaml:"type"`

	// Node is the node name (used by executed, not_executed, execution_count).
	Node string `yaml:"node,omitempty"`

	// Nodes is the expected order (used by execution_order).
	Nodes []string `yaml:"nodes,omitempty"`

	// Kind is "function", "dummy" or empty for all nodes (used by node_count).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number (used by execution_count, node_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertExecuted       = "executed"
	AssertNotExecuted    = "not_executed"
	AssertExecutionCount = "execution_count"
	AssertExecutionOrder = "execution_order"
	AssertNodeCount      = "node_count"
)

// LoadScenario reads and parses a scenario YAML file. The document path
// is resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the document path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict fields catch typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Document != "" && !filepath.IsAbs(scenario.Document) && basePath != "" {
		scenario.Document = filepath.Join(basePath, scenario.Document)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Document == "" {
		return fmt.Errorf("document is required")
	}
	if _, err := os.Stat(s.Document); os.IsNotExist(err) {
		return fmt.Errorf("document file not found: %s", s.Document)
	}
	if _, err := mapping.ParseMode(s.Mode); err != nil {
		return err
	}
	if s.BatchSize < 0 {
		return fmt.Errorf("batch_size must be non-negative")
	}
	if s.Threads < 0 {
		return fmt.Errorf("threads must be non-negative")
	}
	if _, err := optimize.ParsePasses(strings.Join(s.Passes, ",")); err != nil {
		return fmt.Errorf("passes: %w", err)
	}

	for i, c := range s.Context {
		if c.Key == "" {
			return fmt.Errorf("context[%d]: key is required", i)
		}
		if c.Type == "" {
			return fmt.Errorf("context[%d]: type is required", i)
		}
	}

	hasOutputs := len(s.Expect.Outputs) > 0
	hasError := s.Expect.Error != ""
	if hasOutputs == hasError {
		return fmt.Errorf("expect: exactly one of outputs and error is required")
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertExecuted, AssertNotExecuted:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for %s", index, a.Type)
		}
	case AssertExecutionCount:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for execution_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for execution_count", index)
		}
	case AssertExecutionOrder:
		if len(a.Nodes) < 2 {
			return fmt.Errorf("assertions[%d]: at least two nodes are required for execution_order", index)
		}
	case AssertNodeCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for node_count", index)
		}
		switch a.Kind {
		case "", "function", "dummy":
		default:
			return fmt.Errorf("assertions[%d]: unknown node kind %q", index, a.Kind)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
