package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/mfnet/internal/compiler"
	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/ir"
	"github.com/roach88/mfnet/internal/mapping"
	"github.com/roach88/mfnet/internal/store"
	"github.com/roach88/mfnet/internal/testutil"
)

// Harness runs scenarios against a node library.
type Harness struct {
	lib    *mapping.Library
	logger *slog.Logger
}

// New creates a harness evaluating documents with lib. A nil logger
// discards all logs.
func New(lib *mapping.Library, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{lib: lib, logger: logger}
}

// Run executes a scenario with the standard node library.
func Run(scenario *Scenario) (*Result, error) {
	h := New(mapping.StandardLibrary(ctype.NewDefaultRegistry()), nil)
	return h.Run(context.Background(), scenario)
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store with a fixed run id,
// so repeated runs record identical traces.
//
// Execution flow:
// 1. Load the document
// 2. Decode inputs and context values
// 3. Evaluate, recording the run
// 4. Compare outputs or the error with the expect clause
// 5. Evaluate assertions against the recorded trace and the network
//
// The returned error reports harness failures; a scenario that evaluates
// but does not match its expectations returns a failing Result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	opts, err := h.evalOptions(scenario)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	runIDs := testutil.NewFixedRunIDGenerator(scenario.RunID)
	opts = append(opts, WithStore(st), WithRunIDGenerator(runIDs))

	result := NewResult()
	ev, evalErr := h.evaluate(ctx, scenario.Document, opts)

	switch {
	case evalErr != nil && scenario.Expect.Error == "":
		result.AddError(fmt.Sprintf("evaluation failed: %v", evalErr))
	case evalErr != nil && !strings.Contains(evalErr.Error(), scenario.Expect.Error):
		result.AddError(fmt.Sprintf("error %q does not contain %q", evalErr.Error(), scenario.Expect.Error))
	case evalErr == nil && scenario.Expect.Error != "":
		result.AddError(fmt.Sprintf("expected error containing %q, evaluation succeeded", scenario.Expect.Error))
	case evalErr == nil:
		for _, msg := range compareOutputs(scenario.Expect.Outputs, ev.Outputs) {
			result.AddError(msg)
		}
	}

	if err := h.loadTrace(ctx, st, runIDs.Generate(), result); err != nil {
		return nil, err
	}

	actx := &AssertionContext{}
	if ev != nil {
		result.Outputs = ev.Outputs
		result.Network = ev.Network.String()
		result.Warnings = ev.Warnings
		actx.Network = ev.Network
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"errors", len(result.Errors),
	)
	return result, nil
}

func (h *Harness) evaluate(ctx context.Context, path string, opts []EvalOption) (*Evaluation, error) {
	doc, err := compiler.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Evaluate(ctx, doc, h.lib, opts...)
}

// evalOptions translates the scenario settings into Evaluate options.
func (h *Harness) evalOptions(s *Scenario) ([]EvalOption, error) {
	mode, err := mapping.ParseMode(s.Mode)
	if err != nil {
		return nil, err
	}

	inputs := ir.IRObject{}
	for name, v := range s.Inputs {
		iv, err := ir.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		inputs[name] = iv
	}

	values := make(map[string]any, len(s.Context))
	for i, c := range s.Context {
		v, err := ContextValue(h.lib, c.Type, c.Value)
		if err != nil {
			return nil, fmt.Errorf("context[%d]: %w", i, err)
		}
		values[c.Key] = v
	}

	batch := s.BatchSize
	if batch == 0 {
		batch = 1
	}
	threads := s.Threads
	if threads == 0 {
		threads = 1
	}

	return []EvalOption{
		WithInputs(inputs),
		WithContextValues(values),
		WithBatchSize(batch),
		WithThreads(threads),
		WithPasses(s.Passes...),
		WithMode(mode),
		WithLogger(h.logger),
	}, nil
}

// loadTrace copies the recorded events of runID into result. A run that
// never reached the evaluator has no trace.
func (h *Harness) loadTrace(ctx context.Context, st *store.Store, runID string, result *Result) error {
	_, events, err := st.ReadRun(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read trace: %w", err)
	}
	result.RunID = runID
	for _, e := range events {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:    e.Seq,
			Kind:   string(e.Kind),
			Node:   e.NodeName,
			Worker: e.Worker,
		})
	}
	return nil
}

// ContextValue decodes raw into the Go value a context.value node of the
// named type reads. Vector types are rejected.
func ContextValue(lib *mapping.Library, typeName string, raw any) (any, error) {
	dt, err := lib.ParseDataType(typeName)
	if err != nil {
		return nil, err
	}
	if dt.IsVector() {
		return nil, fmt.Errorf("vector context values are not supported")
	}
	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, err
	}
	return lib.GoValue(dt.Type(), v)
}
