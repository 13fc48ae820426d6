package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/roach88/mfnet/internal/harness"
	"github.com/roach88/mfnet/internal/ir"
	"github.com/roach88/mfnet/internal/mapping"
	"github.com/roach88/mfnet/internal/optimize"
	"github.com/roach88/mfnet/internal/store"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Inputs    string
	Context   []string
	BatchSize int
	Threads   int
	Passes    string
	Mode      string
	Database  string
}

// EvalResult is the data payload of a successful evaluation.
type EvalResult struct {
	Document     string          `json:"document"`
	RunID        string          `json:"run_id"`
	BatchSize    int             `json:"batch_size"`
	Executed     int             `json:"executed_nodes"`
	Outputs      json.RawMessage `json:"outputs"`
	OutputsHash  string          `json:"outputs_hash"`
	Placeholders []string        `json:"placeholders,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`

	outputs ir.IRObject
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <document>",
		Short: "Evaluate a graph document",
		Long: `Evaluate every output of a graph document over a batch of indices.

The document is mapped into a network, optimized by the selected passes
and evaluated lazily: nodes no output depends on never run. Input values
are given as a YAML or JSON object; a single value is broadcast to the
whole batch.

With --db the run and its node events are recorded in a trace store,
which is created if it does not exist.

Exit codes:
  0 - Evaluation succeeded
  1 - Mapping or evaluation failed
  2 - Command error (missing document, bad inputs, etc.)

Examples:
  mfnet eval graph.yaml --inputs '{"x": [1, 2, 3]}' --batch 3
  mfnet eval graph.cue --inputs @inputs.yaml --passes default
  mfnet eval graph.yaml --context offset:float32=0.5 --db ./mfnet.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Inputs, "inputs", "i", "", "input values as a YAML/JSON object, or @file")
	cmd.Flags().StringArrayVar(&opts.Context, "context", nil, "context value as key:type=value (repeatable)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch", 1, "number of indices to evaluate")
	cmd.Flags().IntVar(&opts.Threads, "threads", 0, "worker threads (0 = GOMAXPROCS)")
	cmd.Flags().StringVar(&opts.Passes, "passes", "none", "optimization passes (comma-separated, default, none)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "placeholder", "mapping mode (placeholder|strict)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite trace store")

	return cmd
}

func runEval(opts *EvalOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.Logger(cmd)

	ctx, span := startCommandSpan(cmd.Context(), "eval", attribute.String("document.path", path))
	defer span.End()

	doc, err := LoadDocument(path)
	if err != nil {
		return formatter.CommandError(loadErrorCode(err, ErrCodeParse), err)
	}
	lib := newLibrary()

	inputs, err := ParseValues(opts.Inputs)
	if err != nil {
		return formatter.CommandError(loadErrorCode(err, ErrCodeInput), err)
	}
	values, err := ParseContext(lib, opts.Context)
	if err != nil {
		return formatter.CommandError(loadErrorCode(err, ErrCodeInput), err)
	}
	mode, err := mapping.ParseMode(opts.Mode)
	if err != nil {
		return formatter.CommandError(ErrCodeInput, err)
	}
	if _, err := optimize.ParsePasses(opts.Passes); err != nil {
		return formatter.CommandError(ErrCodeInput, err)
	}

	evalOpts := []harness.EvalOption{
		harness.WithInputs(inputs),
		harness.WithContextValues(values),
		harness.WithBatchSize(opts.BatchSize),
		harness.WithThreads(opts.Threads),
		harness.WithPasses(opts.Passes),
		harness.WithMode(mode),
		harness.WithLogger(logger),
	}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return formatter.CommandError(ErrCodeStore, fmt.Errorf("failed to open database: %w", err))
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		evalOpts = append(evalOpts, harness.WithStore(st))
	}

	formatter.VerboseLog("Evaluating %s (%d node(s), batch %d)", doc.Name, len(doc.Nodes), opts.BatchSize)
	ev, err := harness.Evaluate(ctx, doc, lib, evalOpts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		code := ErrCodeEval
		if mapping.IsMappingError(err, "") {
			code = ErrCodeMapping
		}
		return formatter.Fail(ExitFailure, code, err.Error(), nil, nil)
	}
	span.SetAttributes(attribute.String("mfnet.run_id", ev.RunID))

	outputs, err := ir.MarshalCanonical(ev.Outputs)
	if err != nil {
		return formatter.CommandError(ErrCodeGeneric, err)
	}
	result := EvalResult{
		Document:     doc.Name,
		RunID:        ev.RunID,
		BatchSize:    ev.BatchSize,
		Executed:     ev.Executed,
		Outputs:      outputs,
		OutputsHash:  ev.OutputsHash,
		Placeholders: ev.Placeholders,
		Warnings:     ev.Warnings,
		outputs:      ev.Outputs,
	}
	return formatter.Success(result, func(w io.Writer) {
		outputEvalText(w, result, opts.Verbose)
	})
}

func outputEvalText(w io.Writer, result EvalResult, verbose bool) {
	fmt.Fprintf(w, "✓ %s evaluated (batch %d, %d node(s) executed)\n", result.Document, result.BatchSize, result.Executed)
	if verbose {
		fmt.Fprintf(w, "  Run: %s\n", result.RunID)
		fmt.Fprintf(w, "  Outputs hash: %s\n", result.OutputsHash)
	}
	for _, p := range result.Placeholders {
		fmt.Fprintf(w, "  Placeholder: %s\n", p)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "  Warning: %s\n", warning)
	}

	fmt.Fprintln(w)
	names := make([]string, 0, len(result.outputs))
	for name := range result.outputs {
		names = append(names, name)
	}
	slices.Sort(names)
	width := 0
	for _, name := range names {
		width = max(width, len(name))
	}
	for _, name := range names {
		data, err := ir.MarshalCanonical(result.outputs[name])
		if err != nil {
			data = []byte(fmt.Sprint(result.outputs[name]))
		}
		fmt.Fprintf(w, "%s%s = %s\n", name, strings.Repeat(" ", width-len(name)), data)
	}
}
