package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mfnet/internal/store"
)

// TraceOptions holds flags shared by the trace subcommands.
type TraceOptions struct {
	*RootOptions
	Database string
}

// RunSummary is the display form of a stored run.
type RunSummary struct {
	RunID        string   `json:"run_id"`
	Document     string   `json:"document"`
	DocumentHash string   `json:"document_hash"`
	InputsHash   string   `json:"inputs_hash"`
	OutputsHash  string   `json:"outputs_hash,omitempty"`
	Status       string   `json:"status"`
	Error        string   `json:"error,omitempty"`
	BatchSize    int      `json:"batch_size"`
	Threads      int      `json:"threads"`
	Passes       []string `json:"passes,omitempty"`
	FirstSeq     int64    `json:"first_seq"`
	LastSeq      int64    `json:"last_seq"`
}

// TraceEvent represents a single event in the trace timeline.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	NodeID int64  `json:"node_id"`
	Node   string `json:"node"`
	Worker int    `json:"worker"`
}

// NodeStats summarizes one node of a run.
type NodeStats struct {
	NodeID    int64  `json:"node_id"`
	Node      string `json:"node"`
	Scheduled int    `json:"scheduled"`
	Executed  int    `json:"executed"`
}

// TraceResult holds the complete trace of one run.
type TraceResult struct {
	Run      RunSummary   `json:"run"`
	Timeline []TraceEvent `json:"timeline"`
	Nodes    []NodeStats  `json:"nodes"`
}

// DivergenceResult holds the divergence report of a store.
type DivergenceResult struct {
	Divergences   []Divergence `json:"divergences"`
	Deterministic bool         `json:"deterministic"`
}

// Divergence is the display form of a store.Divergence.
type Divergence struct {
	DocumentHash  string   `json:"document_hash"`
	InputsHash    string   `json:"inputs_hash"`
	OutputsHashes []string `json:"outputs_hashes"`
	RunIDs        []string `json:"run_ids"`
}

// NewTraceCommand creates the trace command and its subcommands.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect runs recorded in a trace store",
		Long: `Inspect evaluation runs recorded with "mfnet eval --db".

Subcommands:
  list       list stored runs, newest first
  show       show the node timeline of one run
  divergent  find runs of one document over identical inputs whose
             outputs differ

Examples:
  mfnet trace list --db ./mfnet.db --limit 10
  mfnet trace show --db ./mfnet.db 0192f7a4-...
  mfnet trace divergent --db ./mfnet.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newTraceListCommand(opts))
	cmd.AddCommand(newTraceShowCommand(opts))
	cmd.AddCommand(newTraceDivergentCommand(opts))

	return cmd
}

func newTraceListCommand(opts *TraceOptions) *cobra.Command {
	var listOpts store.ListOptions
	var status string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			listOpts.Status = store.RunStatus(status)
			return runTraceList(opts, listOpts, cmd)
		},
	}

	cmd.Flags().StringVar(&listOpts.DocumentHash, "document", "", "only runs of this document hash")
	cmd.Flags().StringVar(&status, "status", "", "only runs with this status (ok|error)")
	cmd.Flags().IntVar(&listOpts.Limit, "limit", 0, "maximum number of runs (0 = all)")

	return cmd
}

func newTraceShowCommand(opts *TraceOptions) *cobra.Command {
	var node string

	cmd := &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Show the node timeline of a run",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceShow(opts, args[0], node, cmd)
		},
	}

	cmd.Flags().StringVar(&node, "node", "", "filter the timeline to one node name")

	return cmd
}

func newTraceDivergentCommand(opts *TraceOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "divergent",
		Short: "Find runs whose outputs diverge",
		Long: `Find successful runs of one document over identical inputs that did
not produce identical outputs.

Exit codes:
  0 - No divergence
  1 - Divergent runs found
  2 - Command error (database not found, etc.)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceDivergent(opts, cmd)
		},
	}
}

// openStore opens the trace store for a read-only subcommand. The file
// must exist; Open would otherwise create an empty store.
func openStore(opts *TraceOptions) (*store.Store, error) {
	if _, err := os.Stat(opts.Database); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "database not found", Err: err}
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStore, Message: "failed to open database", Err: err}
	}
	return st, nil
}

func runTraceList(opts *TraceOptions, listOpts store.ListOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts)
	if err != nil {
		return formatter.CommandError(loadErrorCode(err, ErrCodeStore), err)
	}
	defer st.Close()

	runs, err := st.ListRuns(ctxOf(cmd), listOpts)
	if err != nil {
		return formatter.CommandError(ErrCodeStore, err)
	}
	summaries := make([]RunSummary, len(runs))
	for i, run := range runs {
		summaries[i] = summarizeRun(run)
	}

	return formatter.Success(summaries, func(w io.Writer) {
		if len(summaries) == 0 {
			fmt.Fprintln(w, "No runs found.")
			return
		}
		for _, s := range summaries {
			fmt.Fprintf(w, "%s  %-5s  %s  batch %d  events %d-%d\n",
				s.RunID, s.Status, s.Document, s.BatchSize, s.FirstSeq, s.LastSeq)
			if opts.Verbose && s.Error != "" {
				fmt.Fprintf(w, "  Error: %s\n", s.Error)
			}
		}
	})
}

func runTraceShow(opts *TraceOptions, runID, node string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := ctxOf(cmd)

	st, err := openStore(opts)
	if err != nil {
		return formatter.CommandError(loadErrorCode(err, ErrCodeStore), err)
	}
	defer st.Close()

	run, events, err := st.ReadRun(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return formatter.CommandError(ErrCodeNotFound, fmt.Errorf("run not found: %s", runID))
	}
	if err != nil {
		return formatter.CommandError(ErrCodeStore, err)
	}
	summary, err := st.NodeTimeline(ctx, runID)
	if err != nil {
		return formatter.CommandError(ErrCodeStore, err)
	}

	result := TraceResult{
		Run:      summarizeRun(run),
		Timeline: buildTimeline(events, node),
		Nodes:    make([]NodeStats, 0, len(summary)),
	}
	for _, n := range summary {
		if node != "" && n.NodeName != node {
			continue
		}
		result.Nodes = append(result.Nodes, NodeStats{
			NodeID:    n.NodeID,
			Node:      n.NodeName,
			Scheduled: n.Scheduled,
			Executed:  n.Executed,
		})
	}

	return formatter.Success(result, func(w io.Writer) {
		outputTraceText(w, result, opts.Verbose)
	})
}

func runTraceDivergent(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openStore(opts)
	if err != nil {
		return formatter.CommandError(loadErrorCode(err, ErrCodeStore), err)
	}
	defer st.Close()

	divergences, err := st.FindDivergentRuns(ctxOf(cmd))
	if err != nil {
		return formatter.CommandError(ErrCodeStore, err)
	}
	result := DivergenceResult{
		Divergences:   make([]Divergence, len(divergences)),
		Deterministic: len(divergences) == 0,
	}
	for i, d := range divergences {
		result.Divergences[i] = Divergence(d)
	}

	text := func(w io.Writer) {
		for _, d := range divergences {
			fmt.Fprintf(w, "✗ document %s, inputs %s\n", truncateID(d.DocumentHash), truncateID(d.InputsHash))
			fmt.Fprintf(w, "  Runs: %s\n", strings.Join(d.RunIDs, ", "))
			fmt.Fprintf(w, "  Outputs: %d distinct\n", len(d.OutputsHashes))
		}
		if result.Deterministic {
			fmt.Fprintln(w, "✓ All runs deterministic")
		}
	}
	if !result.Deterministic {
		return formatter.Fail(ExitFailure, "E_DETERMINISM",
			fmt.Sprintf("%d divergent run group(s)", len(divergences)), result, text)
	}
	return formatter.Success(result, text)
}

func summarizeRun(run store.Run) RunSummary {
	return RunSummary{
		RunID:        run.ID,
		Document:     run.DocumentName,
		DocumentHash: run.DocumentHash,
		InputsHash:   run.InputsHash,
		OutputsHash:  run.OutputsHash,
		Status:       string(run.Status),
		Error:        run.Error,
		BatchSize:    run.BatchSize,
		Threads:      run.Threads,
		Passes:       run.Passes,
		FirstSeq:     run.FirstSeq,
		LastSeq:      run.LastSeq,
	}
}

// buildTimeline converts stored events to timeline events, keeping only
// those of the named node when node is set.
func buildTimeline(events []store.NodeEvent, node string) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(events))
	for _, e := range events {
		if node != "" && e.NodeName != node {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Seq:    e.Seq,
			Kind:   string(e.Kind),
			NodeID: e.NodeID,
			Node:   e.NodeName,
			Worker: e.Worker,
		})
	}
	return timeline
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	run := result.Run
	fmt.Fprintf(w, "Trace for Run: %s\n", run.RunID)
	fmt.Fprintf(w, "Document: %s (%s)\n", run.Document, truncateID(run.DocumentHash))
	fmt.Fprintf(w, "Status: %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", run.Error)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, e := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %-9s #%d %s", e.Seq, strings.ToUpper(e.Kind), e.NodeID, e.Node)
		if verbose && e.Worker >= 0 {
			fmt.Fprintf(w, " (worker %d)", e.Worker)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Nodes ===")
	for _, n := range result.Nodes {
		fmt.Fprintf(w, "  #%d %s: scheduled %d, executed %d\n", n.NodeID, n.Node, n.Scheduled, n.Executed)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
