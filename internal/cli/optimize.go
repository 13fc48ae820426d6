package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/mfnet/internal/harness"
	"github.com/roach88/mfnet/internal/mapping"
	"github.com/roach88/mfnet/internal/optimize"
)

// OptimizeOptions holds flags for the optimize command.
type OptimizeOptions struct {
	*RootOptions
	Passes  string
	Threads int
	Mode    string
	Dot     bool
}

// OptimizeResult is the data payload of the optimize command.
type OptimizeResult struct {
	Document     string                `json:"document"`
	DocumentHash string                `json:"document_hash"`
	Passes       []optimize.PassResult `json:"passes"`
	Nodes        int                   `json:"nodes"`
	Links        int                   `json:"links"`
	Network      string                `json:"network"`
	Placeholders []string              `json:"placeholders,omitempty"`
	Warnings     []string              `json:"warnings,omitempty"`
}

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OptimizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "optimize <document>",
		Short: "Map and optimize a document without evaluating it",
		Long: `Map a graph document into a network, run the optimization passes and
print the resulting network.

Passes:
  dead-nodes        remove nodes no graph output depends on
  constant-folding  replace subnetworks without inputs by constants
  cse               merge structurally equal subnetworks
  default           dead-nodes,constant-folding,cse,dead-nodes

Examples:
  mfnet optimize graph.yaml
  mfnet optimize graph.cue --passes dead-nodes,cse
  mfnet optimize graph.yaml --dot | dot -Tsvg > graph.svg`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Passes, "passes", "default", "optimization passes (comma-separated, default, none)")
	cmd.Flags().IntVar(&opts.Threads, "threads", 0, "worker threads for constant folding (0 = GOMAXPROCS)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "placeholder", "mapping mode (placeholder|strict)")
	cmd.Flags().BoolVar(&opts.Dot, "dot", false, "print the network in Graphviz dot format")

	return cmd
}

func runOptimize(opts *OptimizeOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	ctx, span := startCommandSpan(cmd.Context(), "optimize", attribute.String("document.path", path))
	defer span.End()

	doc, err := LoadDocument(path)
	if err != nil {
		return formatter.CommandError(loadErrorCode(err, ErrCodeParse), err)
	}
	mode, err := mapping.ParseMode(opts.Mode)
	if err != nil {
		return formatter.CommandError(ErrCodeInput, err)
	}
	if _, err := optimize.ParsePasses(opts.Passes); err != nil {
		return formatter.CommandError(ErrCodeInput, err)
	}

	opt, err := harness.Optimize(ctx, doc, newLibrary(),
		harness.WithPasses(opts.Passes),
		harness.WithThreads(opts.Threads),
		harness.WithMode(mode),
		harness.WithLogger(opts.Logger(cmd)),
	)
	if err != nil {
		code := ErrCodeGeneric
		if mapping.IsMappingError(err, "") {
			code = ErrCodeMapping
		}
		return formatter.Fail(ExitFailure, code, err.Error(), nil, nil)
	}

	dump := opt.Network.String()
	if opts.Dot {
		dump = opt.Network.Dot()
	}
	result := OptimizeResult{
		Document:     doc.Name,
		DocumentHash: opt.DocumentHash,
		Passes:       opt.Passes,
		Nodes:        len(opt.Network.Nodes()),
		Links:        opt.Network.LinkCount(),
		Network:      dump,
		Placeholders: opt.Placeholders,
		Warnings:     opt.Warnings,
	}

	return formatter.Success(result, func(w io.Writer) {
		if opts.Dot {
			fmt.Fprint(w, result.Network)
			return
		}
		outputOptimizeText(w, result)
	})
}

func outputOptimizeText(w io.Writer, result OptimizeResult) {
	fmt.Fprintf(w, "Document: %s\n", result.Document)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Passes ===")
	if len(result.Passes) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, p := range result.Passes {
		fmt.Fprintf(w, "  %-17s changed %d, nodes %d -> %d\n", p.Pass, p.Changed, p.NodesBefore, p.NodesAfter)
	}
	fmt.Fprintln(w)

	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}

	fmt.Fprintln(w, "=== Network ===")
	fmt.Fprint(w, result.Network)
}
