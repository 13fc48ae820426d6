package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	OtelStdout bool   // export spans to stderr

	shutdown func(context.Context) error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the mfnet CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// Execute runs the CLI with args and returns the process exit code.
// Errors the output formatter has not already reported go to stderr.
func Execute(ctx context.Context, args []string) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if cerr := opts.Close(context.Background()); cerr != nil && err == nil {
		err = cerr
	}
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return GetExitCode(err)
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mfnet",
		Short: "mfnet - multi-function network evaluator",
		Long: `Build, optimize and lazily evaluate data-flow networks of multi-functions.

Graph documents (.cue, .yaml) are mapped into a node network, optimized
by rewrite passes and evaluated over a batch of indices. Runs can be
recorded in a SQLite trace store for inspection.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.OtelStdout {
				shutdown, err := installStdoutTracing(cmd.ErrOrStderr())
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to install tracing", err)
				}
				opts.shutdown = shutdown
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.Close(cmd.Context())
		},
	}

	cmd.SilenceErrors = true

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVar(&opts.OtelStdout, "otel-stdout", false, "export OpenTelemetry spans to stderr")

	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewOptimizeCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// Close flushes the tracer provider, if any. PostRun hooks are skipped
// when a command fails, so Execute calls Close as well.
func (o *RootOptions) Close(ctx context.Context) error {
	if o.shutdown == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown := o.shutdown
	o.shutdown = nil
	return shutdown(ctx)
}

// Logger returns the logger commands pass to the library: text on stderr,
// Debug when --verbose is set.
func (o *RootOptions) Logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
