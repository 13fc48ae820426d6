package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mfnet/internal/compiler"
	"github.com/roach88/mfnet/internal/mapping"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool
}

// ValidationResult holds validation results for every document.
type ValidationResult struct {
	Valid     bool                 `json:"valid"`
	Documents []DocumentValidation `json:"documents"`
}

// DocumentValidation holds the findings for one document.
type DocumentValidation struct {
	Path     string                     `json:"path"`
	Name     string                     `json:"name,omitempty"`
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <document>...",
		Short: "Validate graph documents without evaluating them",
		Long: `Validate the structure and links of graph documents.

Checks node ids, boundary sockets and link references, and warns about
link cycles, which the evaluator rejects at run time. With --strict each
document is also mapped with the standard node library, so unknown node
types, sockets and missing conversions are reported as errors.

Exit codes:
  0 - All documents valid
  1 - One or more documents invalid
  2 - Command error (document not found)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "also map documents in strict mode")

	return cmd
}

func runValidate(opts *ValidateOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	lib := newLibrary()

	result := ValidationResult{Valid: true}
	for _, path := range paths {
		dv, err := validateDocument(path, lib, opts.Strict, formatter)
		if err != nil {
			return formatter.CommandError(loadErrorCode(err, ErrCodeNotFound), err)
		}
		result.Documents = append(result.Documents, dv)
		if !dv.Valid {
			result.Valid = false
		}
	}

	if result.Valid {
		return formatter.Success(result, func(w io.Writer) {
			outputValidateText(w, result)
		})
	}
	first := firstValidationError(result)
	return formatter.Fail(ExitFailure, first.Code, first.Message, result, func(w io.Writer) {
		outputValidateText(w, result)
	})
}

// validateDocument validates one document. Only a missing file is returned
// as an error; parse failures are findings.
func validateDocument(path string, lib *mapping.Library, strict bool, formatter *OutputFormatter) (DocumentValidation, error) {
	dv := DocumentValidation{Path: path}

	doc, err := LoadDocument(path)
	if err != nil {
		if loadErrorCode(err, "") == ErrCodeNotFound {
			return dv, err
		}
		dv.Errors = append(dv.Errors, compiler.ValidationError{
			Field:   "document",
			Message: errors.Unwrap(err).Error(),
			Code:    ErrCodeParse,
		})
		return dv, nil
	}
	dv.Name = doc.Name
	formatter.VerboseLog("Validating %s: %d node(s), %d link(s)", doc.Name, len(doc.Nodes), len(doc.Links))

	dv.Errors = compiler.Validate(doc)
	dv.Warnings = compiler.AnalyzeCycles(doc)

	if strict && len(dv.Errors) == 0 {
		_, err := mapping.Insert(doc, lib, mapping.WithMode(mapping.ModeStrict))
		var me *mapping.MappingError
		switch {
		case errors.As(err, &me):
			field := "document"
			if me.Node != "" {
				field = "nodes." + me.Node
			}
			dv.Errors = append(dv.Errors, compiler.ValidationError{Field: field, Message: me.Message, Code: me.Code})
		case err != nil:
			dv.Errors = append(dv.Errors, compiler.ValidationError{Field: "document", Message: err.Error(), Code: ErrCodeMapping})
		}
	}

	dv.Valid = len(dv.Errors) == 0
	return dv, nil
}

func firstValidationError(result ValidationResult) compiler.ValidationError {
	for _, dv := range result.Documents {
		if len(dv.Errors) > 0 {
			return dv.Errors[0]
		}
	}
	return compiler.ValidationError{Code: ErrCodeGeneric, Message: "validation failed"}
}

func outputValidateText(w io.Writer, result ValidationResult) {
	invalid := 0
	for _, dv := range result.Documents {
		mark := "✓"
		if !dv.Valid {
			mark = "✗"
			invalid++
		}
		fmt.Fprintf(w, "%s %s\n", mark, dv.Path)
		for _, e := range dv.Errors {
			fmt.Fprintf(w, "  %s: %s: %s\n", e.Code, e.Field, e.Message)
		}
		for _, warning := range dv.Warnings {
			fmt.Fprintf(w, "  warning: cycle %s\n", strings.Join(warning.Path, " -> "))
		}
	}

	fmt.Fprintln(w)
	if result.Valid {
		fmt.Fprintln(w, "✓ All documents valid")
		return
	}
	fmt.Fprintf(w, "✗ Validation failed: %d of %d document(s) invalid\n", invalid, len(result.Documents))
}
