package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/qplan/internal/ctree"
	"github.com/roach88/qplan/internal/plan"
)

// ValidationResult holds the validation outcome of one document.
type ValidationResult struct {
	Path   string     `json:"path"`
	Valid  bool       `json:"valid"`
	Errors []CLIError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Check documents without generating SQL",
		Long: `Validate query documents without generating SQL.

Decodes each document, reports every structural issue and resolves names
and types against the catalog. Faster than compile for development
feedback and independent of the target dialect.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	paths, err := FindDocuments(args)
	if err != nil {
		return formatter.Fail("no documents", err)
	}
	formatter.VerboseLog("Found %d document(s)", len(paths))

	docs, err := LoadDocuments(commandContext(cmd), paths, LoadModeCollectAll)
	if err != nil {
		return formatter.Fail("load failed", err)
	}

	results := make([]ValidationResult, len(docs))
	invalid := 0
	for i, doc := range docs {
		formatter.VerboseLog("Validating %s", doc.Path)
		results[i] = validateDocument(doc)
		if !results[i].Valid {
			invalid++
		}
	}

	if opts.Format == "json" {
		if err := formatter.Success(results); err != nil {
			return err
		}
	} else {
		outputValidateText(formatter.Writer, results)
	}

	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d document(s) invalid", invalid, len(results)))
	}
	return nil
}

// validateDocument collects every structural issue, then binds the tree
// when the structure is sound.
func validateDocument(doc Document) ValidationResult {
	res := ValidationResult{Path: doc.Path, Valid: true}
	if doc.Err != nil {
		res.Valid = false
		res.Errors = []CLIError{{Code: ErrorCode(doc.Err), Message: doc.Err.Error()}}
		return res
	}

	if issues := ctree.Validate(doc.Tree); len(issues) > 0 {
		res.Valid = false
		for _, issue := range issues {
			res.Errors = append(res.Errors, CLIError{Code: plan.ErrInvalidTree, Message: issue.String()})
		}
		return res
	}

	if _, err := plan.Bind(doc.Tree); err != nil {
		res.Valid = false
		res.Errors = []CLIError{{Code: ErrorCode(err), Message: err.Error()}}
	}
	return res
}

func outputValidateText(w io.Writer, results []ValidationResult) {
	valid := 0
	for _, r := range results {
		if r.Valid {
			valid++
			fmt.Fprintf(w, "✓ %s\n", r.Path)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", r.Path)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s: %s\n", e.Code, e.Message)
		}
	}
	fmt.Fprintf(w, "\n%d of %d document(s) valid\n", valid, len(results))
}
