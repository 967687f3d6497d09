package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/qplan/internal/colmap"
	"github.com/roach88/qplan/internal/compiler"
	"github.com/roach88/qplan/internal/plan"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions

	// Phase limits the output to the tree after one phase.
	Phase string

	// IDGenerator allows overriding the compilation ID source (for testing).
	IDGenerator plan.IDGenerator
}

// Explanation is the JSON form of explain output.
type Explanation struct {
	Path          string            `json:"path"`
	CompilationID string            `json:"compilation_id"`
	Dialect       string            `json:"dialect"`
	Bound         string            `json:"bound"`
	Phases        []plan.PhaseTrace `json:"phases"`
	SQL           string            `json:"sql"`
	Shape         *colmap.JSON      `json:"shape"`

	shape colmap.ColumnMap
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <file>",
		Short: "Show the internal tree after each phase",
		Long: `Compile one document and print the internal tree as bound, the tree
after every rewrite phase, the generated SQL and the column map.

Examples:
  qplan explain query.yaml
  qplan explain --phase prune query.cue
  qplan explain --dialect sqlite --format json query.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Phase, "phase", "", "only show the tree after this phase")

	return cmd
}

func runExplain(opts *ExplainOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if opts.Phase != "" && !slices.Contains(plan.PhaseNames(), opts.Phase) {
		return formatter.Fail("invalid phase", &LoadError{
			Code:    ErrCodeGeneric,
			Message: fmt.Sprintf("unknown phase %q (want one of %s)", opts.Phase, strings.Join(plan.PhaseNames(), ", ")),
		})
	}

	d, err := opts.resolveDialect()
	if err != nil {
		return formatter.Fail("invalid dialect", err)
	}

	tree, err := compiler.Load(path)
	if err != nil {
		return formatter.Fail("load failed", err)
	}

	planOpts := []plan.Option{plan.WithLogger(opts.logger(formatter.GetErrWriter()))}
	if opts.IDGenerator != nil {
		planOpts = append(planOpts, plan.WithIDGenerator(opts.IDGenerator))
	}
	res, err := plan.Compile(commandContext(cmd), tree, d, planOpts...)
	if err != nil {
		return formatter.Fail("compilation failed", err)
	}

	ex := Explanation{
		Path:          path,
		CompilationID: res.ID,
		Dialect:       res.Dialect.String(),
		Bound:         res.Bound,
		Phases:        res.Trace,
		SQL:           res.SQL,
		Shape:         colmap.ToJSON(res.Shape),
		shape:         res.Shape,
	}
	if opts.Phase != "" {
		ex.Phases = filterPhases(res.Trace, opts.Phase)
	}

	if opts.Format == "json" {
		return formatter.Success(ex)
	}
	outputExplainText(formatter.Writer, ex, opts.Phase == "")
	return nil
}

func filterPhases(trace []plan.PhaseTrace, name string) []plan.PhaseTrace {
	for _, t := range trace {
		if t.Phase == name {
			return []plan.PhaseTrace{t}
		}
	}
	return []plan.PhaseTrace{}
}

func outputExplainText(w io.Writer, ex Explanation, full bool) {
	fmt.Fprintf(w, "Explain %s (%s)\n", ex.Path, ex.Dialect)
	fmt.Fprintf(w, "Compilation: %s\n\n", ex.CompilationID)

	if full {
		fmt.Fprintln(w, "== bound")
		fmt.Fprint(w, ex.Bound)
		fmt.Fprintln(w)
	}
	for _, t := range ex.Phases {
		status := "unchanged"
		if t.Changed {
			status = "changed"
		}
		fmt.Fprintf(w, "== %s (%s)\n", t.Phase, status)
		fmt.Fprint(w, t.Tree)
		fmt.Fprintln(w)
	}

	if full {
		fmt.Fprintln(w, "== sql")
		fmt.Fprintln(w, ex.SQL)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "== shape")
		fmt.Fprintln(w, colmap.Format(ex.shape))
	}
}
