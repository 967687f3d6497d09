package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qplan/internal/plan"
)

// phaseSummaries describes each rewrite phase for the phases command.
var phaseSummaries = map[string]string{
	"nullsem":  "make the NULL behavior of filter and join predicates explicit",
	"prune":    "remove scan columns and projections nothing above consumes",
	"joinelim": "remove joins whose right input only repeats values known on the left",
	"toplower": "choose the row limit form and ordering for the dialect",
}

// PhaseInfo describes one rewrite phase.
type PhaseInfo struct {
	Order   int    `json:"order"`
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// NewPhasesCommand creates the phases command.
func NewPhasesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "phases",
		Short:         "List the rewrite phases in execution order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)

			names := plan.PhaseNames()
			phases := make([]PhaseInfo, len(names))
			for i, name := range names {
				phases[i] = PhaseInfo{Order: i + 1, Name: name, Summary: phaseSummaries[name]}
			}

			if rootOpts.Format == "json" {
				return formatter.Success(phases)
			}
			for _, p := range phases {
				fmt.Fprintf(formatter.Writer, "%d. %-9s %s\n", p.Order, p.Name, p.Summary)
			}
			return nil
		},
	}
}
