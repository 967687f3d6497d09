package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/qplan/internal/dialect"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	Dialect            string
	DialectVersion     int
	DialectConfig      string // YAML dialect file; overrides Dialect and DialectVersion
	ParameterizeLimits bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the qplan CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "qplan",
		Short: "qplan - query plan compiler",
		Long: `Compile relational query documents into SQL for SQL Server, PostgreSQL
and SQLite, together with the column map that shapes the result rows.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Dialect, "dialect", "d", string(dialect.SQLServer), "target dialect (sqlserver|postgres|sqlite)")
	cmd.PersistentFlags().IntVar(&opts.DialectVersion, "dialect-version", 0, "target dialect version (0 for the latest)")
	cmd.PersistentFlags().StringVar(&opts.DialectConfig, "dialect-config", "", "YAML dialect file")
	cmd.PersistentFlags().BoolVar(&opts.ParameterizeLimits, "parameterize-limits", false, "emit literal row limits as parameters")

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewPhasesCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolveDialect builds the target dialect from the flags.
func (o *RootOptions) resolveDialect() (*dialect.Dialect, error) {
	var (
		d   *dialect.Dialect
		err error
	)
	if o.DialectConfig != "" {
		d, err = dialect.Load(o.DialectConfig)
	} else {
		d, err = dialect.New(dialect.Name(o.Dialect), o.DialectVersion)
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDialect, Message: err.Error()}
	}
	if o.ParameterizeLimits {
		d.ParameterizeLimits = true
	}
	return d, nil
}

// logger returns the compilation logger. Logs go to w as text, at Debug
// level when verbose.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
