package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/qplan/internal/compiler"
	"github.com/roach88/qplan/internal/dialect"
	"github.com/roach88/qplan/internal/ir"
	"github.com/roach88/qplan/internal/itree"
	"github.com/roach88/qplan/internal/plan"
	"github.com/roach88/qplan/internal/sandbox"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Data     string   // YAML seed file
	Params   []string // name=value
	History  bool

	// IDGenerator allows overriding the compilation ID source (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator plan.IDGenerator
}

// RunOutput is the JSON form of run output.
type RunOutput struct {
	CompilationID string              `json:"compilation_id"`
	SQL           string              `json:"sql"`
	Columns       []ColumnInfo        `json:"columns"`
	Rows          json.RawMessage     `json:"rows"`
	Result        json.RawMessage     `json:"result,omitempty"`
	History       []sandbox.RunRecord `json:"history,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Compile for SQLite and execute in a sandbox",
		Long: `Compile one document for SQLite and execute it in a sandbox database
whose tables are created from the document's catalog.

The sandbox is in memory unless --db names a file; a file keeps its rows
and its run log between invocations. Seed rows are read from --data.
Declared parameters are given with --param and parsed by their declared
type.

Example:
  qplan run --data seed.yaml --param min=10 query.yaml
  qplan run --db ./sandbox.db --history query.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSandbox(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", ":memory:", "path to the SQLite sandbox database")
	cmd.Flags().StringVar(&opts.Data, "data", "", "YAML file of seed rows by table")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "parameter value as name=value (repeatable)")
	cmd.Flags().BoolVar(&opts.History, "history", false, "list earlier runs of the same document")

	return cmd
}

func runSandbox(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	d, err := dialect.New(dialect.SQLite, 0)
	if err != nil {
		return formatter.Fail("invalid dialect", err)
	}
	d.ParameterizeLimits = opts.ParameterizeLimits
	if cmd.Flags().Changed("dialect") && dialect.Name(opts.Dialect) != dialect.SQLite {
		return formatter.Fail("invalid dialect", &LoadError{
			Code:    ErrCodeDialect,
			Message: fmt.Sprintf("run executes sqlite statements, got --dialect %s", opts.Dialect),
		})
	}

	tree, err := compiler.Load(path)
	if err != nil {
		return formatter.Fail("load failed", err)
	}

	planOpts := []plan.Option{plan.WithLogger(opts.logger(formatter.GetErrWriter()))}
	if opts.IDGenerator != nil {
		planOpts = append(planOpts, plan.WithIDGenerator(opts.IDGenerator))
	}
	res, err := plan.Compile(ctx, tree, d, planOpts...)
	if err != nil {
		return formatter.Fail("compilation failed", err)
	}

	args, err := parseParams(opts.Params, res.Params)
	if err != nil {
		return formatter.Fail("invalid parameter", err)
	}

	formatter.VerboseLog("Opening sandbox %s", opts.Database)
	sb, err := sandbox.Open(opts.Database, tree.Catalog)
	if err != nil {
		return formatter.Fail("open sandbox", &LoadError{Code: ErrCodeExecution, Message: err.Error()})
	}
	defer sb.Close()

	if opts.Data != "" {
		data, err := sandbox.LoadData(opts.Data)
		if err != nil {
			return formatter.Fail("invalid seed data", &LoadError{Code: ErrCodeData, Message: err.Error()})
		}
		if err := sb.Seed(ctx, data); err != nil {
			return formatter.Fail("seed failed", &LoadError{Code: ErrCodeData, Message: err.Error()})
		}
	}

	rows, err := sb.Run(ctx, res, args)
	if err != nil {
		return formatter.Fail("execution failed", &LoadError{Code: ErrCodeExecution, Message: err.Error()})
	}

	out := RunOutput{CompilationID: res.ID, SQL: res.SQL}
	for _, c := range rows.Columns {
		out.Columns = append(out.Columns, ColumnInfo{Name: c.Name, Type: c.Type.String()})
	}
	objects := make(ir.List, len(rows.Values))
	for i, o := range rows.Objects() {
		objects[i] = o
	}
	if out.Rows, err = ir.MarshalCanonical(objects); err != nil {
		return formatter.Fail("encode rows", err)
	}
	if tree.Shape != nil {
		v, err := sandbox.Materialize(res.Shape, rows)
		if err != nil {
			return formatter.Fail("materialize", &LoadError{Code: ErrCodeExecution, Message: err.Error()})
		}
		if out.Result, err = ir.MarshalCanonical(v); err != nil {
			return formatter.Fail("encode result", err)
		}
	}
	if opts.History {
		if out.History, err = sb.Runs(ctx, res.Fingerprint); err != nil {
			return formatter.Fail("read run log", &LoadError{Code: ErrCodeExecution, Message: err.Error()})
		}
	}

	if opts.Format == "json" {
		return formatter.Success(out)
	}
	outputRunText(formatter.Writer, rows, out)
	return nil
}

// parseParams parses name=value flags by the declared parameter types.
// NULL is accepted for every type.
func parseParams(flags []string, declared []plan.Param) (map[string]ir.Value, error) {
	types := make(map[string]itree.Type, len(declared))
	for _, p := range declared {
		types[p.Name] = p.Type
	}

	args := make(map[string]ir.Value, len(flags))
	for _, f := range flags {
		name, raw, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, &LoadError{Code: ErrCodeData, Message: fmt.Sprintf("parameter %q: want name=value", f)}
		}
		typ, ok := types[name]
		if !ok {
			return nil, &LoadError{Code: ErrCodeData, Message: fmt.Sprintf("parameter %q is not declared by the document", name)}
		}
		v, err := parseValue(raw, typ)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeData, Message: fmt.Sprintf("parameter %q: %v", name, err)}
		}
		args[name] = v
	}
	return args, nil
}

func parseValue(raw string, typ itree.Type) (ir.Value, error) {
	if raw == "NULL" {
		return ir.Null{}, nil
	}
	switch typ.Primitive().Kind {
	case itree.KindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q", raw)
		}
		return ir.Int(n), nil
	case itree.KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q", raw)
		}
		return ir.Bool(b), nil
	case itree.KindDecimal, itree.KindFloat:
		return ir.ParseDecimal(raw)
	}
	return ir.String(raw), nil
}

func outputRunText(w io.Writer, rows *sandbox.Rows, out RunOutput) {
	fmt.Fprintln(w, out.SQL)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := make([]string, len(rows.Columns))
	for i, c := range rows.Columns {
		header[i] = c.Name
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = ir.Describe(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
	fmt.Fprintf(w, "(%d row(s))\n", len(rows.Values))

	if out.Result != nil {
		fmt.Fprintf(w, "\nresult: %s\n", out.Result)
	}
	if len(out.History) > 0 {
		fmt.Fprintln(w, "\nhistory:")
		for _, r := range out.History {
			fmt.Fprintf(w, "  #%d %s rows=%d params=%s\n", r.Seq, r.ID, r.RowCount, r.Params)
		}
	}
}
