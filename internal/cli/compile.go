package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/qplan/internal/colmap"
	"github.com/roach88/qplan/internal/dialect"
	"github.com/roach88/qplan/internal/ir"
	"github.com/roach88/qplan/internal/plan"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
	Jobs   int    // concurrent compilations

	// IDGenerator allows overriding the compilation ID source (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator plan.IDGenerator
}

// CompiledDocument is the outcome of compiling one document.
type CompiledDocument struct {
	Path          string       `json:"path"`
	CompilationID string       `json:"compilation_id,omitempty"`
	Fingerprint   string       `json:"fingerprint,omitempty"`
	Dialect       string       `json:"dialect,omitempty"`
	SQL           string       `json:"sql,omitempty"`
	Columns       []ColumnInfo `json:"columns,omitempty"`
	Params        []ParamInfo  `json:"params,omitempty"`
	Shape         *colmap.JSON `json:"shape,omitempty"`
	Error         *CLIError    `json:"error,omitempty"`

	shape colmap.ColumnMap
	err   error
}

// ColumnInfo is a result set column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ParamInfo is a statement parameter. Value is set for parameters the
// compiler generated from literals.
type ParamInfo struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <path>...",
		Short: "Compile query documents to SQL",
		Long: `Compile query documents (.cue, .yaml, .yml or .json) to SQL for the
target dialect. Directories are searched for documents. Documents are
compiled concurrently; each failure is reported without stopping the rest.

Examples:
  qplan compile query.yaml
  qplan compile --dialect postgres ./queries
  qplan compile --dialect sqlserver --dialect-version 8 -o plans.json ./queries`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write JSON results to this file")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "concurrent compilations (0 for GOMAXPROCS)")

	return cmd
}

func runCompile(opts *CompileOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	d, err := opts.resolveDialect()
	if err != nil {
		return formatter.Fail("invalid dialect", err)
	}

	paths, err := FindDocuments(args)
	if err != nil {
		return formatter.Fail("no documents", err)
	}
	formatter.VerboseLog("Found %d document(s)", len(paths))

	docs, err := LoadDocuments(ctx, paths, LoadModeCollectAll)
	if err != nil {
		return formatter.Fail("load failed", err)
	}

	results := compileAll(ctx, opts, d, docs, formatter.GetErrWriter())

	if opts.Output != "" {
		if err := writeResults(results, opts.Output); err != nil {
			return formatter.Fail("writing output file", &LoadError{Code: ErrCodeWriteFailed, Message: err.Error()})
		}
	}

	if opts.Format == "json" {
		if err := formatter.Success(results); err != nil {
			return err
		}
	} else {
		outputCompileText(formatter.Writer, results, opts.Output)
	}
	return compileExit(results)
}

// compileAll compiles every loaded document. Compilations share the
// read-only dialect and nothing else.
func compileAll(ctx context.Context, opts *CompileOptions, d *dialect.Dialect, docs []Document, logw io.Writer) []CompiledDocument {
	ids := opts.IDGenerator
	if ids == nil {
		ids = plan.UUIDv7Generator{}
	}
	logger := opts.logger(logw)

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	results := make([]CompiledDocument, len(docs))
	var g errgroup.Group
	g.SetLimit(jobs)
	for i, doc := range docs {
		if doc.Err != nil {
			results[i] = failedDocument(doc.Path, doc.Err)
			continue
		}
		g.Go(func() error {
			res, err := plan.Compile(ctx, doc.Tree, d,
				plan.WithIDGenerator(ids),
				plan.WithLogger(logger.With("path", doc.Path)))
			if err != nil {
				results[i] = failedDocument(doc.Path, err)
				return nil
			}
			results[i] = compiledDocument(doc.Path, res)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func compiledDocument(path string, res *plan.Result) CompiledDocument {
	out := CompiledDocument{
		Path:          path,
		CompilationID: res.ID,
		Fingerprint:   res.Fingerprint,
		Dialect:       res.Dialect.String(),
		SQL:           res.SQL,
		Shape:         colmap.ToJSON(res.Shape),
		shape:         res.Shape,
	}
	for _, c := range res.Columns {
		out.Columns = append(out.Columns, ColumnInfo{Name: c.Name, Type: c.Type.String()})
	}
	for _, p := range res.Params {
		info := ParamInfo{Name: p.Name, Type: p.Type.String()}
		if p.Value != nil {
			info.Value, _ = ir.ToGo(p.Value)
		}
		out.Params = append(out.Params, info)
	}
	return out
}

func failedDocument(path string, err error) CompiledDocument {
	return CompiledDocument{
		Path:  path,
		Error: &CLIError{Code: ErrorCode(err), Message: err.Error()},
		err:   err,
	}
}

// compileExit returns the exit error for a batch: the most severe exit
// code among failed documents.
func compileExit(results []CompiledDocument) error {
	failed, code := 0, ExitSuccess
	for _, r := range results {
		if r.err == nil {
			continue
		}
		failed++
		code = max(code, exitCodeFor(r.err))
	}
	if failed == 0 {
		return nil
	}
	return NewExitError(code, fmt.Sprintf("compilation failed for %d of %d document(s)", failed, len(results)))
}

func outputCompileText(w io.Writer, results []CompiledDocument, outputFile string) {
	ok := 0
	for _, r := range results {
		if r.Error != nil {
			fmt.Fprintf(w, "✗ %s\n", r.Path)
			fmt.Fprintf(w, "  %s: %s\n\n", r.Error.Code, r.Error.Message)
			continue
		}
		ok++
		fmt.Fprintf(w, "✓ %s (%s)\n", r.Path, r.Dialect)
		fmt.Fprintln(w, r.SQL)
		if len(r.Params) > 0 {
			fmt.Fprintf(w, "params: %s\n", formatParams(r.Params))
		}
		if r.shape != nil {
			fmt.Fprintf(w, "shape: %s\n", colmap.Format(r.shape))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Compiled %d of %d document(s)\n", ok, len(results))
	if outputFile != "" {
		fmt.Fprintf(w, "Wrote results to %s\n", outputFile)
	}
}

func formatParams(params []ParamInfo) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name + " " + p.Type
		if p.Value != nil {
			parts[i] += fmt.Sprintf(" = %v", p.Value)
		}
	}
	return strings.Join(parts, ", ")
}

// writeResults writes the compilation results to a file as indented JSON.
func writeResults(results []CompiledDocument, filename string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

// commandContext returns the command's context, or a background context
// when the command is executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
