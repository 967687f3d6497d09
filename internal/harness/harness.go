package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/qplan/internal/compiler"
	"github.com/roach88/qplan/internal/ctree"
	"github.com/roach88/qplan/internal/dialect"
	"github.com/roach88/qplan/internal/ir"
	"github.com/roach88/qplan/internal/plan"
	"github.com/roach88/qplan/internal/sandbox"
	"github.com/roach88/qplan/internal/testutil"
)

// Harness is the scenario execution engine. Compilations use a fixed
// compilation ID so outcomes are reproducible.
type Harness struct {
	logger *slog.Logger
	ids    plan.IDGenerator
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger passed to every compilation.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// The document is decoded once and compiled for every listed dialect.
// When the scenario has seed rows or row expectations, each successful
// sqlite compilation is executed in a fresh in-memory sandbox.
//
// An error is returned only when the scenario cannot be executed at all;
// expectation failures are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:    testutil.NewFixedIDGenerator(""),
	}
	for _, opt := range opts {
		opt(h)
	}

	tree, err := h.loadDocument(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	fp, err := ctree.Fingerprint(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint document: %w", err)
	}
	params, err := convertParams(scenario.Params)
	if err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	seed, err := sandbox.DataFromGo(scenario.Seed)
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}

	result := NewResult()
	result.Fingerprint = fp

	for _, ref := range scenario.Dialects {
		expect := scenario.Expect[ref]
		out, res := h.compile(ctx, tree, ref, scenario.ParameterizeLimits)

		if res != nil && res.Dialect.Name == dialect.SQLite && (len(seed) > 0 || len(expect.Rows) > 0) {
			rows, err := h.execute(ctx, tree, seed, res, params)
			if err != nil {
				result.AddError(fmt.Sprintf("%s: %v", ref, err))
			} else {
				out.Rows = rows.Objects()
				out.Ran = true
			}
		}

		result.Outcomes = append(result.Outcomes, out)
		checkOutcome(result, out, expect)
	}
	return result, nil
}

func (h *Harness) loadDocument(s *Scenario) (*ctree.Tree, error) {
	if s.Document != "" {
		return compiler.Load(s.Document)
	}
	return compiler.Parse(s.Name+".yaml", []byte(s.Source), compiler.FormatYAML)
}

// compile returns the outcome for one dialect, and the compiled result
// when compilation succeeded.
func (h *Harness) compile(ctx context.Context, tree *ctree.Tree, ref string, parameterize bool) (Outcome, *plan.Result) {
	out := Outcome{Ref: ref}
	d, err := dialect.ParseRef(ref)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	d.ParameterizeLimits = parameterize
	out.Dialect = d.String()

	res, err := plan.Compile(ctx, tree, d,
		plan.WithIDGenerator(h.ids),
		plan.WithLogger(h.logger))
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}

	out.SQL = res.SQL
	for _, p := range res.Params {
		out.Params = append(out.Params, p.Name)
	}
	return out, res
}

// execute runs res in a fresh sandbox so dialect outcomes stay independent.
func (h *Harness) execute(ctx context.Context, tree *ctree.Tree, seed sandbox.Data, res *plan.Result, params map[string]ir.Value) (*sandbox.Rows, error) {
	sb, err := sandbox.Open(":memory:", tree.Catalog)
	if err != nil {
		return nil, err
	}
	defer sb.Close()

	if err := sb.Seed(ctx, seed); err != nil {
		return nil, err
	}
	return sb.Run(ctx, res, params)
}

func convertParams(raw map[string]any) (map[string]ir.Value, error) {
	out := make(map[string]ir.Value, len(raw))
	for name, v := range raw {
		iv, err := ir.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = iv
	}
	return out, nil
}

// checkOutcome compares one outcome with its expectation.
func checkOutcome(r *Result, out Outcome, e Expect) {
	ref := out.Ref
	if e.Error != "" {
		switch {
		case out.Error == "":
			r.AddError(fmt.Sprintf("%s: expected error containing %q, compiled successfully", ref, e.Error))
		case !strings.Contains(out.Error, e.Error):
			r.AddError(fmt.Sprintf("%s: expected error containing %q, got %q", ref, e.Error, out.Error))
		}
		return
	}
	if out.Error != "" {
		r.AddError(fmt.Sprintf("%s: unexpected error: %s", ref, out.Error))
		return
	}

	if want := strings.TrimSpace(e.SQL); want != "" && want != out.SQL {
		r.AddError(fmt.Sprintf("%s: SQL mismatch\n  Expected:\n%s\n  Actual:\n%s", ref, indent(want), indent(out.SQL)))
	}

	if len(e.Rows) == 0 {
		return
	}
	if !out.Ran {
		r.AddError(fmt.Sprintf("%s: rows expected but the statement was not run", ref))
		return
	}
	if len(e.Rows) != len(out.Rows) {
		r.AddError(fmt.Sprintf("%s: expected %d rows, got %d", ref, len(e.Rows), len(out.Rows)))
		return
	}
	for i, raw := range e.Rows {
		want, err := ir.FromGo(raw)
		if err != nil {
			r.AddError(fmt.Sprintf("%s: rows[%d]: %v", ref, i, err))
			continue
		}
		if !equalValues(want, out.Rows[i]) {
			r.AddError(fmt.Sprintf("%s: rows[%d]: expected %s, got %s", ref, i, render(want), render(out.Rows[i])))
		}
	}
}

// equalValues compares an expected value with an actual one. Expected
// decimals may be written as strings or integers, and trailing fraction
// zeros are not significant.
func equalValues(want, got ir.Value) bool {
	switch g := got.(type) {
	case ir.Decimal:
		switch w := want.(type) {
		case ir.Decimal:
			return trimDecimal(string(w)) == trimDecimal(string(g))
		case ir.String:
			return trimDecimal(string(w)) == trimDecimal(string(g))
		case ir.Int:
			return strconv.FormatInt(int64(w), 10) == trimDecimal(string(g))
		}
		return false
	case ir.Object:
		w, ok := want.(ir.Object)
		if !ok || len(w) != len(g) {
			return false
		}
		for k, gv := range g {
			wv, ok := w[k]
			if !ok || !equalValues(wv, gv) {
				return false
			}
		}
		return true
	case ir.List:
		w, ok := want.(ir.List)
		if !ok || len(w) != len(g) {
			return false
		}
		for i := range g {
			if !equalValues(w[i], g[i]) {
				return false
			}
		}
		return true
	}
	wb, err1 := ir.MarshalCanonical(want)
	gb, err2 := ir.MarshalCanonical(got)
	return err1 == nil && err2 == nil && bytes.Equal(wb, gb)
}

func trimDecimal(s string) string {
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

func render(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return ir.Describe(v)
	}
	return string(data)
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(s, "\n", "\n    ")
}
