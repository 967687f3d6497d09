package plan

import (
	"context"
	"log/slog"

	"github.com/roach88/qplan/internal/colmap"
	"github.com/roach88/qplan/internal/ctree"
	"github.com/roach88/qplan/internal/dialect"
	"github.com/roach88/qplan/internal/itree"
	"github.com/roach88/qplan/internal/sqlgen"
)

// state is what the phases transform.
type state struct {
	cmd     *itree.Command
	root    itree.RelNode
	shape   colmap.ColumnMap
	params  []Param
	dialect *dialect.Dialect
}

// phase is one rewrite step. run reports whether it changed the tree.
type phase struct {
	name string
	run  func(*state) (bool, error)
}

// phases in execution order. Later phases rely on earlier ones: pruning
// assumes predicates are normalized, join elimination assumes scans read
// only needed columns.
var phases = []phase{
	{name: "nullsem", run: normalizeNulls},
	{name: "prune", run: pruneProjections},
	{name: "joinelim", run: eliminateJoins},
	{name: "toplower", run: lowerTop},
}

// PhaseNames lists the rewrite phases in execution order.
func PhaseNames() []string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = p.name
	}
	return names
}

// PhaseTrace records the outcome of one phase.
type PhaseTrace struct {
	Phase   string `json:"phase"`
	Changed bool   `json:"changed"`

	// Tree is the internal tree after the phase, as printed by itree.Format.
	Tree string `json:"tree"`
}

// Result is a compiled query.
type Result struct {
	// ID identifies this compilation in logs.
	ID string

	// Fingerprint is the content hash of the input tree.
	Fingerprint string

	Dialect *dialect.Dialect
	SQL     string

	// Columns are the result set columns in select-list order.
	Columns []sqlgen.Column

	// Params lists the statement parameters in placeholder order.
	Params []Param

	// Shape maps result columns back to the requested result structure.
	Shape colmap.ColumnMap

	// Bound is the internal tree as bound, before any phase.
	Bound string

	Trace []PhaseTrace
}

// Option configures Compile.
type Option func(*options)

type options struct {
	ids    IDGenerator
	logger *slog.Logger
}

// WithIDGenerator sets the compilation ID source. Default: UUIDv7.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Compile binds tree, runs the rewrite phases and generates SQL for d.
//
// The context is checked between phases; a cancelled compilation fails as
// a whole and returns no partial result.
func Compile(ctx context.Context, tree *ctree.Tree, d *dialect.Dialect, opts ...Option) (*Result, error) {
	o := options{ids: UUIDv7Generator{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	id := o.ids.Generate()
	log := o.logger.With("compilation_id", id, "dialect", d.String())

	bound, err := Bind(tree)
	if err != nil {
		log.Debug("bind failed", "error", err)
		return nil, err
	}
	fingerprint, err := ctree.Fingerprint(tree)
	if err != nil {
		return nil, err
	}

	st := &state{
		cmd:     bound.Cmd,
		root:    bound.Root,
		shape:   bound.Shape,
		params:  bound.Params,
		dialect: d,
	}
	res := &Result{
		ID:          id,
		Fingerprint: fingerprint,
		Dialect:     d,
		Bound:       itree.Format(st.root),
	}

	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Debug("phase starting", "phase", p.name)
		changed, err := p.run(st)
		if err != nil {
			log.Debug("phase failed", "phase", p.name, "error", err)
			return nil, err
		}
		if err := checkState(p.name, st); err != nil {
			log.Error("invariant violated", "phase", p.name, "error", err)
			return nil, err
		}
		log.Debug("phase finished", "phase", p.name, "changed", changed)
		res.Trace = append(res.Trace, PhaseTrace{Phase: p.name, Changed: changed, Tree: itree.Format(st.root)})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stmt, err := sqlgen.Generate(st.cmd, st.root, st.shape, d)
	if err != nil {
		return nil, err
	}
	res.SQL = stmt.SQL
	res.Columns = stmt.Columns
	res.Params = orderParams(st.params, stmt.Params)
	res.Shape = st.shape

	log.Debug("compiled", "columns", len(res.Columns), "params", len(res.Params))
	return res, nil
}

// checkState verifies the tree and shape after a phase.
func checkState(phaseName string, st *state) error {
	if bad, err := itree.Check(st.cmd, st.root); err != nil {
		return internalError(phaseName, bad, err)
	}
	if err := colmap.Check(st.shape, itree.Outputs(st.root)); err != nil {
		return internalError(phaseName, st.root, err)
	}
	return nil
}

// orderParams lists params in the order the statement references them.
// Declared parameters the statement no longer references are dropped.
func orderParams(params []Param, refs []string) []Param {
	byName := make(map[string]Param, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}
	out := make([]Param, 0, len(refs))
	for _, name := range refs {
		if p, ok := byName[name]; ok {
			out = append(out, p)
		}
	}
	return out
}
