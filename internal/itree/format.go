package itree

import (
	"fmt"
	"strings"

	"github.com/roach88/qplan/internal/ir"
)

// Format renders the tree rooted at n, one operator per line, children
// indented by two spaces.
func Format(n RelNode) string {
	var b strings.Builder
	formatRel(&b, n, 0)
	return b.String()
}

func formatRel(b *strings.Builder, n RelNode, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	switch n := n.(type) {
	case *Scan:
		fmt.Fprintf(b, "scan %s", n.Table.Name)
		if n.Alias != "" && n.Alias != n.Table.Name {
			fmt.Fprintf(b, " as %s", n.Alias)
		}
		fmt.Fprintf(b, " %s", formatVars(n.Vars))
	case *Filter:
		fmt.Fprintf(b, "filter %s", FormatScalar(n.Predicate))
	case *Project:
		fmt.Fprintf(b, "project %s", formatVars(n.Passthrough.Vars()))
		for _, d := range n.Defs {
			fmt.Fprintf(b, " %s := %s", d.Var, FormatScalar(d.Expr))
		}
	case *Join:
		fmt.Fprintf(b, "join %s", n.Kind)
		if n.On != nil {
			fmt.Fprintf(b, " on %s", FormatScalar(n.On))
		}
	case *Sort:
		b.WriteString("sort")
		for _, k := range n.Keys {
			dir := "+"
			if k.Desc {
				dir = "-"
			}
			fmt.Fprintf(b, " %s%s", dir, k.Var)
		}
	case *Limit:
		fmt.Fprintf(b, "limit %s", FormatScalar(n.Count))
		if n.WithTies {
			b.WriteString(" with-ties")
		}
		if n.Form != LimitUnlowered {
			fmt.Fprintf(b, " [%s]", n.Form)
		}
	case *Distinct:
		b.WriteString("distinct")
	default:
		fmt.Fprintf(b, "%T", n)
	}
	b.WriteByte('\n')
	for _, in := range Inputs(n) {
		formatRel(b, in, depth+1)
	}
}

func formatVars(vars []*Var) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// FormatScalar renders an expression fully parenthesized.
func FormatScalar(s Scalar) string {
	switch s := s.(type) {
	case *VarRef:
		return s.Var.String()
	case *Const:
		return ir.Describe(s.Value)
	case *Param:
		return "@" + s.Name
	case *Compare:
		return fmt.Sprintf("(%s %s %s)", FormatScalar(s.Left), s.Op, FormatScalar(s.Right))
	case *And:
		return joinScalars(s.Args, " AND ")
	case *Or:
		return joinScalars(s.Args, " OR ")
	case *Not:
		return "NOT " + FormatScalar(s.Operand)
	case *IsNull:
		if s.Negated {
			return fmt.Sprintf("(%s IS NOT NULL)", FormatScalar(s.Operand))
		}
		return fmt.Sprintf("(%s IS NULL)", FormatScalar(s.Operand))
	case *Arith:
		return fmt.Sprintf("(%s %s %s)", FormatScalar(s.Left), s.Op, FormatScalar(s.Right))
	case *Func:
		args := make([]string, len(s.Args))
		for i, a := range s.Args {
			args[i] = FormatScalar(a)
		}
		return fmt.Sprintf("%s(%s)", s.Name, strings.Join(args, ", "))
	case nil:
		return "<nil>"
	}
	return fmt.Sprintf("%T", s)
}

func joinScalars(args []Scalar, sep string) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = FormatScalar(a)
	}
	return "(" + strings.Join(parts, sep) + ")"
}
