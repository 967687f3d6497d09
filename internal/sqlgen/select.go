package sqlgen

import "github.com/roach88/qplan/internal/dialect"

// SelectItem is one entry of a select list.
type SelectItem struct {
	Expr  Fragment
	Alias string
}

// FromItem is a FROM source. The first item of a Select has no Join.
type FromItem struct {
	// Source is a *TableRef or a *Derived.
	Source Fragment
	// Join is "INNER JOIN", "LEFT JOIN" or "CROSS JOIN".
	Join string
	On   Fragment
}

// Derived is a parenthesized subquery in a FROM clause.
type Derived struct {
	Query *Select
	Alias string
}

func (t *Derived) WriteSQL(w *Writer, d *dialect.Dialect) error {
	w.Write("(")
	w.Newline()
	w.Indent()
	if err := t.Query.WriteSQL(w, d); err != nil {
		return err
	}
	w.Dedent()
	w.Newline()
	w.Write(") AS ")
	w.Write(d.QuoteIdent(t.Alias))
	return nil
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr Fragment
	Desc bool
}

// Select is a complete SELECT statement.
type Select struct {
	Distinct bool
	Items    []SelectItem
	From     []FromItem
	Where    []Fragment
	OrderBy  []OrderItem
	// Limit is a *TopClause, *LimitClause, *FetchClause or nil.
	Limit Fragment
}

func (s *Select) WriteSQL(w *Writer, d *dialect.Dialect) error {
	w.Write("SELECT ")
	mods := w.Reserve()
	for i, it := range s.Items {
		if i > 0 {
			w.Write(", ")
		}
		if err := it.Expr.WriteSQL(w, d); err != nil {
			return err
		}
		if ref, ok := it.Expr.(*ColumnRef); ok && ref.Column == it.Alias {
			continue
		}
		if it.Alias != "" {
			w.Write(" AS " + d.QuoteIdent(it.Alias))
		}
	}
	for i, f := range s.From {
		w.Newline()
		if i == 0 {
			w.Write("FROM ")
		} else {
			w.Write(f.Join + " ")
		}
		if err := f.Source.WriteSQL(w, d); err != nil {
			return err
		}
		if f.On != nil {
			w.Write(" ON ")
			if err := f.On.WriteSQL(w, d); err != nil {
				return err
			}
		}
	}
	if len(s.Where) > 0 {
		w.Newline()
		w.Write("WHERE ")
		if err := (&Logic{Args: s.Where}).WriteSQL(w, d); err != nil {
			return err
		}
	}
	if len(s.OrderBy) > 0 {
		w.Newline()
		w.Write("ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				w.Write(", ")
			}
			if err := o.Expr.WriteSQL(w, d); err != nil {
				return err
			}
			if o.Desc {
				w.Write(" DESC")
			}
		}
	}

	var mod string
	if s.Distinct {
		mod = "DISTINCT "
	}
	switch l := s.Limit.(type) {
	case nil:
	case *TopClause:
		top := w.Scratch()
		if err := l.WriteSQL(top, d); err != nil {
			return err
		}
		mod += top.String()
	default:
		w.Newline()
		if err := l.WriteSQL(w, d); err != nil {
			return err
		}
	}
	mods.Fill(mod)
	return nil
}
