package sandbox

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/qplan/internal/ir"
)

// Data is seed rows by table name.
type Data map[string][]ir.Object

// ParseData decodes a YAML seed document:
//
//	customers:
//	  - {id: 1, name: Ann, city: Paris, active: true}
//	orders:
//	  - {id: 10, customer_id: 1, total: "12.50"}
//
// Fractional numbers must be written as strings.
func ParseData(data []byte) (Data, error) {
	var raw map[string][]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode seed data: %w", err)
	}
	return DataFromGo(raw)
}

// DataFromGo converts rows decoded into plain Go values.
func DataFromGo(raw map[string][]map[string]any) (Data, error) {
	out := make(Data, len(raw))
	for table, rows := range raw {
		for i, row := range rows {
			v, err := ir.FromGo(row)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", table, i, err)
			}
			out[table] = append(out[table], v.(ir.Object))
		}
	}
	return out, nil
}

// LoadData reads a YAML seed document from path.
func LoadData(path string) (Data, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed data: %w", err)
	}
	d, err := ParseData(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Seed inserts rows in one transaction. Foreign keys are checked at
// commit, so the order of tables does not matter.
func (s *Sandbox) Seed(ctx context.Context, data Data) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON"); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	tables := make([]string, 0, len(data))
	for name := range data {
		tables = append(tables, name)
	}
	slices.Sort(tables)

	for _, name := range tables {
		t, ok := s.tables[name]
		if !ok {
			return fmt.Errorf("seed: unknown table %q", name)
		}
		for i, row := range data[name] {
			var cols, marks []string
			var args []any
			for _, c := range t.Columns {
				v, ok := row[c.Name]
				if !ok {
					continue
				}
				arg, err := ir.ToGo(v)
				if err != nil {
					return fmt.Errorf("seed %s[%d].%s: %w", name, i, c.Name, err)
				}
				cols = append(cols, sqlite.QuoteIdent(c.Name))
				marks = append(marks, "?")
				args = append(args, arg)
			}
			if len(cols) != len(row) {
				return fmt.Errorf("seed %s[%d]: unknown column in %v", name, i, row.SortedKeys())
			}
			if len(cols) == 0 {
				return fmt.Errorf("seed %s[%d]: empty row", name, i)
			}
			stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
				sqlite.QuoteIdent(name), strings.Join(cols, ", "), strings.Join(marks, ", "))
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return fmt.Errorf("seed %s[%d]: %w", name, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return nil
}
