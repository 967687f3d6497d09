package sandbox

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/qplan/internal/ctree"
	"github.com/roach88/qplan/internal/dialect"
	"github.com/roach88/qplan/internal/itree"
)

//go:embed schema.sql
var schemaSQL string

// reservedPrefix marks the sandbox's own tables.
const reservedPrefix = "qplan_"

// sqlite renders identifiers for DDL and seeding the way compiled
// statements do.
var sqlite = dialect.MustNew(dialect.SQLite, 0)

// Sandbox is a SQLite database holding one catalog's tables.
type Sandbox struct {
	db     *sql.DB
	tables map[string]*ctree.TableDef
}

// Open creates or opens a SQLite database at path (":memory:" for a
// throwaway one) and creates the catalog tables that do not exist yet.
func Open(path string, catalog []ctree.TableDef) (*Sandbox, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	s := &Sandbox{db: db, tables: make(map[string]*ctree.TableDef, len(catalog))}
	for i := range catalog {
		t := &catalog[i]
		if strings.HasPrefix(t.Name, reservedPrefix) {
			db.Close()
			return nil, fmt.Errorf("table %q: names starting with %q are reserved", t.Name, reservedPrefix)
		}
		ddl, err := createTableSQL(t)
		if err != nil {
			db.Close()
			return nil, err
		}
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("create table %s: %w", t.Name, err)
		}
		s.tables[t.Name] = t
	}
	return s, nil
}

// Close closes the database connection.
func (s *Sandbox) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
func (s *Sandbox) DB() *sql.DB {
	return s.db
}

// Query executes a query and returns the resulting rows.
// Callers are responsible for closing the returned rows.
func (s *Sandbox) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// declaredType is the SQLite column type for a catalog type name. BOOLEAN
// makes the driver scan 0/1 back as bool.
func declaredType(name string) (string, error) {
	kind, err := itree.ParseTypeKind(name)
	if err != nil {
		return "", err
	}
	switch kind {
	case itree.KindInt:
		return "INTEGER", nil
	case itree.KindBool:
		return "BOOLEAN", nil
	case itree.KindFloat:
		return "REAL", nil
	case itree.KindDecimal:
		return "NUMERIC", nil
	}
	return "TEXT", nil
}

func createTableSQL(t *ctree.TableDef) (string, error) {
	var defs []string
	for _, c := range t.Columns {
		typ, err := declaredType(c.Type)
		if err != nil {
			return "", fmt.Errorf("table %s column %s: %w", t.Name, c.Name, err)
		}
		def := sqlite.QuoteIdent(c.Name) + " " + typ
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if len(t.Key) > 0 {
		defs = append(defs, "PRIMARY KEY ("+quoteList(t.Key)+")")
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			quoteList(fk.Columns), sqlite.QuoteIdent(fk.RefTable), quoteList(fk.RefColumns)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
		sqlite.QuoteIdent(t.Name), strings.Join(defs, ",\n    ")), nil
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = sqlite.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
