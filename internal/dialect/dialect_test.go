package dialect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsVersion(t *testing.T) {
	d, err := New("SQLServer", 0)
	require.NoError(t, err)
	assert.Equal(t, SQLServer, d.Name)
	assert.Equal(t, 16, d.Version)
	assert.Equal(t, "sqlserver/16", d.String())

	_, err = New("oracle", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dialect")
}

func TestParseRef(t *testing.T) {
	d, err := ParseRef("sqlserver/8")
	require.NoError(t, err)
	assert.Equal(t, "sqlserver/8", d.String())

	d, err = ParseRef("postgres")
	require.NoError(t, err)
	assert.Equal(t, "postgres/16", d.String())

	_, err = ParseRef("sqlite/x")
	assert.ErrorContains(t, err, `invalid version "x"`)

	_, err = ParseRef("mysql/8")
	assert.ErrorContains(t, err, "unknown dialect")
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		dialect       *Dialect
		top           bool
		parenthesized bool
		withTies      bool
		paramLimit    bool
	}{
		{MustNew(SQLServer, 8), true, false, true, false},
		{MustNew(SQLServer, 9), true, true, true, true},
		{MustNew(Postgres, 12), false, false, false, true},
		{MustNew(Postgres, 13), false, false, true, true},
		{MustNew(SQLite, 0), false, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.String(), func(t *testing.T) {
			assert.Equal(t, tt.top, tt.dialect.UsesTop())
			assert.Equal(t, tt.parenthesized, tt.dialect.TopParenthesized())
			assert.Equal(t, tt.withTies, tt.dialect.SupportsWithTies())
			assert.Equal(t, tt.paramLimit, tt.dialect.SupportsParameterizedLimit())
		})
	}
}

func TestQuoting(t *testing.T) {
	ss := MustNew(SQLServer, 0)
	pg := MustNew(Postgres, 0)
	lite := MustNew(SQLite, 0)

	assert.Equal(t, "[order]]s]", ss.QuoteIdent("order]s"))
	assert.Equal(t, `"order""s"`, pg.QuoteIdent(`order"s`))
	assert.Equal(t, `"users"`, lite.QuoteIdent("users"))

	assert.Equal(t, "N'O''Brien'", ss.QuoteString("O'Brien"))
	assert.Equal(t, "'O''Brien'", pg.QuoteString("O'Brien"))
	assert.Equal(t, `E'C:\\temp'`, pg.QuoteString(`C:\temp`))
	assert.Equal(t, "'O''Brien'", lite.QuoteString("O'Brien"))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "@limit", MustNew(SQLServer, 0).Placeholder("limit", 2))
	assert.Equal(t, "$2", MustNew(Postgres, 0).Placeholder("limit", 2))
	assert.Equal(t, ":limit", MustNew(SQLite, 0).Placeholder("limit", 2))
}

func TestParse(t *testing.T) {
	d, err := Parse([]byte("name: sqlserver\nversion: 8\nparameterize_limits: true\n"))
	require.NoError(t, err)
	assert.Equal(t, &Dialect{Name: SQLServer, Version: 8, ParameterizeLimits: true}, d)

	_, err = Parse([]byte("name: postgres\nflavor: x\n"))
	require.Error(t, err, "unknown keys are rejected")

	_, err = Parse([]byte("name: sqlite\nversion: -1\n"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dialect.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: postgres\n"), 0o644))

	d, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres/16", d.String())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestUnsupportedError(t *testing.T) {
	err := MustNew(SQLServer, 8).Unsupported("parameterized TOP", "use a literal count")
	assert.Equal(t, "parameterized TOP is not supported by sqlserver/8: use a literal count", err.Error())
	assert.True(t, IsUnsupported(err))
}
