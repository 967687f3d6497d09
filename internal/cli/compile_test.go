package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qplan/internal/testutil"
)

const outsideParisSQLServer = `SELECT TOP (10) [c].[id], [c].[name], [c].[city], [c].[active]
FROM [customers] AS [c]
WHERE [c].[city] <> N'Paris' OR [c].[city] IS NULL
ORDER BY [c].[name]`

// execCompile runs the compile command with a fixed compilation ID.
func execCompile(t *testing.T, rootOpts *RootOptions, output string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})

	opts := &CompileOptions{
		RootOptions: rootOpts,
		Output:      output,
		IDGenerator: testutil.NewFixedIDGenerator(""),
	}
	return buf, runCompile(opts, args, cmd)
}

func TestCompile_Text(t *testing.T) {
	buf, err := execCompile(t, &RootOptions{Format: "text", Dialect: "sqlserver"}, "",
		filepath.Join("testdata", "docs", "outside_paris.yaml"))
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ testdata/docs/outside_paris.yaml (sqlserver/16)")
	assert.Contains(t, output, outsideParisSQLServer)
	assert.Contains(t, output, "shape: ")
	assert.Contains(t, output, "Compiled 1 of 1 document(s)")
}

func TestCompile_JSON(t *testing.T) {
	buf, err := execCompile(t, &RootOptions{Format: "json", Dialect: "postgres", ParameterizeLimits: true}, "",
		filepath.Join("testdata", "docs", "min_id.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string             `json:"status"`
		Data   []CompiledDocument `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)

	doc := resp.Data[0]
	assert.Equal(t, "test-compilation", doc.CompilationID)
	assert.Equal(t, "postgres/16", doc.Dialect)
	assert.NotEmpty(t, doc.Fingerprint)
	assert.Contains(t, doc.SQL, `WHERE "c"."id" > $1`)
	assert.Contains(t, doc.SQL, "LIMIT $2")
	assert.Equal(t, []ColumnInfo{{Name: "id", Type: "int"}, {Name: "name", Type: "string"}}, doc.Columns)
	require.Len(t, doc.Params, 2)
	assert.Equal(t, ParamInfo{Name: "min", Type: "int"}, doc.Params[0])
	assert.Equal(t, "limit", doc.Params[1].Name)
	assert.EqualValues(t, 5, doc.Params[1].Value)

	require.NotNil(t, doc.Shape)
	assert.Equal(t, "collection", doc.Shape.Kind)
	assert.Equal(t, "customers", doc.Shape.Name)
	require.NotNil(t, doc.Shape.Element)
	require.Len(t, doc.Shape.Element.Properties, 2)
	assert.Equal(t, "id", doc.Shape.Element.Properties[0].Name)
	assert.Equal(t, "var", doc.Shape.Element.Properties[0].Kind)
	assert.Equal(t, "name", doc.Shape.Element.Properties[1].Name)
}

func TestCompile_DirectoryWithFailures(t *testing.T) {
	buf, err := execCompile(t, &RootOptions{Format: "text", Dialect: "sqlite"}, "",
		filepath.Join("testdata", "docs"), filepath.Join("testdata", "bad"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "compilation failed for 2 of 4 document(s)")

	output := buf.String()
	assert.Contains(t, output, "✓ testdata/docs/min_id.yaml (sqlite/3)")
	assert.Contains(t, output, "✓ testdata/docs/outside_paris.yaml (sqlite/3)")
	assert.Contains(t, output, "✗ testdata/bad/broken.json")
	assert.Contains(t, output, "✗ testdata/bad/unknown_column.yaml")
	assert.Contains(t, output, "E203: ")
	assert.Contains(t, output, "unknown column c.zip")
	assert.Contains(t, output, "Compiled 2 of 4 document(s)")
}

func TestCompile_OutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "plans.json")
	buf, err := execCompile(t, &RootOptions{Format: "text", Dialect: "sqlserver"}, outputFile,
		filepath.Join("testdata", "docs", "outside_paris.yaml"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Wrote results to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	var results []CompiledDocument
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 1)
	assert.Equal(t, outsideParisSQLServer, results[0].SQL)
	require.NotNil(t, results[0].Shape)
	assert.Equal(t, "collection", results[0].Shape.Kind)
}

func TestCompile_CommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		opts    *RootOptions
		args    []string
		wantErr string
	}{
		{
			name:    "missing path",
			opts:    &RootOptions{Format: "text", Dialect: "sqlite"},
			args:    []string{"testdata/nope"},
			wantErr: "path not found",
		},
		{
			name:    "unknown dialect",
			opts:    &RootOptions{Format: "text", Dialect: "oracle"},
			args:    []string{"testdata/docs"},
			wantErr: "unknown dialect",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execCompile(t, tt.opts, "", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompile_Unsupported(t *testing.T) {
	buf, err := execCompile(t, &RootOptions{Format: "json", Dialect: "sqlite"}, "",
		filepath.Join("testdata", "ties", "top_names.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data []CompiledDocument `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.NotNil(t, resp.Data[0].Error)
	assert.Equal(t, ErrCodeUnsupported, resp.Data[0].Error.Code)
	assert.Contains(t, resp.Data[0].Error.Message, "WITH TIES is not supported by sqlite/3")

	buf, err = execCompile(t, &RootOptions{Format: "text", Dialect: "sqlserver", DialectVersion: 8}, "",
		filepath.Join("testdata", "ties", "top_names.yaml"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "SELECT TOP 5 WITH TIES [c].[id], [c].[name]")
}

func TestFindDocuments(t *testing.T) {
	paths, err := FindDocuments([]string{"testdata/bad", "testdata/docs/min_id.yaml"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "bad", "broken.json"),
		filepath.Join("testdata", "bad", "unknown_column.yaml"),
		"testdata/docs/min_id.yaml",
	}, paths)

	_, err = FindDocuments([]string{t.TempDir()})
	require.Error(t, err)
	assert.Equal(t, ErrCodeNoFiles, ErrorCode(err))
}

func TestLoadDocuments_Modes(t *testing.T) {
	paths := []string{
		filepath.Join("testdata", "docs", "min_id.yaml"),
		filepath.Join("testdata", "bad", "broken.json"),
	}

	docs, err := LoadDocuments(t.Context(), paths, LoadModeCollectAll)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.NoError(t, docs[0].Err)
	assert.NotNil(t, docs[0].Tree)
	assert.Error(t, docs[1].Err)
	assert.Equal(t, ErrCodeDocument, ErrorCode(docs[1].Err))

	_, err = LoadDocuments(t.Context(), paths, LoadModeFailFast)
	require.Error(t, err)
}
