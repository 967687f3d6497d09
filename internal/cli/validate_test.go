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
)

func execValidate(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	return buf, runValidate(&RootOptions{Format: format}, args, cmd)
}

func TestValidate_ValidDocuments(t *testing.T) {
	buf, err := execValidate(t, "text", filepath.Join("testdata", "docs"))
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ testdata/docs/min_id.yaml")
	assert.Contains(t, output, "✓ testdata/docs/outside_paris.yaml")
	assert.Contains(t, output, "2 of 2 document(s) valid")
}

func TestValidate_InvalidDocuments(t *testing.T) {
	buf, err := execValidate(t, "json", filepath.Join("testdata", "bad"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 of 2 document(s) invalid")

	var resp struct {
		Status string             `json:"status"`
		Data   []ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data, 2)

	broken, unknown := resp.Data[0], resp.Data[1]
	assert.False(t, broken.Valid)
	require.Len(t, broken.Errors, 1)
	assert.Equal(t, ErrCodeDocument, broken.Errors[0].Code)

	assert.False(t, unknown.Valid)
	require.Len(t, unknown.Errors, 1)
	assert.Equal(t, "E203", unknown.Errors[0].Code)
	assert.Contains(t, unknown.Errors[0].Message, "unknown column c.zip")
}

func TestValidate_ReportsEveryStructuralIssue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dup.yaml")
	doc := `catalog:
  - name: customers
    columns:
      - {name: id, type: int}
      - {name: id, type: string}
    key: [id, missing]
query:
  scan: {table: customers, as: c}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	buf, err := execValidate(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ "+path)
	assert.Contains(t, output, `E201: catalog.customers.columns: duplicate column "id"`)
	assert.Contains(t, output, `E201: catalog.customers.key: unknown key column "missing"`)
	assert.Contains(t, output, "0 of 1 document(s) valid")
}

func TestValidate_MissingPath(t *testing.T) {
	_, err := execValidate(t, "text", filepath.Join("testdata", "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
