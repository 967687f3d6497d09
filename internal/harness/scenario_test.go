package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "customers_outside_paris.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "customers_outside_paris", scenario.Name)
	assert.Equal(t, []string{"sqlserver/16", "sqlite"}, scenario.Dialects)
	assert.Equal(t, filepath.Join("testdata", "documents", "outside_paris.yaml"), scenario.Document)
	assert.Len(t, scenario.Seed["customers"], 3)
	assert.Len(t, scenario.Expect["sqlite"].Rows, 2)
	assert.Contains(t, scenario.Expect["sqlserver/16"].SQL, "SELECT TOP (10)")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: typo
description: "misspelled field"
dialect: [sqlite]
source: "query: {scan: t}"
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\ndialects: [sqlite]\nsource: x",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\ndialects: [sqlite]\nsource: x",
			wantErr: "description is required",
		},
		{
			name:    "no document",
			content: "name: n\ndescription: d\ndialects: [sqlite]",
			wantErr: "one of document or source is required",
		},
		{
			name:    "document and source",
			content: "name: n\ndescription: d\ndialects: [sqlite]\nsource: x\ndocument: doc.yaml",
			wantErr: "mutually exclusive",
		},
		{
			name:    "missing document",
			content: "name: n\ndescription: d\ndialects: [sqlite]\ndocument: nope.yaml",
			wantErr: "document not found",
		},
		{
			name:    "no dialects",
			content: "name: n\ndescription: d\nsource: x",
			wantErr: "dialects list is required",
		},
		{
			name:    "unknown dialect",
			content: "name: n\ndescription: d\nsource: x\ndialects: [oracle]",
			wantErr: "dialects[0]: unknown dialect",
		},
		{
			name:    "duplicate dialect",
			content: "name: n\ndescription: d\nsource: x\ndialects: [sqlite, sqlite]",
			wantErr: `dialects[1]: "sqlite" listed twice`,
		},
		{
			name:    "expectation for unlisted dialect",
			content: "name: n\ndescription: d\nsource: x\ndialects: [sqlite]\nexpect: {postgres: {sql: x}}",
			wantErr: "expect[postgres]: dialect is not listed",
		},
		{
			name:    "error with sql",
			content: "name: n\ndescription: d\nsource: x\ndialects: [sqlite]\nexpect: {sqlite: {sql: x, error: y}}",
			wantErr: "error excludes sql and rows",
		},
		{
			name:    "rows off sqlite",
			content: "name: n\ndescription: d\nsource: x\ndialects: [postgres]\nexpect: {postgres: {rows: [{id: 1}]}}",
			wantErr: "rows can only be checked for sqlite",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		"customers_outside_paris",
		"order_customers",
		"parameterized_limit",
		"top_with_ties",
	}, names)
}

func TestLoadDir_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	content := "name: same\ndescription: d\ndialects: [sqlite]\nsource: x\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(content), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(content), 0644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario name "same" used by both`)
}
