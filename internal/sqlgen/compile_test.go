package sqlgen_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"

	"github.com/roach88/qplan/internal/compiler"
	"github.com/roach88/qplan/internal/dialect"
	"github.com/roach88/qplan/internal/plan"
	"github.com/roach88/qplan/internal/testutil"
)

// TestCompileDocuments runs the files under testdata/compile. Directives:
//
//	catalog
//	<YAML catalog field, kept for the rest of the file>
//
//	compile dialect=<name> [version=<n>] [parameterize]
//	<YAML query and shape fields>
//
// compile prints the statement, then its parameters, or the error.
func TestCompileDocuments(t *testing.T) {
	datadriven.Walk(t, "testdata/compile", func(t *testing.T, path string) {
		var catalog string
		datadriven.RunTest(t, path, func(t *testing.T, td *datadriven.TestData) string {
			switch td.Cmd {
			case "catalog":
				catalog = td.Input
				return ""

			case "compile":
				var name string
				td.ScanArgs(t, "dialect", &name)
				version := 0
				if td.HasArg("version") {
					td.ScanArgs(t, "version", &version)
				}
				d, err := dialect.New(dialect.Name(name), version)
				if err != nil {
					td.Fatalf(t, "%v", err)
				}
				d.ParameterizeLimits = td.HasArg("parameterize")

				tree, err := compiler.Parse(path, []byte(catalog+"\n"+td.Input), compiler.FormatYAML)
				if err != nil {
					td.Fatalf(t, "%v", err)
				}
				res, err := plan.Compile(context.Background(), tree, d,
					plan.WithIDGenerator(testutil.NewFixedIDGenerator("")),
					plan.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
				if err != nil {
					return fmt.Sprintf("error: %v\n", err)
				}

				var b strings.Builder
				b.WriteString(res.SQL)
				b.WriteString("\n")
				if len(res.Params) > 0 {
					names := make([]string, len(res.Params))
					for i, p := range res.Params {
						names[i] = p.Name
					}
					fmt.Fprintf(&b, "-- params: %s\n", strings.Join(names, ", "))
				}
				return b.String()
			}
			td.Fatalf(t, "unknown directive %q", td.Cmd)
			return ""
		})
	})
}
