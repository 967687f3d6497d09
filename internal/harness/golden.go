package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/qplan/internal/ir"
)

// Snapshot renders a result's outcomes for golden comparison:
//
//	-- sqlite/3
//	SELECT ...
//	params: min
//	rows:
//	{"id":2}
//
// Rows are canonical JSON, one per line.
func Snapshot(r *Result) ([]byte, error) {
	var buf bytes.Buffer
	for i, o := range r.Outcomes {
		if i > 0 {
			buf.WriteByte('\n')
		}
		header := o.Dialect
		if header == "" {
			header = o.Ref
		}
		fmt.Fprintf(&buf, "-- %s\n", header)

		if o.Error != "" {
			fmt.Fprintf(&buf, "error: %s\n", o.Error)
			continue
		}
		buf.WriteString(o.SQL)
		buf.WriteByte('\n')
		if len(o.Params) > 0 {
			fmt.Fprintf(&buf, "params: %s\n", strings.Join(o.Params, ", "))
		}
		if o.Ran {
			buf.WriteString("rows:\n")
			for _, row := range o.Rows {
				data, err := ir.MarshalCanonical(row)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", o.Dialect, err)
				}
				buf.Write(data)
				buf.WriteByte('\n')
			}
		}
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario, fails t on expectation errors and
// compares the snapshot with testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) error {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)
	return nil
}
