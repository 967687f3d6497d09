package sandbox

import (
	"context"
	"fmt"

	"github.com/roach88/qplan/internal/ir"
	"github.com/roach88/qplan/internal/plan"
)

// RunRecord is one entry of the run log.
type RunRecord struct {
	Seq         int64
	ID          string
	Fingerprint string
	Dialect     string
	SQL         string

	// Params holds the bound parameter values as canonical JSON.
	Params   string
	RowCount int
}

// record appends a run to the log. Uses ON CONFLICT DO NOTHING so running
// the same compilation again keeps the first entry.
func (s *Sandbox) record(ctx context.Context, res *plan.Result, params ir.Object, rowCount int) error {
	data, err := ir.MarshalCanonical(params)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO qplan_runs (id, fingerprint, dialect, sql_text, params, row_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, res.ID, res.Fingerprint, res.Dialect.String(), res.SQL, string(data), rowCount)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Runs returns the run log in insertion order. An empty fingerprint
// returns every run.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Sandbox) Runs(ctx context.Context, fingerprint string) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, fingerprint, dialect, sql_text, params, row_count
		FROM qplan_runs
		WHERE ? = '' OR fingerprint = ?
		ORDER BY seq ASC
	`, fingerprint, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.Seq, &r.ID, &r.Fingerprint, &r.Dialect, &r.SQL, &r.Params, &r.RowCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
