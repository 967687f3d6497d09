// Package harness runs compilation scenarios.
//
// A scenario names a query document, the dialects to compile it for and
// what each compilation should produce. SQLite compilations can also be
// executed against seed rows in a sandbox database, so a scenario checks
// both the generated text and the rows it returns.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: customers_outside_paris
//	description: "NOT over a nullable column keeps NULL cities"
//	document: ../documents/outside_paris.yaml
//	dialects: [sqlserver/16, sqlite]
//	seed:
//	  customers:
//	    - {id: 1, name: Ann, city: Paris, active: true}
//	    - {id: 2, name: Bob, city: null, active: true}
//	expect:
//	  sqlite:
//	    rows:
//	      - {id: 2, name: Bob, city: null, active: true}
//	  sqlserver/16:
//	    sql: |
//	      SELECT TOP (10) ...
//
// document is relative to the scenario file. A scenario may instead carry
// the document inline under source. Expectations are keyed by the dialect
// reference exactly as written in dialects:
//
//   - sql: the full statement, compared after trimming surrounding space
//   - error: a substring of the expected compilation error
//   - rows: result rows keyed by column name, in order (sqlite only)
//
// A dialect without an expectation must compile without error. Decimal
// values in rows are written as strings.
//
// # Golden Files
//
// RunWithGolden renders every outcome with Snapshot and compares it with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
