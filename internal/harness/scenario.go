package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/qplan/internal/dialect"
)

// Scenario is one compilation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Document is the path of the query document, relative to the
	// scenario file once loaded.
	Document string `yaml:"document,omitempty"`

	// Source is an inline YAML document, used when Document is empty.
	Source string `yaml:"source,omitempty"`

	// Dialects lists dialect references ("sqlite", "sqlserver/8").
	Dialects []string `yaml:"dialects"`

	// ParameterizeLimits is applied to every dialect.
	ParameterizeLimits bool `yaml:"parameterize_limits,omitempty"`

	// Params supplies declared parameter values for sandbox runs.
	Params map[string]any `yaml:"params,omitempty"`

	// Seed holds sandbox rows by table name.
	Seed map[string][]map[string]any `yaml:"seed,omitempty"`

	// Expect is keyed by dialect reference as written in Dialects.
	Expect map[string]Expect `yaml:"expect,omitempty"`
}

// Expect is what one compilation should produce.
type Expect struct {
	SQL   string           `yaml:"sql,omitempty"`
	Error string           `yaml:"error,omitempty"`
	Rows  []map[string]any `yaml:"rows,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected and the document path is resolved against the scenario's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Document != "" && !filepath.IsAbs(scenario.Document) {
		scenario.Document = filepath.Join(filepath.Dir(path), scenario.Document)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// LoadDir loads every .yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("scenario name %q used by both %s and %s", s.Name, prev, p)
		}
		seen[s.Name] = p
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Document == "" && s.Source == "":
		return fmt.Errorf("one of document or source is required")
	case s.Document != "" && s.Source != "":
		return fmt.Errorf("document and source are mutually exclusive")
	}
	if s.Document != "" {
		if _, err := os.Stat(s.Document); os.IsNotExist(err) {
			return fmt.Errorf("document not found: %s", s.Document)
		}
	}

	if len(s.Dialects) == 0 {
		return fmt.Errorf("dialects list is required and must be non-empty")
	}
	for i, ref := range s.Dialects {
		if _, err := dialect.ParseRef(ref); err != nil {
			return fmt.Errorf("dialects[%d]: %w", i, err)
		}
		if slices.Index(s.Dialects, ref) != i {
			return fmt.Errorf("dialects[%d]: %q listed twice", i, ref)
		}
	}

	for ref, e := range s.Expect {
		if !slices.Contains(s.Dialects, ref) {
			return fmt.Errorf("expect[%s]: dialect is not listed in dialects", ref)
		}
		if e.Error != "" && (e.SQL != "" || len(e.Rows) > 0) {
			return fmt.Errorf("expect[%s]: error excludes sql and rows", ref)
		}
		if len(e.Rows) > 0 {
			d, _ := dialect.ParseRef(ref)
			if d.Name != dialect.SQLite {
				return fmt.Errorf("expect[%s]: rows can only be checked for sqlite", ref)
			}
		}
	}
	return nil
}
