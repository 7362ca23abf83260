package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/qbind/internal/sqlir"
)

// Scenario defines a resolution test scenario: a mapping catalog, one
// front-end statement and what resolving it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is a directory of CUE catalog files.
	// Paths are relative to the scenario file location.
	Catalog string `yaml:"catalog,omitempty"`

	// SQLite is a DDL script. The harness applies it to an in-memory
	// database and introspects the catalog from it. Exactly one of Catalog
	// and SQLite is set.
	SQLite string `yaml:"sqlite,omitempty"`

	// Seed is a script filling the SQLite tables. With a seed the compiled
	// statement is executed and its rows captured.
	Seed string `yaml:"seed,omitempty"`

	// Statement is the statement to resolve.
	Statement StatementSpec `yaml:"statement"`

	// Expect validates a successful resolution.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// ExpectError is the error code resolution must fail with, e.g.
	// "SCHEMA_RESOLUTION". Mutually exclusive with Expect.
	ExpectError string `yaml:"expect_error,omitempty"`

	// RunID is an optional fixed run id for deterministic logs.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// ExpectClause specifies the expected output of a resolution.
// Every field is optional; only the specified ones are validated.
type ExpectClause struct {
	// SQL is the exact compiled SQL text.
	SQL string `yaml:"sql,omitempty"`

	// Params are the compiled parameters, in order.
	Params []any `yaml:"params,omitempty"`

	// Rows are the rows the statement returns against the seeded database,
	// in order. Requires Seed.
	Rows [][]any `yaml:"rows,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Catalog, SQLite and Seed paths are resolved relative to the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving its paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "exepct:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve paths relative to base path BEFORE validation
	for _, p := range []*string{&scenario.Catalog, &scenario.SQLite, &scenario.Seed} {
		if *p != "" && !filepath.IsAbs(*p) && basePath != "" {
			*p = filepath.Join(basePath, *p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if (s.Catalog == "") == (s.SQLite == "") {
		return fmt.Errorf("exactly one of catalog and sqlite is required")
	}

	if s.Seed != "" && s.SQLite == "" {
		return fmt.Errorf("seed requires a sqlite schema")
	}

	for _, p := range []string{s.Catalog, s.SQLite, s.Seed} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", p)
		}
	}

	if len(s.Statement.From) == 0 {
		return fmt.Errorf("statement.from is required and must be non-empty")
	}

	if s.Expect != nil && s.ExpectError != "" {
		return fmt.Errorf("expect and expect_error are mutually exclusive")
	}

	if s.Expect != nil && len(s.Expect.Rows) > 0 && s.Seed == "" {
		return fmt.Errorf("expect.rows requires a seed")
	}

	switch sqlir.ErrorCode(s.ExpectError) {
	case "", sqlir.ErrCodeUnsupportedShape, sqlir.ErrCodeSchemaResolution, sqlir.ErrCodeInternalConsistency:
	default:
		return fmt.Errorf("expect_error: unknown error code %q", s.ExpectError)
	}

	return nil
}
