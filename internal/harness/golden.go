package harness

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as the text stored in golden files: the run id,
// then either the failure code or the compiled SQL with its parameters and,
// for seeded scenarios, the returned rows.
//
// Error messages are left out; they name aliases and internal nodes that
// are not part of the contract. The code is.
func Snapshot(name string, result *Result) []byte {
	var buf strings.Builder

	fmt.Fprintf(&buf, "scenario: %s\n", name)
	fmt.Fprintf(&buf, "run_id: %s\n", result.RunID)

	if result.ErrorCode != "" {
		fmt.Fprintf(&buf, "error: %s\n", result.ErrorCode)
		return []byte(buf.String())
	}

	fmt.Fprintf(&buf, "sql: %s\n", result.SQL)
	fmt.Fprintf(&buf, "params: %s\n", FormatValues(result.Params))

	if result.Rows != nil {
		fmt.Fprintf(&buf, "columns: [%s]\n", strings.Join(result.Rows.Columns, ", "))
		buf.WriteString("rows:\n")
		for _, row := range result.Rows.Values {
			fmt.Fprintf(&buf, "  %s\n", FormatValues(row))
		}
	}
	return []byte(buf.String())
}

// FormatValues renders values as a bracketed list: NULL for nil, strings
// and times quoted.
func FormatValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatValue(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", x)
	case time.Time:
		return fmt.Sprintf("%q", formatTime(x))
	default:
		return fmt.Sprintf("%v", x)
	}
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares the given result's snapshot against a golden file,
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(scenarioName, result))
}
