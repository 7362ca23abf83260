package harness

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// AssertionError is returned when an expectation fails.
// It includes the compiled statement to help debug the failure.
type AssertionError struct {
	Type     string // Expectation type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	SQL      string // Compiled SQL, empty when resolution failed
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.SQL != "" {
		fmt.Fprintf(&buf, "\nCompiled SQL:\n  %s\n", e.SQL)
	}

	return buf.String()
}

// Expectation types.
const (
	ExpectResolves = "resolves"
	ExpectFails    = "expect_error"
	ExpectSQL      = "sql"
	ExpectParams   = "params"
	ExpectRows     = "rows"
)

// EvaluateExpectations checks the result against the scenario's expect and
// expect_error clauses. Returns a slice of error messages for failed
// expectations.
func EvaluateExpectations(result *Result, scenario *Scenario) []string {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if scenario.ExpectError != "" {
		add(assertFails(result, scenario.ExpectError))
		return errs
	}

	// Without expect_error, resolution must succeed.
	if result.ErrorCode != "" {
		add(&AssertionError{
			Type:     ExpectResolves,
			Expected: "successful resolution",
			Actual:   result.Error,
		})
		return errs
	}

	if scenario.Expect == nil {
		return errs
	}
	if scenario.Expect.SQL != "" {
		add(assertSQL(result, scenario.Expect.SQL))
	}
	if scenario.Expect.Params != nil {
		add(assertParams(result, scenario.Expect.Params))
	}
	if scenario.Expect.Rows != nil {
		add(assertRows(result, scenario.Expect.Rows))
	}
	return errs
}

func assertFails(result *Result, code string) error {
	if result.ErrorCode == code {
		return nil
	}
	actual := "resolution succeeded"
	if result.ErrorCode != "" {
		actual = result.Error
	}
	return &AssertionError{
		Type:     ExpectFails,
		Expected: fmt.Sprintf("resolution fails with %s", code),
		Actual:   actual,
		SQL:      result.SQL,
	}
}

func assertSQL(result *Result, expected string) error {
	if normalizeSpace(result.SQL) == normalizeSpace(expected) {
		return nil
	}
	return &AssertionError{
		Type:     ExpectSQL,
		Expected: expected,
		Actual:   result.SQL,
	}
}

// normalizeSpace collapses whitespace runs, so expected SQL may be folded
// over several YAML lines.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func assertParams(result *Result, expected []any) error {
	if len(expected) == len(result.Params) {
		match := true
		for i := range expected {
			if !valuesEqual(expected[i], result.Params[i]) {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}
	return &AssertionError{
		Type:     ExpectParams,
		Expected: fmt.Sprintf("%v", expected),
		Actual:   fmt.Sprintf("%v", result.Params),
		SQL:      result.SQL,
	}
}

func assertRows(result *Result, expected [][]any) error {
	if result.Rows == nil {
		return &AssertionError{
			Type:     ExpectRows,
			Expected: fmt.Sprintf("%d rows", len(expected)),
			Actual:   "statement was not executed",
			SQL:      result.SQL,
		}
	}

	actual := result.Rows.Values
	if len(actual) != len(expected) {
		return &AssertionError{
			Type:     ExpectRows,
			Expected: fmt.Sprintf("%d rows %v", len(expected), expected),
			Actual:   fmt.Sprintf("%d rows %v", len(actual), actual),
			SQL:      result.SQL,
		}
	}
	for i := range expected {
		if len(expected[i]) != len(actual[i]) {
			return &AssertionError{
				Type:     ExpectRows,
				Expected: fmt.Sprintf("row %d: %v", i, expected[i]),
				Actual:   fmt.Sprintf("row %d: %v (columns %v)", i, actual[i], result.Rows.Columns),
				SQL:      result.SQL,
			}
		}
		for j := range expected[i] {
			if !valuesEqual(expected[i][j], actual[i][j]) {
				return &AssertionError{
					Type:     ExpectRows,
					Expected: fmt.Sprintf("row %d column %s: %v", i, result.Rows.Columns[j], expected[i][j]),
					Actual:   fmt.Sprintf("%v (%T)", actual[i][j], actual[i][j]),
					SQL:      result.SQL,
				}
			}
		}
	}
	return nil
}

// valuesEqual compares a YAML value with a value read from SQLite or
// produced by the compiler. Handles the type coercions between them:
// YAML ints against int64, booleans stored as 0/1, whole floats read back
// as integers, and timestamps against their text form.
func valuesEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	switch exp := expected.(type) {
	case int:
		return valuesEqual(int64(exp), actual)
	case int64:
		switch act := actual.(type) {
		case int64:
			return exp == act
		case float64:
			return float64(exp) == act
		case bool:
			return (exp != 0) == act
		}
		return false
	case float64:
		switch act := actual.(type) {
		case float64:
			return exp == act
		case int64:
			return exp == float64(act)
		}
		return false
	case bool:
		switch act := actual.(type) {
		case bool:
			return exp == act
		case int64:
			return exp == (act != 0)
		}
		return false
	case string:
		switch act := actual.(type) {
		case string:
			return exp == act
		case time.Time:
			return exp == formatTime(act)
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
