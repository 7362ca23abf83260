package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qbind/internal/store"
)

func compiledResult() *Result {
	r := NewResult()
	r.RunID = "r1"
	r.SQL = "SELECT [t0].[FirstName] FROM [Cook] AS [t0] WHERE ([t0].[ID] = ?)"
	r.Params = []any{int64(2)}
	r.Rows = &store.Rows{
		Columns: []string{"FirstName"},
		Values:  [][]any{{"Linguini"}},
	}
	return r
}

func TestEvaluateExpectations(t *testing.T) {
	testCases := []struct {
		name      string
		result    *Result
		scenario  *Scenario
		wantTypes []string
	}{
		{
			name:     "no expectations",
			result:   compiledResult(),
			scenario: &Scenario{},
		},
		{
			name:   "all match",
			result: compiledResult(),
			scenario: &Scenario{Expect: &ExpectClause{
				SQL:    "SELECT [t0].[FirstName]\n  FROM [Cook] AS [t0]\n  WHERE ([t0].[ID] = ?)",
				Params: []any{2},
				Rows:   [][]any{{"Linguini"}},
			}},
		},
		{
			name:      "sql differs",
			result:    compiledResult(),
			scenario:  &Scenario{Expect: &ExpectClause{SQL: "SELECT [t0].[ID] FROM [Cook] AS [t0]"}},
			wantTypes: []string{ExpectSQL},
		},
		{
			name:      "param count differs",
			result:    compiledResult(),
			scenario:  &Scenario{Expect: &ExpectClause{Params: []any{2, 3}}},
			wantTypes: []string{ExpectParams},
		},
		{
			name:      "row value differs",
			result:    compiledResult(),
			scenario:  &Scenario{Expect: &ExpectClause{Rows: [][]any{{"Remy"}}}},
			wantTypes: []string{ExpectRows},
		},
		{
			name:      "row count differs",
			result:    compiledResult(),
			scenario:  &Scenario{Expect: &ExpectClause{Rows: [][]any{{"Linguini"}, {"Remy"}}}},
			wantTypes: []string{ExpectRows},
		},
		{
			name: "rows expected but not executed",
			result: func() *Result {
				r := compiledResult()
				r.Rows = nil
				return r
			}(),
			scenario:  &Scenario{Expect: &ExpectClause{Rows: [][]any{{"Linguini"}}}},
			wantTypes: []string{ExpectRows},
		},
		{
			name:      "error expected, resolution succeeded",
			result:    compiledResult(),
			scenario:  &Scenario{ExpectError: "UNSUPPORTED_SHAPE"},
			wantTypes: []string{ExpectFails},
		},
		{
			name:      "different error code",
			result:    &Result{ErrorCode: "SCHEMA_RESOLUTION", Error: "no column"},
			scenario:  &Scenario{ExpectError: "UNSUPPORTED_SHAPE"},
			wantTypes: []string{ExpectFails},
		},
		{
			name:     "expected error code",
			result:   &Result{ErrorCode: "UNSUPPORTED_SHAPE", Error: "no rule"},
			scenario: &Scenario{ExpectError: "UNSUPPORTED_SHAPE"},
		},
		{
			name:      "unexpected error",
			result:    &Result{ErrorCode: "SCHEMA_RESOLUTION", Error: "no column"},
			scenario:  &Scenario{},
			wantTypes: []string{ExpectResolves},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			errs := EvaluateExpectations(tc.result, tc.scenario)
			require.Len(t, errs, len(tc.wantTypes), "errors: %v", errs)
			for i, typ := range tc.wantTypes {
				assert.Contains(t, errs[i], "Assertion failed: "+typ)
			}
		})
	}
}

func TestValuesEqual(t *testing.T) {
	hired := time.Date(2007, 6, 29, 9, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"yaml int vs int64", 2, int64(2), true},
		{"int mismatch", 2, int64(3), false},
		{"whole float read as int", 1500.0, int64(1500), true},
		{"int vs float", 3, 3.0, true},
		{"float", 3200.5, 3200.5, true},
		{"bool vs stored int", true, int64(1), true},
		{"false vs stored int", false, int64(0), true},
		{"bool mismatch", true, int64(0), false},
		{"int vs bool", 1, true, true},
		{"bool vs bool", false, false, true},
		{"strings", "Remy", "Remy", true},
		{"string mismatch", "Remy", "Colette", false},
		{"string vs int", "1", int64(1), false},
		{"time as text", "2007-06-29 09:00:00", hired, true},
		{"time mismatch", "2007-06-30 09:00:00", hired, false},
		{"both nil", nil, nil, true},
		{"nil vs value", nil, int64(0), false},
		{"value vs nil", "x", nil, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, valuesEqual(tc.expected, tc.actual))
		})
	}
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     ExpectRows,
		Expected: "row 0 column FirstName: Remy",
		Actual:   "Colette (string)",
		SQL:      "SELECT [t0].[FirstName] FROM [Cook] AS [t0]",
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: rows")
	assert.Contains(t, msg, "Expected: row 0 column FirstName: Remy")
	assert.Contains(t, msg, "Actual: Colette (string)")
	assert.Contains(t, msg, "Compiled SQL:\n  SELECT [t0].[FirstName] FROM [Cook] AS [t0]")

	noSQL := &AssertionError{Type: ExpectResolves, Expected: "a", Actual: "b"}
	assert.NotContains(t, noSQL.Error(), "Compiled SQL")
}
