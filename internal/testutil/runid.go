// Package testutil provides fixtures shared by the package tests: a kitchen
// mapping catalog, tree builders and deterministic identifier sources.
package testutil

// ConstantRunID returns the same run id for every resolution.
//
// Scenarios resolve a single statement, but the harness may re-run them;
// a constant id keeps the captured log output byte-identical across runs.
//
// Unlike uniqueid.FixedGenerator, which returns ids in sequence and panics
// when exhausted, ConstantRunID never runs out.
//
// Thread-safety: ConstantRunID is stateless and safe for concurrent use.
type ConstantRunID struct {
	id string
}

// NewConstantRunID creates a constant run id source.
//
// If id is empty, Generate returns "test-run-default".
func NewConstantRunID(id string) *ConstantRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &ConstantRunID{id: id}
}

// Generate returns the constant run id.
//
// Implements uniqueid.RunIDGenerator.
func (g *ConstantRunID) Generate() string {
	return g.id
}
