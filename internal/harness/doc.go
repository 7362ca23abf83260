// Package harness provides scenario testing for the resolution stage.
//
// The harness loads a mapping catalog, builds one front-end statement,
// resolves and compiles it, and checks the outcome against the scenario's
// expectations. Against a seeded SQLite schema it also runs the compiled
// SQL and checks the returned rows.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: starred_cooks
//	description: "What this scenario validates"
//	sqlite: ../sqlite/kitchen.sql   # or catalog: ../catalogs/kitchen
//	seed: ../sqlite/seed.sql
//	statement:
//	  from:
//	    - {name: c, entity: Cook}
//	  where: c.IsStarredCook
//	  select: c.FirstName
//	  order_by:
//	    - {expr: c.FirstName}
//	expect:
//	  sql: SELECT [t0].[FirstName] FROM [Cook] AS [t0] ...
//	  params: []
//	  rows:
//	    - [Colette]
//	    - [Remy]
//
// A scenario expecting resolution to fail names the error code instead:
//
//	expect_error: SCHEMA_RESOLUTION
//
// See StatementSpec for the statement expression syntax.
//
// # Deterministic Testing
//
// Every run uses fresh table aliases (t0, t1, ... and q0, ...), a constant
// run id and an isolated in-memory SQLite database, so the compiled SQL is
// identical across runs and suitable for golden snapshot comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/starred_cooks.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
