package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/qbind/internal/catalog"
	"github.com/roach88/qbind/internal/querysql"
	"github.com/roach88/qbind/internal/sqlir"
	"github.com/roach88/qbind/internal/stage"
	"github.com/roach88/qbind/internal/store"
	"github.com/roach88/qbind/internal/testutil"
	"github.com/roach88/qbind/internal/uniqueid"
)

// Harness runs scenarios with fresh aliases and a constant run id, so the
// compiled SQL and the captured logs are reproducible.
type Harness struct {
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger the resolution stage logs to.
// Default: a discarding logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default Harness.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Load the catalog (CUE directory, or a SQLite schema introspected in
//     a fresh in-memory database, seeded when the scenario has a seed)
//  2. Build the front-end statement
//  3. Resolve it through the stage and compile it to SQL
//  4. Run the SQL against the seeded database
//  5. Validate the expectations
//
// The returned error reports a broken scenario (missing files, a statement
// that does not type against the catalog). A resolution failure is part of
// the result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	cat, db, err := h.openCatalog(ctx, scenario)
	if err != nil {
		return nil, err
	}
	if db != nil {
		defer db.Close()
	}

	stmt, err := NewBuilder(cat).Build(scenario.Statement)
	if err != nil {
		return nil, fmt.Errorf("failed to build statement: %w", err)
	}

	result := NewResult()
	runIDs := testutil.NewConstantRunID(scenario.RunID)
	result.RunID = runIDs.Generate()

	stg := stage.New(catalog.NewResolver(cat), uniqueid.NewAliases(),
		stage.WithLogger(h.logger.With("scenario", scenario.Name)),
		stage.WithRunIDGenerator(runIDs),
	)

	if err := h.execute(ctx, stg, stmt, db, scenario.Seed != "", result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateExpectations(result, scenario) {
		result.AddError(msg)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"error_code", result.ErrorCode,
	)
	return result, nil
}

func (h *Harness) execute(ctx context.Context, stg *stage.Stage, stmt *sqlir.Statement, db *store.Store, seeded bool, result *Result) error {
	resolved, err := stg.Resolve(stmt)
	if err != nil {
		result.ErrorCode = string(sqlir.CodeOf(err))
		result.Error = err.Error()
		return nil
	}

	sql, params, err := querysql.NewSQLCompiler().Compile(resolved.Statement)
	if err != nil {
		result.ErrorCode = "COMPILE"
		result.Error = err.Error()
		return nil
	}
	result.SQL = sql
	result.Params = params

	if !seeded {
		return nil
	}
	rows, err := db.QueryRows(ctx, sql, params...)
	if err != nil {
		return fmt.Errorf("failed to execute compiled statement: %w", err)
	}
	result.Rows = rows
	return nil
}

// openCatalog loads the scenario's catalog. For a SQLite scenario it also
// returns the open database, which the caller closes.
func (h *Harness) openCatalog(ctx context.Context, scenario *Scenario) (*catalog.Catalog, *store.Store, error) {
	if scenario.Catalog != "" {
		cat, err := catalog.LoadDir(scenario.Catalog)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		return cat, nil, nil
	}

	db, err := store.Open(":memory:")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	for _, script := range []string{scenario.SQLite, scenario.Seed} {
		if script == "" {
			continue
		}
		ddl, err := os.ReadFile(script)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to read %s: %w", script, err)
		}
		if err := db.ApplySchema(ctx, string(ddl)); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%s: %w", script, err)
		}
	}

	cat, err := db.IntrospectCatalog(ctx)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to introspect catalog: %w", err)
	}
	return cat, db, nil
}
