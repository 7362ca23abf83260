// Package stage is the resolution facade: per statement clause it runs
// structural resolution and then normalizes the result to the clause's
// natural context.
//
//	select            → ValueRequired
//	where             → PredicateRequired
//	ordering, top     → SingleValueRequired
//	table, join       → ValueRequired
//
// Resolve is the single top-level entry point; the per-clause methods are
// the surface nested resolution recurses through and take the call's
// mapping.Context explicitly.
package stage

import (
	"log/slog"

	"github.com/roach88/qbind/internal/mapping"
	"github.com/roach88/qbind/internal/resolve"
	"github.com/roach88/qbind/internal/sqlcontext"
	"github.com/roach88/qbind/internal/sqlir"
	"github.com/roach88/qbind/internal/uniqueid"
)

// Stage orchestrates structural resolution and context normalization.
//
// Thread-safety: a Stage holds no per-call state and may serve concurrent
// Resolve calls provided its SchemaResolver and AliasGenerator are safe for
// concurrent use. Each call gets its own mapping.Context.
type Stage struct {
	schema  resolve.SchemaResolver
	aliases resolve.AliasGenerator
	runIDs  uniqueid.RunIDGenerator
	logger  *slog.Logger
}

// Option configures a Stage.
type Option func(*Stage)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stage) {
		s.logger = logger
	}
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7.
// Use uniqueid.NewFixedGenerator in tests for deterministic log output.
func WithRunIDGenerator(gen uniqueid.RunIDGenerator) Option {
	return func(s *Stage) {
		s.runIDs = gen
	}
}

// New creates a Stage over a schema and an alias supplier.
func New(schema resolve.SchemaResolver, aliases resolve.AliasGenerator, opts ...Option) *Stage {
	s := &Stage{
		schema:  schema,
		aliases: aliases,
		runIDs:  uniqueid.UUIDv7Generator{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is the outcome of a top-level resolution.
type Result struct {
	// RunID tags every log line of the call.
	RunID string

	// Statement is the fully resolved and normalized statement.
	Statement *sqlir.Statement

	// Mapping is the call's side-table, kept for inspection. It must not
	// be used to resolve another statement.
	Mapping *mapping.Context
}

// Resolve fully resolves a front-end statement: tables, joins and all four
// slots, then the projection under ValueRequired.
//
// Resolution is all-or-nothing. On error no partial statement is returned.
func (s *Stage) Resolve(stmt *sqlir.Statement) (*Result, error) {
	runID := s.runIDs.Generate()
	logger := s.logger.With("run_id", runID)
	ctx := mapping.NewContext()

	logger.Debug("resolution starting", "tables", len(stmt.Tables))

	resolved, err := s.ResolveSqlStatement(stmt, ctx)
	if err == nil {
		resolved, err = s.ApplySelectionContext(resolved, sqlir.ValueRequired, ctx)
	}
	if err != nil {
		logger.Error("resolution failed", "code", string(sqlir.CodeOf(err)), "error", err)
		return nil, err
	}

	entities, groupings := ctx.Len()
	logger.Debug("resolution finished",
		"tables", len(resolved.Tables),
		"entities", entities,
		"groupings", groupings,
	)
	if check := sqlir.CheckResolved(resolved); !check.IsResolved {
		logger.Warn("placeholders left after resolution", "leftovers", check.Leftovers)
	}

	return &Result{RunID: runID, Statement: resolved, Mapping: ctx}, nil
}

// ResolveSqlStatement resolves the tables, joins and all four slots of
// stmt. WHERE, ORDER BY and TOP receive their contexts; the projection is
// resolved structurally only, because its context depends on where the
// statement is embedded.
func (s *Stage) ResolveSqlStatement(stmt *sqlir.Statement, ctx *mapping.Context) (*sqlir.Statement, error) {
	out := stmt.Clone()

	// Tables first, in order: later tables and every slot may reference
	// earlier tables.
	for i, table := range stmt.Tables {
		resolved, err := s.resolveTable(table, ctx)
		if err != nil {
			return nil, err
		}
		out.Tables[i] = resolved
	}

	leave := ctx.EnterStatement(out.Tables)
	defer leave()

	projection, err := s.resolver(ctx).Resolve(stmt.Projection)
	if err != nil {
		return nil, err
	}
	out.Projection = projection

	if out.Where, err = s.ResolveWhereExpression(stmt.Where, ctx); err != nil {
		return nil, err
	}
	for i, ordering := range stmt.Orderings {
		expr, err := s.ResolveOrderingExpression(ordering.Expression, ctx)
		if err != nil {
			return nil, err
		}
		out.Orderings[i] = sqlir.Ordering{Expression: expr, Direction: ordering.Direction}
	}
	if out.Top, err = s.ResolveTopExpression(stmt.Top, ctx); err != nil {
		return nil, err
	}

	return out, nil
}

// resolveTable creates the resolved identity of an input table, including
// joins the input already carries, and records input → resolved.
func (s *Stage) resolveTable(table *sqlir.SqlTable, ctx *mapping.Context) (*sqlir.SqlTable, error) {
	source, err := s.ResolveTableInfo(table.Source, ctx)
	if err != nil {
		return nil, err
	}
	resolved := sqlir.NewSqlTable(source, table.Semantics)
	ctx.AddTableMapping(table, resolved)

	members := table.JoinMembers()
	for i, joined := range table.Joins() {
		src, ok := joined.Source.(*sqlir.JoinedTable)
		if !ok {
			return nil, sqlir.NewInternalConsistencyError(joined, "join table without join info")
		}
		join, err := s.ResolveJoinInfo(src.Join, ctx)
		if err != nil {
			return nil, err
		}
		ctx.AddTableMapping(joined, resolved.GetOrAddLeftJoin(join, members[i]))
	}
	return resolved, nil
}

// ResolveSelectExpression resolves a projection for a value slot.
func (s *Stage) ResolveSelectExpression(expr sqlir.Expression, ctx *mapping.Context) (sqlir.Expression, error) {
	return s.resolveExpression(expr, sqlir.ValueRequired, ctx)
}

// ResolveWhereExpression resolves a filter. nil stays nil.
func (s *Stage) ResolveWhereExpression(expr sqlir.Expression, ctx *mapping.Context) (sqlir.Expression, error) {
	return s.resolveExpression(expr, sqlir.PredicateRequired, ctx)
}

// ResolveOrderingExpression resolves one ORDER BY term.
func (s *Stage) ResolveOrderingExpression(expr sqlir.Expression, ctx *mapping.Context) (sqlir.Expression, error) {
	return s.resolveExpression(expr, sqlir.SingleValueRequired, ctx)
}

// ResolveTopExpression resolves a row limit. nil stays nil.
func (s *Stage) ResolveTopExpression(expr sqlir.Expression, ctx *mapping.Context) (sqlir.Expression, error) {
	return s.resolveExpression(expr, sqlir.SingleValueRequired, ctx)
}

func (s *Stage) resolveExpression(expr sqlir.Expression, sctx sqlir.SqlExpressionContext, ctx *mapping.Context) (sqlir.Expression, error) {
	if expr == nil {
		return nil, nil
	}
	resolved, err := s.resolver(ctx).Resolve(expr)
	if err != nil {
		return nil, err
	}
	return s.ApplyContext(resolved, sctx, ctx)
}

// ResolveTableInfo resolves a table source and normalizes any statement it
// embeds under ValueRequired.
func (s *Stage) ResolveTableInfo(source sqlir.TableSource, ctx *mapping.Context) (sqlir.TableSource, error) {
	resolved, err := s.resolver(ctx).ResolveTableInfo(source)
	if err != nil {
		return nil, err
	}
	return s.normalizer(ctx).ApplyTableContext(resolved, sqlir.ValueRequired)
}

// ResolveJoinInfo resolves a join and normalizes its foreign side under
// ValueRequired.
func (s *Stage) ResolveJoinInfo(join sqlir.JoinInfo, ctx *mapping.Context) (sqlir.JoinInfo, error) {
	resolved, err := s.resolver(ctx).ResolveJoinInfo(join)
	if err != nil {
		return nil, err
	}
	return s.normalizer(ctx).ApplyJoinContext(resolved, sqlir.ValueRequired)
}

// ResolveEntityRefMember joins through a navigation placeholder and returns
// the navigated entity.
func (s *Stage) ResolveEntityRefMember(ref *sqlir.EntityRefMember, ctx *mapping.Context) (*sqlir.Entity, error) {
	return s.resolver(ctx).ResolveEntityRefMember(ref)
}

// ApplyContext normalizes a resolved expression for sctx.
func (s *Stage) ApplyContext(expr sqlir.Expression, sctx sqlir.SqlExpressionContext, ctx *mapping.Context) (sqlir.Expression, error) {
	return s.normalizer(ctx).ApplyContext(expr, sctx)
}

// ApplySelectionContext normalizes the projection of a resolved statement.
func (s *Stage) ApplySelectionContext(stmt *sqlir.Statement, sctx sqlir.SqlExpressionContext, ctx *mapping.Context) (*sqlir.Statement, error) {
	return s.normalizer(ctx).ApplySelectionContext(stmt, sctx)
}

// ApplyTableContext normalizes the statements embedded in a table source.
func (s *Stage) ApplyTableContext(source sqlir.TableSource, sctx sqlir.SqlExpressionContext, ctx *mapping.Context) (sqlir.TableSource, error) {
	return s.normalizer(ctx).ApplyTableContext(source, sctx)
}

// ApplyJoinContext normalizes the foreign side of a join.
func (s *Stage) ApplyJoinContext(join sqlir.JoinInfo, sctx sqlir.SqlExpressionContext, ctx *mapping.Context) (sqlir.JoinInfo, error) {
	return s.normalizer(ctx).ApplyJoinContext(join, sctx)
}

func (s *Stage) resolver(ctx *mapping.Context) *resolve.Resolver {
	return resolve.New(s, s.schema, s.aliases, ctx)
}

func (s *Stage) normalizer(ctx *mapping.Context) *sqlcontext.Normalizer {
	return sqlcontext.New(s.resolver(ctx), ctx)
}

var _ resolve.Stage = (*Stage)(nil)
