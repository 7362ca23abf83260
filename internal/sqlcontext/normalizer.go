package sqlcontext

import (
	"github.com/roach88/qbind/internal/mapping"
	"github.com/roach88/qbind/internal/sqlir"
)

// Navigator resolves navigation placeholders met during normalization.
// It is implemented by resolve.Resolver.
type Navigator interface {
	// NavigationJoin returns the join behind ref without adding it.
	NavigationJoin(ref *sqlir.EntityRefMember) (*sqlir.ResolvedJoin, error)
	// JoinNavigation adds the join and returns the navigated entity.
	JoinNavigation(ref *sqlir.EntityRefMember, join *sqlir.ResolvedJoin) (*sqlir.Entity, error)
}

// Normalizer applies slot contexts to resolved trees for one resolution
// call.
type Normalizer struct {
	nav Navigator
	ctx *mapping.Context
}

// New creates a Normalizer bound to a resolution call.
func New(nav Navigator, ctx *mapping.Context) *Normalizer {
	return &Normalizer{nav: nav, ctx: ctx}
}

// ApplyContext normalizes e for a slot requiring sctx. A nil expression
// (absent optional slot) stays nil.
func (n *Normalizer) ApplyContext(e sqlir.Expression, sctx sqlir.SqlExpressionContext) (sqlir.Expression, error) {
	return n.apply(e, sctx, true)
}

// ApplySelectionContext normalizes the projection of stmt and recomputes its
// declared result shape. A statement is never a predicate.
func (n *Normalizer) ApplySelectionContext(stmt *sqlir.Statement, sctx sqlir.SqlExpressionContext) (*sqlir.Statement, error) {
	if sctx == sqlir.PredicateRequired {
		return nil, sqlir.NewUnsupportedShapeError(stmt, "a statement cannot be used as a predicate")
	}

	projection, err := n.apply(stmt.Projection, sctx, true)
	if err != nil {
		return nil, err
	}
	if projection == stmt.Projection {
		return stmt, nil
	}

	out := stmt.Clone()
	out.Projection = projection
	out.DataInfo = stmt.DataInfo.Adjust(projection.Type())
	return out, nil
}

// ApplyTableContext normalizes the statements a table source embeds.
func (n *Normalizer) ApplyTableContext(source sqlir.TableSource, sctx sqlir.SqlExpressionContext) (sqlir.TableSource, error) {
	switch s := source.(type) {
	case *sqlir.SubStatementTable:
		stmt, err := n.ApplySelectionContext(s.Statement, sctx)
		if err != nil {
			return nil, err
		}
		if stmt == s.Statement {
			return s, nil
		}
		return &sqlir.SubStatementTable{Alias: s.Alias, Statement: stmt}, nil

	case *sqlir.JoinedTable:
		join, err := n.ApplyJoinContext(s.Join, sctx)
		if err != nil {
			return nil, err
		}
		if join == s.Join {
			return s, nil
		}
		return &sqlir.JoinedTable{Join: join}, nil

	default:
		return source, nil
	}
}

// ApplyJoinContext normalizes the foreign side of a resolved join. The
// foreign table always receives ValueRequired: its rows are consumed whole.
func (n *Normalizer) ApplyJoinContext(join sqlir.JoinInfo, _ sqlir.SqlExpressionContext) (sqlir.JoinInfo, error) {
	resolved, ok := join.(*sqlir.ResolvedJoin)
	if !ok {
		return join, nil
	}
	foreign, err := n.ApplyTableContext(resolved.Foreign, sqlir.ValueRequired)
	if err != nil {
		return nil, err
	}
	if foreign == resolved.Foreign {
		return resolved, nil
	}
	return &sqlir.ResolvedJoin{Foreign: foreign, LeftKey: resolved.LeftKey, RightKey: resolved.RightKey}, nil
}

func (n *Normalizer) apply(e sqlir.Expression, sctx sqlir.SqlExpressionContext, top bool) (sqlir.Expression, error) {
	if e == nil {
		return nil, nil
	}
	rewritten, err := n.rewrite(e, sctx, top)
	if err != nil {
		return nil, err
	}
	return finalize(rewritten, sctx, top)
}

// finalize converts the rewritten node to the shape sctx requires.
//
// CRITICAL: a ConvertedBoolean is an integer and passes through value slots
// raw. Only the outermost call of a ValueRequired slot materializes it as
// two-valued output; nested values (e.g. ORDER BY operands) keep the raw
// integer.
func finalize(e sqlir.Expression, sctx sqlir.SqlExpressionContext, top bool) (sqlir.Expression, error) {
	switch sctx {
	case sqlir.SingleValueRequired:
		if e.Type().IsBool() {
			return &sqlir.ConvertedBoolean{Inner: sqlir.NewBooleanCase(e)}, nil
		}
		return e, nil

	case sqlir.ValueRequired:
		if e.Type().IsBool() {
			return &sqlir.ConvertedBoolean{Inner: sqlir.NewBooleanCase(e)}, nil
		}
		if cb, ok := e.(*sqlir.ConvertedBoolean); ok && top && !isBooleanCase(cb.Inner) {
			return &sqlir.ConvertedBoolean{Inner: sqlir.NewBooleanCase(equalsOne(cb.Inner))}, nil
		}
		return e, nil

	case sqlir.PredicateRequired:
		if e.Type().IsBool() {
			return e, nil
		}
		if cb, ok := e.(*sqlir.ConvertedBoolean); ok {
			if c, ok := cb.Inner.(*sqlir.Case); ok && isBooleanCase(c) {
				return c.Test, nil
			}
			return equalsOne(cb.Inner), nil
		}
		if e.Type().Kind == sqlir.KindInt {
			return equalsOne(e), nil
		}
		return nil, sqlir.NewUnsupportedShapeError(e, "%s cannot be used as a predicate", e.Type())

	default:
		return nil, sqlir.NewInternalConsistencyError(e, "unknown expression context %d", sctx)
	}
}

// isBooleanCase reports whether e is CASE WHEN p THEN 1 ELSE 0 END.
func isBooleanCase(e sqlir.Expression) bool {
	c, ok := e.(*sqlir.Case)
	if !ok {
		return false
	}
	return isIntConstant(c.Then, 1) && isIntConstant(c.Else, 0)
}

func isIntConstant(e sqlir.Expression, want int64) bool {
	c, ok := e.(*sqlir.Constant)
	if !ok || c.T.Kind != sqlir.KindInt {
		return false
	}
	v, ok := c.Value.(int64)
	return ok && v == want
}

func equalsOne(e sqlir.Expression) sqlir.Expression {
	return sqlir.NewBinary(sqlir.OpEqual, e, sqlir.NewConstant(int64(1), sqlir.Int))
}
