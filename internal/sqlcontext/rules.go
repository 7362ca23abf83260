package sqlcontext

import "github.com/roach88/qbind/internal/sqlir"

// rewrite applies the node-specific rule: children are visited first with
// the context the operator requires of them, then the node is rebuilt.
func (n *Normalizer) rewrite(e sqlir.Expression, sctx sqlir.SqlExpressionContext, top bool) (sqlir.Expression, error) {
	switch x := e.(type) {
	case *sqlir.ConvertedBoolean:
		// Already converted; never re-contextualized.
		return x, nil

	case *sqlir.Constant:
		if !x.T.IsBool() {
			return x, nil
		}
		return &sqlir.ConvertedBoolean{Inner: boolLiteral(x)}, nil

	case *sqlir.Column:
		if !x.T.IsBool() {
			return x, nil
		}
		return &sqlir.ConvertedBoolean{Inner: x.Retype(sqlir.Int)}, nil

	case *sqlir.Entity:
		switch sctx {
		case sqlir.SingleValueRequired:
			if x.PrimaryKey == nil {
				return nil, sqlir.NewUnsupportedShapeError(x, "entity %s has no primary key", x.T.Name)
			}
			return x.PrimaryKey, nil
		case sqlir.PredicateRequired:
			return nil, sqlir.NewUnsupportedShapeError(x, "entity %s cannot be used as a predicate", x.T.Name)
		}
		return x, nil

	case *sqlir.EntityConstant:
		switch sctx {
		case sqlir.SingleValueRequired:
			return n.apply(x.PrimaryKey, sqlir.SingleValueRequired, false)
		case sqlir.PredicateRequired:
			return nil, sqlir.NewUnsupportedShapeError(x, "entity constant cannot be used as a predicate")
		}
		return x, nil

	case *sqlir.EntityRefMember:
		return n.navigation(x, sctx)

	case *sqlir.Named:
		// Materialization descends into projected names at the top level.
		inner, err := n.apply(x.Inner, sqlir.ValueRequired, top)
		if err != nil {
			return nil, err
		}
		if entity, ok := inner.(*sqlir.Entity); ok {
			// Entities describe their own columns; the slot still decides
			// whether the whole row or its key is wanted.
			return n.rewrite(entity, sctx, top)
		}
		if inner == x.Inner {
			return x, nil
		}
		return &sqlir.Named{Name: x.Name, Inner: inner}, nil

	case *sqlir.New:
		if sctx != sqlir.ValueRequired {
			return nil, sqlir.NewUnsupportedShapeError(x, "tuple %s cannot be used as %s", x.Ctor, sctx)
		}
		return sqlir.MapChildren(x, func(arg sqlir.Expression) (sqlir.Expression, error) {
			return n.apply(arg, sqlir.ValueRequired, top)
		})

	case *sqlir.SubStatement:
		if sctx == sqlir.PredicateRequired {
			return nil, sqlir.NewUnsupportedShapeError(x, "a sub-statement cannot be used as a predicate")
		}
		stmt, err := n.ApplySelectionContext(x.Statement, sctx)
		if err != nil {
			return nil, err
		}
		if stmt == x.Statement {
			return x, nil
		}
		return &sqlir.SubStatement{Statement: stmt}, nil

	case *sqlir.Case:
		test, err := n.apply(x.Test, sqlir.PredicateRequired, false)
		if err != nil {
			return nil, err
		}
		then, err := n.apply(x.Then, sqlir.SingleValueRequired, false)
		if err != nil {
			return nil, err
		}
		els, err := n.apply(x.Else, sqlir.SingleValueRequired, false)
		if err != nil {
			return nil, err
		}
		return convertBoolResult(x.T, func(t sqlir.Type) sqlir.Expression {
			return &sqlir.Case{Test: test, Then: then, Else: els, T: t}
		}), nil

	case *sqlir.IsNull, *sqlir.IsNotNull:
		return sqlir.MapChildren(x, n.singleValue)

	case *sqlir.Binary:
		return n.binary(x)

	case *sqlir.Unary:
		return n.unary(x)

	case *sqlir.Aggregation:
		if x.Arg == nil {
			return x, nil
		}
		arg, err := n.singleValue(x.Arg)
		if err != nil {
			return nil, err
		}
		return convertBoolResult(x.T, func(t sqlir.Type) sqlir.Expression {
			return &sqlir.Aggregation{Func: x.Func, Arg: arg, T: t}
		}), nil

	case *sqlir.Function:
		args := make([]sqlir.Expression, len(x.Args))
		for i, arg := range x.Args {
			a, err := n.singleValue(arg)
			if err != nil {
				return nil, err
			}
			args[i] = a
		}
		return convertBoolResult(x.T, func(t sqlir.Type) sqlir.Expression {
			return &sqlir.Function{Name: x.Name, Args: args, T: t}
		}), nil

	case *sqlir.GroupingSelect:
		return n.grouping(x, sctx)

	case *sqlir.MemberAccess, *sqlir.TypeCheck, *sqlir.TableReference:
		return nil, sqlir.NewInternalConsistencyError(x, "unresolved node reached context normalization")

	default:
		return nil, sqlir.NewUnsupportedShapeError(e, "no context rule for %T", e)
	}
}

func (n *Normalizer) singleValue(e sqlir.Expression) (sqlir.Expression, error) {
	return n.apply(e, sqlir.SingleValueRequired, false)
}

func (n *Normalizer) predicate(e sqlir.Expression) (sqlir.Expression, error) {
	return n.apply(e, sqlir.PredicateRequired, false)
}

func (n *Normalizer) binary(b *sqlir.Binary) (sqlir.Expression, error) {
	childContext := n.singleValue
	switch b.Op {
	case sqlir.OpAndAlso, sqlir.OpOrElse:
		childContext = n.predicate
	case sqlir.OpAnd, sqlir.OpOr, sqlir.OpExclusiveOr:
		if b.T.IsBool() {
			childContext = n.predicate
		}
	}

	left, err := childContext(b.Left)
	if err != nil {
		return nil, err
	}
	right, err := childContext(b.Right)
	if err != nil {
		return nil, err
	}

	if b.Op.IsComparison() || (b.T.IsBool() && isLogical(b.Op)) {
		return &sqlir.Binary{Op: b.Op, Left: left, Right: right, T: sqlir.Bool}, nil
	}
	return convertBoolResult(b.T, func(t sqlir.Type) sqlir.Expression {
		return &sqlir.Binary{Op: b.Op, Left: left, Right: right, T: t}
	}), nil
}

func isLogical(op sqlir.BinaryOp) bool {
	switch op {
	case sqlir.OpAndAlso, sqlir.OpOrElse, sqlir.OpAnd, sqlir.OpOr, sqlir.OpExclusiveOr:
		return true
	}
	return false
}

func (n *Normalizer) unary(u *sqlir.Unary) (sqlir.Expression, error) {
	switch u.Op {
	case sqlir.OpNot:
		operand, err := n.predicate(u.Operand)
		if err != nil {
			return nil, err
		}
		return &sqlir.Unary{Op: sqlir.OpNot, Operand: operand, T: sqlir.Bool}, nil

	case sqlir.OpConvert:
		if u.Operand.Type().IsBool() || u.T.IsBool() {
			return nil, sqlir.NewUnsupportedShapeError(u, "conversion involving a boolean has no defined rule")
		}
	}

	operand, err := n.singleValue(u.Operand)
	if err != nil {
		return nil, err
	}
	return convertBoolResult(u.T, func(t sqlir.Type) sqlir.Expression {
		return &sqlir.Unary{Op: u.Op, Operand: operand, T: t}
	}), nil
}

// navigation lowers a navigation placeholder. A single value needs only
// the foreign key when the join targets the primary key, so no join is
// added in that case.
func (n *Normalizer) navigation(ref *sqlir.EntityRefMember, sctx sqlir.SqlExpressionContext) (sqlir.Expression, error) {
	if sctx == sqlir.PredicateRequired {
		return nil, sqlir.NewUnsupportedShapeError(ref, "navigation %s cannot be used as a predicate", ref.Member.Name)
	}

	join, err := n.nav.NavigationJoin(ref)
	if err != nil {
		return nil, err
	}
	if sctx == sqlir.SingleValueRequired {
		if key, ok := join.RightKey.(*sqlir.Column); ok && key.IsPrimaryKey {
			return join.LeftKey, nil
		}
	}

	entity, err := n.nav.JoinNavigation(ref, join)
	if err != nil {
		return nil, err
	}
	if sctx == sqlir.SingleValueRequired {
		return n.rewrite(entity, sctx, false)
	}
	return entity, nil
}

func (n *Normalizer) grouping(g *sqlir.GroupingSelect, sctx sqlir.SqlExpressionContext) (sqlir.Expression, error) {
	if sctx != sqlir.ValueRequired {
		return nil, sqlir.NewUnsupportedShapeError(g, "a grouping cannot be used as %s", sctx)
	}
	table, err := n.ctx.TableForGrouping(g)
	if err != nil {
		return nil, err
	}

	key, err := n.apply(g.Key, sqlir.ValueRequired, false)
	if err != nil {
		return nil, err
	}
	element, err := n.apply(g.Element, sqlir.ValueRequired, false)
	if err != nil {
		return nil, err
	}
	changed := key != g.Key || element != g.Element
	aggs := make([]*sqlir.Named, len(g.Aggregations))
	for i, agg := range g.Aggregations {
		inner, err := n.singleValue(agg.Inner)
		if err != nil {
			return nil, err
		}
		aggs[i] = agg
		if inner != agg.Inner {
			aggs[i] = &sqlir.Named{Name: agg.Name, Inner: inner}
			changed = true
		}
	}
	if !changed {
		return g, nil
	}

	// The rebuilt grouping stands for the same rows.
	out := &sqlir.GroupingSelect{Key: key, Element: element, Aggregations: aggs}
	n.ctx.AddGroupingMapping(out, table)
	return out, nil
}

// convertBoolResult builds a node and, when its original type is boolean,
// retypes it to integer and marks it as a converted boolean.
func convertBoolResult(t sqlir.Type, build func(sqlir.Type) sqlir.Expression) sqlir.Expression {
	if !t.IsBool() {
		return build(t)
	}
	return &sqlir.ConvertedBoolean{Inner: build(sqlir.Int)}
}

func boolLiteral(c *sqlir.Constant) *sqlir.Constant {
	switch v := c.Value.(type) {
	case bool:
		if v {
			return sqlir.NewConstant(int64(1), sqlir.Int)
		}
		return sqlir.NewConstant(int64(0), sqlir.Int)
	default:
		return sqlir.NewConstant(c.Value, sqlir.Int)
	}
}
