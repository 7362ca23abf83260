package resolve

import "github.com/roach88/qbind/internal/sqlir"

func (r *Resolver) resolveBinary(b *sqlir.Binary) (sqlir.Expression, error) {
	left, err := r.Resolve(b.Left)
	if err != nil {
		return nil, err
	}
	right, err := r.Resolve(b.Right)
	if err != nil {
		return nil, err
	}

	if b.Op == sqlir.OpEqual || b.Op == sqlir.OpNotEqual {
		return r.equality(b.Op, left, right, b)
	}

	if left == b.Left && right == b.Right {
		return b, nil
	}
	return &sqlir.Binary{Op: b.Op, Left: left, Right: right, T: b.T}, nil
}

// equality lowers an (in)equality between resolved operands.
//
// Tuples are compared member by member: Equal becomes a conjunction of
// per-member Equals, NotEqual a disjunction of per-member NotEquals.
// Comparison against a null constant becomes IsNull/IsNotNull.
// orig is reused when nothing changed; it may be nil.
func (r *Resolver) equality(op sqlir.BinaryOp, left, right sqlir.Expression, orig *sqlir.Binary) (sqlir.Expression, error) {
	_, leftTuple := left.(*sqlir.New)
	_, rightTuple := right.(*sqlir.New)
	if leftTuple || rightTuple {
		return r.expandTupleComparison(op, left, right)
	}

	switch {
	case isNullConstant(right) && !isNullConstant(left):
		return nullCheck(op, left), nil
	case isNullConstant(left) && !isNullConstant(right):
		return nullCheck(op, right), nil
	}

	if orig != nil && left == orig.Left && right == orig.Right {
		return orig, nil
	}
	return sqlir.NewBinary(op, left, right), nil
}

func (r *Resolver) expandTupleComparison(op sqlir.BinaryOp, left, right sqlir.Expression) (sqlir.Expression, error) {
	l, lok := left.(*sqlir.New)
	rt, rok := right.(*sqlir.New)
	if !lok || !rok {
		return nil, sqlir.NewUnsupportedShapeError(left,
			"tuple compared with a non-tuple value (%s %s %s)", left.Type(), op, right.Type())
	}
	if l.Ctor != rt.Ctor || len(l.Args) != len(rt.Args) {
		return nil, sqlir.NewUnsupportedShapeError(l,
			"tuple comparison between different constructors %s and %s", l.Ctor, rt.Ctor)
	}

	combine := sqlir.OpAndAlso
	if op == sqlir.OpNotEqual {
		combine = sqlir.OpOrElse
	}

	var result sqlir.Expression
	for i := range l.Args {
		term, err := r.equality(op, l.Args[i], rt.Args[i], nil)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = term
			continue
		}
		result = sqlir.NewBinary(combine, result, term)
	}

	if result == nil {
		// Empty tuples are always equal.
		return sqlir.NewConstant(op == sqlir.OpEqual, sqlir.Bool), nil
	}
	return result, nil
}

func isNullConstant(e sqlir.Expression) bool {
	c, ok := e.(*sqlir.Constant)
	return ok && c.Value == nil
}

func nullCheck(op sqlir.BinaryOp, operand sqlir.Expression) sqlir.Expression {
	if op == sqlir.OpEqual {
		return &sqlir.IsNull{Inner: operand}
	}
	return &sqlir.IsNotNull{Inner: operand}
}
