package sqlir

// MapChildren returns e with every direct expression child replaced by
// fn(child). Nested statements (SubStatement) and leaves are not entered.
// When fn returns every child unchanged, e itself is returned so unchanged
// subtrees stay shared.
func MapChildren(e Expression, fn func(Expression) (Expression, error)) (Expression, error) {
	switch n := e.(type) {
	case *Named:
		inner, err := fn(n.Inner)
		if err != nil {
			return nil, err
		}
		if inner == n.Inner {
			return n, nil
		}
		return &Named{Name: n.Name, Inner: inner}, nil

	case *Case:
		exprs, changed, err := mapAll(fn, n.Test, n.Then, n.Else)
		if err != nil || !changed {
			return n, err
		}
		return &Case{Test: exprs[0], Then: exprs[1], Else: exprs[2], T: n.T}, nil

	case *IsNull:
		inner, err := fn(n.Inner)
		if err != nil {
			return nil, err
		}
		if inner == n.Inner {
			return n, nil
		}
		return &IsNull{Inner: inner}, nil

	case *IsNotNull:
		inner, err := fn(n.Inner)
		if err != nil {
			return nil, err
		}
		if inner == n.Inner {
			return n, nil
		}
		return &IsNotNull{Inner: inner}, nil

	case *Aggregation:
		if n.Arg == nil {
			return n, nil
		}
		arg, err := fn(n.Arg)
		if err != nil {
			return nil, err
		}
		if arg == n.Arg {
			return n, nil
		}
		return &Aggregation{Func: n.Func, Arg: arg, T: n.T}, nil

	case *Function:
		args, changed, err := mapAll(fn, n.Args...)
		if err != nil || !changed {
			return n, err
		}
		return &Function{Name: n.Name, Args: args, T: n.T}, nil

	case *Binary:
		exprs, changed, err := mapAll(fn, n.Left, n.Right)
		if err != nil || !changed {
			return n, err
		}
		return &Binary{Op: n.Op, Left: exprs[0], Right: exprs[1], T: n.T}, nil

	case *Unary:
		operand, err := fn(n.Operand)
		if err != nil {
			return nil, err
		}
		if operand == n.Operand {
			return n, nil
		}
		return &Unary{Op: n.Op, Operand: operand, T: n.T}, nil

	case *New:
		args, changed, err := mapAll(fn, n.Args...)
		if err != nil || !changed {
			return n, err
		}
		return &New{Ctor: n.Ctor, Members: n.Members, Args: args, T: n.T}, nil

	case *MemberAccess:
		source, err := fn(n.Source)
		if err != nil {
			return nil, err
		}
		if source == n.Source {
			return n, nil
		}
		return &MemberAccess{Source: source, Member: n.Member}, nil

	case *TypeCheck:
		operand, err := fn(n.Operand)
		if err != nil {
			return nil, err
		}
		if operand == n.Operand {
			return n, nil
		}
		return &TypeCheck{Operand: operand, Target: n.Target}, nil

	case *EntityConstant:
		pk, err := fn(n.PrimaryKey)
		if err != nil {
			return nil, err
		}
		if pk == n.PrimaryKey {
			return n, nil
		}
		return &EntityConstant{T: n.T, PrimaryKey: pk}, nil

	case *ConvertedBoolean:
		inner, err := fn(n.Inner)
		if err != nil {
			return nil, err
		}
		if inner == n.Inner {
			return n, nil
		}
		return &ConvertedBoolean{Inner: inner}, nil

	case *GroupingSelect:
		exprs, changed, err := mapAll(fn, n.Key, n.Element)
		if err != nil {
			return nil, err
		}
		aggs := make([]*Named, len(n.Aggregations))
		for i, a := range n.Aggregations {
			inner, err := fn(a.Inner)
			if err != nil {
				return nil, err
			}
			aggs[i] = a
			if inner != a.Inner {
				aggs[i] = &Named{Name: a.Name, Inner: inner}
				changed = true
			}
		}
		if !changed {
			return n, nil
		}
		return &GroupingSelect{Key: exprs[0], Element: exprs[1], Aggregations: aggs}, nil

	default:
		// Leaves: Constant, Column, Entity, EntityRefMember, TableReference, SubStatement
		return e, nil
	}
}

// Transform rewrites e bottom-up: children first, then fn on the rebuilt node.
func Transform(e Expression, fn func(Expression) (Expression, error)) (Expression, error) {
	mapped, err := MapChildren(e, func(child Expression) (Expression, error) {
		return Transform(child, fn)
	})
	if err != nil {
		return nil, err
	}
	return fn(mapped)
}

func mapAll(fn func(Expression) (Expression, error), exprs ...Expression) ([]Expression, bool, error) {
	out := make([]Expression, len(exprs))
	changed := false
	for i, e := range exprs {
		m, err := fn(e)
		if err != nil {
			return nil, false, err
		}
		out[i] = m
		if m != e {
			changed = true
		}
	}
	return out, changed, nil
}
