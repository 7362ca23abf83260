package sqlir

// Walk traverses a tree in pre-order, calling fn for every node: expressions,
// statements, tables, table sources and join infos. If fn returns false the
// node's children are skipped.
func Walk(node any, fn func(node any) bool) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for _, child := range Children(node) {
		Walk(child, fn)
	}
}

// Children returns the direct children of a tree node in evaluation order.
func Children(node any) []any {
	switch n := node.(type) {
	case *Statement:
		out := []any{n.Projection}
		for _, t := range n.Tables {
			out = append(out, t)
		}
		if n.Where != nil {
			out = append(out, n.Where)
		}
		for _, o := range n.Orderings {
			out = append(out, o.Expression)
		}
		if n.Top != nil {
			out = append(out, n.Top)
		}
		return out
	case *SqlTable:
		out := []any{n.Source}
		for _, j := range n.Joins() {
			out = append(out, j)
		}
		return out
	case *SubStatementTable:
		return []any{n.Statement}
	case *GroupElementsTable:
		return []any{n.Grouping}
	case *JoinedTable:
		return []any{n.Join}
	case *UnresolvedJoin:
		if n.Origin == nil {
			return nil
		}
		return []any{n.Origin}
	case *UnresolvedCollectionJoin:
		return []any{n.Source}
	case *ResolvedJoin:
		return []any{n.Foreign, n.LeftKey, n.RightKey}
	case *Entity:
		out := make([]any, 0, len(n.Columns))
		for _, c := range n.Columns {
			out = append(out, c)
		}
		return out
	case *EntityConstant:
		return []any{n.PrimaryKey}
	case *EntityRefMember:
		return []any{n.Entity}
	case *Named:
		return []any{n.Inner}
	case *SubStatement:
		return []any{n.Statement}
	case *Case:
		return []any{n.Test, n.Then, n.Else}
	case *IsNull:
		return []any{n.Inner}
	case *IsNotNull:
		return []any{n.Inner}
	case *GroupingSelect:
		out := []any{n.Key, n.Element}
		for _, a := range n.Aggregations {
			out = append(out, a)
		}
		return out
	case *Aggregation:
		if n.Arg == nil {
			return nil
		}
		return []any{n.Arg}
	case *Function:
		return expressionsToAny(n.Args)
	case *Binary:
		return []any{n.Left, n.Right}
	case *Unary:
		return []any{n.Operand}
	case *New:
		return expressionsToAny(n.Args)
	case *MemberAccess:
		return []any{n.Source}
	case *TypeCheck:
		return []any{n.Operand}
	case *ConvertedBoolean:
		return []any{n.Inner}
	default:
		// Constant, Column, TableReference, UnresolvedTable, SimpleTable
		return nil
	}
}

func expressionsToAny(exprs []Expression) []any {
	out := make([]any, len(exprs))
	for i, e := range exprs {
		out[i] = e
	}
	return out
}
