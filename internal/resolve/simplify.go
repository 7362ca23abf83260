package resolve

import (
	"errors"

	"github.com/roach88/qbind/internal/sqlir"
)

// errNotProvable aborts a simplification whose precondition cannot be
// shown to hold. It never escapes this file.
var errNotProvable = errors.New("simplification precondition not provable")

// simplifyGroupingAggregate replaces a correlated aggregate over the
// elements of a grouping with a column of the grouping statement itself:
//
//	from g in (select ... group by key) select g.Sum(x => x.Salary)
//
// becomes a SUM pushed into the grouping projection and read back as
// [q].[a0]. The rewrite applies only when all of these hold:
//
//   - the sub-statement is scalar and projects exactly one Aggregation;
//   - it has exactly one table, with no joins, over the elements of a
//     grouping (GroupElementsTable);
//   - it has no WHERE, no TOP and is not DISTINCT (ordering alone does not
//     change an aggregate and is dropped);
//   - the grouping was produced by a sub-statement table whose projection
//     is the GroupingSelect;
//   - every column the aggregate argument reads maps onto the grouping's
//     element, and the argument holds no sub-statement, entity or
//     navigation.
//
// Otherwise the sub-statement is returned unchanged. A mapping miss for the
// grouping is an error, not a fallback.
func (r *Resolver) simplifyGroupingAggregate(sub *sqlir.SubStatement) (sqlir.Expression, error) {
	stmt := sub.Statement

	agg, ok := stmt.Projection.(*sqlir.Aggregation)
	if !ok {
		return sub, nil
	}
	if _, ok := stmt.DataInfo.(sqlir.ScalarInfo); !ok {
		return sub, nil
	}
	if len(stmt.Tables) != 1 || stmt.Where != nil || stmt.Top != nil || stmt.Distinct {
		return sub, nil
	}
	table := stmt.Tables[0]
	if len(table.Joins()) > 0 {
		return sub, nil
	}
	elements, ok := table.Source.(*sqlir.GroupElementsTable)
	if !ok {
		return sub, nil
	}
	ref, ok := elements.Grouping.(*sqlir.GroupingSelect)
	if !ok {
		return sub, nil
	}

	groupTable, err := r.ctx.TableForGrouping(ref)
	if err != nil {
		return nil, err
	}
	source, ok := groupTable.Source.(*sqlir.SubStatementTable)
	if !ok {
		return sub, nil
	}
	origin, ok := source.Statement.Projection.(*sqlir.GroupingSelect)
	if !ok {
		return sub, nil
	}

	var arg sqlir.Expression
	if agg.Arg != nil {
		arg, err = rebaseOnGrouping(agg.Arg, ref.Element, origin.Element, source.Alias)
		if errors.Is(err, errNotProvable) {
			return sub, nil
		}
		if err != nil {
			return nil, err
		}
	}

	pushed, err := r.stage.ApplyContext(&sqlir.Aggregation{Func: agg.Func, Arg: arg, T: agg.T},
		sqlir.SingleValueRequired, r.ctx)
	if err != nil {
		return nil, err
	}
	name := origin.AddAggregation(pushed)
	return &sqlir.Column{T: agg.T, TableAlias: source.Alias, Name: name}, nil
}

// rebaseOnGrouping rewrites arg, written against the referenced grouping
// element (columns of alias), onto the grouping's own element expression.
func rebaseOnGrouping(arg, refElement, originElement sqlir.Expression, alias string) (sqlir.Expression, error) {
	columns := make(map[string]sqlir.Expression)
	if !pairElement(refElement, originElement, columns) {
		return nil, errNotProvable
	}

	return sqlir.Transform(arg, func(e sqlir.Expression) (sqlir.Expression, error) {
		switch n := e.(type) {
		case *sqlir.Column:
			if n.TableAlias != alias {
				return nil, errNotProvable
			}
			target, ok := columns[n.Name]
			if !ok || target == nil {
				return nil, errNotProvable
			}
			return target, nil
		case *sqlir.SubStatement, *sqlir.Entity, *sqlir.EntityRefMember, *sqlir.GroupingSelect, *sqlir.TableReference:
			return nil, errNotProvable
		}
		return e, nil
	})
}

// pairElement walks the referenced element and the grouping's element in
// parallel, recording which origin expression each referenced column name
// stands for. Ambiguous names map to nil.
func pairElement(ref, origin sqlir.Expression, out map[string]sqlir.Expression) bool {
	if named, ok := origin.(*sqlir.Named); ok {
		origin = named.Inner
	}

	switch r := ref.(type) {
	case *sqlir.Column:
		if _, seen := out[r.Name]; seen {
			out[r.Name] = nil
			return true
		}
		out[r.Name] = origin
		return true

	case *sqlir.Entity:
		o, ok := origin.(*sqlir.Entity)
		if !ok {
			return false
		}
		for _, c := range r.Columns {
			oc, ok := o.Column(c.Name)
			if !ok {
				return false
			}
			if !pairElement(c, oc, out) {
				return false
			}
		}
		return true

	case *sqlir.New:
		o, ok := origin.(*sqlir.New)
		if !ok || len(o.Args) != len(r.Args) {
			return false
		}
		for i := range r.Args {
			if !pairElement(r.Args[i], o.Args[i], out) {
				return false
			}
		}
		return true

	default:
		return false
	}
}
