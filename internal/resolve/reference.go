package resolve

import "github.com/roach88/qbind/internal/sqlir"

// referenceTable returns the expression standing for a row of a resolved
// table and registers any entity or grouping it produces with that table.
func (r *Resolver) referenceTable(table *sqlir.SqlTable) (sqlir.Expression, error) {
	switch src := table.Source.(type) {
	case *sqlir.SimpleTable:
		return r.tableEntity(src, table)

	case *sqlir.SubStatementTable:
		return r.reference(src.Statement.Projection, src.Alias, "value", table), nil

	case *sqlir.GroupElementsTable:
		grouping, ok := src.Grouping.(*sqlir.GroupingSelect)
		if !ok {
			return nil, sqlir.NewInternalConsistencyError(table, "group elements table over unresolved grouping")
		}
		return grouping.Element, nil

	case *sqlir.JoinedTable:
		join, ok := src.Join.(*sqlir.ResolvedJoin)
		if !ok {
			return nil, sqlir.NewInternalConsistencyError(table, "joined table referenced before its join was resolved")
		}
		switch foreign := join.Foreign.(type) {
		case *sqlir.SimpleTable:
			return r.tableEntity(foreign, table)
		case *sqlir.SubStatementTable:
			return r.reference(foreign.Statement.Projection, foreign.Alias, "value", table), nil
		}
		return nil, sqlir.NewInternalConsistencyError(table, "joined table over %T cannot be referenced", join.Foreign)

	default:
		return nil, sqlir.NewInternalConsistencyError(table, "table source %T is not resolved", table.Source)
	}
}

func (r *Resolver) tableEntity(source *sqlir.SimpleTable, table *sqlir.SqlTable) (*sqlir.Entity, error) {
	entity, err := r.schema.ResolveTableEntity(source)
	if err != nil {
		return nil, err
	}
	r.ctx.AddEntityMapping(entity, table)
	return entity, nil
}

// reference rebuilds a sub-statement projection as seen from the outer
// statement: every value becomes a column of the sub-statement alias named
// by its projected name. name is the projected name of e when e itself is
// not named.
func (r *Resolver) reference(e sqlir.Expression, alias, name string, table *sqlir.SqlTable) sqlir.Expression {
	switch n := e.(type) {
	case *sqlir.Named:
		switch n.Inner.(type) {
		case *sqlir.Entity, *sqlir.New, *sqlir.GroupingSelect, *sqlir.ConvertedBoolean:
			return r.reference(n.Inner, alias, n.Name, table)
		}
		return &sqlir.Column{T: n.Type(), TableAlias: alias, Name: n.Name}

	case *sqlir.Column:
		return &sqlir.Column{T: n.T, TableAlias: alias, Name: n.Name, IsPrimaryKey: n.IsPrimaryKey}

	case *sqlir.ConvertedBoolean:
		// Keep the boolean identity of a materialized value.
		return &sqlir.ConvertedBoolean{Inner: &sqlir.Column{T: sqlir.Int, TableAlias: alias, Name: name}}

	case *sqlir.Entity:
		entity := &sqlir.Entity{T: n.T, TableAlias: alias}
		for _, c := range n.Columns {
			col := &sqlir.Column{T: c.T, TableAlias: alias, Name: c.Name, IsPrimaryKey: c.IsPrimaryKey}
			entity.Columns = append(entity.Columns, col)
			if n.PrimaryKey != nil && c.Name == n.PrimaryKey.Name {
				entity.PrimaryKey = col
			}
		}
		r.ctx.AddEntityMapping(entity, table)
		return entity

	case *sqlir.New:
		args := make([]sqlir.Expression, len(n.Args))
		for i, arg := range n.Args {
			args[i] = r.reference(arg, alias, n.Members[i], table)
		}
		return &sqlir.New{Ctor: n.Ctor, Members: n.Members, Args: args, T: n.T}

	case *sqlir.GroupingSelect:
		grouping := &sqlir.GroupingSelect{
			Key:     r.reference(n.Key, alias, "key", table),
			Element: r.reference(n.Element, alias, "element", table),
		}
		for _, agg := range n.Aggregations {
			grouping.Aggregations = append(grouping.Aggregations, &sqlir.Named{
				Name:  agg.Name,
				Inner: &sqlir.Column{T: agg.Type(), TableAlias: alias, Name: agg.Name},
			})
		}
		r.ctx.AddGroupingMapping(grouping, table)
		return grouping

	default:
		return &sqlir.Column{T: e.Type(), TableAlias: alias, Name: name}
	}
}
