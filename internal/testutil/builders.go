package testutil

import "github.com/roach88/qbind/internal/sqlir"

// Table returns an unresolved statement table over an entity type.
func Table(item sqlir.Type) *sqlir.SqlTable {
	return sqlir.NewSqlTable(&sqlir.UnresolvedTable{Item: item}, sqlir.JoinInner)
}

// Ref returns the front-end reference to a row of table.
func Ref(table *sqlir.SqlTable) *sqlir.TableReference {
	return &sqlir.TableReference{Table: table}
}

// Member returns source.name typed t, declared on source's type.
func Member(source sqlir.Expression, name string, t sqlir.Type) *sqlir.MemberAccess {
	return &sqlir.MemberAccess{
		Source: source,
		Member: sqlir.Member{Name: name, Type: t, Declaring: source.Type().Name},
	}
}

// Select returns a sequence statement projecting projection from tables.
func Select(projection sqlir.Expression, tables ...*sqlir.SqlTable) *sqlir.Statement {
	return &sqlir.Statement{
		DataInfo:   sqlir.SequenceInfo{ItemType: projection.Type()},
		Projection: projection,
		Tables:     tables,
	}
}

// Scalar returns a scalar statement (e.g. an aggregate) over tables.
func Scalar(projection sqlir.Expression, tables ...*sqlir.SqlTable) *sqlir.Statement {
	return &sqlir.Statement{
		DataInfo:   sqlir.ScalarInfo{T: projection.Type()},
		Projection: projection,
		Tables:     tables,
	}
}

// Int returns an integer constant.
func Int(v int64) *sqlir.Constant {
	return sqlir.NewConstant(v, sqlir.Int)
}

// Bool returns a boolean constant.
func Bool(v bool) *sqlir.Constant {
	return sqlir.NewConstant(v, sqlir.Bool)
}

// Str returns a string constant.
func Str(v string) *sqlir.Constant {
	return sqlir.NewConstant(v, sqlir.String)
}

// Col returns a resolved column.
func Col(alias, name string, t sqlir.Type) *sqlir.Column {
	return &sqlir.Column{T: t, TableAlias: alias, Name: name}
}

// PK returns a resolved primary-key column.
func PK(alias, name string) *sqlir.Column {
	return &sqlir.Column{T: sqlir.Int, TableAlias: alias, Name: name, IsPrimaryKey: true}
}
