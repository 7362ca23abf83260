package catalog

import (
	"fmt"
	"strconv"

	"github.com/roach88/qbind/internal/resolve"
	"github.com/roach88/qbind/internal/sqlir"
)

// LookupError reports a construct the catalog cannot bind. It satisfies
// sqlir.IsSchemaResolution.
type LookupError struct {
	Entity  string
	Member  string
	Message string
}

func (e *LookupError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("%s.%s: %s", e.Entity, e.Member, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Entity, e.Message)
}

// Unwrap exposes the error's taxonomy code.
func (e *LookupError) Unwrap() error {
	construct := e.Entity
	if e.Member != "" {
		construct += "." + e.Member
	}
	return sqlir.NewSchemaError(construct, "%s", e.Message)
}

// Resolver binds front-end constructs against a Catalog.
//
// Thread-safety: Resolver is stateless beyond its read-only catalog and is
// safe for concurrent use.
type Resolver struct {
	catalog *Catalog
}

// NewResolver creates a Resolver over cat.
func NewResolver(cat *Catalog) *Resolver {
	return &Resolver{catalog: cat}
}

var _ resolve.SchemaResolver = (*Resolver)(nil)

// ResolveTable binds an entity type to its table under a fresh "t" alias.
func (r *Resolver) ResolveTable(table *sqlir.UnresolvedTable, aliases resolve.AliasGenerator) (*sqlir.SimpleTable, error) {
	entity, err := r.entity(table.Item)
	if err != nil {
		return nil, err
	}
	return &sqlir.SimpleTable{
		Item:  table.Item,
		Name:  r.catalog.Table(entity),
		Alias: aliases.GetUniqueIdentifier("t"),
	}, nil
}

// ResolveTableEntity describes a row of table: all columns of the entity
// (base columns first), qualified by the table alias.
func (r *Resolver) ResolveTableEntity(table *sqlir.SimpleTable) (*sqlir.Entity, error) {
	entity, err := r.entity(table.Item)
	if err != nil {
		return nil, err
	}

	key := r.catalog.Key(entity)
	out := &sqlir.Entity{T: table.Item, TableAlias: table.Alias}
	for _, c := range r.catalog.AllColumns(entity) {
		col := &sqlir.Column{T: c.Type, TableAlias: table.Alias, Name: c.Name, IsPrimaryKey: c.Name == key}
		out.Columns = append(out.Columns, col)
		if col.IsPrimaryKey {
			out.PrimaryKey = col
		}
	}
	return out, nil
}

// ResolveJoin binds navigation member of origin to the target's table and
// the key pair correlating them.
func (r *Resolver) ResolveJoin(origin *sqlir.Entity, member sqlir.Member, cardinality sqlir.Cardinality, aliases resolve.AliasGenerator) (*sqlir.ResolvedJoin, error) {
	entity, err := r.entity(origin.T)
	if err != nil {
		return nil, err
	}
	nav, ok := r.catalog.Navigation(entity, member.Name)
	if !ok {
		return nil, &LookupError{Entity: entity.Name, Member: member.Name, Message: "no such navigation"}
	}
	if nav.Cardinality != cardinality {
		return nil, &LookupError{Entity: entity.Name, Member: member.Name,
			Message: fmt.Sprintf("navigation has cardinality %s, used as %s", nav.Cardinality, cardinality)}
	}

	thisKey, ok := origin.Column(nav.ThisKey)
	if !ok {
		return nil, &LookupError{Entity: entity.Name, Member: nav.ThisKey, Message: "join key is not a column of the origin row"}
	}

	target, ok := r.catalog.Entity(nav.Target)
	if !ok {
		return nil, &LookupError{Entity: entity.Name, Member: member.Name,
			Message: fmt.Sprintf("navigation target %s is not mapped", nav.Target)}
	}
	alias := aliases.GetUniqueIdentifier("t")
	var otherType sqlir.Type
	for _, c := range r.catalog.AllColumns(target) {
		if c.Name == nav.OtherKey {
			otherType = c.Type
		}
	}

	return &sqlir.ResolvedJoin{
		Foreign: &sqlir.SimpleTable{
			Item:  sqlir.EntityType(target.Name),
			Name:  r.catalog.Table(target),
			Alias: alias,
		},
		LeftKey: thisKey,
		RightKey: &sqlir.Column{
			T:            otherType,
			TableAlias:   alias,
			Name:         nav.OtherKey,
			IsPrimaryKey: nav.OtherKey == r.catalog.Key(target),
		},
	}, nil
}

// ResolveConstant turns an entity-typed constant (a map of column values)
// into an EntityConstant carrying its primary-key literal. Other constants,
// and null entities, are returned unchanged.
func (r *Resolver) ResolveConstant(constant *sqlir.Constant) (sqlir.Expression, error) {
	if !constant.T.IsEntity() || constant.Value == nil {
		return constant, nil
	}

	entity, err := r.entity(constant.T)
	if err != nil {
		return nil, err
	}
	values, ok := constant.Value.(map[string]any)
	if !ok {
		return nil, &LookupError{Entity: entity.Name, Message: fmt.Sprintf("entity constant must be a column map, got %T", constant.Value)}
	}

	key := r.catalog.Key(entity)
	pk, ok := values[key]
	if !ok {
		return nil, &LookupError{Entity: entity.Name, Member: key, Message: "entity constant has no primary-key value"}
	}
	var keyType sqlir.Type
	for _, c := range r.catalog.AllColumns(entity) {
		if c.Name == key {
			keyType = c.Type
		}
	}
	return &sqlir.EntityConstant{T: constant.T, PrimaryKey: sqlir.NewConstant(pk, keyType)}, nil
}

// ResolveMember binds member on an entity row (column or one-navigation)
// or on a column (value-type members such as string Length).
func (r *Resolver) ResolveMember(source sqlir.Expression, member sqlir.Member) (sqlir.Expression, error) {
	switch s := source.(type) {
	case *sqlir.Entity:
		if col, ok := s.Column(member.Name); ok {
			return col, nil
		}
		entity, err := r.entity(s.T)
		if err != nil {
			return nil, err
		}
		if nav, ok := r.catalog.Navigation(entity, member.Name); ok && nav.Cardinality == sqlir.CardinalityOne {
			return &sqlir.EntityRefMember{
				Entity: s,
				Member: sqlir.Member{Name: member.Name, Type: sqlir.EntityType(nav.Target), Declaring: member.Declaring},
			}, nil
		}
		return nil, &LookupError{Entity: entity.Name, Member: member.Name, Message: "no such column or navigation"}

	case *sqlir.Column:
		if fn, ok := valueMember(s, member.Name); ok {
			return fn, nil
		}
		return nil, &LookupError{Entity: s.T.String(), Member: member.Name, Message: "no such member on a column value"}

	default:
		return nil, &LookupError{Entity: sqlir.Describe(source), Member: member.Name, Message: "members resolve only on entities and columns"}
	}
}

// valueMember maps value-type members to scalar functions.
func valueMember(col *sqlir.Column, name string) (sqlir.Expression, bool) {
	switch {
	case col.T.Kind == sqlir.KindString && name == "Length":
		return &sqlir.Function{Name: "LEN", Args: []sqlir.Expression{col}, T: sqlir.Int}, true
	case col.T.Kind == sqlir.KindDateTime && (name == "Year" || name == "Month" || name == "Day"):
		return &sqlir.Function{
			Name: "DATEPART",
			Args: []sqlir.Expression{sqlir.NewConstant(name, sqlir.String), col},
			T:    sqlir.Int,
		}, true
	}
	return nil, false
}

// ResolveTypeCheck decides `expr is target`:
//   - same type, or expr's type derives from target: constant true
//   - target derives from expr's type: discriminator comparison over the
//     target and its own descendants (an unresolved tree)
//   - otherwise: constant false
func (r *Resolver) ResolveTypeCheck(expr sqlir.Expression, target sqlir.Type) (sqlir.Expression, error) {
	source := expr.Type()
	if source.Equal(target) {
		return sqlir.NewConstant(true, sqlir.Bool), nil
	}
	if source.IsEntity() && target.IsEntity() && r.catalog.IsSubtype(source.Name, target.Name) {
		return sqlir.NewConstant(true, sqlir.Bool), nil
	}
	if !source.IsEntity() || !target.IsEntity() || !r.catalog.IsSubtype(target.Name, source.Name) {
		return sqlir.NewConstant(false, sqlir.Bool), nil
	}

	var check sqlir.Expression
	for _, e := range r.catalog.Descendants(target.Name) {
		if e.Discriminator == nil {
			continue
		}
		discType := sqlir.String
		for _, c := range r.catalog.AllColumns(e) {
			if c.Name == e.Discriminator.Column {
				discType = c.Type
			}
		}
		value, err := discriminatorValue(e, discType)
		if err != nil {
			return nil, err
		}
		cmp := sqlir.NewBinary(sqlir.OpEqual,
			&sqlir.MemberAccess{
				Source: expr,
				Member: sqlir.Member{Name: e.Discriminator.Column, Type: discType, Declaring: source.Name},
			},
			sqlir.NewConstant(value, discType),
		)
		if check == nil {
			check = cmp
		} else {
			check = sqlir.NewBinary(sqlir.OpOrElse, check, cmp)
		}
	}
	if check == nil {
		return nil, &LookupError{Entity: target.Name, Message: "derived entity has no discriminator"}
	}
	return check, nil
}

// discriminatorValue converts the declared discriminator text to the
// column's type.
func discriminatorValue(e *Entity, t sqlir.Type) (any, error) {
	if t.Kind != sqlir.KindInt {
		return e.Discriminator.Value, nil
	}
	v, err := strconv.ParseInt(e.Discriminator.Value, 10, 64)
	if err != nil {
		return nil, &LookupError{Entity: e.Name, Member: e.Discriminator.Column,
			Message: fmt.Sprintf("discriminator %q is not an integer", e.Discriminator.Value)}
	}
	return v, nil
}

func (r *Resolver) entity(t sqlir.Type) (*Entity, error) {
	if !t.IsEntity() {
		return nil, &LookupError{Entity: t.String(), Message: "not an entity type"}
	}
	entity, ok := r.catalog.Entity(t.Name)
	if !ok {
		return nil, &LookupError{Entity: t.Name, Message: "entity is not mapped"}
	}
	return entity, nil
}
