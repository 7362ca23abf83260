package resolve

import (
	"github.com/roach88/qbind/internal/mapping"
	"github.com/roach88/qbind/internal/sqlir"
)

// Resolver performs structural resolution for one top-level resolve call.
//
// A Resolver is bound to the call's mapping.Context and must not be shared
// across calls. It holds no other state: the same Resolver may be used for
// every slot of every statement of the call.
type Resolver struct {
	stage   Stage
	schema  SchemaResolver
	aliases AliasGenerator
	ctx     *mapping.Context
}

// New creates a Resolver. All arguments are required.
func New(stage Stage, schema SchemaResolver, aliases AliasGenerator, ctx *mapping.Context) *Resolver {
	return &Resolver{
		stage:   stage,
		schema:  schema,
		aliases: aliases,
		ctx:     ctx,
	}
}

// Resolve structurally resolves an expression. A nil expression (an absent
// optional slot) resolves to nil.
func (r *Resolver) Resolve(e sqlir.Expression) (sqlir.Expression, error) {
	switch n := e.(type) {
	case nil:
		return nil, nil

	case *sqlir.Constant:
		return r.schema.ResolveConstant(n)

	case *sqlir.Column, *sqlir.Entity, *sqlir.EntityRefMember, *sqlir.ConvertedBoolean:
		// Already bound to the schema.
		return e, nil

	case *sqlir.TableReference:
		table, err := r.ctx.ResolvedTable(n.Table)
		if err != nil {
			return nil, err
		}
		return r.referenceTable(table)

	case *sqlir.MemberAccess:
		source, err := r.Resolve(n.Source)
		if err != nil {
			return nil, err
		}
		return r.resolveMember(source, n)

	case *sqlir.Binary:
		return r.resolveBinary(n)

	case *sqlir.TypeCheck:
		operand, err := r.Resolve(n.Operand)
		if err != nil {
			return nil, err
		}
		check, err := r.schema.ResolveTypeCheck(operand, n.Target)
		if err != nil {
			return nil, err
		}
		// The check is itself an unresolved tree (e.g. a discriminator
		// comparison).
		return r.Resolve(check)

	case *sqlir.SubStatement:
		stmt, err := r.stage.ResolveSqlStatement(n.Statement, r.ctx)
		if err != nil {
			return nil, err
		}
		return r.simplifyGroupingAggregate(&sqlir.SubStatement{Statement: stmt})

	case *sqlir.GroupingSelect:
		return r.resolveGrouping(n)

	case *sqlir.Named, *sqlir.Case, *sqlir.IsNull, *sqlir.IsNotNull, *sqlir.Aggregation,
		*sqlir.Function, *sqlir.Unary, *sqlir.New, *sqlir.EntityConstant:
		return sqlir.MapChildren(e, r.Resolve)

	default:
		return nil, sqlir.NewUnsupportedShapeError(e, "no resolution rule for %T", e)
	}
}

// ResolveTableInfo resolves a table source. Sub-statement tables resolve
// their nested statement through the stage; the caller applies context.
func (r *Resolver) ResolveTableInfo(source sqlir.TableSource) (sqlir.TableSource, error) {
	switch s := source.(type) {
	case *sqlir.UnresolvedTable:
		return r.schema.ResolveTable(s, r.aliases)

	case *sqlir.SimpleTable:
		return s, nil

	case *sqlir.SubStatementTable:
		stmt, err := r.stage.ResolveSqlStatement(s.Statement, r.ctx)
		if err != nil {
			return nil, err
		}
		alias := s.Alias
		if alias == "" {
			alias = r.aliases.GetUniqueIdentifier("q")
		}
		return &sqlir.SubStatementTable{Alias: alias, Statement: stmt}, nil

	case *sqlir.GroupElementsTable:
		resolved, err := r.Resolve(s.Grouping)
		if err != nil {
			return nil, err
		}
		grouping, ok := resolved.(*sqlir.GroupingSelect)
		if !ok {
			return nil, sqlir.NewUnsupportedShapeError(resolved, "group elements require a grouping, got %s", resolved.Type())
		}
		alias := s.Alias
		if alias == "" {
			alias = r.aliases.GetUniqueIdentifier("g")
		}
		return &sqlir.GroupElementsTable{Grouping: grouping, Alias: alias}, nil

	case *sqlir.JoinedTable:
		join, err := r.ResolveJoinInfo(s.Join)
		if err != nil {
			return nil, err
		}
		if join == s.Join {
			return s, nil
		}
		return &sqlir.JoinedTable{Join: join}, nil

	default:
		return nil, sqlir.NewUnsupportedShapeError(source, "no resolution rule for table source %T", source)
	}
}

// ResolveJoinInfo resolves a join into its foreign table and key pair.
//
// No entity escapes from a resolved join: the foreign table's entity is
// produced and registered when the joined table is referenced.
func (r *Resolver) ResolveJoinInfo(join sqlir.JoinInfo) (sqlir.JoinInfo, error) {
	switch j := join.(type) {
	case *sqlir.UnresolvedJoin:
		return r.schema.ResolveJoin(j.Origin, j.Member, j.Cardinality, r.aliases)

	case *sqlir.UnresolvedCollectionJoin:
		source, err := r.Resolve(j.Source)
		if err != nil {
			return nil, err
		}
		origin, err := r.entityOf(source)
		if err != nil {
			return nil, err
		}
		return r.schema.ResolveJoin(origin, j.Member, sqlir.CardinalityMany, r.aliases)

	case *sqlir.ResolvedJoin:
		foreign, err := r.ResolveTableInfo(j.Foreign)
		if err != nil {
			return nil, err
		}
		if foreign == j.Foreign {
			return j, nil
		}
		return &sqlir.ResolvedJoin{Foreign: foreign, LeftKey: j.LeftKey, RightKey: j.RightKey}, nil

	default:
		return nil, sqlir.NewUnsupportedShapeError(join, "no resolution rule for join %T", join)
	}
}

// ResolveEntityRefMember resolves the implied one-cardinality join of a
// navigation placeholder and returns the navigated entity, registered with
// the joined table. Repeated navigation through the same member of the same
// table reuses one join.
func (r *Resolver) ResolveEntityRefMember(ref *sqlir.EntityRefMember) (*sqlir.Entity, error) {
	join, err := r.NavigationJoin(ref)
	if err != nil {
		return nil, err
	}
	return r.JoinNavigation(ref, join)
}

// NavigationJoin returns the resolved join behind a navigation placeholder
// without adding it to the origin table. An existing join through the same
// member is returned as is.
func (r *Resolver) NavigationJoin(ref *sqlir.EntityRefMember) (*sqlir.ResolvedJoin, error) {
	originTable, err := r.ctx.TableForEntity(ref.Entity)
	if err != nil {
		return nil, err
	}
	if joined, ok := originTable.JoinFor(ref.Member); ok {
		if source, ok := joined.Source.(*sqlir.JoinedTable); ok {
			if join, ok := source.Join.(*sqlir.ResolvedJoin); ok {
				return join, nil
			}
		}
		return nil, sqlir.NewInternalConsistencyError(joined, "join through %s is not resolved", ref.Member.Name)
	}
	return r.schema.ResolveJoin(ref.Entity, ref.Member, sqlir.CardinalityOne, r.aliases)
}

// JoinNavigation adds join to the navigation's origin table (unless a join
// through the member exists) and returns the navigated entity.
func (r *Resolver) JoinNavigation(ref *sqlir.EntityRefMember, join *sqlir.ResolvedJoin) (*sqlir.Entity, error) {
	originTable, err := r.ctx.TableForEntity(ref.Entity)
	if err != nil {
		return nil, err
	}
	joined := originTable.GetOrAddLeftJoin(join, ref.Member)

	target, err := r.referenceTable(joined)
	if err != nil {
		return nil, err
	}
	entity, ok := target.(*sqlir.Entity)
	if !ok {
		return nil, sqlir.NewInternalConsistencyError(ref, "navigation %s did not produce an entity", ref.Member.Name)
	}
	return entity, nil
}

// entityOf returns the entity an expression stands for, joining through a
// navigation placeholder when needed.
func (r *Resolver) entityOf(e sqlir.Expression) (*sqlir.Entity, error) {
	switch n := e.(type) {
	case *sqlir.Entity:
		return n, nil
	case *sqlir.EntityRefMember:
		return r.ResolveEntityRefMember(n)
	case *sqlir.Named:
		return r.entityOf(n.Inner)
	default:
		return nil, sqlir.NewUnsupportedShapeError(e, "expected an entity, got %s", e.Type())
	}
}

func (r *Resolver) resolveMember(source sqlir.Expression, access *sqlir.MemberAccess) (sqlir.Expression, error) {
	member := access.Member

	switch s := source.(type) {
	case *sqlir.Entity:
		if member.Type.IsCollection() {
			return nil, sqlir.NewUnsupportedShapeError(access,
				"collection navigation %s.%s can only be used as a query source", s.T.Name, member.Name)
		}
		return r.schema.ResolveMember(s, member)

	case *sqlir.Column:
		return r.schema.ResolveMember(s, member)

	case *sqlir.EntityRefMember:
		entity, err := r.ResolveEntityRefMember(s)
		if err != nil {
			return nil, err
		}
		return r.resolveMember(entity, access)

	case *sqlir.Named:
		return r.resolveMember(s.Inner, access)

	case *sqlir.New:
		arg, ok := s.Arg(member.Name)
		if !ok {
			return nil, sqlir.NewUnsupportedShapeError(access, "%s has no member %s", s.Ctor, member.Name)
		}
		return arg, nil

	case *sqlir.GroupingSelect:
		if member.Name == "Key" {
			return s.Key, nil
		}
		return nil, sqlir.NewUnsupportedShapeError(access, "grouping has no member %s", member.Name)

	default:
		return nil, sqlir.NewUnsupportedShapeError(access,
			"member %s cannot be accessed on %s", member.Name, sqlir.Describe(source))
	}
}

func (r *Resolver) resolveGrouping(g *sqlir.GroupingSelect) (sqlir.Expression, error) {
	resolved, err := sqlir.MapChildren(g, r.Resolve)
	if err != nil {
		return nil, err
	}
	out := resolved.(*sqlir.GroupingSelect)
	if out == g {
		// Registration is per node; never register the caller's node.
		out = &sqlir.GroupingSelect{
			Key:          g.Key,
			Element:      g.Element,
			Aggregations: append([]*sqlir.Named(nil), g.Aggregations...),
		}
	}

	table, err := r.ctx.SourceTable()
	if err != nil {
		return nil, err
	}
	r.ctx.AddGroupingMapping(out, table)
	return out, nil
}
