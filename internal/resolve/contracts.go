package resolve

import (
	"github.com/roach88/qbind/internal/mapping"
	"github.com/roach88/qbind/internal/sqlir"
)

// AliasGenerator supplies fresh table aliases.
type AliasGenerator interface {
	// GetUniqueIdentifier returns a new identifier starting with prefix,
	// never returned before by this generator.
	GetUniqueIdentifier(prefix string) string
}

// SchemaResolver binds front-end constructs to the mapping schema.
//
// Implementations must be pure with respect to the tree: they build new
// nodes and never mutate their inputs. Their errors are propagated verbatim.
type SchemaResolver interface {
	// ResolveTable turns an unresolved table into a simple table with a
	// fresh alias.
	ResolveTable(table *sqlir.UnresolvedTable, aliases AliasGenerator) (*sqlir.SimpleTable, error)

	// ResolveTableEntity returns the Entity describing a row of table.
	// Each call returns a new node.
	ResolveTableEntity(table *sqlir.SimpleTable) (*sqlir.Entity, error)

	// ResolveJoin resolves navigation member of origin into the joined
	// table and its key pair.
	ResolveJoin(origin *sqlir.Entity, member sqlir.Member, cardinality sqlir.Cardinality, aliases AliasGenerator) (*sqlir.ResolvedJoin, error)

	// ResolveConstant may rewrite a constant (e.g. an entity-typed constant
	// into an EntityConstant). Other constants are returned unchanged.
	ResolveConstant(constant *sqlir.Constant) (sqlir.Expression, error)

	// ResolveMember resolves member on source, which is an *Entity or a
	// *Column. The result is a Column, a Function or an EntityRefMember.
	ResolveMember(source sqlir.Expression, member sqlir.Member) (sqlir.Expression, error)

	// ResolveTypeCheck returns an unresolved tree deciding whether expr is
	// of type target.
	ResolveTypeCheck(expr sqlir.Expression, target sqlir.Type) (sqlir.Expression, error)
}

// Stage is the part of the resolution stage the resolver recurses through.
// Nested statements go back through the stage so that every slot receives
// its context.
type Stage interface {
	// ResolveSqlStatement resolves tables, joins and all slots of stmt. The
	// projection is resolved structurally only.
	ResolveSqlStatement(stmt *sqlir.Statement, ctx *mapping.Context) (*sqlir.Statement, error)

	// ApplyContext normalizes an already resolved expression for a slot.
	ApplyContext(expr sqlir.Expression, sctx sqlir.SqlExpressionContext, ctx *mapping.Context) (sqlir.Expression, error)

	// ApplySelectionContext normalizes the projection of a resolved
	// statement.
	ApplySelectionContext(stmt *sqlir.Statement, sctx sqlir.SqlExpressionContext, ctx *mapping.Context) (*sqlir.Statement, error)
}
