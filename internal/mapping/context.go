// Package mapping records which table each resolved entity and grouping
// originated from during a single resolution call.
package mapping

import "github.com/roach88/qbind/internal/sqlir"

// Context is the side-table written by structural resolution.
//
// Lifecycle: one Context per top-level resolve call, threaded by reference
// through all recursion (nested statements included) and discarded when the
// call completes. A Context must never be shared across concurrent
// resolutions; it has no locking.
//
// Invariant: every Entity and GroupingSelect that escapes into a resolved
// tree is registered before it is returned to the caller. A lookup miss is a
// contract violation inside the pipeline and is reported as an
// INTERNAL_CONSISTENCY error, never defaulted.
type Context struct {
	entities  map[*sqlir.Entity]*sqlir.SqlTable
	groupings map[*sqlir.GroupingSelect]*sqlir.SqlTable
	tables    map[*sqlir.SqlTable]*sqlir.SqlTable

	// scopes is the stack of resolved tables of the statements being
	// resolved, innermost last.
	scopes [][]*sqlir.SqlTable
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{
		entities:  make(map[*sqlir.Entity]*sqlir.SqlTable),
		groupings: make(map[*sqlir.GroupingSelect]*sqlir.SqlTable),
		tables:    make(map[*sqlir.SqlTable]*sqlir.SqlTable),
	}
}

// AddEntityMapping records that entity's rows come from table.
func (c *Context) AddEntityMapping(entity *sqlir.Entity, table *sqlir.SqlTable) {
	c.entities[entity] = table
}

// AddGroupingMapping records that grouping's rows come from table.
func (c *Context) AddGroupingMapping(grouping *sqlir.GroupingSelect, table *sqlir.SqlTable) {
	c.groupings[grouping] = table
}

// AddTableMapping records the resolved table for an input table, so table
// references (including correlated references from nested statements) find
// the resolved identity.
func (c *Context) AddTableMapping(input, resolved *sqlir.SqlTable) {
	c.tables[input] = resolved
}

// TableForEntity returns the table entity was registered with.
func (c *Context) TableForEntity(entity *sqlir.Entity) (*sqlir.SqlTable, error) {
	table, ok := c.entities[entity]
	if !ok {
		return nil, sqlir.NewInternalConsistencyError(entity, "no table registered for entity of type %s", entity.T)
	}
	return table, nil
}

// TableForGrouping returns the table grouping was registered with.
func (c *Context) TableForGrouping(grouping *sqlir.GroupingSelect) (*sqlir.SqlTable, error) {
	table, ok := c.groupings[grouping]
	if !ok {
		return nil, sqlir.NewInternalConsistencyError(grouping, "no table registered for grouping")
	}
	return table, nil
}

// ResolvedTable returns the resolved identity of an input table.
func (c *Context) ResolvedTable(input *sqlir.SqlTable) (*sqlir.SqlTable, error) {
	table, ok := c.tables[input]
	if !ok {
		return nil, sqlir.NewInternalConsistencyError(input, "table referenced before it was resolved")
	}
	return table, nil
}

// EnterStatement pushes the resolved tables of a statement whose slots are
// about to be resolved. The returned func pops it.
func (c *Context) EnterStatement(tables []*sqlir.SqlTable) (leave func()) {
	c.scopes = append(c.scopes, tables)
	depth := len(c.scopes)
	return func() {
		c.scopes = c.scopes[:depth-1]
	}
}

// SourceTable returns the first table of the innermost statement being
// resolved: the table grouping-shaped expressions originate from.
func (c *Context) SourceTable() (*sqlir.SqlTable, error) {
	if len(c.scopes) == 0 || len(c.scopes[len(c.scopes)-1]) == 0 {
		return nil, sqlir.NewInternalConsistencyError(nil, "no statement table in scope")
	}
	return c.scopes[len(c.scopes)-1][0], nil
}

// HasEntity reports whether entity is registered.
func (c *Context) HasEntity(entity *sqlir.Entity) bool {
	_, ok := c.entities[entity]
	return ok
}

// HasGrouping reports whether grouping is registered.
func (c *Context) HasGrouping(grouping *sqlir.GroupingSelect) bool {
	_, ok := c.groupings[grouping]
	return ok
}

// Len returns the number of registered entities and groupings.
func (c *Context) Len() (entities, groupings int) {
	return len(c.entities), len(c.groupings)
}
