// Package catalog holds the mapping schema: which table backs each entity,
// its columns, primary key, navigations and inheritance. A Catalog is
// compiled from CUE (Compile, LoadDir) or introspected from a live database
// (package store), and Resolver exposes it as a resolve.SchemaResolver.
package catalog

import (
	"fmt"

	"github.com/roach88/qbind/internal/sqlir"
)

// Entity describes one mapped entity type.
type Entity struct {
	Name  string
	Table string // empty for a derived entity: it shares its base's table
	Key   string // empty for a derived entity: it inherits its base's key

	Columns     []Column
	Navigations []Navigation

	// Base names the parent entity in a single-table hierarchy.
	Base string
	// Discriminator selects this entity's rows in its base's table.
	Discriminator *Discriminator
}

// Column is a typed table column.
type Column struct {
	Name string
	Type sqlir.Type
}

// Navigation is a member that reaches another entity through a key pair.
//
// For a one-navigation ThisKey is usually the foreign key on this entity
// and OtherKey the target's primary key. For a many-navigation ThisKey is
// usually this entity's primary key and OtherKey the foreign key on the
// target.
type Navigation struct {
	Name        string
	Target      string
	ThisKey     string
	OtherKey    string
	Cardinality sqlir.Cardinality
}

// Discriminator is the column/value pair identifying a derived entity.
type Discriminator struct {
	Column string
	Value  string
}

// Catalog is an immutable, validated set of entities.
//
// Thread-safety: a Catalog is read-only after New and safe for concurrent
// use.
type Catalog struct {
	entities map[string]*Entity
	order    []string
}

// New validates entities and builds a Catalog.
//
// Validation rules:
//   - entity names are unique
//   - a root entity has a table and a key that is one of its columns
//   - a derived entity's base exists, the hierarchy has no cycle, and it
//     carries a discriminator whose column is a column of the hierarchy
//   - navigation targets exist and their keys are columns of each side
func New(entities ...Entity) (*Catalog, error) {
	c := &Catalog{entities: make(map[string]*Entity, len(entities))}
	for i := range entities {
		e := entities[i]
		if _, dup := c.entities[e.Name]; dup {
			return nil, fmt.Errorf("entity %s declared twice", e.Name)
		}
		c.entities[e.Name] = &e
		c.order = append(c.order, e.Name)
	}

	for _, name := range c.order {
		if err := c.validate(c.entities[name]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) validate(e *Entity) error {
	seen := map[string]bool{e.Name: true}
	for base := e.Base; base != ""; {
		parent, ok := c.entities[base]
		if !ok {
			return fmt.Errorf("entity %s: base %s is not declared", e.Name, base)
		}
		if seen[base] {
			return fmt.Errorf("entity %s: inheritance cycle through %s", e.Name, base)
		}
		seen[base] = true
		base = parent.Base
	}

	root := c.root(e)
	if root.Table == "" {
		return fmt.Errorf("entity %s: table is required", root.Name)
	}
	if e.Base != "" && e.Discriminator == nil {
		return fmt.Errorf("entity %s: derived entity requires a discriminator", e.Name)
	}
	if e.Discriminator != nil {
		if _, ok := c.column(e, e.Discriminator.Column); !ok {
			return fmt.Errorf("entity %s: discriminator column %s is not a column", e.Name, e.Discriminator.Column)
		}
	}
	if _, ok := c.column(e, c.Key(e)); !ok {
		return fmt.Errorf("entity %s: key %q is not a column", e.Name, c.Key(e))
	}

	for _, nav := range e.Navigations {
		target, ok := c.entities[nav.Target]
		if !ok {
			return fmt.Errorf("entity %s: navigation %s targets undeclared entity %s", e.Name, nav.Name, nav.Target)
		}
		if _, ok := c.column(e, nav.ThisKey); !ok {
			return fmt.Errorf("entity %s: navigation %s key %s is not a column", e.Name, nav.Name, nav.ThisKey)
		}
		if _, ok := c.column(target, nav.OtherKey); !ok {
			return fmt.Errorf("entity %s: navigation %s key %s is not a column of %s", e.Name, nav.Name, nav.OtherKey, target.Name)
		}
	}
	return nil
}

// Entity returns the entity named name.
func (c *Catalog) Entity(name string) (*Entity, bool) {
	e, ok := c.entities[name]
	return e, ok
}

// Names returns entity names in declaration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Table returns the table backing e (its root's table).
func (c *Catalog) Table(e *Entity) string {
	return c.root(e).Table
}

// Key returns the primary-key column name of e (its root's key).
func (c *Catalog) Key(e *Entity) string {
	return c.root(e).Key
}

// AllColumns returns e's columns, base columns first.
func (c *Catalog) AllColumns(e *Entity) []Column {
	var chain []*Entity
	for cur := e; cur != nil; cur = c.entities[cur.Base] {
		chain = append(chain, cur)
		if cur.Base == "" {
			break
		}
	}
	var out []Column
	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i].Columns...)
	}
	return out
}

// Navigation returns the navigation name of e or of one of its bases.
func (c *Catalog) Navigation(e *Entity, name string) (Navigation, bool) {
	for cur := e; cur != nil; cur = c.entities[cur.Base] {
		for _, nav := range cur.Navigations {
			if nav.Name == name {
				return nav, true
			}
		}
		if cur.Base == "" {
			break
		}
	}
	return Navigation{}, false
}

// IsSubtype reports whether sub derives (directly or not) from base.
// An entity is not its own subtype.
func (c *Catalog) IsSubtype(sub, base string) bool {
	e, ok := c.entities[sub]
	if !ok {
		return false
	}
	for e.Base != "" {
		if e.Base == base {
			return true
		}
		e = c.entities[e.Base]
	}
	return false
}

// Descendants returns name and every entity deriving from it, in
// declaration order.
func (c *Catalog) Descendants(name string) []*Entity {
	var out []*Entity
	for _, n := range c.order {
		if n == name || c.IsSubtype(n, name) {
			out = append(out, c.entities[n])
		}
	}
	return out
}

func (c *Catalog) column(e *Entity, name string) (Column, bool) {
	for _, col := range c.AllColumns(e) {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

func (c *Catalog) root(e *Entity) *Entity {
	for e.Base != "" {
		e = c.entities[e.Base]
	}
	return e
}
