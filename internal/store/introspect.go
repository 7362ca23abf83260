package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/qbind/internal/catalog"
	"github.com/roach88/qbind/internal/sqlir"
)

type foreignKey struct {
	table string // referencing table
	from  string
	to    string // referenced table
	toCol string
}

// IntrospectCatalog builds a catalog from the tables of the database.
// Entities are named after their tables and declared in table-name order.
func (s *Store) IntrospectCatalog(ctx context.Context) (*catalog.Catalog, error) {
	tables, err := s.tableNames(ctx)
	if err != nil {
		return nil, err
	}

	entities := make(map[string]*catalog.Entity, len(tables))
	var fks []foreignKey
	for _, table := range tables {
		entity, err := s.tableEntity(ctx, table)
		if err != nil {
			return nil, err
		}
		entities[table] = entity

		tableFKs, err := s.foreignKeys(ctx, table)
		if err != nil {
			return nil, err
		}
		fks = append(fks, tableFKs...)
	}

	for _, fk := range fks {
		origin := entities[fk.table]
		target, ok := entities[fk.to]
		if !ok {
			return nil, fmt.Errorf("table %s: foreign key %s references unknown table %s", fk.table, fk.from, fk.to)
		}
		toCol := fk.toCol
		if toCol == "" {
			toCol = target.Key
		}

		origin.Navigations = append(origin.Navigations, catalog.Navigation{
			Name:     navigationName(origin, oneNavigationName(fk)),
			Target:   target.Name,
			ThisKey:  fk.from,
			OtherKey: toCol,
		})
		target.Navigations = append(target.Navigations, catalog.Navigation{
			Name:        navigationName(target, fk.table+"s"),
			Target:      origin.Name,
			ThisKey:     toCol,
			OtherKey:    fk.from,
			Cardinality: sqlir.CardinalityMany,
		})
	}

	out := make([]catalog.Entity, 0, len(tables))
	for _, table := range tables {
		out = append(out, *entities[table])
	}
	cat, err := catalog.New(out...)
	if err != nil {
		return nil, fmt.Errorf("introspected schema is not a valid catalog: %w", err)
	}
	return cat, nil
}

func (s *Store) tableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) tableEntity(ctx context.Context, table string) (*catalog.Entity, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("table %s: read columns: %w", table, err)
	}
	defer rows.Close()

	entity := &catalog.Entity{Name: table, Table: table}
	var keys []string
	for rows.Next() {
		var (
			cid     int
			name    string
			decl    string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &decl, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("table %s: scan column: %w", table, err)
		}
		t, err := affinityType(decl)
		if err != nil {
			return nil, fmt.Errorf("table %s: column %s: %w", table, name, err)
		}
		entity.Columns = append(entity.Columns, catalog.Column{Name: name, Type: t})
		if pk > 0 {
			keys = append(keys, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table %s: iterate columns: %w", table, err)
	}

	if len(keys) != 1 {
		return nil, fmt.Errorf("table %s: expected a single-column primary key, found %d key columns", table, len(keys))
	}
	entity.Key = keys[0]
	return entity, nil
}

func (s *Store) foreignKeys(ctx context.Context, table string) ([]foreignKey, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("table %s: read foreign keys: %w", table, err)
	}
	defer rows.Close()

	var out []foreignKey
	for rows.Next() {
		var (
			id, seq                     int
			target, from                string
			to                          sql.NullString
			onUpdate, onDelete, matchBy string
		)
		if err := rows.Scan(&id, &seq, &target, &from, &to, &onUpdate, &onDelete, &matchBy); err != nil {
			return nil, fmt.Errorf("table %s: scan foreign key: %w", table, err)
		}
		if seq > 0 {
			return nil, fmt.Errorf("table %s: composite foreign key to %s is not supported", table, target)
		}
		out = append(out, foreignKey{table: table, from: from, to: target, toCol: to.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table %s: iterate foreign keys: %w", table, err)
	}

	return out, nil
}

// affinityType maps a declared column type to a catalog type using SQLite's
// affinity rules, with BOOL and DATE/TIME recognized before them.
func affinityType(decl string) (sqlir.Type, error) {
	d := strings.ToUpper(decl)
	switch {
	case strings.Contains(d, "BOOL"):
		return sqlir.Bool, nil
	case strings.Contains(d, "DATE"), strings.Contains(d, "TIME"):
		return sqlir.DateTime, nil
	case strings.Contains(d, "INT"):
		return sqlir.Int, nil
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return sqlir.String, nil
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"),
		strings.Contains(d, "NUMERIC"), strings.Contains(d, "DEC"):
		return sqlir.Decimal, nil
	default:
		return sqlir.Type{}, fmt.Errorf("unsupported declared type %q", decl)
	}
}

// oneNavigationName names a one-navigation after its foreign-key column
// without an ID suffix (KitchenID → Kitchen), or after the referenced table.
func oneNavigationName(fk foreignKey) string {
	for _, suffix := range []string{"_id", "ID", "Id"} {
		if name, ok := strings.CutSuffix(fk.from, suffix); ok && name != "" {
			return strings.TrimSuffix(name, "_")
		}
	}
	return fk.to
}

// navigationName returns name, suffixed with a counter when it collides with
// a column or navigation of e.
func navigationName(e *catalog.Entity, name string) string {
	taken := func(n string) bool {
		for _, c := range e.Columns {
			if c.Name == n {
				return true
			}
		}
		for _, nav := range e.Navigations {
			if nav.Name == n {
				return true
			}
		}
		return false
	}
	candidate := name
	for i := 2; taken(candidate); i++ {
		candidate = fmt.Sprintf("%s%d", name, i)
	}
	return candidate
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
