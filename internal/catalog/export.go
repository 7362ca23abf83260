package catalog

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/format"

	"github.com/roach88/qbind/internal/sqlir"
)

// columnTypeNames are the CUE strings Compile reads back.
var columnTypeNames = map[sqlir.Kind]string{
	sqlir.KindInt:      "int",
	sqlir.KindString:   "string",
	sqlir.KindBool:     "bool",
	sqlir.KindDecimal:  "decimal",
	sqlir.KindDateTime: "datetime",
}

// Format renders cat as CUE source that LoadDir and Compile read back into
// an equal catalog. Entities, columns and navigations keep their order.
// Navigation keys are always written out, so the output does not depend on
// key defaults.
func Format(cat *Catalog, pkg string) ([]byte, error) {
	entities := &ast.StructLit{}
	for _, name := range cat.Names() {
		e, _ := cat.Entity(name)
		lit, err := formatEntity(e)
		if err != nil {
			return nil, err
		}
		entities.Elts = append(entities.Elts, field(name, lit))
	}

	file := &ast.File{}
	if pkg != "" {
		file.Decls = append(file.Decls, &ast.Package{Name: ast.NewIdent(pkg)})
	}
	file.Decls = append(file.Decls, field("entity", entities))

	out, err := format.Node(file)
	if err != nil {
		return nil, fmt.Errorf("format catalog: %w", err)
	}
	return out, nil
}

func formatEntity(e *Entity) (*ast.StructLit, error) {
	lit := &ast.StructLit{}
	if e.Base != "" {
		lit.Elts = append(lit.Elts, field("base", ast.NewString(e.Base)))
	}
	if e.Table != "" {
		lit.Elts = append(lit.Elts, field("table", ast.NewString(e.Table)))
	}
	if e.Key != "" {
		lit.Elts = append(lit.Elts, field("key", ast.NewString(e.Key)))
	}
	if d := e.Discriminator; d != nil {
		lit.Elts = append(lit.Elts, field("discriminator", &ast.StructLit{Elts: []ast.Decl{
			field("column", ast.NewString(d.Column)),
			field("value", ast.NewString(d.Value)),
		}}))
	}

	columns := &ast.StructLit{}
	for _, c := range e.Columns {
		typ, ok := columnTypeNames[c.Type.Kind]
		if !ok {
			return nil, fmt.Errorf("entity %s: column %s has no catalog type for %s", e.Name, c.Name, c.Type)
		}
		columns.Elts = append(columns.Elts, field(c.Name, ast.NewString(typ)))
	}
	if len(columns.Elts) > 0 {
		lit.Elts = append(lit.Elts, field("columns", columns))
	}

	navs := &ast.StructLit{}
	for _, n := range e.Navigations {
		nav := &ast.StructLit{Elts: []ast.Decl{
			field("target", ast.NewString(n.Target)),
			field("this_key", ast.NewString(n.ThisKey)),
			field("other_key", ast.NewString(n.OtherKey)),
		}}
		if n.Cardinality == sqlir.CardinalityMany {
			nav.Elts = append(nav.Elts, field("cardinality", ast.NewString("many")))
		}
		navs.Elts = append(navs.Elts, field(n.Name, nav))
	}
	if len(navs.Elts) > 0 {
		lit.Elts = append(lit.Elts, field("navigation", navs))
	}
	return lit, nil
}

// field declares name: value, quoting name when it is not a plain
// identifier. Hidden (_x) and definition (#X) names are quoted too.
func field(name string, value ast.Expr) *ast.Field {
	var label ast.Label = ast.NewString(name)
	if ast.IsValidIdent(name) && !strings.HasPrefix(name, "_") && !strings.HasPrefix(name, "#") {
		label = ast.NewIdent(name)
	}
	return &ast.Field{Label: label, Value: value}
}
