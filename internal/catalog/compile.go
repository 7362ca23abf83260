package catalog

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/qbind/internal/sqlir"
)

// Compile builds a Catalog from a CUE value holding an `entity` struct:
//
//	entity: Cook: {
//		table: "Cooks"
//		key:   "ID"
//		columns: {
//			ID:                 int
//			FirstName:          string
//			IsFullTimeEmployee: bool
//			KitchenID:          int
//		}
//		navigation: Kitchen: {target: "Kitchen", this_key: "KitchenID"}
//	}
//
// Column types are CUE kinds (int, string, bool, float) or one of the
// strings "int", "string", "bool", "decimal", "datetime".
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entitiesVal := v.LookupPath(cue.ParsePath("entity"))
	if !entitiesVal.Exists() {
		return nil, &CompileError{Field: "entity", Message: "no entities declared", Pos: v.Pos()}
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var entities []Entity
	for iter.Next() {
		entity, err := CompileEntity(iter.Value())
		if err != nil {
			return nil, err
		}
		entities = append(entities, *entity)
	}

	// Navigation defaults need the target's key, so they are filled once
	// every entity is known.
	if err := fillNavigationDefaults(entities); err != nil {
		return nil, err
	}

	return New(entities...)
}

// CompileEntity parses one entity struct. The entity name is the struct's
// label, NFC-normalized.
func CompileEntity(v cue.Value) (*Entity, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entity := &Entity{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		entity.Name = normalizeName(labelName(labels[len(labels)-1]))
	}

	var err error
	if entity.Table, err = optionalString(v, "table"); err != nil {
		return nil, err
	}
	if entity.Key, err = optionalString(v, "key"); err != nil {
		return nil, err
	}
	if entity.Base, err = optionalString(v, "base"); err != nil {
		return nil, err
	}
	entity.Base = normalizeName(entity.Base)

	if entity.Base == "" && entity.Table == "" {
		return nil, &CompileError{
			Field:   fmt.Sprintf("entity.%s.table", entity.Name),
			Message: "table is required for an entity without base",
			Pos:     v.Pos(),
		}
	}

	if entity.Columns, err = parseColumns(v); err != nil {
		return nil, err
	}
	if entity.Navigations, err = parseNavigations(v); err != nil {
		return nil, err
	}

	discVal := v.LookupPath(cue.ParsePath("discriminator"))
	if discVal.Exists() {
		column, err := requiredString(discVal, "column")
		if err != nil {
			return nil, err
		}
		value, err := requiredString(discVal, "value")
		if err != nil {
			return nil, err
		}
		entity.Discriminator = &Discriminator{Column: normalizeName(column), Value: value}
	}

	return entity, nil
}

// parseColumns extracts column definitions in declaration order.
func parseColumns(v cue.Value) ([]Column, error) {
	columnsVal := v.LookupPath(cue.ParsePath("columns"))
	if !columnsVal.Exists() {
		return nil, nil
	}

	iter, err := columnsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var columns []Column
	for iter.Next() {
		t, err := extractType(iter.Value())
		if err != nil {
			return nil, err
		}
		columns = append(columns, Column{Name: normalizeName(labelName(iter.Selector())), Type: t})
	}
	return columns, nil
}

// parseNavigations extracts navigation definitions in declaration order.
func parseNavigations(v cue.Value) ([]Navigation, error) {
	navVal := v.LookupPath(cue.ParsePath("navigation"))
	if !navVal.Exists() {
		return nil, nil
	}

	iter, err := navVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var navs []Navigation
	for iter.Next() {
		nv := iter.Value()
		nav := Navigation{Name: normalizeName(labelName(iter.Selector())), Cardinality: sqlir.CardinalityOne}

		target, err := requiredString(nv, "target")
		if err != nil {
			return nil, err
		}
		nav.Target = normalizeName(target)

		thisKey, err := optionalString(nv, "this_key")
		if err != nil {
			return nil, err
		}
		otherKey, err := optionalString(nv, "other_key")
		if err != nil {
			return nil, err
		}
		nav.ThisKey, nav.OtherKey = normalizeName(thisKey), normalizeName(otherKey)

		card, err := optionalString(nv, "cardinality")
		if err != nil {
			return nil, err
		}
		switch card {
		case "", "one":
		case "many":
			nav.Cardinality = sqlir.CardinalityMany
		default:
			return nil, &CompileError{
				Field:   fmt.Sprintf("navigation.%s.cardinality", nav.Name),
				Message: fmt.Sprintf("cardinality must be \"one\" or \"many\", got %q", card),
				Pos:     nv.Pos(),
			}
		}

		navs = append(navs, nav)
	}
	return navs, nil
}

// fillNavigationDefaults sets omitted navigation keys: the target's key for
// a one-navigation, this entity's key for a many-navigation.
func fillNavigationDefaults(entities []Entity) error {
	byName := make(map[string]*Entity, len(entities))
	for i := range entities {
		byName[entities[i].Name] = &entities[i]
	}
	keyOf := func(name string) string {
		for e := byName[name]; e != nil; e = byName[e.Base] {
			if e.Key != "" || e.Base == "" {
				return e.Key
			}
		}
		return ""
	}

	for i := range entities {
		e := &entities[i]
		for j := range e.Navigations {
			nav := &e.Navigations[j]
			if _, ok := byName[nav.Target]; !ok {
				return fmt.Errorf("entity %s: navigation %s targets undeclared entity %s", e.Name, nav.Name, nav.Target)
			}
			switch nav.Cardinality {
			case sqlir.CardinalityOne:
				if nav.OtherKey == "" {
					nav.OtherKey = keyOf(nav.Target)
				}
			case sqlir.CardinalityMany:
				if nav.ThisKey == "" {
					nav.ThisKey = keyOf(e.Name)
				}
			}
			if nav.ThisKey == "" || nav.OtherKey == "" {
				return fmt.Errorf("entity %s: navigation %s needs this_key and other_key", e.Name, nav.Name)
			}
		}
	}
	return nil
}

// extractType converts a CUE column declaration to a Type.
func extractType(v cue.Value) (sqlir.Type, error) {
	if v.IsConcrete() && v.Kind() == cue.StringKind {
		name, err := v.String()
		if err != nil {
			return sqlir.Type{}, formatCUEError(err)
		}
		switch name {
		case "int":
			return sqlir.Int, nil
		case "string":
			return sqlir.String, nil
		case "bool":
			return sqlir.Bool, nil
		case "decimal":
			return sqlir.Decimal, nil
		case "datetime":
			return sqlir.DateTime, nil
		}
		return sqlir.Type{}, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unknown column type %q", name),
			Pos:     v.Pos(),
		}
	}

	switch v.IncompleteKind() {
	case cue.IntKind:
		return sqlir.Int, nil
	case cue.StringKind:
		return sqlir.String, nil
	case cue.BoolKind:
		return sqlir.Bool, nil
	case cue.FloatKind, cue.NumberKind:
		return sqlir.Decimal, nil
	default:
		return sqlir.Type{}, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported column kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// labelName returns a field label without CUE quoting.
func labelName(sel cue.Selector) string {
	if sel.LabelType() == cue.StringLabel {
		return sel.Unquoted()
	}
	return sel.String()
}

// normalizeName puts identifiers in NFC so visually identical names written
// with different code point sequences compare equal.
func normalizeName(name string) string {
	return norm.NFC.String(name)
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
