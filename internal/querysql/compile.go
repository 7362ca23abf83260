// Package querysql compiles resolved statements to parameterized SQLite SQL.
//
// Identifiers are bracket-quoted ([t0].[Name]), which SQLite accepts. The
// input must be fully resolved and normalized: placeholders (member
// accesses, type checks, table references, navigations) are rejected.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/qbind/internal/sqlir"
)

// SQLCompiler compiles resolved statements to SQL.
//
// CRITICAL: All values are parameterized (never interpolated). Only NULL
// and the 0/1 literals of boolean materialization appear inline.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a resolved statement to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(stmt *sqlir.Statement) (string, []any, error) {
	if stmt == nil {
		return "", nil, fmt.Errorf("cannot compile nil statement")
	}
	w := &writer{}
	if err := w.statement(stmt); err != nil {
		return "", nil, err
	}
	return w.sb.String(), w.params, nil
}

// CompileExpression converts a single resolved expression to SQL.
func (c *SQLCompiler) CompileExpression(e sqlir.Expression) (string, []any, error) {
	w := &writer{}
	if err := w.expr(e); err != nil {
		return "", nil, err
	}
	return w.sb.String(), w.params, nil
}

type writer struct {
	sb     strings.Builder
	params []any
}

func (w *writer) write(parts ...string) {
	for _, p := range parts {
		w.sb.WriteString(p)
	}
}

func (w *writer) statement(s *sqlir.Statement) error {
	w.write("SELECT ")
	if s.Distinct {
		w.write("DISTINCT ")
	}
	if err := w.projection(s.Projection, "value"); err != nil {
		return fmt.Errorf("compile projection: %w", err)
	}

	// A leading joined table (a navigation collection used as the source of
	// a correlated statement) has no table to join onto: its key pair moves
	// to WHERE.
	var correlation *sqlir.ResolvedJoin
	if len(s.Tables) > 0 {
		w.write(" FROM ")
		for i, t := range s.Tables {
			join, joined := resolvedJoin(t)
			switch {
			case joined && i == 0:
				correlation = join
				if err := w.source(join.Foreign); err != nil {
					return fmt.Errorf("compile table %d: %w", i, err)
				}
				if err := w.joins(t); err != nil {
					return fmt.Errorf("compile table %d: %w", i, err)
				}
			case joined:
				if err := w.join(t); err != nil {
					return fmt.Errorf("compile table %d: %w", i, err)
				}
			default:
				if i > 0 {
					w.write(", ")
				}
				if err := w.table(t); err != nil {
					return fmt.Errorf("compile table %d: %w", i, err)
				}
			}
		}
	}

	if correlation != nil || s.Where != nil {
		w.write(" WHERE ")
		if correlation != nil {
			if err := w.equality(correlation.LeftKey, correlation.RightKey); err != nil {
				return fmt.Errorf("compile correlation: %w", err)
			}
			if s.Where != nil {
				w.write(" AND ")
			}
		}
		if s.Where != nil {
			if err := w.expr(s.Where); err != nil {
				return fmt.Errorf("compile where: %w", err)
			}
		}
	}

	if g, ok := s.Projection.(*sqlir.GroupingSelect); ok {
		w.write(" GROUP BY ")
		if err := w.expr(g.Key); err != nil {
			return fmt.Errorf("compile group by: %w", err)
		}
	}

	if len(s.Orderings) > 0 {
		w.write(" ORDER BY ")
		for i, o := range s.Orderings {
			if i > 0 {
				w.write(", ")
			}
			if err := w.expr(o.Expression); err != nil {
				return fmt.Errorf("compile ordering %d: %w", i, err)
			}
			w.write(" ", o.Direction.String())
		}
	}

	if s.Top != nil {
		w.write(" LIMIT ")
		if err := w.expr(s.Top); err != nil {
			return fmt.Errorf("compile top: %w", err)
		}
	}
	return nil
}

// projection writes a SELECT list. Projected names follow the names an
// outer statement reads back: a Named value uses its name, a column keeps
// its own name, anything else is named by the enclosing member (or "value").
func (w *writer) projection(e sqlir.Expression, name string) error {
	switch n := e.(type) {
	case *sqlir.Named:
		switch n.Inner.(type) {
		case *sqlir.Entity, *sqlir.New, *sqlir.GroupingSelect:
			return w.projection(n.Inner, n.Name)
		}
		return w.aliased(n.Inner, n.Name)

	case *sqlir.Column:
		return w.expr(n)

	case *sqlir.Entity:
		for i, c := range n.Columns {
			if i > 0 {
				w.write(", ")
			}
			w.column(c)
		}
		return nil

	case *sqlir.New:
		if len(n.Args) == 0 {
			w.write("NULL AS ", quote(name))
			return nil
		}
		for i, arg := range n.Args {
			if i > 0 {
				w.write(", ")
			}
			if err := w.projection(arg, n.Members[i]); err != nil {
				return err
			}
		}
		return nil

	case *sqlir.GroupingSelect:
		if err := w.projection(n.Key, "key"); err != nil {
			return err
		}
		for _, agg := range n.Aggregations {
			w.write(", ")
			if err := w.aliased(agg.Inner, agg.Name); err != nil {
				return err
			}
		}
		return nil

	default:
		return w.aliased(e, name)
	}
}

func (w *writer) aliased(e sqlir.Expression, name string) error {
	if err := w.expr(e); err != nil {
		return err
	}
	w.write(" AS ", quote(name))
	return nil
}

func (w *writer) table(t *sqlir.SqlTable) error {
	if err := w.source(t.Source); err != nil {
		return err
	}
	return w.joins(t)
}

func (w *writer) joins(t *sqlir.SqlTable) error {
	for _, joined := range t.Joins() {
		if err := w.join(joined); err != nil {
			return err
		}
	}
	return nil
}

func resolvedJoin(t *sqlir.SqlTable) (*sqlir.ResolvedJoin, bool) {
	src, ok := t.Source.(*sqlir.JoinedTable)
	if !ok {
		return nil, false
	}
	join, ok := src.Join.(*sqlir.ResolvedJoin)
	return join, ok
}

func (w *writer) source(source sqlir.TableSource) error {
	switch s := source.(type) {
	case *sqlir.SimpleTable:
		w.write(quote(s.Name), " AS ", quote(s.Alias))
		return nil

	case *sqlir.SubStatementTable:
		w.write("(")
		if err := w.statement(s.Statement); err != nil {
			return err
		}
		w.write(") AS ", quote(s.Alias))
		return nil

	default:
		return fmt.Errorf("unsupported table source: %s", sqlir.Describe(source))
	}
}

func (w *writer) join(t *sqlir.SqlTable) error {
	src, ok := t.Source.(*sqlir.JoinedTable)
	if !ok {
		return fmt.Errorf("join table without join info: %s", sqlir.Describe(t.Source))
	}
	join, ok := src.Join.(*sqlir.ResolvedJoin)
	if !ok {
		return fmt.Errorf("unresolved join: %s", sqlir.Describe(src.Join))
	}

	if t.Semantics == sqlir.JoinLeft {
		w.write(" LEFT JOIN ")
	} else {
		w.write(" INNER JOIN ")
	}
	if err := w.source(join.Foreign); err != nil {
		return err
	}
	w.write(" ON ")
	if err := w.equality(join.LeftKey, join.RightKey); err != nil {
		return err
	}
	return w.joins(t)
}

func (w *writer) equality(left, right sqlir.Expression) error {
	if err := w.expr(left); err != nil {
		return err
	}
	w.write(" = ")
	return w.expr(right)
}

func (w *writer) column(c *sqlir.Column) {
	if c.TableAlias != "" {
		w.write(quote(c.TableAlias), ".")
	}
	w.write(quote(c.Name))
}

func (w *writer) expr(e sqlir.Expression) error {
	switch n := e.(type) {
	case *sqlir.Constant:
		w.constant(n)
		return nil

	case *sqlir.Column:
		w.column(n)
		return nil

	case *sqlir.Entity:
		// A whole row in a scalar position stands for its key.
		if n.PrimaryKey == nil {
			return fmt.Errorf("entity %s has no primary key", n.T)
		}
		w.column(n.PrimaryKey)
		return nil

	case *sqlir.EntityConstant:
		return w.expr(n.PrimaryKey)

	case *sqlir.Named:
		return w.expr(n.Inner)

	case *sqlir.ConvertedBoolean:
		return w.expr(n.Inner)

	case *sqlir.SubStatement:
		w.write("(")
		if err := w.statement(n.Statement); err != nil {
			return err
		}
		w.write(")")
		return nil

	case *sqlir.Case:
		w.write("CASE WHEN ")
		if err := w.expr(n.Test); err != nil {
			return err
		}
		w.write(" THEN ")
		if err := w.expr(n.Then); err != nil {
			return err
		}
		w.write(" ELSE ")
		if err := w.expr(n.Else); err != nil {
			return err
		}
		w.write(" END")
		return nil

	case *sqlir.IsNull:
		if err := w.expr(n.Inner); err != nil {
			return err
		}
		w.write(" IS NULL")
		return nil

	case *sqlir.IsNotNull:
		if err := w.expr(n.Inner); err != nil {
			return err
		}
		w.write(" IS NOT NULL")
		return nil

	case *sqlir.Aggregation:
		w.write(string(n.Func), "(")
		if n.Arg == nil {
			w.write("*")
		} else if err := w.expr(n.Arg); err != nil {
			return err
		}
		w.write(")")
		return nil

	case *sqlir.Function:
		return w.function(n)

	case *sqlir.Binary:
		return w.binary(n)

	case *sqlir.Unary:
		return w.unary(n)

	default:
		return fmt.Errorf("unsupported expression: %s", sqlir.Describe(e))
	}
}

// constant writes a parameter placeholder. Boolean values are passed as
// 0/1 integers, the storage form of SQLite booleans.
func (w *writer) constant(c *sqlir.Constant) {
	switch v := c.Value.(type) {
	case nil:
		w.write("NULL")
		return
	case bool:
		if v {
			w.params = append(w.params, int64(1))
		} else {
			w.params = append(w.params, int64(0))
		}
	case int64:
		// Materialization literals stay inline so CASE forms read plainly.
		if v == 0 || v == 1 {
			w.write(fmt.Sprintf("%d", v))
			return
		}
		w.params = append(w.params, v)
	default:
		w.params = append(w.params, v)
	}
	w.write("?")
}

func (w *writer) binary(b *sqlir.Binary) error {
	if b.Op == sqlir.OpCoalesce {
		w.write("COALESCE(")
		if err := w.expr(b.Left); err != nil {
			return err
		}
		w.write(", ")
		if err := w.expr(b.Right); err != nil {
			return err
		}
		w.write(")")
		return nil
	}

	w.write("(")
	if err := w.expr(b.Left); err != nil {
		return err
	}
	w.write(" ", b.Op.String(), " ")
	if err := w.expr(b.Right); err != nil {
		return err
	}
	w.write(")")
	return nil
}

func (w *writer) unary(u *sqlir.Unary) error {
	switch u.Op {
	case sqlir.OpNot:
		w.write("NOT ")
	case sqlir.OpNegate:
		w.write("-")
	case sqlir.OpConvert:
		w.write("CAST(")
		if err := w.expr(u.Operand); err != nil {
			return err
		}
		w.write(" AS ", sqliteType(u.T), ")")
		return nil
	default:
		return fmt.Errorf("unsupported unary operator: %s", u.Op)
	}
	w.write("(")
	if err := w.expr(u.Operand); err != nil {
		return err
	}
	w.write(")")
	return nil
}

var dateParts = map[string]string{
	"Year":  "%Y",
	"Month": "%m",
	"Day":   "%d",
}

func (w *writer) function(f *sqlir.Function) error {
	switch f.Name {
	case "LEN":
		f = &sqlir.Function{Name: "LENGTH", Args: f.Args, T: f.T}
	case "DATEPART":
		part, ok := f.Args[0].(*sqlir.Constant)
		if !ok || len(f.Args) != 2 {
			return fmt.Errorf("DATEPART requires a constant part and one operand")
		}
		format, ok := dateParts[fmt.Sprint(part.Value)]
		if !ok {
			return fmt.Errorf("unsupported date part: %v", part.Value)
		}
		w.write("CAST(strftime('", format, "', ")
		if err := w.expr(f.Args[1]); err != nil {
			return err
		}
		w.write(") AS INTEGER)")
		return nil
	}

	w.write(f.Name, "(")
	for i, arg := range f.Args {
		if i > 0 {
			w.write(", ")
		}
		if err := w.expr(arg); err != nil {
			return err
		}
	}
	w.write(")")
	return nil
}

func sqliteType(t sqlir.Type) string {
	switch t.Kind {
	case sqlir.KindInt, sqlir.KindBool:
		return "INTEGER"
	case sqlir.KindDecimal:
		return "REAL"
	case sqlir.KindString, sqlir.KindDateTime:
		return "TEXT"
	default:
		return "BLOB"
	}
}

func quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}
