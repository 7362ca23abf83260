package harness

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"

	"github.com/roach88/qbind/internal/catalog"
	"github.com/roach88/qbind/internal/sqlir"
)

// StatementSpec is the scenario form of a front-end statement. Expressions
// are written in Go expression syntax over the table names of From:
//
//	from:
//	  - {name: c, entity: Cook}
//	select: Pair{Name: c.FirstName, Full: c.IsFullTimeEmployee}
//	where:  c.Kitchen.Name == "Main" && !is(c, Chef)
//
// Besides members, operators and literals (nil for null), expressions may
// call:
//
//	is(x, Entity)                    type check
//	coalesce(a, b)                   COALESCE
//	cond(test, a, b)                 CASE WHEN
//	int(x) string(x) decimal(x)      conversions
//	count(src)                       rows of a grouping or collection
//	sum(src.M) min(..) max(..) avg(..)
//
// where src is a grouping (g or a path to one) or a collection navigation
// (k.Cooks) and .M a member path on its elements. A composite literal of a
// mapped entity (Kitchen{ID: 1}) is an entity constant; any other
// composite literal constructs a record.
type StatementSpec struct {
	From     []TableSpec    `yaml:"from"`
	Select   string         `yaml:"select,omitempty"`
	GroupBy  string         `yaml:"group_by,omitempty"`
	Where    string         `yaml:"where,omitempty"`
	OrderBy  []OrderingSpec `yaml:"order_by,omitempty"`
	Top      string         `yaml:"top,omitempty"`
	Distinct bool           `yaml:"distinct,omitempty"`

	// Result is "sequence" (default), "scalar" or "single".
	Result string `yaml:"result,omitempty"`
}

// TableSpec declares one statement table. Exactly one of Entity,
// Collection and Query is set.
type TableSpec struct {
	Name string `yaml:"name"`

	// Entity names a mapped entity.
	Entity string `yaml:"entity,omitempty"`

	// Collection is a many-navigation of an earlier table, e.g. k.Cooks.
	Collection string `yaml:"collection,omitempty"`

	// Query is a derived table. It does not see the enclosing tables.
	Query *StatementSpec `yaml:"query,omitempty"`
}

// OrderingSpec is one ORDER BY term.
type OrderingSpec struct {
	Expr string `yaml:"expr"`
	Desc bool   `yaml:"desc,omitempty"`
}

// BuildError reports a statement the builder cannot type against the
// catalog.
type BuildError struct {
	Source  string // expression text, empty for structural errors
	Offset  int    // byte offset in Source
	Message string
}

func (e *BuildError) Error() string {
	if e.Source == "" {
		return e.Message
	}
	return fmt.Sprintf("%q (offset %d): %s", e.Source, e.Offset, e.Message)
}

// Builder types statement specs against a catalog and produces front-end
// statements: unresolved tables, member accesses, type checks and table
// references, ready for the resolution stage.
//
// A Builder remembers record shapes across Build calls; it is not safe for
// concurrent use.
type Builder struct {
	catalog *catalog.Catalog
	records map[string]map[string]sqlir.Type
}

// NewBuilder creates a Builder over cat.
func NewBuilder(cat *catalog.Catalog) *Builder {
	return &Builder{catalog: cat, records: make(map[string]map[string]sqlir.Type)}
}

// Build turns spec into a front-end statement.
func (b *Builder) Build(spec StatementSpec) (*sqlir.Statement, error) {
	return b.statement(spec, nil)
}

type scope struct {
	parent *scope
	tables map[string]*sqlir.SqlTable
}

func (s *scope) lookup(name string) (*sqlir.SqlTable, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.tables[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// expression binds one expression's source text to its scope, for error
// positions.
type expression struct {
	b     *Builder
	src   string
	scope *scope
}

func (b *Builder) statement(spec StatementSpec, parent *scope) (*sqlir.Statement, error) {
	if len(spec.From) == 0 {
		return nil, &BuildError{Message: "statement has no tables"}
	}

	sc := &scope{parent: parent, tables: make(map[string]*sqlir.SqlTable)}
	stmt := &sqlir.Statement{Distinct: spec.Distinct}
	for i, ts := range spec.From {
		if ts.Name == "" {
			return nil, &BuildError{Message: fmt.Sprintf("from[%d]: name is required", i)}
		}
		if _, dup := sc.tables[ts.Name]; dup {
			return nil, &BuildError{Message: fmt.Sprintf("from[%d]: table %s declared twice", i, ts.Name)}
		}
		table, err := b.table(ts, sc)
		if err != nil {
			return nil, err
		}
		sc.tables[ts.Name] = table
		stmt.Tables = append(stmt.Tables, table)
	}

	var err error
	if spec.Select != "" {
		if stmt.Projection, err = b.parse(spec.Select, sc); err != nil {
			return nil, err
		}
	} else {
		stmt.Projection = &sqlir.TableReference{Table: stmt.Tables[len(stmt.Tables)-1]}
	}

	if spec.GroupBy != "" {
		key, err := b.parse(spec.GroupBy, sc)
		if err != nil {
			return nil, err
		}
		stmt.Projection = &sqlir.GroupingSelect{Key: key, Element: stmt.Projection}
	}

	if spec.Where != "" {
		if stmt.Where, err = b.parse(spec.Where, sc); err != nil {
			return nil, err
		}
	}
	for _, o := range spec.OrderBy {
		expr, err := b.parse(o.Expr, sc)
		if err != nil {
			return nil, err
		}
		dir := sqlir.Ascending
		if o.Desc {
			dir = sqlir.Descending
		}
		stmt.Orderings = append(stmt.Orderings, sqlir.Ordering{Expression: expr, Direction: dir})
	}
	if spec.Top != "" {
		if stmt.Top, err = b.parse(spec.Top, sc); err != nil {
			return nil, err
		}
	}

	t := stmt.Projection.Type()
	switch spec.Result {
	case "", "sequence":
		stmt.DataInfo = sqlir.SequenceInfo{ItemType: t}
	case "scalar":
		stmt.DataInfo = sqlir.ScalarInfo{T: t}
	case "single":
		stmt.DataInfo = sqlir.SingleInfo{ItemType: t}
	default:
		return nil, &BuildError{Message: fmt.Sprintf("unknown result shape %q", spec.Result)}
	}
	return stmt, nil
}

func (b *Builder) table(ts TableSpec, sc *scope) (*sqlir.SqlTable, error) {
	set := 0
	for _, s := range []bool{ts.Entity != "", ts.Collection != "", ts.Query != nil} {
		if s {
			set++
		}
	}
	if set != 1 {
		return nil, &BuildError{Message: fmt.Sprintf("table %s: exactly one of entity, collection, query is required", ts.Name)}
	}

	switch {
	case ts.Entity != "":
		if _, ok := b.catalog.Entity(ts.Entity); !ok {
			return nil, &BuildError{Message: fmt.Sprintf("table %s: entity %s is not mapped", ts.Name, ts.Entity)}
		}
		return sqlir.NewSqlTable(&sqlir.UnresolvedTable{Item: sqlir.EntityType(ts.Entity)}, sqlir.JoinInner), nil

	case ts.Query != nil:
		stmt, err := b.statement(*ts.Query, nil)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", ts.Name, err)
		}
		return sqlir.NewSqlTable(&sqlir.SubStatementTable{Statement: stmt}, sqlir.JoinInner), nil

	default:
		node, err := parser.ParseExpr(ts.Collection)
		if err != nil {
			return nil, &BuildError{Source: ts.Collection, Message: err.Error()}
		}
		x := &expression{b: b, src: ts.Collection, scope: sc}
		sel, ok := node.(*ast.SelectorExpr)
		if !ok {
			return nil, x.errorf(node, "collection must be a navigation member")
		}
		source, err := x.build(sel.X)
		if err != nil {
			return nil, err
		}
		member, err := x.member(sel, source.Type())
		if err != nil {
			return nil, err
		}
		if !member.Type.IsCollection() {
			return nil, x.errorf(sel.Sel, "%s is not a collection", member.Name)
		}
		join := &sqlir.UnresolvedCollectionJoin{Source: source, Member: member}
		return sqlir.NewSqlTable(&sqlir.JoinedTable{Join: join}, sqlir.JoinInner), nil
	}
}

func (b *Builder) parse(src string, sc *scope) (sqlir.Expression, error) {
	node, err := parser.ParseExpr(src)
	if err != nil {
		return nil, &BuildError{Source: src, Message: err.Error()}
	}
	x := &expression{b: b, src: src, scope: sc}
	return x.build(node)
}

func (x *expression) errorf(node ast.Node, format string, args ...any) error {
	// ParseExpr positions are 1-based offsets into src.
	return &BuildError{Source: x.src, Offset: int(node.Pos()) - 1, Message: fmt.Sprintf(format, args...)}
}

var binaryOps = map[token.Token]sqlir.BinaryOp{
	token.EQL:  sqlir.OpEqual,
	token.NEQ:  sqlir.OpNotEqual,
	token.LSS:  sqlir.OpLessThan,
	token.LEQ:  sqlir.OpLessThanOrEqual,
	token.GTR:  sqlir.OpGreaterThan,
	token.GEQ:  sqlir.OpGreaterThanOrEqual,
	token.ADD:  sqlir.OpAdd,
	token.SUB:  sqlir.OpSubtract,
	token.MUL:  sqlir.OpMultiply,
	token.QUO:  sqlir.OpDivide,
	token.REM:  sqlir.OpModulo,
	token.LAND: sqlir.OpAndAlso,
	token.LOR:  sqlir.OpOrElse,
	token.AND:  sqlir.OpAnd,
	token.OR:   sqlir.OpOr,
	token.XOR:  sqlir.OpExclusiveOr,
}

var conversions = map[string]sqlir.Type{
	"int":      sqlir.Int,
	"string":   sqlir.String,
	"decimal":  sqlir.Decimal,
	"bool":     sqlir.Bool,
	"datetime": sqlir.DateTime,
}

func (x *expression) build(node ast.Expr) (sqlir.Expression, error) {
	switch n := node.(type) {
	case *ast.ParenExpr:
		return x.build(n.X)

	case *ast.Ident:
		switch n.Name {
		case "nil":
			return sqlir.NewConstant(nil, sqlir.Type{}), nil
		case "true", "false":
			return sqlir.NewConstant(n.Name == "true", sqlir.Bool), nil
		}
		table, ok := x.scope.lookup(n.Name)
		if !ok {
			return nil, x.errorf(n, "unknown table %s", n.Name)
		}
		return &sqlir.TableReference{Table: table}, nil

	case *ast.BasicLit:
		return x.literal(n)

	case *ast.SelectorExpr:
		source, err := x.build(n.X)
		if err != nil {
			return nil, err
		}
		member, err := x.member(n, source.Type())
		if err != nil {
			return nil, err
		}
		return &sqlir.MemberAccess{Source: source, Member: member}, nil

	case *ast.BinaryExpr:
		op, ok := binaryOps[n.Op]
		if !ok {
			return nil, x.errorf(n, "unsupported operator %s", n.Op)
		}
		left, err := x.build(n.X)
		if err != nil {
			return nil, err
		}
		right, err := x.build(n.Y)
		if err != nil {
			return nil, err
		}
		left, right = typeNull(left, right), typeNull(right, left)
		return sqlir.NewBinary(op, left, right), nil

	case *ast.UnaryExpr:
		operand, err := x.build(n.X)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.NOT:
			return sqlir.NewNot(operand), nil
		case token.SUB:
			return &sqlir.Unary{Op: sqlir.OpNegate, Operand: operand, T: operand.Type()}, nil
		}
		return nil, x.errorf(n, "unsupported operator %s", n.Op)

	case *ast.CompositeLit:
		return x.composite(n)

	case *ast.CallExpr:
		return x.call(n)

	default:
		return nil, x.errorf(node, "unsupported expression %T", node)
	}
}

// typeNull gives an untyped null the type of the value it is compared with.
func typeNull(e, other sqlir.Expression) sqlir.Expression {
	if c, ok := e.(*sqlir.Constant); ok && c.Value == nil && c.T.Kind == sqlir.KindUnknown {
		return sqlir.NewConstant(nil, other.Type())
	}
	return e
}

func (x *expression) literal(n *ast.BasicLit) (sqlir.Expression, error) {
	switch n.Kind {
	case token.INT:
		v, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, x.errorf(n, "%v", err)
		}
		return sqlir.NewConstant(v, sqlir.Int), nil
	case token.FLOAT:
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, x.errorf(n, "%v", err)
		}
		return sqlir.NewConstant(v, sqlir.Decimal), nil
	case token.STRING:
		v, err := strconv.Unquote(n.Value)
		if err != nil {
			return nil, x.errorf(n, "%v", err)
		}
		return sqlir.NewConstant(v, sqlir.String), nil
	default:
		return nil, x.errorf(n, "unsupported literal %s", n.Value)
	}
}

// member types sel.Sel on a value of type t.
func (x *expression) member(sel *ast.SelectorExpr, t sqlir.Type) (sqlir.Member, error) {
	name := sel.Sel.Name
	m := sqlir.Member{Name: name, Declaring: t.Name}

	switch t.Kind {
	case sqlir.KindEntity:
		entity, ok := x.b.catalog.Entity(t.Name)
		if !ok {
			return m, x.errorf(sel.Sel, "entity %s is not mapped", t.Name)
		}
		for _, c := range x.b.catalog.AllColumns(entity) {
			if c.Name == name {
				m.Type = c.Type
				return m, nil
			}
		}
		if nav, ok := x.b.catalog.Navigation(entity, name); ok {
			m.Type = sqlir.EntityType(nav.Target)
			if nav.Cardinality == sqlir.CardinalityMany {
				m.Type = sqlir.CollectionOf(m.Type)
			}
			return m, nil
		}

	case sqlir.KindGrouping:
		if name == "Key" && t.Key != nil {
			m.Type = *t.Key
			return m, nil
		}

	case sqlir.KindRecord:
		if mt, ok := x.b.records[t.Name][name]; ok {
			m.Type = mt
			return m, nil
		}

	case sqlir.KindString:
		if name == "Length" {
			m.Type = sqlir.Int
			return m, nil
		}

	case sqlir.KindDateTime:
		if name == "Year" || name == "Month" || name == "Day" {
			m.Type = sqlir.Int
			return m, nil
		}
	}
	return m, x.errorf(sel.Sel, "%s has no member %s", t, name)
}

func (x *expression) composite(n *ast.CompositeLit) (sqlir.Expression, error) {
	ident, ok := n.Type.(*ast.Ident)
	if !ok {
		return nil, x.errorf(n, "composite literal needs a type name")
	}

	var (
		members []string
		args    []sqlir.Expression
	)
	for _, elt := range n.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			return nil, x.errorf(elt, "composite literal fields must be named")
		}
		key, ok := kv.Key.(*ast.Ident)
		if !ok {
			return nil, x.errorf(kv.Key, "field name must be an identifier")
		}
		arg, err := x.build(kv.Value)
		if err != nil {
			return nil, err
		}
		members = append(members, key.Name)
		args = append(args, arg)
	}

	if _, ok := x.b.catalog.Entity(ident.Name); ok {
		values := make(map[string]any, len(members))
		for i, arg := range args {
			c, ok := arg.(*sqlir.Constant)
			if !ok {
				return nil, x.errorf(n.Elts[i], "entity constant fields must be literals")
			}
			values[members[i]] = c.Value
		}
		return sqlir.NewConstant(values, sqlir.EntityType(ident.Name)), nil
	}

	shape := make(map[string]sqlir.Type, len(members))
	for i, m := range members {
		shape[m] = args[i].Type()
	}
	x.b.records[ident.Name] = shape
	return &sqlir.New{Ctor: ident.Name, Members: members, Args: args, T: sqlir.RecordType(ident.Name)}, nil
}

func (x *expression) call(n *ast.CallExpr) (sqlir.Expression, error) {
	fn, ok := n.Fun.(*ast.Ident)
	if !ok {
		return nil, x.errorf(n, "unsupported call")
	}
	arity := func(want int) error {
		if len(n.Args) != want {
			return x.errorf(n, "%s takes %d arguments, got %d", fn.Name, want, len(n.Args))
		}
		return nil
	}

	switch fn.Name {
	case "is":
		if err := arity(2); err != nil {
			return nil, err
		}
		target, ok := n.Args[1].(*ast.Ident)
		if !ok {
			return nil, x.errorf(n.Args[1], "type check target must be an entity name")
		}
		if _, ok := x.b.catalog.Entity(target.Name); !ok {
			return nil, x.errorf(target, "entity %s is not mapped", target.Name)
		}
		operand, err := x.build(n.Args[0])
		if err != nil {
			return nil, err
		}
		return &sqlir.TypeCheck{Operand: operand, Target: sqlir.EntityType(target.Name)}, nil

	case "coalesce":
		if err := arity(2); err != nil {
			return nil, err
		}
		args, err := x.args(n.Args)
		if err != nil {
			return nil, err
		}
		return sqlir.NewBinary(sqlir.OpCoalesce, args[0], args[1]), nil

	case "cond":
		if err := arity(3); err != nil {
			return nil, err
		}
		args, err := x.args(n.Args)
		if err != nil {
			return nil, err
		}
		then, els := typeNull(args[1], args[2]), typeNull(args[2], args[1])
		return &sqlir.Case{Test: args[0], Then: then, Else: els, T: then.Type()}, nil

	case "count", "sum", "min", "max", "avg":
		if err := arity(1); err != nil {
			return nil, err
		}
		return x.aggregate(fn.Name, n.Args[0])
	}

	if t, ok := conversions[fn.Name]; ok {
		if err := arity(1); err != nil {
			return nil, err
		}
		operand, err := x.build(n.Args[0])
		if err != nil {
			return nil, err
		}
		return &sqlir.Unary{Op: sqlir.OpConvert, Operand: operand, T: t}, nil
	}
	return nil, x.errorf(fn, "unknown function %s", fn.Name)
}

func (x *expression) args(nodes []ast.Expr) ([]sqlir.Expression, error) {
	out := make([]sqlir.Expression, len(nodes))
	for i, node := range nodes {
		e, err := x.build(node)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

var aggregates = map[string]sqlir.AggregateFunc{
	"count": sqlir.AggCount,
	"sum":   sqlir.AggSum,
	"min":   sqlir.AggMin,
	"max":   sqlir.AggMax,
	"avg":   sqlir.AggAvg,
}

// aggregate builds a scalar sub-statement aggregating the element rows of
// a grouping or a collection navigation. The path splits at the first
// grouping or collection: its prefix is the source, the rest a member path
// on the elements.
func (x *expression) aggregate(name string, arg ast.Expr) (sqlir.Expression, error) {
	path, root, err := selectorPath(arg)
	if err != nil {
		return nil, x.errorf(arg, "%s needs a member path, %v", name, err)
	}
	table, ok := x.scope.lookup(root.Name)
	if !ok {
		return nil, x.errorf(root, "unknown table %s", root.Name)
	}

	var (
		current  sqlir.Expression = &sqlir.TableReference{Table: table}
		elements *sqlir.SqlTable
		rest     []*ast.SelectorExpr
	)
	for i := 0; elements == nil; i++ {
		if current.Type().Kind == sqlir.KindGrouping {
			elements = sqlir.NewSqlTable(&sqlir.GroupElementsTable{Grouping: current}, sqlir.JoinInner)
			rest = path[i:]
			break
		}
		if i == len(path) {
			return nil, x.errorf(arg, "%s needs a grouping or a collection, got %s", name, current.Type())
		}
		member, err := x.member(path[i], current.Type())
		if err != nil {
			return nil, err
		}
		if member.Type.IsCollection() {
			join := &sqlir.UnresolvedCollectionJoin{Source: current, Member: member}
			elements = sqlir.NewSqlTable(&sqlir.JoinedTable{Join: join}, sqlir.JoinInner)
			rest = path[i+1:]
			break
		}
		current = &sqlir.MemberAccess{Source: current, Member: member}
	}

	agg := &sqlir.Aggregation{Func: aggregates[name], T: sqlir.Int}
	if name != "count" {
		var value sqlir.Expression = &sqlir.TableReference{Table: elements}
		for _, sel := range rest {
			member, err := x.member(sel, value.Type())
			if err != nil {
				return nil, err
			}
			value = &sqlir.MemberAccess{Source: value, Member: member}
		}
		agg.Arg = value
		agg.T = value.Type()
		if name == "avg" {
			agg.T = sqlir.Decimal
		}
	} else if len(rest) > 0 {
		return nil, x.errorf(arg, "count takes a grouping or a collection, not a member of its elements")
	}

	return &sqlir.SubStatement{Statement: &sqlir.Statement{
		DataInfo:   sqlir.ScalarInfo{T: agg.T},
		Projection: agg,
		Tables:     []*sqlir.SqlTable{elements},
	}}, nil
}

// selectorPath flattens a.b.c into its root identifier and selectors.
func selectorPath(node ast.Expr) ([]*ast.SelectorExpr, *ast.Ident, error) {
	var path []*ast.SelectorExpr
	for {
		switch n := node.(type) {
		case *ast.Ident:
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path, n, nil
		case *ast.SelectorExpr:
			path = append(path, n)
			node = n.X
		case *ast.ParenExpr:
			node = n.X
		default:
			return nil, nil, fmt.Errorf("got %T", node)
		}
	}
}
