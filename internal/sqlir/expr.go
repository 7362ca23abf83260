package sqlir

import "strconv"

// Expression is a node of a statement's expression tree.
//
// This is a sealed interface - only types in this package implement it.
type Expression interface {
	Type() Type
	exprNode() // Marker method - seals interface to this package
}

// Constant is a literal value. Entity-typed constants carry the entity's
// field values as map[string]any and are lowered by the schema resolver.
type Constant struct {
	Value any
	T     Type
}

func (c *Constant) Type() Type { return c.T }
func (*Constant) exprNode()     {}

// NewConstant creates a constant of the given type.
func NewConstant(value any, t Type) *Constant {
	return &Constant{Value: value, T: t}
}

// Column is a single concrete column reference, e.g. [t].[Name].
type Column struct {
	T            Type
	TableAlias   string
	Name         string
	IsPrimaryKey bool
}

func (c *Column) Type() Type { return c.T }
func (*Column) exprNode()     {}

// Retype returns a copy of the column with a different type.
func (c *Column) Retype(t Type) *Column {
	cp := *c
	cp.T = t
	return &cp
}

// Entity is a full mapped row: its primary key column and all columns.
type Entity struct {
	T          Type
	TableAlias string
	PrimaryKey *Column
	Columns    []*Column
}

func (e *Entity) Type() Type { return e.T }
func (*Entity) exprNode()     {}

// Column returns the column with the given name.
func (e *Entity) Column(name string) (*Column, bool) {
	for _, c := range e.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// EntityConstant is an entity-typed literal lowered to its primary key.
type EntityConstant struct {
	T          Type
	PrimaryKey Expression
}

func (e *EntityConstant) Type() Type { return e.T }
func (*EntityConstant) exprNode()     {}

// EntityRefMember is an unresolved navigation from an entity to a single
// related entity. Resolving it introduces an implicit join.
type EntityRefMember struct {
	Entity *Entity
	Member Member
}

func (e *EntityRefMember) Type() Type { return e.Member.Type }
func (*EntityRefMember) exprNode()     {}

// Named tags an inner expression with a projection name.
type Named struct {
	Name  string
	Inner Expression
}

func (n *Named) Type() Type { return n.Inner.Type() }
func (*Named) exprNode()     {}

// SubStatement is a nested statement used as a value.
type SubStatement struct {
	Statement *Statement
}

func (s *SubStatement) Type() Type { return s.Statement.DataInfo.ResultType() }
func (*SubStatement) exprNode()     {}

// Case is CASE WHEN Test THEN Then ELSE Else END.
type Case struct {
	Test Expression
	Then Expression
	Else Expression
	T    Type
}

func (c *Case) Type() Type { return c.T }
func (*Case) exprNode()     {}

// NewBooleanCase returns CASE WHEN predicate THEN 1 ELSE 0 END.
func NewBooleanCase(predicate Expression) *Case {
	return &Case{
		Test: predicate,
		Then: NewConstant(int64(1), Int),
		Else: NewConstant(int64(0), Int),
		T:    Int,
	}
}

// IsNull is Inner IS NULL.
type IsNull struct {
	Inner Expression
}

func (*IsNull) Type() Type { return Bool }
func (*IsNull) exprNode()  {}

// IsNotNull is Inner IS NOT NULL.
type IsNotNull struct {
	Inner Expression
}

func (*IsNotNull) Type() Type { return Bool }
func (*IsNotNull) exprNode()  {}

// GroupingSelect is the resolved key/element/aggregation triple of a
// grouping operation.
//
// Aggregations is append-only during a resolution call: the grouping
// aggregate simplifier pushes aggregates into the grouping that produces
// them (AddAggregation).
type GroupingSelect struct {
	Key          Expression
	Element      Expression
	Aggregations []*Named
}

func (g *GroupingSelect) Type() Type {
	return GroupingOf(g.Key.Type(), g.Element.Type())
}
func (*GroupingSelect) exprNode() {}

// AddAggregation appends an aggregation under a generated name and returns
// the name. Names are "a0", "a1", ... in insertion order.
func (g *GroupingSelect) AddAggregation(agg Expression) string {
	name := "a" + strconv.Itoa(len(g.Aggregations))
	g.Aggregations = append(g.Aggregations, &Named{Name: name, Inner: agg})
	return name
}

// AggregateFunc names an aggregate function.
type AggregateFunc string

const (
	AggCount AggregateFunc = "COUNT"
	AggSum   AggregateFunc = "SUM"
	AggMin   AggregateFunc = "MIN"
	AggMax   AggregateFunc = "MAX"
	AggAvg   AggregateFunc = "AVG"
)

// Aggregation applies an aggregate function to Arg. Arg is nil for COUNT(*).
type Aggregation struct {
	Func AggregateFunc
	Arg  Expression
	T    Type
}

func (a *Aggregation) Type() Type { return a.T }
func (*Aggregation) exprNode()     {}

// Function is a scalar function call, e.g. LEN([t].[Name]).
type Function struct {
	Name string
	Args []Expression
	T    Type
}

func (f *Function) Type() Type { return f.T }
func (*Function) exprNode()     {}

// BinaryOp is a binary operator.
type BinaryOp int

const (
	OpEqual BinaryOp = iota
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpAndAlso
	OpOrElse
	OpAnd
	OpOr
	OpExclusiveOr
	OpCoalesce
)

var binaryOpSymbols = map[BinaryOp]string{
	OpEqual:              "=",
	OpNotEqual:           "<>",
	OpLessThan:           "<",
	OpLessThanOrEqual:    "<=",
	OpGreaterThan:        ">",
	OpGreaterThanOrEqual: ">=",
	OpAdd:                "+",
	OpSubtract:           "-",
	OpMultiply:           "*",
	OpDivide:             "/",
	OpModulo:             "%",
	OpAndAlso:            "AND",
	OpOrElse:             "OR",
	OpAnd:                "&",
	OpOr:                 "|",
	OpExclusiveOr:        "^",
	OpCoalesce:           "COALESCE",
}

func (op BinaryOp) String() string {
	if s, ok := binaryOpSymbols[op]; ok {
		return s
	}
	return "?"
}

// IsComparison reports whether op compares its operands.
func (op BinaryOp) IsComparison() bool {
	return op >= OpEqual && op <= OpGreaterThanOrEqual
}

// Binary applies a binary operator.
type Binary struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
	T     Type
}

func (b *Binary) Type() Type { return b.T }
func (*Binary) exprNode()     {}

// NewBinary creates a binary node, deriving its type from the operator:
// comparisons and short-circuit logic are boolean, everything else takes the
// left operand's type.
func NewBinary(op BinaryOp, left, right Expression) *Binary {
	t := left.Type()
	if op.IsComparison() || op == OpAndAlso || op == OpOrElse {
		t = Bool
	}
	return &Binary{Op: op, Left: left, Right: right, T: t}
}

// UnaryOp is a unary operator.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNegate
	OpConvert
)

func (op UnaryOp) String() string {
	switch op {
	case OpNot:
		return "NOT"
	case OpNegate:
		return "-"
	case OpConvert:
		return "CONVERT"
	default:
		return "?"
	}
}

// Unary applies a unary operator. For OpConvert, T is the target type.
type Unary struct {
	Op      UnaryOp
	Operand Expression
	T       Type
}

func (u *Unary) Type() Type { return u.T }
func (*Unary) exprNode()     {}

// NewNot creates NOT operand.
func NewNot(operand Expression) *Unary {
	return &Unary{Op: OpNot, Operand: operand, T: operand.Type()}
}

// New constructs a tuple or record. Members[i] names Args[i].
type New struct {
	Ctor    string
	Members []string
	Args    []Expression
	T       Type
}

func (n *New) Type() Type { return n.T }
func (*New) exprNode()     {}

// Arg returns the constructor argument bound to the named member.
func (n *New) Arg(member string) (Expression, bool) {
	for i, m := range n.Members {
		if m == member && i < len(n.Args) {
			return n.Args[i], true
		}
	}
	return nil, false
}

// MemberAccess is an unresolved Source.Member access.
type MemberAccess struct {
	Source Expression
	Member Member
}

func (m *MemberAccess) Type() Type { return m.Member.Type }
func (*MemberAccess) exprNode()     {}

// TypeCheck is an unresolved "Operand is Target" check.
type TypeCheck struct {
	Operand Expression
	Target  Type
}

func (*TypeCheck) Type() Type { return Bool }
func (*TypeCheck) exprNode()  {}

// TableReference is the front end's reference to a row of a statement table.
type TableReference struct {
	Table *SqlTable
}

func (r *TableReference) Type() Type { return r.Table.ItemType() }
func (*TableReference) exprNode()     {}

// ConvertedBoolean carries a boolean value in integer form (0/1): a boolean
// column or literal retyped to int, or a CASE materialization of a
// predicate. Its type is int; it is never re-contextualized.
type ConvertedBoolean struct {
	Inner Expression
}

func (*ConvertedBoolean) Type() Type { return Int }
func (*ConvertedBoolean) exprNode()  {}
