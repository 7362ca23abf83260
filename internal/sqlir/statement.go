package sqlir

// OrderDirection is the direction of an ordering.
type OrderDirection int

const (
	Ascending OrderDirection = iota
	Descending
)

func (d OrderDirection) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// Ordering is one ORDER BY term.
type Ordering struct {
	Expression Expression
	Direction  OrderDirection
}

// Statement is a SELECT statement.
//
// Statements are immutable: rewrites use Clone and replace fields on the
// copy. Tables are shared by pointer between a statement and its clones.
type Statement struct {
	DataInfo   DataInfo
	Projection Expression
	Tables     []*SqlTable
	Where      Expression // nil = no filter
	Orderings  []Ordering
	Top        Expression // nil = no limit
	Distinct   bool
}

// Clone returns a shallow copy whose slices can be replaced independently.
func (s *Statement) Clone() *Statement {
	cp := *s
	cp.Tables = append([]*SqlTable(nil), s.Tables...)
	cp.Orderings = append([]Ordering(nil), s.Orderings...)
	return &cp
}

// DataInfo is a statement's declared result shape.
//
// This is a sealed interface - only types in this package implement it.
type DataInfo interface {
	// ResultType is the type of the statement used as a value.
	ResultType() Type
	// Adjust recomputes the shape for a new projection type.
	Adjust(projection Type) DataInfo
	dataInfo()
}

// SequenceInfo: the statement produces a sequence of ItemType rows.
type SequenceInfo struct {
	ItemType Type
}

func (s SequenceInfo) ResultType() Type            { return CollectionOf(s.ItemType) }
func (SequenceInfo) Adjust(projection Type) DataInfo { return SequenceInfo{ItemType: projection} }
func (SequenceInfo) dataInfo()                      {}

// ScalarInfo: the statement produces a single computed value (e.g. COUNT).
type ScalarInfo struct {
	T Type
}

func (s ScalarInfo) ResultType() Type              { return s.T }
func (ScalarInfo) Adjust(projection Type) DataInfo { return ScalarInfo{T: projection} }
func (ScalarInfo) dataInfo()                      {}

// SingleInfo: the statement produces one row (First/Single).
type SingleInfo struct {
	ItemType         Type
	DefaultWhenEmpty bool
}

func (s SingleInfo) ResultType() Type { return s.ItemType }
func (s SingleInfo) Adjust(projection Type) DataInfo {
	return SingleInfo{ItemType: projection, DefaultWhenEmpty: s.DefaultWhenEmpty}
}
func (SingleInfo) dataInfo() {}

// TableSource describes where a table's rows come from.
//
// This is a sealed interface - only types in this package implement it.
type TableSource interface {
	ItemType() Type
	tableSource()
}

// UnresolvedTable is a table known only by its item type.
type UnresolvedTable struct {
	Item Type
}

func (t *UnresolvedTable) ItemType() Type { return t.Item }
func (*UnresolvedTable) tableSource()     {}

// SimpleTable is a physical table with an alias.
type SimpleTable struct {
	Item  Type
	Name  string
	Alias string
}

func (t *SimpleTable) ItemType() Type { return t.Item }
func (*SimpleTable) tableSource()     {}

// SubStatementTable is a derived table: (nested statement) AS alias.
type SubStatementTable struct {
	Alias     string
	Statement *Statement
}

func (t *SubStatementTable) ItemType() Type { return t.Statement.DataInfo.ResultType().Element() }
func (*SubStatementTable) tableSource()     {}

// GroupElementsTable is the element rows of a grouping. Grouping is a
// grouping-typed expression: unresolved in the input, a *GroupingSelect
// once resolved.
type GroupElementsTable struct {
	Grouping Expression
	Alias    string
}

func (t *GroupElementsTable) ItemType() Type { return t.Grouping.Type().Element() }
func (*GroupElementsTable) tableSource()     {}

// JoinedTable is the table introduced by a join; its rows come from Join.
type JoinedTable struct {
	Join JoinInfo
}

func (t *JoinedTable) ItemType() Type { return t.Join.ItemType() }
func (*JoinedTable) tableSource()     {}

// JoinInfo correlates a joined table with the table it hangs off.
//
// This is a sealed interface - only types in this package implement it.
type JoinInfo interface {
	ItemType() Type
	joinInfo()
}

// UnresolvedJoin is a navigation from Origin's table through Member.
type UnresolvedJoin struct {
	Origin      *Entity
	Member      Member
	Cardinality Cardinality
}

func (j *UnresolvedJoin) ItemType() Type { return j.Member.Type.Element() }
func (*UnresolvedJoin) joinInfo()        {}

// UnresolvedCollectionJoin is a navigation collection used as a query
// source, e.g. "from a in cook.Assistants". Source is not yet resolved.
type UnresolvedCollectionJoin struct {
	Source Expression
	Member Member
}

func (j *UnresolvedCollectionJoin) ItemType() Type { return j.Member.Type.Element() }
func (*UnresolvedCollectionJoin) joinInfo()        {}

// ResolvedJoin correlates Foreign rows by LeftKey = RightKey.
type ResolvedJoin struct {
	Foreign  TableSource
	LeftKey  Expression
	RightKey Expression
}

func (j *ResolvedJoin) ItemType() Type { return j.Foreign.ItemType() }
func (*ResolvedJoin) joinInfo()        {}

// JoinSemantics is how a table participates in the FROM clause.
type JoinSemantics int

const (
	JoinInner JoinSemantics = iota
	JoinLeft
)

// SqlTable is a table identity in a statement: a source plus the implicit
// joins hanging off it, keyed by navigation member.
type SqlTable struct {
	Source    TableSource
	Semantics JoinSemantics

	joins []tableJoin
}

type tableJoin struct {
	member Member
	table  *SqlTable
}

// NewSqlTable creates a table with no joins.
func NewSqlTable(source TableSource, semantics JoinSemantics) *SqlTable {
	return &SqlTable{Source: source, Semantics: semantics}
}

// ItemType returns the type of the table's rows.
func (t *SqlTable) ItemType() Type { return t.Source.ItemType() }

// Alias returns the table alias when the source carries one.
func (t *SqlTable) Alias() string { return SourceAlias(t.Source) }

// SourceAlias returns the alias of a table source, "" for unresolved ones.
func SourceAlias(source TableSource) string {
	switch s := source.(type) {
	case *SimpleTable:
		return s.Alias
	case *SubStatementTable:
		return s.Alias
	case *GroupElementsTable:
		return s.Alias
	case *JoinedTable:
		if rj, ok := s.Join.(*ResolvedJoin); ok {
			return SourceAlias(rj.Foreign)
		}
	}
	return ""
}

// GetOrAddLeftJoin returns the table joined through member, adding a LEFT
// join with the given info when none exists yet. Joins are deduplicated by
// member so repeated navigation reuses one join.
func (t *SqlTable) GetOrAddLeftJoin(join JoinInfo, member Member) *SqlTable {
	if existing, ok := t.JoinFor(member); ok {
		return existing
	}
	joined := NewSqlTable(&JoinedTable{Join: join}, JoinLeft)
	t.joins = append(t.joins, tableJoin{member: member, table: joined})
	return joined
}

// JoinFor returns the table joined through member.
func (t *SqlTable) JoinFor(member Member) (*SqlTable, bool) {
	for _, j := range t.joins {
		if j.member.Key() == member.Key() {
			return j.table, true
		}
	}
	return nil, false
}

// Joins returns the joined tables in insertion order.
func (t *SqlTable) Joins() []*SqlTable {
	out := make([]*SqlTable, len(t.joins))
	for i, j := range t.joins {
		out[i] = j.table
	}
	return out
}

// JoinMembers returns the navigation members of the joins in insertion order.
func (t *SqlTable) JoinMembers() []Member {
	out := make([]Member, len(t.joins))
	for i, j := range t.joins {
		out[i] = j.member
	}
	return out
}

// SqlExpressionContext is the value shape required by an expression's slot.
type SqlExpressionContext int

const (
	// SingleValueRequired: a single scalar (ORDER BY, TOP, comparison operands).
	SingleValueRequired SqlExpressionContext = iota
	// ValueRequired: any value, including whole entities (SELECT).
	ValueRequired
	// PredicateRequired: a boolean condition (WHERE, CASE WHEN, AND/OR).
	PredicateRequired
)

func (c SqlExpressionContext) String() string {
	switch c {
	case SingleValueRequired:
		return "SingleValueRequired"
	case ValueRequired:
		return "ValueRequired"
	case PredicateRequired:
		return "PredicateRequired"
	default:
		return "Unknown"
	}
}
