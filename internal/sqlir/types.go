package sqlir

import "fmt"

// Kind classifies a Type.
type Kind int

const (
	KindUnknown Kind = iota
	KindInt
	KindString
	KindBool
	KindDecimal
	KindDateTime
	KindEntity
	KindRecord
	KindCollection
	KindGrouping
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindDecimal:
		return "decimal"
	case KindDateTime:
		return "datetime"
	case KindEntity:
		return "entity"
	case KindRecord:
		return "record"
	case KindCollection:
		return "collection"
	case KindGrouping:
		return "grouping"
	default:
		return "unknown"
	}
}

// Type is the static type of an expression, table item or member.
//
// Entity and record types are nominal (compared by Name). Collections carry
// their element type, groupings their key and element types.
type Type struct {
	Kind Kind
	Name string // entity or record name
	Elem *Type  // collection element, grouping element
	Key  *Type  // grouping key
}

var (
	Int      = Type{Kind: KindInt}
	String   = Type{Kind: KindString}
	Bool     = Type{Kind: KindBool}
	Decimal  = Type{Kind: KindDecimal}
	DateTime = Type{Kind: KindDateTime}
)

// EntityType returns the nominal type of a mapped entity.
func EntityType(name string) Type {
	return Type{Kind: KindEntity, Name: name}
}

// RecordType returns the nominal type of a tuple/record constructor.
func RecordType(name string) Type {
	return Type{Kind: KindRecord, Name: name}
}

// CollectionOf returns a collection type with the given element type.
func CollectionOf(elem Type) Type {
	return Type{Kind: KindCollection, Elem: &elem}
}

// GroupingOf returns the type of a grouping with the given key and element.
func GroupingOf(key, elem Type) Type {
	return Type{Kind: KindGrouping, Key: &key, Elem: &elem}
}

// IsBool reports whether t is the boolean type.
func (t Type) IsBool() bool { return t.Kind == KindBool }

// IsEntity reports whether t is an entity type.
func (t Type) IsEntity() bool { return t.Kind == KindEntity }

// IsCollection reports whether t is a collection type.
func (t Type) IsCollection() bool { return t.Kind == KindCollection }

// Element returns the element type of a collection or grouping.
// For other kinds it returns t itself.
func (t Type) Element() Type {
	if (t.Kind == KindCollection || t.Kind == KindGrouping) && t.Elem != nil {
		return *t.Elem
	}
	return t
}

// Equal reports structural type equality.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind || t.Name != o.Name {
		return false
	}
	if !equalTypePtr(t.Elem, o.Elem) {
		return false
	}
	return equalTypePtr(t.Key, o.Key)
}

func equalTypePtr(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (t Type) String() string {
	switch t.Kind {
	case KindEntity, KindRecord:
		return t.Name
	case KindCollection:
		return fmt.Sprintf("[]%s", t.Element())
	case KindGrouping:
		var key Type
		if t.Key != nil {
			key = *t.Key
		}
		return fmt.Sprintf("grouping<%s,%s>", key, t.Element())
	default:
		return t.Kind.String()
	}
}

// Member identifies a property of a type.
type Member struct {
	Name      string
	Type      Type
	Declaring string // name of the declaring entity or record type
}

// Key returns a stable identity for the member, used to deduplicate joins.
func (m Member) Key() string {
	return m.Declaring + "." + m.Name
}

// Cardinality describes how many rows a navigation member produces.
type Cardinality int

const (
	CardinalityOne Cardinality = iota
	CardinalityMany
)

func (c Cardinality) String() string {
	if c == CardinalityMany {
		return "many"
	}
	return "one"
}
