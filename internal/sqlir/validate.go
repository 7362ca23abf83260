package sqlir

import "fmt"

// CheckResult lists the unresolved placeholders left in a tree.
type CheckResult struct {
	// IsResolved is true when no placeholder remains.
	IsResolved bool

	// Leftovers describes each placeholder found, in traversal order.
	Leftovers []string
}

// CheckResolved reports placeholders that must not survive structural
// resolution: unresolved tables and joins, member accesses, type checks and
// table references. EntityRefMember is allowed because context application
// resolves it.
//
// CheckResolved is a pure function with no side effects.
func CheckResolved(node any) CheckResult {
	c := &checker{}
	Walk(node, c.visit)

	return CheckResult{
		IsResolved: len(c.leftovers) == 0,
		Leftovers:  c.leftovers,
	}
}

// checker accumulates leftovers during traversal.
type checker struct {
	leftovers []string
}

func (c *checker) add(format string, args ...any) {
	c.leftovers = append(c.leftovers, fmt.Sprintf(format, args...))
}

func (c *checker) visit(node any) bool {
	switch n := node.(type) {
	case *UnresolvedTable:
		c.add("unresolved table of %s", n.Item)
	case *UnresolvedJoin:
		c.add("unresolved join through %s", n.Member.Name)
		return false
	case *UnresolvedCollectionJoin:
		c.add("unresolved collection join through %s", n.Member.Name)
		return false
	case *MemberAccess:
		c.add("member access .%s", n.Member.Name)
	case *TypeCheck:
		c.add("type check against %s", n.Target)
	case *TableReference:
		c.add("table reference to %s", n.Table.ItemType())
	}
	return true
}
