// Package sqlir provides the statement tree lowered by qbind's resolution
// pipeline.
//
// The tree starts out schema-agnostic (produced by a query front end) and
// ends up schema-bound and dialect-correct, ready for text emission.
//
// ARCHITECTURE:
//
//	[front end] → [unresolved Statement] → resolve → sqlcontext → [emitter]
//
// SEALED INTERFACES:
//
// Expression, TableSource, JoinInfo and DataInfo are sealed interfaces using
// the marker method pattern. Only types in this package implement them, so
// every consumer can switch exhaustively over the node kinds and treat the
// default arm as an unsupported shape:
//
//	switch e := expr.(type) {
//	case *sqlir.Column:
//	    // ...
//	case *sqlir.Entity:
//	    // ...
//	default:
//	    return nil, sqlir.NewUnsupportedShapeError(expr, "no rule")
//	}
//
// IMMUTABILITY:
//
// Expression nodes and Statements are never mutated by the pipeline; every
// rewrite returns a new node and unchanged subtrees are shared. Two
// exceptions are identity objects owned by a single resolution call:
//   - SqlTable accumulates implicit joins (GetOrAddLeftJoin)
//   - GroupingSelect accumulates pushed-down aggregations (AddAggregation)
//
// Both are created fresh by the resolver, never taken from the input tree,
// so the same unresolved input can be resolved repeatedly.
package sqlir
