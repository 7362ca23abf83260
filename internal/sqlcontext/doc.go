// Package sqlcontext implements context normalization: the pass that
// rewrites a structurally resolved tree so every expression has the value
// shape its slot requires.
//
// The target dialect has no boolean values. A boolean can appear only where
// a predicate is required (WHERE, CASE WHEN, AND/OR operands). Everywhere
// else it travels as an integer 0/1. Three slot shapes exist:
//
//	SingleValueRequired  one scalar (ORDER BY, TOP, comparison operands)
//	ValueRequired        any value incl. entities (SELECT projection)
//	PredicateRequired    a boolean condition (WHERE)
//
// Booleans that became integers are marked with ConvertedBoolean so they can
// be turned back into predicates (x = 1) or materialized as two-valued
// output (CASE WHEN x = 1 THEN 1 ELSE 0 END) without losing their meaning.
//
// Normalization is a pure function of (node, context, top). top is true only
// for the outermost call of an ApplyContext invocation and is passed
// explicitly; it is never stored on the Normalizer.
package sqlcontext
