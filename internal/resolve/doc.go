// Package resolve implements structural resolution: the pass that binds every
// table reference, navigation, member access, constant and type check of a
// front-end statement tree to concrete schema constructs.
//
// The Resolver is a depth-first, post-order rewrite. Children are resolved
// before the parent is processed. It is the only component that talks to a
// SchemaResolver and the only writer of the mapping.Context: every Entity
// and GroupingSelect it returns is registered first.
//
// Context normalization (boolean shapes, entity degeneration) is NOT done
// here. See package sqlcontext.
package resolve
