// Package store opens SQLite databases and reads mapping catalogs out of
// their schema.
//
// IntrospectCatalog turns each table into an entity:
//   - columns keep their declared names; types follow SQLite affinity
//     (INT → int, BOOL → bool, DATE/TIME → datetime, CHAR/CLOB/TEXT → string,
//     REAL/FLOA/DOUB/NUMERIC/DEC → decimal)
//   - the single-column primary key becomes the entity key
//   - every foreign key becomes a one-navigation on the referencing entity
//     and a many-navigation on the referenced entity
//
// Inheritance is not introspected: a catalog with derived entities has to
// be written in CUE (package catalog).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
