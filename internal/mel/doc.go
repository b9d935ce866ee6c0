// Package mel reconciles Master Equipment List views against the live
// assembly tree.
//
// A reconcile walks the tree under a context (one system, or every system
// of a project), matching each tree node to a row by the pair
// (mapped system oid, parent row oid). Matched rows keep their oid and
// move into walk order; unmatched nodes get new rows; rows the walk never
// reaches are purged with their history and cached values.
//
// Sibling usages of the same component collapse into one row whose
// quantity is their sum. Computed columns (unit mass, totals, contingency,
// MEV, and the nominal power triad) are written onto each row's value
// cache entries, scaled by quantity.
package mel
