// Package matrix holds flattened views (DataMatrix), the row entities they
// contain, the per-row history log used for undo, and the schema catalog
// that picks default columns for new views.
//
// Rows never store their own values. Every value a row displays lives in
// the workspace value cache keyed by the row's oid, so a row keeps its
// annotations for as long as its oid survives reconciliation.
//
// Levels are derived, never stored: a row's assembly level is found by
// walking parent links inside its view, with roots at level 1.
//
// Nothing in this package is a global. A Views registry owns the history
// log, the catalog handle, and the cache handle for one workspace, and the
// workspace writer lock serializes every mutation.
package matrix
