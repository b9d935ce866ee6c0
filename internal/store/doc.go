// Package store provides SQLite-backed persistence for the object graph,
// the value caches, and the flattened views.
//
// Tables:
//   - objects: one canonical JSON record per oid
//   - parameters, data_elements: value cache entries keyed by (oid, id)
//   - views, row_entities: flattened views and their ordered rows
//   - row_history: per-row undo snapshots
//
// All list queries order by primary key with COLLATE BINARY (rows by
// position) so that loads are deterministic, and return empty slices
// rather than nil.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
