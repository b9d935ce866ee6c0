// Package merge applies batches of canonical records to the object graph.
//
// A batch is filtered, bucketed by the registry's apply order so that
// referenced objects are created before their referrers, and applied record
// by record:
//
//  1. records without an oid, reference data, and unknown classes are dropped
//  2. legacy Flow records carrying a single flow_context are repaired
//  3. records for existing objects must carry a strictly later mod_datetime
//     (unless ForceUpdate) or are classified unmodified
//  4. fields are decoded; unresolvable required references invalidate the
//     record, other unresolvable references are dropped
//  5. parameter and data element sidecars go to the value caches
//  6. the object is created or updated and its dependent caches marked dirty
//
// After the last bucket, updated products lose ports and internal flows the
// batch no longer mentions, requirement allocations are refreshed,
// parameters are recomputed, and the graph is committed as one unit.
// Problems with individual records never abort a batch; they are reported
// in Result.Issues. Cancellation is checked between buckets and before the
// commit, and rolls back everything the batch changed.
package merge
