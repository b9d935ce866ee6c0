package merge

import (
	"maps"
	"slices"
)

// reconcile runs the post-batch steps: white-box cleanup of updated
// products, requirement allocations, pending relationship caches, and the
// parameter recompute.
func (e *Engine) reconcile(b *batch) {
	e.dropStaleInternals(b)

	acus := maps.Clone(b.dirty.Acus)
	usages := maps.Clone(b.dirty.Usages)
	for product := range b.dirty.Products {
		for _, oid := range e.graph.WhereUsed(product) {
			acus[oid] = struct{}{}
		}
		for _, oid := range e.graph.ProjectsUsing(product) {
			usages[oid] = struct{}{}
		}
	}

	reqs := maps.Clone(b.dirty.Requirements)
	for _, set := range []map[string]struct{}{acus, usages} {
		for oid := range set {
			for _, req := range e.graph.RequirementsAllocatedTo(oid) {
				reqs[req] = struct{}{}
				b.dirty.Parameters = true
			}
		}
	}
	for _, req := range slices.Sorted(maps.Keys(reqs)) {
		e.caches.RefreshRequirementAllocations(e.graph, req)
	}

	e.flushRelations(b)

	if b.dirty.Parameters && !b.opts.SuppressRecompute {
		e.caches.RecomputeAll()
		b.result.Recomputed = true
	}
}

// dropStaleInternals deletes the ports and internal flows of each updated
// product that the batch did not mention. An updated product's record is
// its complete definition.
func (e *Engine) dropStaleInternals(b *batch) {
	for _, product := range b.products {
		var doomed []string
		for _, oid := range e.graph.PortsOf(product) {
			if _, ok := b.incoming[oid]; !ok {
				doomed = append(doomed, oid)
			}
		}
		for _, oid := range e.graph.InternalFlowsOf(product) {
			if _, ok := b.incoming[oid]; !ok {
				doomed = append(doomed, oid)
			}
		}
		for _, oid := range doomed {
			b.snapshot(e.caches, oid)
			if !e.graph.Delete(oid) {
				continue
			}
			e.caches.Purge(oid)
			b.result.Deleted = append(b.result.Deleted, oid)
			e.logger.Debug("deleted white-box internal", "oid", oid, "product", product)
		}
	}
}
