package valuecache

import (
	"slices"

	"github.com/roach88/galactic/internal/refdata"
)

// Comp is one component usage of an assembly: the component oid and how
// many are used.
type Comp struct {
	OID      string
	Quantity int64
}

// Allocation records what a requirement is allocated to. Target is the
// component of an Acu, the system of a ProjectSystemUsage, or the
// allocated object itself otherwise.
type Allocation struct {
	Requirement string
	AllocatedTo string
	ClassName   string
	Target      string
}

// RefreshComponentCache rebuilds the component list of assembly from its
// Acus. Acus without a component, or whose component is the TBD
// placeholder, are skipped; a missing or zero quantity counts as 1.
func (c *Cache) RefreshComponentCache(src Source, assembly string) {
	var comps []Comp
	for _, acuOID := range src.ComponentsOf(assembly) {
		acu, ok := src.Get(acuOID)
		if !ok {
			continue
		}
		comp := acu.Ref("component")
		if comp == "" || comp == refdata.TBD {
			continue
		}
		qty, _ := acu.Int("quantity")
		if qty <= 0 {
			qty = 1
		}
		comps = append(comps, Comp{OID: comp, Quantity: qty})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(comps) == 0 {
		delete(c.components, assembly)
		return
	}
	c.components[assembly] = comps
}

// Components returns the cached component list of assembly.
func (c *Cache) Components(assembly string) []Comp {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.components[assembly])
}

// RefreshSystemCache rebuilds the system list of project from its
// ProjectSystemUsages.
func (c *Cache) RefreshSystemCache(src Source, project string) {
	var systems []string
	for _, psuOID := range src.SystemsOf(project) {
		psu, ok := src.Get(psuOID)
		if !ok {
			continue
		}
		sys := psu.Ref("system")
		if sys == "" || sys == refdata.TBD {
			continue
		}
		systems = append(systems, sys)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(systems) == 0 {
		delete(c.systems, project)
		return
	}
	c.systems[project] = systems
}

// Systems returns the cached system oids of project.
func (c *Cache) Systems(project string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.systems[project])
}

// RefreshRequirementAllocations re-derives the allocation of req. A
// requirement that no longer exists or is unallocated drops its entry.
func (c *Cache) RefreshRequirementAllocations(src Source, req string) {
	alloc, ok := allocationOf(src, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		delete(c.allocations, req)
		return
	}
	c.allocations[req] = alloc
}

func allocationOf(src Source, req string) (Allocation, bool) {
	obj, ok := src.Get(req)
	if !ok {
		return Allocation{}, false
	}
	to := obj.Ref("allocated_to")
	if to == "" {
		return Allocation{}, false
	}
	alloc := Allocation{Requirement: req, AllocatedTo: to, Target: to}
	target, ok := src.Get(to)
	if !ok {
		return alloc, true
	}
	alloc.ClassName = target.ClassName
	switch target.ClassName {
	case "Acu":
		alloc.Target = target.Ref("component")
	case "ProjectSystemUsage":
		alloc.Target = target.Ref("system")
	}
	return alloc, true
}

// Allocation returns the cached allocation of req.
func (c *Cache) Allocation(req string) (Allocation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.allocations[req]
	return a, ok
}

// RefreshAll rebuilds every relationship cache from src.
func (c *Cache) RefreshAll(src Source) {
	assemblies := map[string]struct{}{}
	projects := map[string]struct{}{}
	var reqs []string
	for _, oid := range src.AllOIDs() {
		obj, ok := src.Get(oid)
		if !ok {
			continue
		}
		switch obj.ClassName {
		case "Acu":
			if a := obj.Ref("assembly"); a != "" {
				assemblies[a] = struct{}{}
			}
		case "ProjectSystemUsage":
			if p := obj.Ref("project"); p != "" {
				projects[p] = struct{}{}
			}
		case "Requirement":
			reqs = append(reqs, oid)
		}
	}

	c.mu.Lock()
	clear(c.components)
	clear(c.systems)
	clear(c.allocations)
	c.mu.Unlock()

	for a := range assemblies {
		c.RefreshComponentCache(src, a)
	}
	for p := range projects {
		c.RefreshSystemCache(src, p)
	}
	for _, r := range reqs {
		c.RefreshRequirementAllocations(src, r)
	}
}

// NodeCount returns the number of nodes below product in its assembly
// tree, counting each usage once.
func (c *Cache) NodeCount(product string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nodeCount(product, map[string]bool{})
}

func (c *Cache) nodeCount(product string, path map[string]bool) int {
	if path[product] {
		return 0
	}
	path[product] = true
	defer delete(path, product)
	count := 0
	for _, comp := range c.components[product] {
		count += 1 + c.nodeCount(comp.OID, path)
	}
	return count
}
