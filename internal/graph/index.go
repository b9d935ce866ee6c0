package graph

import "slices"

// Domain relationship lookups. Each returns referrer oids sorted.

// PortsOf returns the ports owned by product.
func (g *Graph) PortsOf(product string) []string {
	return g.Referrers(product, "of_product")
}

// ComponentsOf returns the Acus whose assembly is product.
func (g *Graph) ComponentsOf(product string) []string {
	return g.Referrers(product, "assembly")
}

// WhereUsed returns the Acus whose component is product.
func (g *Graph) WhereUsed(product string) []string {
	return g.Referrers(product, "component")
}

// SystemsOf returns the ProjectSystemUsages of project.
func (g *Graph) SystemsOf(project string) []string {
	return g.Referrers(project, "project")
}

// ProjectsUsing returns the ProjectSystemUsages whose system is product.
func (g *Graph) ProjectsUsing(product string) []string {
	return g.Referrers(product, "system")
}

// SubActivitiesOf returns the ActCompRels whose composite is activity.
func (g *Graph) SubActivitiesOf(activity string) []string {
	return g.Referrers(activity, "composite_activity")
}

// RequirementsAllocatedTo returns the requirements allocated to oid (an
// Acu, a ProjectSystemUsage, or a project).
func (g *Graph) RequirementsAllocatedTo(oid string) []string {
	return g.Referrers(oid, "allocated_to")
}

// ParameterRelationsOf returns the ParameterRelations referencing relation.
func (g *Graph) ParameterRelationsOf(relation string) []string {
	return g.Referrers(relation, "referenced_relation")
}

// InternalFlowsOf returns the flows inside product: those with an endpoint
// context that is product itself or one of its component usages.
func (g *Graph) InternalFlowsOf(product string) []string {
	contexts := append([]string{product}, g.ComponentsOf(product)...)
	seen := make(map[string]struct{})
	var out []string
	for _, ctx := range contexts {
		for _, field := range []string{"start_port_context", "end_port_context"} {
			for _, flow := range g.Referrers(ctx, field) {
				if _, dup := seen[flow]; dup {
					continue
				}
				seen[flow] = struct{}{}
				out = append(out, flow)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Inverse computes the value of an inverse field for oid: the objects of
// viaClass (or its subclasses) whose viaField references oid.
func (g *Graph) Inverse(oid, viaClass, viaField string) []string {
	var out []string
	for _, ref := range g.Referrers(oid, viaField) {
		if g.reg == nil || g.reg.IsA(g.ClassOf(ref), viaClass) {
			out = append(out, ref)
		}
	}
	return out
}
