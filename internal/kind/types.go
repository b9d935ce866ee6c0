package kind

import (
	"github.com/roach88/galactic/internal/graph"
	"github.com/roach88/galactic/internal/valuecache"
)

// Default is the behaviour of every class without its own binding.
type Default struct{}

func (Default) Name() string  { return "default" }
func (Default) Class() string { return "Identifiable" }

func (Default) Cascade(*graph.Object, Source, Options) []string { return nil }
func (Default) RequiredRefs() []string                          { return nil }
func (Default) MarkDirty(_, _ *graph.Object, _ *Dirty)          {}
func (Default) AfterCreate(*graph.Object, *valuecache.Cache)    {}

// Product always exposes its ports and internal flows ("white box"), and
// with IncludeComponents its direct usage links.
type Product struct{ Default }

func (Product) Name() string  { return "product" }
func (Product) Class() string { return "Product" }

func (Product) Cascade(obj *graph.Object, src Source, opts Options) []string {
	out := src.PortsOf(obj.OID)
	out = append(out, src.InternalFlowsOf(obj.OID)...)
	if opts.IncludeComponents {
		out = append(out, src.ComponentsOf(obj.OID)...)
	}
	return out
}

func (Product) MarkDirty(obj, _ *graph.Object, d *Dirty) {
	add(d.Products, obj.OID)
	d.Parameters = true
}

// HardwareProduct is a Product that starts life with the default
// parameters.
type HardwareProduct struct{ Product }

func (HardwareProduct) Name() string  { return "hardware" }
func (HardwareProduct) Class() string { return "HardwareProduct" }

func (HardwareProduct) AfterCreate(obj *graph.Object, caches *valuecache.Cache) {
	caches.AddDefaultParameters(obj.OID)
}

// Acu is the assembly usage link.
type Acu struct{ Default }

func (Acu) Name() string  { return "acu" }
func (Acu) Class() string { return "Acu" }

func (Acu) Cascade(obj *graph.Object, _ Source, _ Options) []string {
	return nonEmpty(obj.Ref("assembly"), obj.Ref("component"))
}

func (Acu) RequiredRefs() []string { return []string{"assembly", "component"} }

// MarkDirty also marks the previous assembly, whose component list
// loses this usage when the link moves.
func (Acu) MarkDirty(obj, prev *graph.Object, d *Dirty) {
	add(d.Assemblies, obj.Ref("assembly"))
	if prev != nil {
		add(d.Assemblies, prev.Ref("assembly"))
	}
	add(d.Acus, obj.OID)
	d.Parameters = true
}

// SystemUsage is the project system usage link.
type SystemUsage struct{ Default }

func (SystemUsage) Name() string  { return "psu" }
func (SystemUsage) Class() string { return "ProjectSystemUsage" }

func (SystemUsage) Cascade(obj *graph.Object, _ Source, _ Options) []string {
	return nonEmpty(obj.Ref("system"))
}

func (SystemUsage) RequiredRefs() []string { return []string{"project", "system"} }

func (SystemUsage) MarkDirty(obj, prev *graph.Object, d *Dirty) {
	add(d.Projects, obj.Ref("project"))
	if prev != nil {
		add(d.Projects, prev.Ref("project"))
	}
	add(d.Usages, obj.OID)
	d.Parameters = true
}

// RoleAssignment always travels with its role, assignee, and context.
type RoleAssignment struct{ Default }

func (RoleAssignment) Name() string  { return "role_assignment" }
func (RoleAssignment) Class() string { return "RoleAssignment" }

func (RoleAssignment) Cascade(obj *graph.Object, _ Source, _ Options) []string {
	return nonEmpty(obj.Ref("assigned_role"), obj.Ref("assigned_to"), obj.Ref("role_assignment_context"))
}

func (RoleAssignment) RequiredRefs() []string { return []string{"assigned_role", "assigned_to"} }

// Requirement travels with its computable form and the parameter
// relations of that form.
type Requirement struct{ Default }

func (Requirement) Name() string  { return "requirement" }
func (Requirement) Class() string { return "Requirement" }

func (Requirement) Cascade(obj *graph.Object, src Source, _ Options) []string {
	form := obj.Ref("computable_form")
	if form == "" {
		return nil
	}
	return append([]string{form}, src.ParameterRelationsOf(form)...)
}

func (Requirement) MarkDirty(obj, _ *graph.Object, d *Dirty) {
	add(d.Requirements, obj.OID)
	d.Parameters = true
}

// Activity exposes its sub-activity links and sub-activities when
// IncludeSubActivities is set.
type Activity struct{ Default }

func (Activity) Name() string  { return "activity" }
func (Activity) Class() string { return "Activity" }

func (Activity) Cascade(obj *graph.Object, src Source, opts Options) []string {
	if !opts.IncludeSubActivities {
		return nil
	}
	var out []string
	for _, rel := range src.SubActivitiesOf(obj.OID) {
		out = append(out, rel)
		if r, ok := src.Get(rel); ok {
			out = append(out, nonEmpty(r.Ref("sub_activity"))...)
		}
	}
	return out
}

// Port cannot exist without its product.
type Port struct{ Default }

func (Port) Name() string           { return "port" }
func (Port) Class() string          { return "Port" }
func (Port) RequiredRefs() []string { return []string{"of_product"} }

// Flow needs both ports and both endpoint contexts.
type Flow struct{ Default }

func (Flow) Name() string  { return "flow" }
func (Flow) Class() string { return "Flow" }

func (Flow) RequiredRefs() []string {
	return []string{"start_port", "end_port", "start_port_context", "end_port_context"}
}

func nonEmpty(oids ...string) []string {
	out := make([]string, 0, len(oids))
	for _, oid := range oids {
		if oid != "" {
			out = append(out, oid)
		}
	}
	return out
}
