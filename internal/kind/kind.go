// Package kind binds per-class behaviour to the class registry: which
// related objects an encode pass always drags along, which references must
// resolve before a record may be applied, and which derived caches a change
// makes stale.
//
// A Table maps class names to a Type. Lookup walks the class lineage, so a
// subclass without its own binding inherits the nearest base's behaviour.
package kind

import (
	"maps"
	"slices"

	"github.com/roach88/galactic/internal/graph"
	"github.com/roach88/galactic/internal/schema"
	"github.com/roach88/galactic/internal/valuecache"
)

// Source is the read side of the graph the behaviours consult.
// *graph.Graph satisfies it.
type Source interface {
	Get(oid string) (*graph.Object, bool)
	PortsOf(product string) []string
	ComponentsOf(product string) []string
	InternalFlowsOf(product string) []string
	SubActivitiesOf(activity string) []string
	ParameterRelationsOf(relation string) []string
}

// Options carries the flag-gated cascades. Encoders clear both flags when
// cascading past the first level.
type Options struct {
	IncludeComponents    bool
	IncludeSubActivities bool
}

// Type is the behaviour of a recognized class.
type Type interface {
	// Name identifies the behaviour (not the class).
	Name() string

	// Class is the root class the behaviour is bound to.
	Class() string

	// Cascade returns the oids an encode pass must also encode when it
	// encodes obj.
	Cascade(obj *graph.Object, src Source, opts Options) []string

	// RequiredRefs lists reference fields that must resolve for a record
	// of this class to be applied.
	RequiredRefs() []string

	// MarkDirty records the derived caches made stale by creating or
	// updating obj. prev is the stored state an update replaces, or nil.
	MarkDirty(obj, prev *graph.Object, dirty *Dirty)

	// AfterCreate runs once when obj is first created.
	AfterCreate(obj *graph.Object, caches *valuecache.Cache)
}

// Dirty collects cache invalidations over a merge batch.
type Dirty struct {
	Assemblies   map[string]struct{} // component caches to refresh
	Projects     map[string]struct{} // system caches to refresh
	Requirements map[string]struct{} // allocations to refresh
	Products     map[string]struct{} // products touched
	Acus         map[string]struct{} // usage links touched
	Usages       map[string]struct{} // system usages touched
	Parameters   bool                // a full recompute is due
}

// NewDirty returns an empty Dirty.
func NewDirty() *Dirty {
	return &Dirty{
		Assemblies:   map[string]struct{}{},
		Projects:     map[string]struct{}{},
		Requirements: map[string]struct{}{},
		Products:     map[string]struct{}{},
		Acus:         map[string]struct{}{},
		Usages:       map[string]struct{}{},
	}
}

func add(set map[string]struct{}, oid string) {
	if oid != "" {
		set[oid] = struct{}{}
	}
}

// Table resolves class names to behaviours.
type Table struct {
	reg   *schema.Registry
	types map[string]Type
	base  Type
}

// NewTable builds an empty table; unbound classes get the default
// behaviour.
func NewTable(reg *schema.Registry) *Table {
	return &Table{reg: reg, types: map[string]Type{}, base: Default{}}
}

// NewDefaultTable builds a table with every built-in behaviour registered.
func NewDefaultTable(reg *schema.Registry) *Table {
	t := NewTable(reg)
	t.Register(Product{})
	t.Register(HardwareProduct{})
	t.Register(Acu{})
	t.Register(SystemUsage{})
	t.Register(RoleAssignment{})
	t.Register(Requirement{})
	t.Register(Activity{})
	t.Register(Port{})
	t.Register(Flow{})
	return t
}

// Register binds ty to its class, replacing any earlier binding.
func (t *Table) Register(ty Type) {
	t.types[ty.Class()] = ty
}

// Lookup returns the behaviour of class: its own binding, else the nearest
// base's, else the default.
func (t *Table) Lookup(class string) Type {
	for _, name := range t.reg.Lineage(class) {
		if ty, ok := t.types[name]; ok {
			return ty
		}
	}
	return t.base
}

// Bound returns the classes with an explicit binding, sorted.
func (t *Table) Bound() []string {
	return slices.Sorted(maps.Keys(t.types))
}
