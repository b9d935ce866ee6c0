// Package refdata holds the fixed set of reference-data oids: bootstrap
// objects every party already has, excluded from interchange by default.
package refdata

import "slices"

// Well-known reference oids used directly by the engine.
const (
	PGANA   = "pgefobjects:PGANA"   // default owner organization
	Admin   = "pgefobjects:admin"   // default creator and modifier
	TBD     = "pgefobjects:TBD"     // placeholder component, skipped by rollups
	Sandbox = "pgefobjects:SANDBOX" // default project
)

var builtin = []string{
	"pgefobjects:system",
	PGANA,
	Admin,
	"pgefobjects:Person.TBD",
	"pgefobjects:Role.Disabled",
	"pgefobjects:Role.Administrator",
	"pgefobjects:Role.Observer",
	"pgef:ParameterDefinition.m",
	"pgef:ParameterDefinition.height",
	"pgef:ParameterDefinition.width",
	"pgef:ParameterDefinition.depth",
	"pgef:ParameterDefinition.Cost",
	"pgef:ParameterDefinition.R_D",
	"pgef:ParameterDefinition.P",
	"pgef:ParameterDefinition.V",
	"pgef:ParameterDefinition.TRL",
	"pgef:ParameterContext.CBE",
	"pgef:ParameterContext.Assembly",
	"pgef:ParameterContext.Ctgcy",
	"pgef:ParameterContext.MEV",
	"pgef:ParameterContext.NTE",
	"pgef:ParameterContext.Margin",
	Sandbox,
	"pgefobjects:ActivityType.Operation",
	"pgefobjects:ActivityType.Event",
	"pgefobjects:ActivityType.Cycle",
	TBD,
	"pgefobjects:Discipline.engineering",
	"pgefobjects:Discipline.mechanical",
	"pgefobjects:Discipline.power",
	"pgefobjects:Discipline.systems",
	"pgefobjects:Discipline.thermal",
	"pgefobjects:ProductType.instrument",
	"pgefobjects:ProductType.observatory",
	"pgefobjects:ProductType.spacecraft",
	"pgefobjects:ProductType.electronics_box",
	"pgefobjects:ProductType.power_system",
	"pgefobjects:ProductType.solar_array",
	"pgefobjects:ProductType.battery",
	"pgefobjects:ProductType.reaction_wheel",
	"pgefobjects:ProductType.star_tracker",
	"pgefobjects:ProductType.antenna",
	"pgefobjects:ProductType.transponder",
	"pgefobjects:PortType.electrical_power",
	"pgefobjects:PortType.digital_data",
	"pgefobjects:PortType.thermal",
	"pgefobjects:PortType.gas",
}

// Set is an immutable set of reference-data oids.
type Set struct {
	oids map[string]struct{}
}

// Default returns the built-in reference set.
func Default() Set {
	return New(builtin...)
}

// New builds a set from oids.
func New(oids ...string) Set {
	s := Set{oids: make(map[string]struct{}, len(oids))}
	for _, oid := range oids {
		s.oids[oid] = struct{}{}
	}
	return s
}

// With returns a copy of s extended with extra oids.
func (s Set) With(extra ...string) Set {
	out := Set{oids: make(map[string]struct{}, len(s.oids)+len(extra))}
	for oid := range s.oids {
		out.oids[oid] = struct{}{}
	}
	for _, oid := range extra {
		out.oids[oid] = struct{}{}
	}
	return out
}

// Contains reports whether oid is reference data. The zero Set contains
// nothing.
func (s Set) Contains(oid string) bool {
	_, ok := s.oids[oid]
	return ok
}

// Len returns the number of oids in the set.
func (s Set) Len() int {
	return len(s.oids)
}

// OIDs returns the members, sorted.
func (s Set) OIDs() []string {
	out := make([]string, 0, len(s.oids))
	for oid := range s.oids {
		out = append(out, oid)
	}
	slices.Sort(out)
	return out
}
