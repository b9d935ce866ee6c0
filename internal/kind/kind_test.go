package kind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/galactic/internal/graph"
	"github.com/roach88/galactic/internal/schema"
	"github.com/roach88/galactic/internal/valuecache"
)

func setup(t *testing.T) (*schema.Registry, *graph.Graph, *Table) {
	t.Helper()
	reg, err := schema.Default()
	require.NoError(t, err)
	return reg, graph.New(reg), NewDefaultTable(reg)
}

func mustAdd(t *testing.T, g *graph.Graph, class, oid string, fields map[string]any) *graph.Object {
	t.Helper()
	o := graph.NewObject(class, oid)
	for k, v := range fields {
		o.Set(k, v)
	}
	require.NoError(t, g.Add(o))
	return o
}

func TestTable_LookupWalksLineage(t *testing.T) {
	_, _, table := setup(t)

	assert.Equal(t, "hardware", table.Lookup("HardwareProduct").Name())
	assert.Equal(t, "product", table.Lookup("SoftwareProduct").Name())
	assert.Equal(t, "product", table.Lookup("Template").Name())
	assert.Equal(t, "activity", table.Lookup("Mission").Name())
	assert.Equal(t, "default", table.Lookup("Person").Name())
	assert.Equal(t, "default", table.Lookup("NoSuchClass").Name())
	assert.Contains(t, table.Bound(), "Acu")
}

func TestTable_RegisterOverrides(t *testing.T) {
	reg, _, _ := setup(t)
	table := NewTable(reg)
	assert.Equal(t, "default", table.Lookup("Acu").Name())

	table.Register(Acu{})
	assert.Equal(t, "acu", table.Lookup("Acu").Name())
}

func TestProduct_CascadesPortsFlowsAndGatedComponents(t *testing.T) {
	_, g, table := setup(t)
	sc := mustAdd(t, g, "HardwareProduct", "sc", nil)
	mustAdd(t, g, "HardwareProduct", "bus", nil)
	mustAdd(t, g, "Acu", "acu1", map[string]any{"assembly": "sc", "component": "bus"})
	mustAdd(t, g, "Port", "port1", map[string]any{"of_product": "sc"})
	mustAdd(t, g, "Flow", "flow1", map[string]any{
		"start_port": "port1", "end_port": "port1",
		"start_port_context": "sc", "end_port_context": "acu1",
	})

	ty := table.Lookup("HardwareProduct")
	assert.ElementsMatch(t, []string{"port1", "flow1"}, ty.Cascade(sc, g, Options{}))
	assert.ElementsMatch(t, []string{"port1", "flow1", "acu1"},
		ty.Cascade(sc, g, Options{IncludeComponents: true}))
}

func TestAcu_CascadeAndDirty(t *testing.T) {
	_, _, table := setup(t)
	acu := graph.NewObject("Acu", "acu1")
	acu.Set("assembly", "sc")
	acu.Set("component", "bus")

	ty := table.Lookup("Acu")
	assert.Equal(t, []string{"sc", "bus"}, ty.Cascade(acu, nil, Options{}))
	assert.Equal(t, []string{"assembly", "component"}, ty.RequiredRefs())

	d := NewDirty()
	ty.MarkDirty(acu, nil, d)
	assert.Contains(t, d.Assemblies, "sc")
	assert.Contains(t, d.Acus, "acu1")
	assert.True(t, d.Parameters)
}

func TestSystemUsage_CascadeAndDirty(t *testing.T) {
	_, _, table := setup(t)
	psu := graph.NewObject("ProjectSystemUsage", "psu1")
	psu.Set("project", "proj")
	psu.Set("system", "sys")

	ty := table.Lookup("ProjectSystemUsage")
	assert.Equal(t, []string{"sys"}, ty.Cascade(psu, nil, Options{}))

	d := NewDirty()
	ty.MarkDirty(psu, nil, d)
	assert.Contains(t, d.Projects, "proj")
	assert.Contains(t, d.Usages, "psu1")
}

func TestUsageLinks_MarkPreviousParentDirty(t *testing.T) {
	_, _, table := setup(t)
	prevAcu := graph.NewObject("Acu", "acu1")
	prevAcu.Set("assembly", "a")
	acu := prevAcu.Clone()
	acu.Set("assembly", "b")

	d := NewDirty()
	table.Lookup("Acu").MarkDirty(acu, prevAcu, d)
	assert.Contains(t, d.Assemblies, "a")
	assert.Contains(t, d.Assemblies, "b")

	prevPSU := graph.NewObject("ProjectSystemUsage", "psu1")
	prevPSU.Set("project", "p1")
	psu := prevPSU.Clone()
	psu.Set("project", "p2")

	d = NewDirty()
	table.Lookup("ProjectSystemUsage").MarkDirty(psu, prevPSU, d)
	assert.Contains(t, d.Projects, "p1")
	assert.Contains(t, d.Projects, "p2")
}

func TestRoleAssignment_CascadeSkipsEmpty(t *testing.T) {
	_, _, table := setup(t)
	ra := graph.NewObject("RoleAssignment", "ra1")
	ra.Set("assigned_role", "role")
	ra.Set("assigned_to", "person")

	assert.Equal(t, []string{"role", "person"}, table.Lookup("RoleAssignment").Cascade(ra, nil, Options{}))
}

func TestRequirement_CascadesFormAndRelations(t *testing.T) {
	_, g, table := setup(t)
	mustAdd(t, g, "Relation", "rel1", nil)
	mustAdd(t, g, "ParameterRelation", "pr1", map[string]any{
		"referenced_relation": "rel1", "correlates_parameter": "pgef:ParameterDefinition.m",
	})
	req := mustAdd(t, g, "Requirement", "req1", map[string]any{"computable_form": "rel1"})
	bare := graph.NewObject("Requirement", "req2")

	ty := table.Lookup("Requirement")
	assert.Equal(t, []string{"rel1", "pr1"}, ty.Cascade(req, g, Options{}))
	assert.Nil(t, ty.Cascade(bare, g, Options{}))

	d := NewDirty()
	ty.MarkDirty(req, nil, d)
	assert.Contains(t, d.Requirements, "req1")
}

func TestActivity_SubActivitiesGated(t *testing.T) {
	_, g, table := setup(t)
	act := mustAdd(t, g, "Activity", "a1", nil)
	mustAdd(t, g, "Activity", "a2", nil)
	mustAdd(t, g, "ActCompRel", "acr1", map[string]any{"composite_activity": "a1", "sub_activity": "a2"})

	ty := table.Lookup("Activity")
	assert.Empty(t, ty.Cascade(act, g, Options{}))
	assert.Equal(t, []string{"acr1", "a2"}, ty.Cascade(act, g, Options{IncludeSubActivities: true}))
}

func TestPortAndFlow_RequiredRefs(t *testing.T) {
	_, _, table := setup(t)
	assert.Equal(t, []string{"of_product"}, table.Lookup("Port").RequiredRefs())
	assert.Len(t, table.Lookup("Flow").RequiredRefs(), 4)
	assert.Empty(t, table.Lookup("Person").RequiredRefs())
}

func TestHardwareProduct_AfterCreateAddsDefaults(t *testing.T) {
	_, _, table := setup(t)
	caches := valuecache.New()
	hw := graph.NewObject("HardwareProduct", "hw1")
	sw := graph.NewObject("SoftwareProduct", "sw1")

	table.Lookup("HardwareProduct").AfterCreate(hw, caches)
	table.Lookup("SoftwareProduct").AfterCreate(sw, caches)

	for _, pid := range valuecache.DefaultParameters {
		assert.True(t, caches.HasParameter("hw1", pid), pid)
	}
	assert.False(t, caches.Has("sw1"))
}
