package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/galactic/internal/ir"
	"github.com/roach88/galactic/internal/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.Default()
	require.NoError(t, err)
	return reg
}

func product(oid, name string) *Object {
	o := NewObject("HardwareProduct", oid)
	o.Set("name", name)
	return o
}

func acu(oid, assembly, component string, qty int64) *Object {
	o := NewObject("Acu", oid)
	o.Set("assembly", assembly)
	o.Set("component", component)
	o.Set("quantity", qty)
	return o
}

type recordingCommitter struct {
	batches [][]Change
	err     error
}

func (c *recordingCommitter) CommitChanges(_ context.Context, changes []Change) error {
	if c.err != nil {
		return c.err
	}
	c.batches = append(c.batches, changes)
	return nil
}

func TestGraph_AddGetUpdateDelete(t *testing.T) {
	g := New(testRegistry(t))

	require.NoError(t, g.Add(product("p1", "Bus")))
	assert.True(t, g.Has("p1"))
	assert.Equal(t, "HardwareProduct", g.ClassOf("p1"))

	got, ok := g.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "Bus", got.Name())

	// Get returns a clone
	got.Set("name", "Mutated")
	again, _ := g.Get("p1")
	assert.Equal(t, "Bus", again.Name())

	require.ErrorIs(t, g.Add(product("p1", "Dup")), ErrExists)

	got.Set("name", "Bus 2")
	require.NoError(t, g.Update(got))
	again, _ = g.Get("p1")
	assert.Equal(t, "Bus 2", again.Name())

	require.ErrorIs(t, g.Update(product("missing", "x")), ErrNotFound)
	require.ErrorIs(t, g.Add(&Object{OID: "x"}), ErrInvalid)

	assert.True(t, g.Delete("p1"))
	assert.False(t, g.Delete("p1"))
	assert.False(t, g.Has("p1"))

	changes := g.Changes()
	require.Len(t, changes, 3)
	assert.Equal(t, ActionCreate, changes[0].Action)
	assert.Equal(t, ActionUpdate, changes[1].Action)
	assert.Equal(t, "Bus", changes[1].Before.Name())
	assert.Equal(t, ActionDelete, changes[2].Action)
	assert.Nil(t, changes[2].After)
}

func TestGraph_AllOIDsSorted(t *testing.T) {
	g := New(testRegistry(t))
	for _, oid := range []string{"c", "a", "b"} {
		require.NoError(t, g.Add(product(oid, oid)))
	}
	assert.Equal(t, []string{"a", "b", "c"}, g.AllOIDs())
	assert.Equal(t, 3, g.Len())
	all := g.All()
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].OID)
}

func TestGraph_CommitClearsPending(t *testing.T) {
	c := &recordingCommitter{}
	g := New(testRegistry(t), WithCommitter(c))
	require.NoError(t, g.Add(product("p1", "Bus")))

	require.NoError(t, g.Commit(context.Background()))
	require.Len(t, c.batches, 1)
	assert.Len(t, c.batches[0], 1)
	assert.Empty(t, g.Changes())

	// nothing pending: committer not called
	require.NoError(t, g.Commit(context.Background()))
	assert.Len(t, c.batches, 1)
}

func TestGraph_CommitFailureKeepsPending(t *testing.T) {
	c := &recordingCommitter{err: errors.New("disk full")}
	g := New(testRegistry(t), WithCommitter(c))
	require.NoError(t, g.Add(product("p1", "Bus")))

	err := g.Commit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, g.Changes(), 1)
}

func TestGraph_CommitHonorsCancelledContext(t *testing.T) {
	g := New(testRegistry(t))
	require.NoError(t, g.Add(product("p1", "Bus")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, g.Commit(ctx), context.Canceled)
	assert.Len(t, g.Changes(), 1)
}

func TestGraph_Rollback(t *testing.T) {
	g := New(testRegistry(t))
	g.Load([]*Object{product("keep", "Keep")})

	require.NoError(t, g.Add(product("new", "New")))
	upd, _ := g.Get("keep")
	upd.Set("name", "Changed")
	require.NoError(t, g.Update(upd))
	require.NoError(t, g.Add(acu("a1", "keep", "new", 1)))
	g.Delete("keep")

	g.Rollback()

	assert.False(t, g.Has("new"))
	assert.False(t, g.Has("a1"))
	kept, ok := g.Get("keep")
	require.True(t, ok)
	assert.Equal(t, "Keep", kept.Name())
	assert.Empty(t, g.Changes())
	assert.Empty(t, g.ComponentsOf("keep"), "index reverted with the objects")
}

func TestGraph_RelationshipIndexes(t *testing.T) {
	g := New(testRegistry(t))
	g.Load([]*Object{
		product("sc", "Spacecraft"),
		product("bus", "Bus"),
		product("rw", "Reaction Wheel"),
		acu("acu-2", "sc", "rw", 1),
		acu("acu-1", "sc", "bus", 1),
		acu("acu-3", "bus", "rw", 4),
	})

	assert.Equal(t, []string{"acu-1", "acu-2"}, g.ComponentsOf("sc"))
	assert.Equal(t, []string{"acu-2", "acu-3"}, g.WhereUsed("rw"))
	assert.Empty(t, g.ComponentsOf("rw"))

	// re-pointing an acu moves it between index entries
	moved, _ := g.Get("acu-2")
	moved.Set("assembly", "bus")
	require.NoError(t, g.Update(moved))
	assert.Equal(t, []string{"acu-1"}, g.ComponentsOf("sc"))
	assert.Equal(t, []string{"acu-2", "acu-3"}, g.ComponentsOf("bus"))

	assert.Equal(t, []string{"acu-2", "acu-3"}, g.Inverse("bus", "Acu", "assembly"))
	assert.Empty(t, g.Inverse("bus", "Port", "assembly"))
}

func TestGraph_ProjectAndFlowIndexes(t *testing.T) {
	g := New(testRegistry(t))

	psu := NewObject("ProjectSystemUsage", "psu-1")
	psu.Set("project", "prj")
	psu.Set("system", "sc")

	port := NewObject("Port", "port-1")
	port.Set("of_product", "bus")

	flow := NewObject("Flow", "flow-1")
	flow.Set("start_port", "port-1")
	flow.Set("end_port", "port-2")
	flow.Set("start_port_context", "acu-1")
	flow.Set("end_port_context", "acu-2")

	req := NewObject("Requirement", "req-1")
	req.Set("allocated_to", "psu-1")

	g.Load([]*Object{product("sc", "SC"), product("bus", "Bus"), acu("acu-1", "sc", "bus", 1), acu("acu-2", "sc", "bus", 1), psu, port, flow, req})

	assert.Equal(t, []string{"psu-1"}, g.SystemsOf("prj"))
	assert.Equal(t, []string{"psu-1"}, g.ProjectsUsing("sc"))
	assert.Equal(t, []string{"port-1"}, g.PortsOf("bus"))
	assert.Equal(t, []string{"flow-1"}, g.InternalFlowsOf("sc"))
	assert.Empty(t, g.InternalFlowsOf("bus"))
	assert.Equal(t, []string{"req-1"}, g.RequirementsAllocatedTo("psu-1"))
}

func TestObject_Accessors(t *testing.T) {
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	o := NewObject("Acu", "a")
	o.Set("quantity", int64(3))
	o.Set("mod_datetime", when)
	o.Set("tags", []string{"x", "y"})
	o.Set("flag", true)

	n, ok := o.Int("quantity")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	f, ok := o.Float("quantity")
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	ts, ok := o.ModDatetime()
	assert.True(t, ok)
	assert.True(t, when.Equal(ts))

	b, ok := o.Bool("flag")
	assert.True(t, ok)
	assert.True(t, b)

	assert.Equal(t, []string{"x", "y"}, o.Refs("tags"))
	assert.Nil(t, o.Refs("missing"))

	cp := o.Clone()
	assert.True(t, o.Equal(cp))
	cp.Refs("tags")[0] = "z"
	assert.Equal(t, "x", o.Refs("tags")[0], "clone must not share slices")
	assert.False(t, o.Equal(cp))

	o.Set("flag", nil)
	_, ok = o.Bool("flag")
	assert.False(t, ok)
}

func TestRecordRoundTrip(t *testing.T) {
	reg := testRegistry(t)
	when := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	o := NewObject("Acu", "acu-1")
	o.Set("name", "Bus usage")
	o.Set("assembly", "sc")
	o.Set("component", "bus")
	o.Set("quantity", int64(2))
	o.Set("mod_datetime", when)

	rec, err := ToRecord(reg, o)
	require.NoError(t, err)
	assert.Equal(t, "Acu", rec.ClassName)
	assert.Equal(t, ir.IRString("sc"), rec.Get("assembly"))
	assert.Equal(t, ir.IRInt(2), rec.Get("quantity"))
	assert.Equal(t, ir.IRString("2024-05-06T07:08:09.000000Z"), rec.Get("mod_datetime"))
	assert.NotContains(t, rec.Fields, "description", "unset fields are omitted")

	back, fallbacks, err := FromRecord(reg, rec)
	require.NoError(t, err)
	assert.Empty(t, fallbacks)
	assert.True(t, o.Equal(back))
}

func TestFromRecord_Fallbacks(t *testing.T) {
	reg := testRegistry(t)
	rec := ir.Record{ClassName: "Acu", OID: "a", Fields: ir.IRObject{
		"mod_datetime": ir.IRString("yesterday-ish"),
		"quantity":     ir.IRString("3"),
		"unknown":      ir.IRString("ignored"),
	}}
	obj, fallbacks, err := FromRecord(reg, rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"mod_datetime"}, fallbacks)
	ts, _ := obj.ModDatetime()
	assert.True(t, ir.Epoch.Equal(ts))
	q, _ := obj.Int("quantity")
	assert.Equal(t, int64(3), q)
	assert.Nil(t, obj.Get("unknown"))

	_, _, err = FromRecord(reg, ir.Record{ClassName: "Widget", OID: "w"})
	require.Error(t, err)
}
