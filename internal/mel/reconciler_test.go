package mel

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/galactic/internal/graph"
	"github.com/roach88/galactic/internal/ir"
	"github.com/roach88/galactic/internal/matrix"
	"github.com/roach88/galactic/internal/metrics"
	"github.com/roach88/galactic/internal/refdata"
	"github.com/roach88/galactic/internal/schema"
	"github.com/roach88/galactic/internal/testutil"
	"github.com/roach88/galactic/internal/valuecache"
)

type fixture struct {
	g      *graph.Graph
	caches *valuecache.Cache
	views  *matrix.Views
	rec    *Reconciler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	reg, err := schema.Default()
	require.NoError(t, err)
	clock := testutil.NewDeterministicClock()
	g := graph.New(reg)
	caches := valuecache.New(valuecache.WithClock(clock.Now))
	views := matrix.NewViews(caches, matrix.NewCatalog(reg.ViewSchemas()),
		matrix.WithOIDGenerator(testutil.NewSequentialOIDGenerator("row")),
		matrix.WithClock(clock.Now),
	)
	return &fixture{g: g, caches: caches, views: views, rec: New(g, views, caches, opts...)}
}

func (f *fixture) add(t *testing.T, class, oid string, kv ...any) {
	t.Helper()
	o := graph.NewObject(class, oid)
	for i := 0; i+1 < len(kv); i += 2 {
		o.Set(kv[i].(string), kv[i+1])
	}
	require.NoError(t, f.g.Add(o))
}

func (f *fixture) product(t *testing.T, oid, name string, mass float64, kv ...any) {
	t.Helper()
	f.add(t, "HardwareProduct", oid, append([]any{"name", name}, kv...)...)
	if mass != 0 {
		require.NoError(t, f.caches.SetParameterValue(oid, valuecache.Mass, mass, ""))
	}
}

func (f *fixture) acu(t *testing.T, oid, assembly, component, refdes string, qty int64) {
	t.Helper()
	kv := []any{"assembly", assembly, "component", component}
	if refdes != "" {
		kv = append(kv, "reference_designator", refdes)
	}
	if qty != 0 {
		kv = append(kv, "quantity", qty)
	}
	f.add(t, "Acu", oid, kv...)
}

func (f *fixture) recompute() {
	f.caches.RefreshAll(f.g)
	f.caches.RecomputeAll()
}

func (f *fixture) reconcile(t *testing.T, context string) *Report {
	t.Helper()
	f.recompute()
	rep, err := f.rec.Reconcile(t.Context(), context, Options{})
	require.NoError(t, err)
	return rep
}

// spacecraft builds sc = bus (B1) + three separate usages of one wheel.
func spacecraft(t *testing.T, f *fixture) {
	t.Helper()
	f.add(t, "ProductType", "test:pt-rw", "name", "Reaction Wheel", "abbreviation", "RW")
	f.product(t, "test:sc", "Spacecraft", 0)
	f.product(t, "test:bus", "Bus", 10)
	f.product(t, "test:rw", "Reaction Wheel", 2.5, "product_type", "test:pt-rw")
	f.acu(t, "test:acu-bus", "test:sc", "test:bus", "B1", 1)
	f.acu(t, "test:acu-rw1", "test:sc", "test:rw", "RW1", 1)
	f.acu(t, "test:acu-rw2", "test:sc", "test:rw", "RW2", 1)
	f.acu(t, "test:acu-rw3", "test:sc", "test:rw", "RW3", 1)
}

func names(rep *Report) []string {
	out := make([]string, len(rep.Rows))
	for i, l := range rep.Rows {
		out[i] = l.Name
	}
	return out
}

func rowOIDs(rep *Report) []string {
	out := make([]string, len(rep.Rows))
	for i, l := range rep.Rows {
		out[i] = l.OID
	}
	return out
}

func TestReconcile_SystemTree(t *testing.T) {
	f := newFixture(t)
	spacecraft(t, f)

	rep := f.reconcile(t, "test:sc")
	assert.Equal(t, ContextSystem, rep.Kind)
	assert.Equal(t, ir.ViewID("test:sc", EntityKind), rep.ViewID)
	assert.Equal(t, []string{"Spacecraft", "[B1] Bus", "[RW] Reaction Wheel"}, names(rep))
	assert.Equal(t, 3, rep.Created)
	assert.Equal(t, 0, rep.Reused)
	assert.Equal(t, 0, rep.Purged)

	levels := []int{rep.Rows[0].Level, rep.Rows[1].Level, rep.Rows[2].Level}
	assert.Equal(t, []int{1, 2, 2}, levels)
	assert.Equal(t, []int64{1, 1, 3}, []int64{rep.Rows[0].Quantity, rep.Rows[1].Quantity, rep.Rows[2].Quantity})
	assert.Equal(t, 17.5, rep.Rows[0].MassCBE)
}

func TestReconcile_ConsolidationArithmetic(t *testing.T) {
	f := newFixture(t)
	spacecraft(t, f)
	require.NoError(t, f.caches.SetParameterValue("test:rw", "m[Ctgcy]", 0.3, ""))
	require.NoError(t, f.caches.SetParameterValue("test:rw", valuecache.Power, 4, ""))

	rep := f.reconcile(t, "test:sc")
	m, ok := f.views.Get("test:sc", EntityKind)
	require.True(t, ok)
	row, ok := m.Lookup(rep.Rows[2].OID)
	require.True(t, ok)

	assert.Equal(t, "test:rw", row.MappedSystemOID)
	assert.Equal(t, int64(3), row.Int("quantity"))
	assert.Equal(t, "RW", row.String("reference_designator"), "consolidated rows show the type abbreviation")
	assert.Equal(t, "Reaction Wheel", row.String("system_name"))
	assert.Equal(t, 2.5, row.Float("m_unit"))
	assert.Equal(t, 7.5, row.Float("m_cbe"))
	assert.Equal(t, 30.0, row.Float("m_ctgcy"))
	assert.Equal(t, 3*3.25, row.Float("m_mev"))
	assert.Equal(t, 4.0, row.Float("nom_p_unit_cbe"))
	assert.Equal(t, 12.0, row.Float("nom_p_cbe"))
	assert.Equal(t, int64(3), row.Int("flight_units"))
	assert.Equal(t, int64(3), row.Int("hot_units"))

	bus, ok := m.Lookup(rep.Rows[1].OID)
	require.True(t, ok)
	assert.Equal(t, "B1", bus.String("reference_designator"))
	assert.Equal(t, int64(0), bus.Int("hot_units"), "unpowered")
}

func TestReconcile_ConsolidationWithoutProductType(t *testing.T) {
	f := newFixture(t)
	f.product(t, "test:sc", "Spacecraft", 0)
	f.product(t, "test:bolt", "Bolt", 0.01)
	f.acu(t, "test:acu-1", "test:sc", "test:bolt", "", 4)
	f.acu(t, "test:acu-2", "test:sc", "test:bolt", "", 6)

	rep := f.reconcile(t, "test:sc")
	require.Len(t, rep.Rows, 2)
	assert.Equal(t, "[TBD] Bolt", rep.Rows[1].Name)
	assert.Equal(t, int64(10), rep.Rows[1].Quantity)
}

func TestReconcile_IdentityPreserved(t *testing.T) {
	f := newFixture(t)
	spacecraft(t, f)

	first := f.reconcile(t, "test:sc")
	m, _ := f.views.Get("test:sc", EntityKind)
	bus, _ := m.Lookup(first.Rows[1].OID)
	require.NoError(t, bus.Set("note", ir.IRString("keep me")))

	// Renaming the bus moves it after the wheels in walk order.
	obj, _ := f.g.Get("test:bus")
	obj.Set("name", "Structure")
	require.NoError(t, f.g.Update(obj))
	acu, _ := f.g.Get("test:acu-bus")
	acu.Set("reference_designator", "S1")
	require.NoError(t, f.g.Update(acu))

	second := f.reconcile(t, "test:sc")
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 3, second.Reused)
	assert.Equal(t, 0, second.Purged)
	assert.Equal(t, []string{"Spacecraft", "[RW] Reaction Wheel", "[S1] Structure"}, names(second))
	assert.Equal(t, []string{first.Rows[0].OID, first.Rows[2].OID, first.Rows[1].OID}, rowOIDs(second))

	again, ok := m.Lookup(first.Rows[1].OID)
	require.True(t, ok)
	assert.Equal(t, "keep me", again.String("note"))
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newFixture(t)
	spacecraft(t, f)

	first := f.reconcile(t, "test:sc")
	history := f.views.History().Len(first.Rows[2].OID)
	second := f.reconcile(t, "test:sc")

	assert.Equal(t, rowOIDs(first), rowOIDs(second))
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, history, f.views.History().Len(first.Rows[2].OID), "unchanged rows record no history")
}

func TestReconcile_StaleRowPurged(t *testing.T) {
	f := newFixture(t)
	spacecraft(t, f)

	first := f.reconcile(t, "test:sc")
	busRow := first.Rows[1].OID
	require.True(t, f.caches.Has(busRow))

	require.True(t, f.g.Delete("test:acu-bus"))
	second := f.reconcile(t, "test:sc")

	assert.Equal(t, 1, second.Purged)
	assert.Equal(t, []string{busRow}, second.PurgedOIDs)
	assert.Equal(t, []string{first.Rows[0].OID, first.Rows[2].OID}, rowOIDs(second))
	assert.False(t, f.caches.Has(busRow))
	assert.Equal(t, 0, f.views.History().Len(busRow))
	assert.True(t, f.caches.Has(first.Rows[2].OID))
}

func TestReconcile_SubtreeUsesParentRowIdentity(t *testing.T) {
	f := newFixture(t)
	f.product(t, "test:sc", "Spacecraft", 0)
	f.product(t, "test:box", "Box", 0)
	f.product(t, "test:card", "Card", 1)
	f.acu(t, "test:acu-a", "test:sc", "test:box", "A", 1)
	f.acu(t, "test:acu-card", "test:box", "test:card", "C1", 2)

	rep := f.reconcile(t, "test:sc")
	require.Len(t, rep.Rows, 3)
	assert.Equal(t, []string{"Spacecraft", "[A] Box", "[C1] Card"}, names(rep))
	assert.Equal(t, []int{1, 2, 3}, []int{rep.Rows[0].Level, rep.Rows[1].Level, rep.Rows[2].Level})
	assert.Equal(t, 2.0, rep.Rows[2].MassCBE)

	m, _ := f.views.Get("test:sc", EntityKind)
	card, _ := m.Lookup(rep.Rows[2].OID)
	assert.Equal(t, rep.Rows[1].OID, card.ParentOID)
}

func TestReconcile_Project(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Project", "test:proj", "id", "P1", "name", "Project One")
	f.product(t, "test:zeta", "Zeta sat", 5)
	f.product(t, "test:alpha", "alpha sat", 3)
	f.product(t, "test:inst", "Imager", 1)
	f.acu(t, "test:acu-inst", "test:alpha", "test:inst", "I1", 1)
	f.add(t, "ProjectSystemUsage", "test:psu-z", "project", "test:proj", "system", "test:zeta")
	f.add(t, "ProjectSystemUsage", "test:psu-a", "project", "test:proj", "system", "test:alpha")
	f.add(t, "ProjectSystemUsage", "test:psu-tbd", "project", "test:proj", "system", refdata.TBD)

	rep := f.reconcile(t, "test:proj")
	assert.Equal(t, ContextProject, rep.Kind)
	assert.Equal(t, []string{"alpha sat", "[I1] Imager", "Zeta sat"}, names(rep))
	assert.Equal(t, []int{1, 2, 1}, []int{rep.Rows[0].Level, rep.Rows[1].Level, rep.Rows[2].Level})
}

func TestReconcile_ProjectSystemRoleInName(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Project", "test:proj", "name", "Project One")
	f.product(t, "test:obs", "Observatory", 0)
	f.add(t, "ProjectSystemUsage", "test:psu", "project", "test:proj", "system", "test:obs", "system_role", "Flight")

	rep := f.reconcile(t, "test:proj")
	assert.Equal(t, []string{"[Flight] Observatory"}, names(rep))

	m, _ := f.views.Get("test:proj", EntityKind)
	row, _ := m.Lookup(rep.Rows[0].OID)
	assert.Equal(t, "Flight", row.String("reference_designator"))
}

func TestReconcile_SameSystemTwiceInProject(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Project", "test:proj", "name", "Project One")
	f.product(t, "test:sat", "Sat", 1)
	f.add(t, "ProjectSystemUsage", "test:psu-1", "project", "test:proj", "system", "test:sat", "system_role", "A")
	f.add(t, "ProjectSystemUsage", "test:psu-2", "project", "test:proj", "system", "test:sat", "system_role", "B")

	first := f.reconcile(t, "test:proj")
	require.Len(t, first.Rows, 2)
	assert.NotEqual(t, first.Rows[0].OID, first.Rows[1].OID)

	second := f.reconcile(t, "test:proj")
	assert.Equal(t, 0, second.Created)
	assert.ElementsMatch(t, rowOIDs(first), rowOIDs(second))
}

func TestReconcile_NoOpContexts(t *testing.T) {
	f := newFixture(t)
	f.add(t, "Person", "test:person", "name", "Ada")

	for _, oid := range []string{"test:missing", "test:person"} {
		rep := f.reconcile(t, oid)
		assert.Equal(t, "", rep.Kind)
		assert.Empty(t, rep.Rows)
		assert.Empty(t, rep.ViewID)
	}
	assert.Empty(t, f.views.All(), "a no-op never creates a view")
}

func TestReconcile_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t)
	spacecraft(t, f)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.rec.Reconcile(ctx, "test:sc", Options{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.views.All())
}

func TestReconcile_SkipsTBDAndDefaultsQuantity(t *testing.T) {
	f := newFixture(t)
	f.product(t, "test:sc", "Spacecraft", 0)
	f.product(t, "test:bus", "Bus", 1)
	f.acu(t, "test:acu-tbd", "test:sc", refdata.TBD, "X1", 1)
	f.acu(t, "test:acu-bus", "test:sc", "test:bus", "", 0)

	rep := f.reconcile(t, "test:sc")
	assert.Equal(t, []string{"Spacecraft", "Bus"}, names(rep))
	assert.Equal(t, int64(1), rep.Rows[1].Quantity)
}

func TestReconcile_CycleTerminates(t *testing.T) {
	f := newFixture(t)
	f.product(t, "test:a", "A", 1)
	f.product(t, "test:b", "B", 1)
	f.acu(t, "test:acu-ab", "test:a", "test:b", "", 1)
	f.acu(t, "test:acu-ba", "test:b", "test:a", "", 1)

	rep := f.reconcile(t, "test:a")
	assert.Equal(t, []string{"A", "B", "A"}, names(rep))
}

func TestReconcile_CustomViewOptions(t *testing.T) {
	f := newFixture(t)
	spacecraft(t, f)
	f.recompute()

	rep, err := f.rec.Reconcile(t.Context(), "test:sc", Options{SchemaName: "generic", EntityKind: "Acu"})
	require.NoError(t, err)
	m, ok := f.views.Get("test:sc", "Acu")
	require.True(t, ok)
	assert.Equal(t, m.ID, rep.ViewID)
	assert.Equal(t, []string{"name", "desc"}, m.Schema)

	_, ok = f.views.Get("test:sc", EntityKind)
	assert.False(t, ok)
}

func TestReconcile_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, WithMetrics(metrics.New(reg)))
	spacecraft(t, f)

	f.reconcile(t, "test:sc")
	f.reconcile(t, "test:nope")

	expected := `
# HELP galactic_reconcile_rows_total Rows touched by view reconciliation, by action
# TYPE galactic_reconcile_rows_total counter
galactic_reconcile_rows_total{action="created"} 3
galactic_reconcile_rows_total{action="purged"} 0
galactic_reconcile_rows_total{action="reused"} 0
`
	require.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected), "galactic_reconcile_rows_total"))
}
