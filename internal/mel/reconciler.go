package mel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/galactic/internal/graph"
	"github.com/roach88/galactic/internal/ir"
	"github.com/roach88/galactic/internal/matrix"
	"github.com/roach88/galactic/internal/metrics"
	"github.com/roach88/galactic/internal/schema"
	"github.com/roach88/galactic/internal/telemetry"
	"github.com/roach88/galactic/internal/valuecache"
)

// Defaults for the MEL view of a context.
const (
	SchemaName = "MEL"
	EntityKind = "HardwareProduct"
)

// Context kinds a reconcile can run against.
const (
	ContextSystem  = "system"
	ContextProject = "project"
)

// Source is the read-only view of the object graph the reconciler walks.
// *graph.Graph satisfies it.
type Source interface {
	Get(oid string) (*graph.Object, bool)
	Registry() *schema.Registry
	ComponentsOf(product string) []string
	SystemsOf(project string) []string
}

// Options selects the view a reconcile writes.
type Options struct {
	SchemaName string // defaults to SchemaName
	EntityKind string // defaults to EntityKind
}

// Line summarizes one reconciled row.
type Line struct {
	OID             string  `json:"oid"`
	MappedSystemOID string  `json:"mapped_system_oid"`
	Name            string  `json:"name"`
	Level           int     `json:"level"`
	Quantity        int64   `json:"quantity"`
	MassCBE         float64 `json:"m_cbe"`
}

// Report is the outcome of one reconcile.
type Report struct {
	Context string `json:"context"`
	Kind    string `json:"kind,omitempty"` // ContextSystem, ContextProject, or "" for a no-op
	ViewID  string `json:"view_id,omitempty"`

	Rows    []Line `json:"rows"`
	Created int    `json:"created"`
	Reused  int    `json:"reused"`
	Purged  int    `json:"purged"`

	PurgedOIDs []string `json:"purged_oids,omitempty"`
}

// Reconciler rebuilds MEL views from the assembly tree.
//
// Reconcile must not run concurrently with a merge batch or with itself;
// the workspace serializes callers.
type Reconciler struct {
	src     Source
	reg     *schema.Registry
	views   *matrix.Views
	caches  *valuecache.Cache
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// WithMetrics sets where reconcile outcomes are recorded.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// New creates a reconciler writing into views, reading values from caches.
func New(src Source, views *matrix.Views, caches *valuecache.Cache, opts ...Option) *Reconciler {
	r := &Reconciler{
		src:    src,
		reg:    src.Registry(),
		views:  views,
		caches: caches,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// walk is the state of one reconcile.
type walk struct {
	m      *matrix.DataMatrix
	report *Report
	path   map[string]bool
}

// Reconcile brings the view of contextOID up to date with the tree. A
// context that is neither a product nor a project leaves everything as it
// was and yields an empty report. The context is only checked before the
// walk starts; once started, a reconcile runs to completion.
func (r *Reconciler) Reconcile(ctx context.Context, contextOID string, opts Options) (rep *Report, err error) {
	start := time.Now()
	ctx, span := telemetry.Start(ctx, telemetry.SpanReconcile, attribute.String("context", contextOID))
	defer func() {
		if rep != nil {
			telemetry.Counts(span, map[string]int{
				"rows":    len(rep.Rows),
				"created": rep.Created,
				"reused":  rep.Reused,
				"purged":  rep.Purged,
			})
			if rep.Kind != "" {
				r.metrics.ObserveReconcile(time.Since(start), rep.Created, rep.Reused, rep.Purged)
			}
		}
		telemetry.End(span, err)
	}()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", contextOID, err)
	}
	if opts.SchemaName == "" {
		opts.SchemaName = SchemaName
	}
	if opts.EntityKind == "" {
		opts.EntityKind = EntityKind
	}

	rep = &Report{Context: contextOID, Rows: []Line{}}
	obj, ok := r.src.Get(contextOID)
	switch {
	case !ok:
		r.logger.Debug("reconcile context not found", "oid", contextOID)
		return rep, nil
	case r.reg.IsA(obj.ClassName, "Project"):
		rep.Kind = ContextProject
	case r.reg.IsA(obj.ClassName, "Product"):
		rep.Kind = ContextSystem
	default:
		r.logger.Debug("reconcile context is not a system or project", "oid", contextOID, "cname", obj.ClassName)
		return rep, nil
	}

	m, ok := r.views.Get(contextOID, opts.EntityKind)
	if !ok {
		m = r.views.New(contextOID, opts.EntityKind, opts.SchemaName, nil)
	}
	rep.ViewID = m.ID
	m.Unvisit()

	w := &walk{m: m, report: rep, path: map[string]bool{}}
	var roots []node
	if rep.Kind == ContextProject {
		roots = r.projectSystems(contextOID)
	} else {
		roots = []node{r.rootSystem(contextOID)}
	}
	cursor := 0
	for _, n := range roots {
		if cursor, err = r.visit(w, n, "", cursor); err != nil {
			return nil, fmt.Errorf("reconcile %s: %w", contextOID, err)
		}
	}

	rep.PurgedOIDs = m.PurgeUnvisited()
	rep.Purged = len(rep.PurgedOIDs)
	for _, row := range m.Rows() {
		rep.Rows = append(rep.Rows, Line{
			OID:             row.OID,
			MappedSystemOID: row.MappedSystemOID,
			Name:            row.Name,
			Level:           m.Level(row),
			Quantity:        row.Int("quantity"),
			MassCBE:         row.Float("m_cbe"),
		})
	}

	r.logger.Info("reconciled view",
		"context", contextOID,
		"kind", rep.Kind,
		"rows", len(rep.Rows),
		"created", rep.Created,
		"reused", rep.Reused,
		"purged", rep.Purged,
	)
	return rep, nil
}

// visit places n at cursor under parentRow, then its consolidated
// children after it. Returns the cursor past the last row it placed.
func (r *Reconciler) visit(w *walk, n node, parentRow string, cursor int) (int, error) {
	row := unvisited(w.m, n.product, parentRow)
	if row != nil {
		w.m.Move(row.OID, cursor)
		w.report.Reused++
	} else {
		row = w.m.NewRow(n.product, parentRow, n.name)
		w.m.InsertRow(cursor, row)
		w.report.Created++
	}
	row.Visited = true
	row.Rename(n.name)
	if err := row.SetValues(r.computed(n)); err != nil {
		return cursor, err
	}
	cursor++

	if w.path[n.product] {
		r.logger.Warn("assembly cycle", "oid", n.product)
		return cursor, nil
	}
	w.path[n.product] = true
	defer delete(w.path, n.product)

	var err error
	for _, child := range r.children(n.product) {
		if cursor, err = r.visit(w, child, row.OID, cursor); err != nil {
			return cursor, err
		}
	}
	return cursor, nil
}

// unvisited returns the first row not yet claimed by this walk that maps
// the (product, parent row) pair.
func unvisited(m *matrix.DataMatrix, product, parentRow string) *matrix.Row {
	for _, row := range m.Rows() {
		if !row.Visited && row.MappedSystemOID == product && row.ParentOID == parentRow {
			return row
		}
	}
	return nil
}

// computed returns the generated columns of a row for n.
func (r *Reconciler) computed(n node) map[string]ir.IRValue {
	oid := n.product
	qty := float64(n.quantity)
	param := func(variable, context string) float64 {
		return r.caches.GetParameterValue(oid, valuecache.PID(variable, context))
	}
	percent := func(fraction float64) ir.IRValue {
		return ir.IRFloat(valuecache.RoundTo(100*fraction, valuecache.Precision))
	}

	mUnit := param(valuecache.Mass, valuecache.CBE)
	pUnit := param(valuecache.Power, valuecache.CBE)
	hot := int64(0)
	if pUnit > 0 {
		hot = n.quantity
	}
	var refdes ir.IRValue = ir.IRNull{}
	if n.refdes != "" {
		refdes = ir.IRString(n.refdes)
	}

	return map[string]ir.IRValue{
		"system_name":          ir.IRString(n.system),
		"reference_designator": refdes,
		"quantity":             ir.IRInt(n.quantity),
		"flight_units":         ir.IRInt(n.quantity),
		"hot_units":            ir.IRInt(hot),
		"m_unit":               ir.IRFloat(mUnit),
		"m_cbe":                ir.IRFloat(qty * mUnit),
		"m_ctgcy":              percent(param(valuecache.Mass, valuecache.Contingency)),
		"m_mev":                ir.IRFloat(qty * param(valuecache.Mass, valuecache.MEV)),
		"nom_p_unit_cbe":       ir.IRFloat(pUnit),
		"nom_p_cbe":            ir.IRFloat(qty * pUnit),
		"nom_p_ctgcy":          percent(param(valuecache.Power, valuecache.Contingency)),
		"nom_p_mev":            ir.IRFloat(qty * param(valuecache.Power, valuecache.MEV)),
	}
}
