package merge

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/galactic/internal/graph"
	"github.com/roach88/galactic/internal/ir"
	"github.com/roach88/galactic/internal/kind"
	"github.com/roach88/galactic/internal/metrics"
	"github.com/roach88/galactic/internal/refdata"
	"github.com/roach88/galactic/internal/schema"
	"github.com/roach88/galactic/internal/telemetry"
	"github.com/roach88/galactic/internal/valuecache"
)

// Engine applies record batches to a graph and its value caches.
//
// Apply must not run concurrently with itself or with anything else that
// mutates the same graph or caches; the workspace serializes callers.
type Engine struct {
	graph   *graph.Graph
	reg     *schema.Registry
	kinds   *kind.Table
	caches  *valuecache.Cache
	refs    refdata.Set
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics sets where batch outcomes are recorded.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithReferenceData replaces the reference-data set.
func WithReferenceData(refs refdata.Set) Option {
	return func(e *Engine) {
		e.refs = refs
	}
}

// New creates an engine over g and caches.
func New(g *graph.Graph, kinds *kind.Table, caches *valuecache.Cache, opts ...Option) *Engine {
	e := &Engine{
		graph:  g,
		reg:    g.Registry(),
		kinds:  kinds,
		caches: caches,
		refs:   refdata.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// pending is a record awaiting apply with its batch position.
type pending struct {
	index int
	rec   ir.Record
}

// batch is the state of one Apply call.
type batch struct {
	opts     Options
	result   *Result
	dirty    *kind.Dirty
	incoming map[string]struct{}
	invalid  map[string]struct{}
	products []string // updated products, for port and flow cleanup

	// cache state of every oid the batch touched, taken before the first
	// change, for rollback
	snapshots map[string]valuecache.Values
}

func newBatch(opts Options) *batch {
	return &batch{
		opts: opts,
		result: &Result{
			Objects: []string{},
			Ignored: []string{},
			partition: Partition{
				New:        []string{},
				Modified:   []string{},
				Unmodified: []string{},
				Error:      []string{},
			},
		},
		dirty:     kind.NewDirty(),
		incoming:  make(map[string]struct{}),
		invalid:   make(map[string]struct{}),
		snapshots: make(map[string]valuecache.Values),
	}
}

// Apply applies recs. The returned error is non-nil only when the batch as
// a whole failed: cancellation or a failed commit. In that case nothing the
// batch did remains visible.
func (e *Engine) Apply(ctx context.Context, recs []ir.Record, opts Options) (res *Result, err error) {
	start := time.Now()
	ctx, span := telemetry.Start(ctx, telemetry.SpanApply,
		attribute.Int("records", len(recs)),
		attribute.Bool("force_update", opts.ForceUpdate),
	)
	defer func() {
		var counts map[string]int
		if res != nil {
			counts = res.Counts()
			telemetry.Counts(span, counts)
		}
		telemetry.End(span, err)
		e.metrics.ObserveBatch(time.Since(start), counts, err)
	}()

	b := newBatch(opts)
	buckets := e.bucket(recs, b)

	for _, bucket := range buckets {
		if err := ctx.Err(); err != nil {
			e.rollback(b)
			return nil, fmt.Errorf("apply batch: %w", err)
		}
		for _, p := range bucket {
			e.applyRecord(p, b)
		}
	}

	e.reconcile(b)

	if err := ctx.Err(); err != nil {
		e.rollback(b)
		return nil, fmt.Errorf("apply batch: %w", err)
	}
	if err := e.graph.Commit(ctx); err != nil {
		e.rollback(b)
		return nil, fmt.Errorf("apply batch: %w", err)
	}

	res = b.result
	if opts.DetailedResult {
		p := res.partition
		res.Detail = &p
	}
	counts := res.Counts()
	e.logger.Info("applied batch",
		"records", len(recs),
		"new", counts["new"],
		"modified", counts["modified"],
		"unmodified", counts["unmodified"],
		"error", counts["error"],
		"ignored", counts["ignored"],
		"deleted", len(res.Deleted),
		"recomputed", res.Recomputed,
	)
	return res, nil
}

// bucket filters recs and groups the survivors by apply rank. Records keep
// their batch order within a bucket.
func (e *Engine) bucket(recs []ir.Record, b *batch) [][]pending {
	byRank := make(map[int][]pending)
	for i, rec := range recs {
		switch {
		case rec.OID == "":
			b.skip(newMalformed(i, "", rec.ClassName, "record has no oid"))
			e.logger.Debug("skipping record without oid", "index", i, "cname", rec.ClassName)
			continue
		case !b.opts.IncludeReferenceData && e.refs.Contains(rec.OID):
			b.result.skipped++
			e.logger.Debug("skipping reference data", "oid", rec.OID)
			continue
		case !e.reg.Recognized(rec.ClassName):
			b.skip(newUnknownType(i, rec.OID, rec.ClassName))
			e.logger.Debug("skipping unknown type", "oid", rec.OID, "cname", rec.ClassName)
			continue
		}
		b.incoming[rec.OID] = struct{}{}
		rank := e.reg.Rank(rec.ClassName)
		byRank[rank] = append(byRank[rank], pending{index: i, rec: rec})
	}

	ranks := make([]int, 0, len(byRank))
	for r := range byRank {
		ranks = append(ranks, r)
	}
	slices.Sort(ranks)
	out := make([][]pending, len(ranks))
	for i, r := range ranks {
		out[i] = byRank[r]
	}
	return out
}

// applyRecord runs one record through conflict resolution, flow repair,
// field resolution, sidecars, and apply.
func (e *Engine) applyRecord(p pending, b *batch) {
	rec := p.rec
	existing, exists := e.graph.Get(rec.OID)
	if exists {
		if existing.ClassName != rec.ClassName {
			b.reject(e.logger, newMalformed(p.index, rec.OID, rec.ClassName,
				fmt.Sprintf("stored object has class %s", existing.ClassName)))
			return
		}
		if !b.opts.ForceUpdate {
			if why, stale := isStale(existing, rec); stale {
				b.result.partition.Unmodified = append(b.result.partition.Unmodified, rec.OID)
				b.result.Issues = append(b.result.Issues, newStale(p.index, rec.OID, rec.ClassName, why))
				e.logger.Debug("ignoring stale record", "oid", rec.OID, "cname", rec.ClassName, "reason", why)
				return
			}
		}
	}

	if e.reg.IsA(rec.ClassName, "Flow") && needsFlowRepair(rec) {
		repaired, ok := e.repairFlow(rec)
		if !ok {
			b.reject(e.logger, newInvalid(p.index, rec.OID, rec.ClassName, "flow_context",
				"cannot infer endpoint contexts from legacy flow_context"))
			return
		}
		e.logger.Debug("repaired legacy flow", "oid", rec.OID)
		rec = repaired
	}

	obj, fallbacks, err := graph.FromRecord(e.reg, rec)
	if err != nil {
		b.reject(e.logger, newMalformed(p.index, rec.OID, rec.ClassName, err.Error()))
		return
	}
	for _, field := range fallbacks {
		b.result.Issues = append(b.result.Issues, newFallback(p.index, rec.OID, rec.ClassName, field))
		e.logger.Debug("decode fallback", "oid", rec.OID, "field", field)
	}
	if issue := e.resolveRefs(p.index, obj); issue != nil {
		b.reject(e.logger, issue)
		return
	}

	e.applySidecars(rec, b)

	ty := e.kinds.Lookup(obj.ClassName)
	if exists {
		if err := e.graph.Update(obj); err != nil {
			b.reject(e.logger, newMalformed(p.index, obj.OID, obj.ClassName, err.Error()))
			return
		}
		b.result.partition.Modified = append(b.result.partition.Modified, obj.OID)
		if e.reg.IsA(obj.ClassName, "Product") {
			b.products = append(b.products, obj.OID)
		}
		e.logger.Debug("updated object", "oid", obj.OID, "cname", obj.ClassName)
	} else {
		if err := e.graph.Add(obj); err != nil {
			b.reject(e.logger, newMalformed(p.index, obj.OID, obj.ClassName, err.Error()))
			return
		}
		b.result.partition.New = append(b.result.partition.New, obj.OID)
		b.snapshot(e.caches, obj.OID)
		ty.AfterCreate(obj, e.caches)
		e.logger.Debug("created object", "oid", obj.OID, "cname", obj.ClassName)
	}
	b.result.Objects = append(b.result.Objects, obj.OID)

	ty.MarkDirty(obj, existing, b.dirty)
	e.flushRelations(b)
}

// isStale reports whether rec must not replace existing: its mod_datetime
// is missing, unreadable, or not strictly later than the stored one.
func isStale(existing *graph.Object, rec ir.Record) (string, bool) {
	incoming, ok := ir.ParseTime(rec.String("mod_datetime"))
	if !ok {
		return "record has no usable mod_datetime", true
	}
	current, ok := existing.ModDatetime()
	if ok && !incoming.After(current) {
		return "mod_datetime is not later than the stored object's", true
	}
	return "", false
}

// resolveRefs checks every reference of obj against the graph. Required
// references must resolve; other unresolvable references are dropped.
func (e *Engine) resolveRefs(index int, obj *graph.Object) *RecordError {
	class, _ := e.reg.Class(obj.ClassName)
	required := make(map[string]bool)
	for _, name := range e.kinds.Lookup(obj.ClassName).RequiredRefs() {
		required[name] = true
	}

	for _, f := range class.Fields {
		if !f.IsRef() || f.Inverse {
			continue
		}
		need := f.Required || required[f.Name]

		if f.Functional {
			target := obj.Ref(f.Name)
			switch {
			case target == "" && need:
				return newInvalid(index, obj.OID, obj.ClassName, f.Name, "required reference is missing")
			case target == "" || e.resolvable(target, f.Range):
				continue
			case need:
				return newInvalid(index, obj.OID, obj.ClassName, f.Name,
					fmt.Sprintf("required reference %q does not resolve", target))
			default:
				e.logger.Debug("dropping unresolved reference", "oid", obj.OID, "field", f.Name, "target", target)
				obj.Set(f.Name, nil)
			}
			continue
		}

		var kept []string
		for _, target := range obj.Refs(f.Name) {
			if e.resolvable(target, f.Range) {
				kept = append(kept, target)
				continue
			}
			e.logger.Debug("dropping unresolved reference", "oid", obj.OID, "field", f.Name, "target", target)
		}
		if len(kept) == 0 {
			if need {
				return newInvalid(index, obj.OID, obj.ClassName, f.Name, "required reference is missing")
			}
			obj.Set(f.Name, nil)
			continue
		}
		obj.Set(f.Name, kept)
	}
	return nil
}

// resolvable reports whether oid names an object of class rangeClass (or a
// subclass), or a reference-data object the graph does not hold.
func (e *Engine) resolvable(oid, rangeClass string) bool {
	cname := e.graph.ClassOf(oid)
	if cname == "" {
		return e.refs.Contains(oid)
	}
	return e.reg.IsA(cname, rangeClass)
}

// applySidecars hands parameter and data element payloads to the caches.
func (e *Engine) applySidecars(rec ir.Record, b *batch) {
	if len(rec.DataElements) > 0 {
		b.snapshot(e.caches, rec.OID)
		n := e.caches.DeserializeDataElements(rec.OID, rec.DataElements)
		e.logger.Debug("data elements", "oid", rec.OID, "count", n)
	}
	if len(rec.Parameters) > 0 {
		b.snapshot(e.caches, rec.OID)
		n := e.caches.DeserializeParameters(rec.OID, rec.Parameters)
		e.logger.Debug("parameters", "oid", rec.OID, "count", n)
		b.dirty.Parameters = true
	}
}

// flushRelations refreshes the component and system caches whose target
// object exists. Targets not yet in the graph stay dirty.
func (e *Engine) flushRelations(b *batch) {
	for assembly := range b.dirty.Assemblies {
		if e.graph.Has(assembly) {
			e.caches.RefreshComponentCache(e.graph, assembly)
			delete(b.dirty.Assemblies, assembly)
		}
	}
	for project := range b.dirty.Projects {
		if e.graph.Has(project) {
			e.caches.RefreshSystemCache(e.graph, project)
			delete(b.dirty.Projects, project)
		}
	}
}

// rollback undoes everything the batch changed in the graph and caches.
func (e *Engine) rollback(b *batch) {
	e.graph.Rollback()
	for oid, v := range b.snapshots {
		e.caches.Restore(oid, v)
	}
	e.caches.RefreshAll(e.graph)
	if b.result.Recomputed {
		e.caches.RecomputeAll()
	}
	e.logger.Warn("rolled back batch", "touched", len(b.result.Objects))
}

// snapshot saves oid's cache state the first time the batch touches it.
func (b *batch) snapshot(caches *valuecache.Cache, oid string) {
	if _, ok := b.snapshots[oid]; ok {
		return
	}
	b.snapshots[oid] = caches.Snapshot(oid)
}

// skip records a record dropped before classification.
func (b *batch) skip(issue *RecordError) {
	b.result.skipped++
	b.result.Issues = append(b.result.Issues, issue)
}

// reject records an invalid record.
func (b *batch) reject(logger *slog.Logger, issue *RecordError) {
	b.result.Issues = append(b.result.Issues, issue)
	logger.Warn("invalid record", "oid", issue.OID, "cname", issue.ClassName, "field", issue.Field, "error", issue.Message)
	if _, dup := b.invalid[issue.OID]; dup {
		return
	}
	b.invalid[issue.OID] = struct{}{}
	b.result.Ignored = append(b.result.Ignored, issue.OID)
	b.result.partition.Error = append(b.result.partition.Error, issue.OID)
}
