package codec

import (
	"context"
	"fmt"
	"log/slog"

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

// Source is the graph view the encoder reads. *graph.Graph satisfies it.
type Source interface {
	kind.Source
	Registry() *schema.Registry
	Inverse(oid, viaClass, viaField string) []string
}

// Options selects what an encode pass includes beyond the requested
// objects and their fixed cascades.
type Options struct {
	IncludeComponents    bool
	IncludeSubActivities bool
	IncludeReferenceData bool
	IncludeInverseFields bool
}

// Encoder produces canonical records from live objects.
type Encoder struct {
	src     Source
	kinds   *kind.Table
	caches  *valuecache.Cache
	refs    refdata.Set
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithReferenceData replaces the reference-data set used for filtering.
func WithReferenceData(refs refdata.Set) EncoderOption {
	return func(e *Encoder) {
		e.refs = refs
	}
}

// WithLogger sets the encoder's logger.
func WithLogger(l *slog.Logger) EncoderOption {
	return func(e *Encoder) {
		e.logger = l
	}
}

// WithMetrics sets where encode counts are recorded.
func WithMetrics(m *metrics.Metrics) EncoderOption {
	return func(e *Encoder) {
		e.metrics = m
	}
}

// NewEncoder returns an encoder over src. caches may be nil, in which case
// no sidecars are attached.
func NewEncoder(src Source, kinds *kind.Table, caches *valuecache.Cache, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		src:    src,
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

// walk is the state of one encode pass.
type walk struct {
	opts    Options
	records []ir.Record
	pos     map[string]int
}

// Encode encodes objs and their cascades. Nil objects and objects without
// an oid are skipped. The context is checked between requested objects.
func (e *Encoder) Encode(ctx context.Context, objs []*graph.Object, opts Options) (recs []ir.Record, err error) {
	ctx, span := telemetry.Start(ctx, telemetry.SpanEncode, attribute.Int("objects", len(objs)))
	defer func() { telemetry.End(span, err) }()

	w := &walk{opts: opts, pos: make(map[string]int)}
	for _, obj := range objs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("encode: %w", err)
		}
		if obj == nil || obj.OID == "" {
			continue
		}
		e.visit(w, obj, kind.Options{
			IncludeComponents:    opts.IncludeComponents,
			IncludeSubActivities: opts.IncludeSubActivities,
		}, true)
	}

	out := make([]ir.Record, 0, len(w.records))
	for _, rec := range w.records {
		if !opts.IncludeReferenceData && e.refs.Contains(rec.OID) {
			continue
		}
		out = append(out, rec)
	}
	e.metrics.ObserveEncode(len(out))
	e.logger.Debug("encoded", "requested", len(objs), "count", len(out))
	return out, nil
}

// visit encodes obj and then its cascades. A requested object is always
// re-encoded; a cascaded one is skipped once its oid has been seen.
func (e *Encoder) visit(w *walk, obj *graph.Object, flags kind.Options, requested bool) {
	i, seen := w.pos[obj.OID]
	if seen && !requested {
		return
	}
	rec, err := e.record(obj, w.opts)
	if err != nil {
		e.logger.Warn("skipping object", "oid", obj.OID, "cname", obj.ClassName, "error", err)
		return
	}
	if seen {
		w.records[i] = rec
	} else {
		w.pos[obj.OID] = len(w.records)
		w.records = append(w.records, rec)
	}

	ty := e.kinds.Lookup(obj.ClassName)
	for _, oid := range ty.Cascade(obj, e.src, flags) {
		if _, done := w.pos[oid]; done {
			continue
		}
		next, ok := e.src.Get(oid)
		if !ok {
			e.logger.Debug("cascade target missing", "oid", obj.OID, "target", oid)
			continue
		}
		// Gated cascades go one level deep only.
		e.visit(w, next, kind.Options{}, false)
	}
}

// record builds the wire record for one object.
func (e *Encoder) record(obj *graph.Object, opts Options) (ir.Record, error) {
	reg := e.src.Registry()
	rec, err := graph.ToRecord(reg, obj)
	if err != nil {
		return ir.Record{}, err
	}
	class, _ := reg.Class(obj.ClassName)

	if opts.IncludeInverseFields {
		for _, f := range class.Fields {
			if !f.Inverse {
				continue
			}
			viaClass, viaField := f.ViaParts()
			oids := e.src.Inverse(obj.OID, viaClass, viaField)
			if len(oids) == 0 {
				continue
			}
			arr := make(ir.IRArray, len(oids))
			for i, oid := range oids {
				arr[i] = ir.IRString(oid)
			}
			rec.Fields[f.Name] = arr
		}
	}

	if class.Valued && e.caches != nil {
		rec.Parameters = e.caches.SerializeParameters(obj.OID)
		if rec.Parameters == nil {
			rec.Parameters = ir.IRObject{}
		}
		rec.DataElements = e.caches.SerializeDataElements(obj.OID)
		if rec.DataElements == nil {
			rec.DataElements = ir.IRObject{}
		}
	}
	return rec, nil
}
