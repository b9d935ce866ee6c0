// Package workspace is one editing session over a database: it owns the
// class registry, the object graph, the value caches, and the view
// registry, loads them from the store on Open, and persists them back.
//
// Every operation takes the workspace lock, so a merge batch, an encode
// pass, and a view reconcile never interleave.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/galactic/internal/codec"
	"github.com/roach88/galactic/internal/graph"
	"github.com/roach88/galactic/internal/ir"
	"github.com/roach88/galactic/internal/kind"
	"github.com/roach88/galactic/internal/matrix"
	"github.com/roach88/galactic/internal/mel"
	"github.com/roach88/galactic/internal/merge"
	"github.com/roach88/galactic/internal/metrics"
	"github.com/roach88/galactic/internal/refdata"
	"github.com/roach88/galactic/internal/schema"
	"github.com/roach88/galactic/internal/store"
	"github.com/roach88/galactic/internal/valuecache"
)

// Config holds what Open needs. Only Database is required.
type Config struct {
	Database string

	// ClassesDir is an extra CUE package unified into the built-in classes.
	ClassesDir string

	Owner         string // stamped on new rows; defaults to refdata.PGANA
	Creator       string // stamped on new views and rows; defaults to refdata.Admin
	DefaultSchema string // MEL schema when a reconcile names none

	// ExtraReferenceOIDs extends the built-in reference-data set.
	ExtraReferenceOIDs []string

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Clock and RowOIDs make timestamps and row oids deterministic in tests.
	Clock   func() time.Time
	RowOIDs matrix.OIDGenerator
}

// Workspace is an open session.
type Workspace struct {
	mu sync.Mutex

	cfg     Config
	reg     *schema.Registry
	refs    refdata.Set
	store   *store.Store
	graph   *graph.Graph
	caches  *valuecache.Cache
	views   *matrix.Views
	engine  *merge.Engine
	encoder *codec.Encoder
	mel     *mel.Reconciler
	logger  *slog.Logger
}

// Open loads the database at cfg.Database, creating it if needed.
func Open(ctx context.Context, cfg Config) (*Workspace, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("open workspace: no database")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reg, err := loadRegistry(cfg.ClassesDir)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}

	w, err := hydrate(ctx, cfg, reg, st, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	return w, nil
}

func loadRegistry(dir string) (*schema.Registry, error) {
	if dir == "" {
		return schema.Default()
	}
	return schema.LoadDir(dir)
}

// hydrate builds the in-memory state from st.
func hydrate(ctx context.Context, cfg Config, reg *schema.Registry, st *store.Store, logger *slog.Logger) (*Workspace, error) {
	cacheOpts := []valuecache.Option{valuecache.WithLogger(logger)}
	viewOpts := []matrix.Option{matrix.WithLogger(logger)}
	if cfg.Clock != nil {
		cacheOpts = append(cacheOpts, valuecache.WithClock(cfg.Clock))
		viewOpts = append(viewOpts, matrix.WithClock(cfg.Clock))
	}
	if cfg.RowOIDs != nil {
		viewOpts = append(viewOpts, matrix.WithOIDGenerator(cfg.RowOIDs))
	}
	if cfg.Owner != "" {
		viewOpts = append(viewOpts, matrix.WithOwner(cfg.Owner))
	}
	if cfg.Creator != "" {
		viewOpts = append(viewOpts, matrix.WithCreator(cfg.Creator))
	}

	caches := valuecache.New(cacheOpts...)
	g := graph.New(reg, graph.WithCommitter(&committer{store: st, reg: reg, caches: caches, logger: logger}))

	rows, err := st.LoadObjects(ctx)
	if err != nil {
		return nil, err
	}
	objs := make([]*graph.Object, 0, len(rows))
	for _, row := range rows {
		obj, err := decodeObject(reg, row)
		if err != nil {
			logger.Warn("skipping stored object", "oid", row.OID, "cname", row.ClassName, "error", err)
			continue
		}
		objs = append(objs, obj)
	}
	g.Load(objs)

	sets, err := st.LoadValues(ctx)
	if err != nil {
		return nil, err
	}
	for _, vs := range sets {
		v, err := cachedValues(vs)
		if err != nil {
			return nil, err
		}
		caches.Load(vs.OID, v)
	}
	caches.RefreshAll(g)

	views := matrix.NewViews(caches, matrix.NewCatalog(reg.ViewSchemas()), viewOpts...)
	vrows, err := st.LoadViews(ctx)
	if err != nil {
		return nil, err
	}
	history, err := st.LoadHistory(ctx)
	if err != nil {
		return nil, err
	}
	if err := views.Import(vrows, history); err != nil {
		return nil, err
	}

	refs := refdata.Default().With(cfg.ExtraReferenceOIDs...)
	kinds := kind.NewDefaultTable(reg)
	w := &Workspace{
		cfg:    cfg,
		reg:    reg,
		refs:   refs,
		store:  st,
		graph:  g,
		caches: caches,
		views:  views,
		engine: merge.New(g, kinds, caches,
			merge.WithLogger(logger),
			merge.WithMetrics(cfg.Metrics),
			merge.WithReferenceData(refs),
		),
		encoder: codec.NewEncoder(g, kinds, caches,
			codec.WithLogger(logger),
			codec.WithMetrics(cfg.Metrics),
			codec.WithReferenceData(refs),
		),
		mel: mel.New(g, views, caches,
			mel.WithLogger(logger),
			mel.WithMetrics(cfg.Metrics),
		),
		logger: logger,
	}
	logger.Debug("opened workspace",
		"database", cfg.Database,
		"objects", g.Len(),
		"values", len(sets),
		"views", len(vrows),
	)
	return w, nil
}

// Registry returns the class registry.
func (w *Workspace) Registry() *schema.Registry {
	return w.reg
}

// ReferenceData returns the reference-data set in effect.
func (w *Workspace) ReferenceData() refdata.Set {
	return w.refs
}

// Get returns a copy of the object with oid.
func (w *Workspace) Get(oid string) (*graph.Object, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.Get(oid)
}

// Len returns the number of live objects.
func (w *Workspace) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.Len()
}

// Parameter returns the cached value of pid on oid.
func (w *Workspace) Parameter(oid, pid string) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.caches.GetParameterValue(oid, pid)
}

// Apply merges recs into the graph. Object changes and the values they
// dirty are committed together; values dirtied without any object change,
// such as sidecars on unmodified records, are flushed right after.
func (w *Workspace) Apply(ctx context.Context, recs []ir.Record, opts merge.Options) (*merge.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	res, err := w.engine.Apply(ctx, recs, opts)
	if err != nil {
		return nil, err
	}
	if err := w.flushValues(ctx); err != nil {
		return res, fmt.Errorf("apply batch: %w", err)
	}
	return res, nil
}

// Encode encodes the objects named by oids. Unknown oids are skipped.
func (w *Workspace) Encode(ctx context.Context, oids []string, opts codec.Options) ([]ir.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	objs := make([]*graph.Object, 0, len(oids))
	for _, oid := range oids {
		obj, ok := w.graph.Get(oid)
		if !ok {
			w.logger.Debug("encode: unknown oid", "oid", oid)
			continue
		}
		objs = append(objs, obj)
	}
	return w.encoder.Encode(ctx, objs, opts)
}

// EncodeAll encodes every live object.
func (w *Workspace) EncodeAll(ctx context.Context, opts codec.Options) ([]ir.Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.encoder.Encode(ctx, w.graph.All(), opts)
}

// RecomputeMEL reconciles the MEL view of contextOID. The view lives in
// memory until Save.
func (w *Workspace) RecomputeMEL(ctx context.Context, contextOID string, opts mel.Options) (*mel.Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if opts.SchemaName == "" {
		opts.SchemaName = w.cfg.DefaultSchema
	}
	return w.mel.Reconcile(ctx, contextOID, opts)
}

// View returns the live view of (owner, entityKind).
func (w *Workspace) View(ownerContextOID, entityKind string) (*matrix.DataMatrix, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if entityKind == "" {
		entityKind = mel.EntityKind
	}
	return w.views.Get(ownerContextOID, entityKind)
}

// Undo reverts the last recorded change of a row.
func (w *Workspace) Undo(rowOID string) (*matrix.Row, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.views.Undo(rowOID)
}

// Save persists every view, the row history, and any dirty values.
func (w *Workspace) Save(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	views, history, err := w.views.Export()
	if err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	values, dirty, err := dirtyValues(w.caches)
	if err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}
	vals := store.Batch{Values: values, PurgeValues: dirty.Purged}
	if err := w.store.SaveViews(ctx, views, history, vals); err != nil {
		w.caches.Requeue(dirty)
		return fmt.Errorf("save workspace: %w", err)
	}
	w.logger.Debug("saved workspace", "views", len(views), "history", len(history))
	return nil
}

// Close releases the store. Unsaved views are lost.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.Close()
}

// flushValues writes the values dirtied since the last commit. Caller
// holds mu.
func (w *Workspace) flushValues(ctx context.Context) error {
	values, dirty, err := dirtyValues(w.caches)
	if err != nil {
		return err
	}
	if err := w.store.Commit(ctx, store.Batch{Values: values, PurgeValues: dirty.Purged}); err != nil {
		w.caches.Requeue(dirty)
		return err
	}
	return nil
}
