package matrix

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/roach88/galactic/internal/ir"
	"github.com/roach88/galactic/internal/refdata"
	"github.com/roach88/galactic/internal/valuecache"
)

// Views is the registry of live flattened views for one workspace. At most
// one view exists per id, and the id is a function of the owner context
// and entity kind.
//
// Thread-safety: the registry map is guarded by a mutex; the views it
// hands out are not, and rely on the workspace writer lock.
type Views struct {
	mu   sync.Mutex
	byID map[string]*DataMatrix

	caches  *valuecache.Cache
	history *History
	catalog *Catalog
	oids    OIDGenerator
	now     func() time.Time
	owner   string
	creator string
	logger  *slog.Logger
}

// Option configures a Views registry.
type Option func(*Views)

// WithOIDGenerator sets the row oid generator. Defaults to UUIDv7Generator.
func WithOIDGenerator(g OIDGenerator) Option {
	return func(v *Views) {
		v.oids = g
	}
}

// WithClock sets the clock used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(v *Views) {
		v.now = now
	}
}

// WithOwner sets the owner stamped on new rows.
func WithOwner(oid string) Option {
	return func(v *Views) {
		v.owner = oid
	}
}

// WithCreator sets the creator and modifier stamped on new views and rows.
func WithCreator(oid string) Option {
	return func(v *Views) {
		v.creator = oid
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(v *Views) {
		v.logger = l
	}
}

// NewViews creates an empty registry. Row values live in caches; catalog
// supplies columns for views created without an explicit schema.
func NewViews(caches *valuecache.Cache, catalog *Catalog, opts ...Option) *Views {
	v := &Views{
		byID:    make(map[string]*DataMatrix),
		caches:  caches,
		history: NewHistory(caches),
		catalog: catalog,
		oids:    UUIDv7Generator{},
		now:     func() time.Time { return time.Now().UTC() },
		owner:   refdata.PGANA,
		creator: refdata.Admin,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// History returns the undo log shared by every view in the registry.
func (v *Views) History() *History {
	return v.history
}

// Catalog returns the schema catalog.
func (v *Views) Catalog() *Catalog {
	return v.catalog
}

// New constructs an empty view for (owner, kind). Any live view with the
// same id is evicted first, rows and all. An empty schema is looked up in
// the catalog by schemaName; an empty schemaName means "generic".
func (v *Views) New(ownerContextOID, entityKind, schemaName string, schema []string) *DataMatrix {
	if schemaName == "" {
		schemaName = GenericSchema
	}
	if len(schema) == 0 {
		schema = v.catalog.Lookup(schemaName)
	} else {
		schema = slices.Clone(schema)
	}
	now := v.now()
	m := &DataMatrix{
		ID:              ir.ViewID(ownerContextOID, entityKind),
		OwnerContextOID: ownerContextOID,
		EntityKind:      entityKind,
		SchemaName:      schemaName,
		Schema:          schema,
		Labels:          v.catalog.Labels(schema),
		Creator:         v.creator,
		Modifier:        v.creator,
		CreateDatetime:  now,
		ModDatetime:     now,
		views:           v,
	}

	v.mu.Lock()
	old := v.byID[m.ID]
	v.byID[m.ID] = m
	v.mu.Unlock()

	if old != nil {
		v.logger.Debug("replacing view", "id", m.ID, "rows", old.Len())
		v.destroy(old)
	}
	return m
}

// Get returns the live view for (owner, kind).
func (v *Views) Get(ownerContextOID, entityKind string) (*DataMatrix, bool) {
	return v.GetByID(ir.ViewID(ownerContextOID, entityKind))
}

// GetByID returns the live view with id.
func (v *Views) GetByID(id string) (*DataMatrix, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	m, ok := v.byID[id]
	return m, ok
}

// Evict removes the view with id and purges its rows. Returns false when
// no such view is live.
func (v *Views) Evict(id string) bool {
	v.mu.Lock()
	m, ok := v.byID[id]
	delete(v.byID, id)
	v.mu.Unlock()
	if !ok {
		return false
	}
	v.destroy(m)
	return true
}

// All returns every live view ordered by id.
func (v *Views) All() []*DataMatrix {
	v.mu.Lock()
	defer v.mu.Unlock()
	ids := slices.Sorted(maps.Keys(v.byID))
	out := make([]*DataMatrix, len(ids))
	for i, id := range ids {
		out[i] = v.byID[id]
	}
	return out
}

// FindRow returns the live row with oid in any view.
func (v *Views) FindRow(oid string) (*Row, bool) {
	for _, m := range v.All() {
		if r, ok := m.Lookup(oid); ok {
			return r, true
		}
	}
	return nil, false
}

// Undo reverts the latest mutation of the row with oid: its values are
// restored in the cache and its persistent fields are reinstated. The row
// is returned so callers observe the restored state.
func (v *Views) Undo(oid string) (*Row, bool) {
	r, ok := v.FindRow(oid)
	if !ok {
		return nil, false
	}
	s, ok := v.history.Undo(oid)
	if !ok {
		return r, false
	}
	// Containment is a property of placement, not of the memento.
	s.Row.ContainerOID = r.ContainerOID
	r.RowState = s.Row
	return r, true
}

// destroy purges every row of a view that is no longer registered.
func (v *Views) destroy(m *DataMatrix) {
	for _, r := range m.rows {
		v.purgeRow(r)
	}
	m.rows = nil
}

// purgeRow removes every trace of a row: history, cached values, and its
// link to the view.
func (v *Views) purgeRow(r *Row) {
	v.history.Purge(r.OID)
	v.caches.Purge(r.OID)
	r.m = nil
}
