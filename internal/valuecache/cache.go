package valuecache

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/roach88/galactic/internal/graph"
	"github.com/roach88/galactic/internal/ir"
)

// Parameter is one cached parameter value. Value is in base units.
type Parameter struct {
	Value       float64
	Units       string
	ModDatetime time.Time
}

// DataElement is one cached data element value: a primitive IR value.
type DataElement struct {
	Value       ir.IRValue
	ModDatetime time.Time
}

// Values is a deep copy of everything cached for one oid.
type Values struct {
	Parameters   map[string]Parameter
	DataElements map[string]DataElement
}

// Empty reports whether v holds nothing.
func (v Values) Empty() bool {
	return len(v.Parameters) == 0 && len(v.DataElements) == 0
}

// Source is the read-only view of the object graph the relationship caches
// are derived from. *graph.Graph satisfies it.
type Source interface {
	Get(oid string) (*graph.Object, bool)
	AllOIDs() []string
	ComponentsOf(product string) []string
	SystemsOf(project string) []string
}

// Dirty lists the oids whose values changed, and the oids purged entirely,
// since the previous TakeDirty.
type Dirty struct {
	Changed []string
	Purged  []string
}

// Empty reports whether nothing changed.
func (d Dirty) Empty() bool {
	return len(d.Changed) == 0 && len(d.Purged) == 0
}

// Cache is the value cache for one workspace.
//
// Thread-safety: all methods are safe for concurrent use. Mutating calls are
// additionally serialized by the owning workspace's writer lock.
type Cache struct {
	mu sync.RWMutex

	params map[string]map[string]Parameter
	des    map[string]map[string]DataElement

	components  map[string][]Comp
	systems     map[string][]string
	allocations map[string]Allocation

	changed map[string]struct{}
	purged  map[string]struct{}

	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the clock used to stamp locally set values.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		params:      make(map[string]map[string]Parameter),
		des:         make(map[string]map[string]DataElement),
		components:  make(map[string][]Comp),
		systems:     make(map[string][]string),
		allocations: make(map[string]Allocation),
		changed:     make(map[string]struct{}),
		purged:      make(map[string]struct{}),
		now:         func() time.Time { return time.Now().UTC() },
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load installs persisted values for oid without marking it dirty.
func (c *Cache) Load(oid string, v Values) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(v.Parameters) > 0 {
		c.params[oid] = maps.Clone(v.Parameters)
	}
	if len(v.DataElements) > 0 {
		c.des[oid] = cloneDataElements(v.DataElements)
	}
}

// Snapshot returns a deep copy of everything cached for oid.
func (c *Cache) Snapshot(oid string) Values {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Values{
		Parameters:   maps.Clone(c.params[oid]),
		DataElements: cloneDataElements(c.des[oid]),
	}
}

// Restore replaces everything cached for oid with v and marks oid dirty.
func (c *Cache) Restore(oid string, v Values) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.params, oid)
	delete(c.des, oid)
	if len(v.Parameters) > 0 {
		c.params[oid] = maps.Clone(v.Parameters)
	}
	if len(v.DataElements) > 0 {
		c.des[oid] = cloneDataElements(v.DataElements)
	}
	c.markChanged(oid)
}

// Has reports whether anything is cached for oid.
func (c *Cache) Has(oid string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.params[oid]) > 0 || len(c.des[oid]) > 0
}

// OIDs returns every oid with cached values, sorted.
func (c *Cache) OIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{}, len(c.params)+len(c.des))
	for oid := range c.params {
		seen[oid] = struct{}{}
	}
	for oid := range c.des {
		seen[oid] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Purge drops every value and relationship entry held for oid.
func (c *Cache) Purge(oid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.params, oid)
	delete(c.des, oid)
	delete(c.components, oid)
	delete(c.systems, oid)
	delete(c.allocations, oid)
	delete(c.changed, oid)
	c.purged[oid] = struct{}{}
}

// TakeDirty returns and clears the dirty sets.
func (c *Cache) TakeDirty() Dirty {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := Dirty{
		Changed: slices.Sorted(maps.Keys(c.changed)),
		Purged:  slices.Sorted(maps.Keys(c.purged)),
	}
	clear(c.changed)
	clear(c.purged)
	return d
}

// Requeue marks the oids of a drained Dirty dirty again after a failed
// write. Changes and purges made since TakeDirty take precedence.
func (c *Cache) Requeue(d Dirty) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, oid := range d.Changed {
		if _, purged := c.purged[oid]; !purged {
			c.changed[oid] = struct{}{}
		}
	}
	for _, oid := range d.Purged {
		if _, changed := c.changed[oid]; !changed {
			c.purged[oid] = struct{}{}
		}
	}
}

// markChanged records oid as dirty. Caller holds mu.
func (c *Cache) markChanged(oid string) {
	c.changed[oid] = struct{}{}
	delete(c.purged, oid)
}

func cloneDataElements(in map[string]DataElement) map[string]DataElement {
	if in == nil {
		return nil
	}
	out := make(map[string]DataElement, len(in))
	for k, v := range in {
		if obj, ok := v.Value.(ir.IRObject); ok {
			v.Value = obj.Clone()
		}
		out[k] = v
	}
	return out
}
