package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/galactic/internal/schema"
)

// Action indicates the kind of modification a Change records.
type Action string

// Change actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change records one modification of the graph since the last commit.
// Before is nil for creates, After is nil for deletes.
type Change struct {
	Action Action
	OID    string
	Before *Object
	After  *Object
}

// Committer persists a set of changes atomically.
type Committer interface {
	CommitChanges(ctx context.Context, changes []Change) error
}

// Errors returned by graph mutations.
var (
	ErrExists   = errors.New("object already exists")
	ErrNotFound = errors.New("object not found")
	ErrInvalid  = errors.New("object requires oid and class name")
)

// Graph is the in-memory object store. Readers receive clones; every
// mutation is recorded as a pending Change until Commit or Rollback.
// A reverse reference index answers "who points at X" queries.
type Graph struct {
	mu        sync.RWMutex
	reg       *schema.Registry
	objects   map[string]*Object
	pending   []Change
	committer Committer

	// target oid -> field name -> referrer oids
	refs map[string]map[string]map[string]struct{}
}

// Option configures a Graph.
type Option func(*Graph)

// WithCommitter sets where Commit persists pending changes. Without one,
// Commit only clears the pending set.
func WithCommitter(c Committer) Option {
	return func(g *Graph) {
		g.committer = c
	}
}

// New creates an empty graph over reg.
func New(reg *schema.Registry, opts ...Option) *Graph {
	g := &Graph{
		reg:     reg,
		objects: make(map[string]*Object),
		refs:    make(map[string]map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Registry returns the class registry the graph indexes against.
func (g *Graph) Registry() *schema.Registry {
	return g.reg
}

// Load inserts objects without recording changes. Used when hydrating from
// persistent storage. Existing objects with the same oid are replaced.
func (g *Graph) Load(objs []*Object) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, obj := range objs {
		if old, ok := g.objects[obj.OID]; ok {
			g.unindex(old)
		}
		cp := obj.Clone()
		g.objects[cp.OID] = cp
		g.index(cp)
	}
}

// Get returns a clone of the object with oid.
func (g *Graph) Get(oid string) (*Object, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	obj, ok := g.objects[oid]
	if !ok {
		return nil, false
	}
	return obj.Clone(), true
}

// Has reports whether oid exists.
func (g *Graph) Has(oid string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.objects[oid]
	return ok
}

// ClassOf returns the class name of oid, or "".
func (g *Graph) ClassOf(oid string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if obj, ok := g.objects[oid]; ok {
		return obj.ClassName
	}
	return ""
}

// Len returns the number of objects.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.objects)
}

// AllOIDs returns every oid, sorted.
func (g *Graph) AllOIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	oids := make([]string, 0, len(g.objects))
	for oid := range g.objects {
		oids = append(oids, oid)
	}
	slices.Sort(oids)
	return oids
}

// All returns clones of every object, ordered by oid.
func (g *Graph) All() []*Object {
	oids := g.AllOIDs()
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Object, 0, len(oids))
	for _, oid := range oids {
		if obj, ok := g.objects[oid]; ok {
			out = append(out, obj.Clone())
		}
	}
	return out
}

// Add registers a new object.
func (g *Graph) Add(obj *Object) error {
	if obj == nil || obj.OID == "" || obj.ClassName == "" {
		return ErrInvalid
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.objects[obj.OID]; ok {
		return fmt.Errorf("add %s: %w", obj.OID, ErrExists)
	}
	cp := obj.Clone()
	g.objects[cp.OID] = cp
	g.index(cp)
	g.pending = append(g.pending, Change{Action: ActionCreate, OID: cp.OID, After: cp.Clone()})
	return nil
}

// Update replaces the stored state of an existing object.
func (g *Graph) Update(obj *Object) error {
	if obj == nil || obj.OID == "" || obj.ClassName == "" {
		return ErrInvalid
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	old, ok := g.objects[obj.OID]
	if !ok {
		return fmt.Errorf("update %s: %w", obj.OID, ErrNotFound)
	}
	g.unindex(old)
	cp := obj.Clone()
	g.objects[cp.OID] = cp
	g.index(cp)
	g.pending = append(g.pending, Change{Action: ActionUpdate, OID: cp.OID, Before: old, After: cp.Clone()})
	return nil
}

// Delete removes an object. Deleting an unknown oid is a no-op that
// returns false.
func (g *Graph) Delete(oid string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	old, ok := g.objects[oid]
	if !ok {
		return false
	}
	g.unindex(old)
	delete(g.objects, oid)
	g.pending = append(g.pending, Change{Action: ActionDelete, OID: oid, Before: old})
	return true
}

// Changes returns the pending changes in the order they were made.
func (g *Graph) Changes() []Change {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.pending)
}

// Commit hands the pending changes to the committer and clears them on
// success. On failure the pending set is kept so the caller may retry or
// roll back.
func (g *Graph) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.pending) == 0 {
		return nil
	}
	if g.committer != nil {
		if err := g.committer.CommitChanges(ctx, slices.Clone(g.pending)); err != nil {
			return fmt.Errorf("commit %d changes: %w", len(g.pending), err)
		}
	}
	g.pending = nil
	return nil
}

// Rollback reverts every pending change in reverse order.
func (g *Graph) Rollback() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.pending) - 1; i >= 0; i-- {
		ch := g.pending[i]
		if cur, ok := g.objects[ch.OID]; ok {
			g.unindex(cur)
			delete(g.objects, ch.OID)
		}
		if ch.Before != nil {
			g.objects[ch.OID] = ch.Before
			g.index(ch.Before)
		}
	}
	g.pending = nil
}

// Referrers returns the oids of objects whose field references target,
// sorted.
func (g *Graph) Referrers(target, field string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set := g.refs[target][field]
	out := make([]string, 0, len(set))
	for oid := range set {
		out = append(out, oid)
	}
	slices.Sort(out)
	return out
}

func (g *Graph) index(obj *Object) {
	g.eachRef(obj, func(field, target string) {
		byField, ok := g.refs[target]
		if !ok {
			byField = make(map[string]map[string]struct{})
			g.refs[target] = byField
		}
		set, ok := byField[field]
		if !ok {
			set = make(map[string]struct{})
			byField[field] = set
		}
		set[obj.OID] = struct{}{}
	})
}

func (g *Graph) unindex(obj *Object) {
	g.eachRef(obj, func(field, target string) {
		set := g.refs[target][field]
		delete(set, obj.OID)
		if len(set) == 0 {
			delete(g.refs[target], field)
			if len(g.refs[target]) == 0 {
				delete(g.refs, target)
			}
		}
	})
}

func (g *Graph) eachRef(obj *Object, fn func(field, target string)) {
	if g.reg == nil {
		return
	}
	class, ok := g.reg.Class(obj.ClassName)
	if !ok {
		return
	}
	for _, f := range class.Fields {
		if !f.IsRef() || f.Inverse {
			continue
		}
		for _, target := range obj.Refs(f.Name) {
			fn(f.Name, target)
		}
	}
}
