package matrix

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/roach88/galactic/internal/valuecache"
)

// Snapshot is a memento of one row taken immediately before a mutation.
type Snapshot struct {
	Row    RowState
	Values valuecache.Values
	Taken  time.Time
}

// History is the append-only undo log of row snapshots, keyed by row oid.
//
// Thread-safety: all methods are safe for concurrent use.
type History struct {
	mu      sync.Mutex
	entries map[string][]Snapshot
	caches  *valuecache.Cache
}

// NewHistory creates an empty log whose Undo restores values into caches.
func NewHistory(caches *valuecache.Cache) *History {
	return &History{
		entries: make(map[string][]Snapshot),
		caches:  caches,
	}
}

// Record appends a snapshot to its row's log.
func (h *History) Record(s Snapshot) {
	if s.Row.OID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[s.Row.OID] = append(h.entries[s.Row.OID], s)
}

// Undo pops the latest snapshot of oid, writes its values back into the
// value cache, and returns it so the caller can reinstate the row state.
// Returns false when there is nothing to undo.
func (h *History) Undo(oid string) (Snapshot, bool) {
	h.mu.Lock()
	log := h.entries[oid]
	if len(log) == 0 {
		h.mu.Unlock()
		return Snapshot{}, false
	}
	s := log[len(log)-1]
	if len(log) == 1 {
		delete(h.entries, oid)
	} else {
		h.entries[oid] = log[:len(log)-1]
	}
	h.mu.Unlock()

	h.caches.Restore(oid, s.Values)
	return s, true
}

// Len returns how many snapshots oid has.
func (h *History) Len(oid string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries[oid])
}

// Snapshots returns oid's log, oldest first.
func (h *History) Snapshots(oid string) []Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.entries[oid])
}

// OIDs returns every oid with a non-empty log, sorted.
func (h *History) OIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Sorted(maps.Keys(h.entries))
}

// Purge drops oid's log.
func (h *History) Purge(oid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entries, oid)
}
