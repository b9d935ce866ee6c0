package matrix

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/galactic/internal/ir"
)

// ErrDetached is returned when a row that belongs to no view is asked to
// read or write values.
var ErrDetached = errors.New("row is not attached to a view")

// RowState is the persistent part of a row: everything except its values
// and the transient visited flag.
type RowState struct {
	OID             string
	ContainerOID    string
	ParentOID       string
	MappedSystemOID string
	Name            string
	Owner           string
	Creator         string
	Modifier        string
	CreateDatetime  time.Time
	ModDatetime     time.Time
}

// Row is a row entity: one line of a flattened view. Its values live in the
// value cache under OID.
type Row struct {
	RowState

	// Visited is set by reconciliation for rows matched to a tree node.
	// It is never persisted.
	Visited bool

	m *DataMatrix
}

// State returns a copy of the row's persistent fields.
func (r *Row) State() RowState {
	return r.RowState
}

// Matrix returns the view the row belongs to, or nil.
func (r *Row) Matrix() *DataMatrix {
	return r.m
}

// Get returns the value of id on the row: a parameter when one is cached
// under that id, otherwise a data element. Returns nil when neither exists.
func (r *Row) Get(id string) ir.IRValue {
	if r.m == nil {
		return nil
	}
	caches := r.m.views.caches
	if p, ok := caches.GetParameter(r.OID, id); ok {
		return ir.IRFloat(p.Value)
	}
	return caches.GetDataElementValue(r.OID, id)
}

// Float returns id as a number, or 0 when it is absent or not numeric.
func (r *Row) Float(id string) float64 {
	switch v := r.Get(id).(type) {
	case ir.IRFloat:
		return float64(v)
	case ir.IRInt:
		return float64(v)
	}
	return 0
}

// Int returns id as an integer, or 0 when it is absent or not numeric.
func (r *Row) Int(id string) int64 {
	switch v := r.Get(id).(type) {
	case ir.IRInt:
		return int64(v)
	case ir.IRFloat:
		return int64(v)
	}
	return 0
}

// String returns id as a string, or "" when it is absent or not a string.
func (r *Row) String(id string) string {
	s, _ := r.Get(id).(ir.IRString)
	return string(s)
}

// Set writes one value. See SetValues.
func (r *Row) Set(id string, v ir.IRValue) error {
	return r.SetValues(map[string]ir.IRValue{id: v})
}

// SetValues writes several values as one mutation. When at least one value
// differs from what is cached, the row is snapshotted into the history log
// first and its mod_datetime advances. A nil or null value deletes the
// entry.
func (r *Row) SetValues(vals map[string]ir.IRValue) error {
	if r.m == nil {
		return fmt.Errorf("set values on %s: %w", r.OID, ErrDetached)
	}
	changed := make([]string, 0, len(vals))
	for id, v := range vals {
		switch v.(type) {
		case ir.IRArray, ir.IRObject:
			return fmt.Errorf("set %s on %s: %T is not a primitive", id, r.OID, v)
		}
		if !sameValue(r.Get(id), v) {
			changed = append(changed, id)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	views := r.m.views
	views.history.Record(r.snapshot())
	for _, id := range changed {
		if err := views.caches.SetDataElementValue(r.OID, id, vals[id]); err != nil {
			return fmt.Errorf("set values on %s: %w", r.OID, err)
		}
	}
	r.ModDatetime = views.now()
	return nil
}

// Rename changes the row's display name, recording history first.
func (r *Row) Rename(name string) {
	if r.Name == name {
		return
	}
	if r.m != nil {
		r.m.views.history.Record(r.snapshot())
		r.ModDatetime = r.m.views.now()
	}
	r.Name = name
}

// snapshot captures the row's state and a deep copy of its values.
func (r *Row) snapshot() Snapshot {
	s := Snapshot{Row: r.RowState}
	if r.m != nil {
		s.Values = r.m.views.caches.Snapshot(r.OID)
		s.Taken = r.m.views.now()
	}
	return s
}

// sameValue compares primitive IR values. A missing value and an explicit
// null are the same.
func sameValue(a, b ir.IRValue) bool {
	if ir.IsNull(a) || ir.IsNull(b) {
		return ir.IsNull(a) && ir.IsNull(b)
	}
	switch a.(type) {
	case ir.IRArray, ir.IRObject:
		return false
	}
	switch b.(type) {
	case ir.IRArray, ir.IRObject:
		return false
	}
	return a == b
}
