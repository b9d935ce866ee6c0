package matrix

import (
	"slices"
	"time"
)

// DataMatrix is a flattened view: an ordered list of row entities about one
// context (a project or a system) and one entity kind.
//
// Thread-safety: not safe for concurrent use. The workspace writer lock
// serializes access.
type DataMatrix struct {
	ID              string
	OwnerContextOID string
	EntityKind      string
	SchemaName      string
	Schema          []string
	Labels          []string

	Creator        string
	Modifier       string
	CreateDatetime time.Time
	ModDatetime    time.Time

	rows  []*Row
	views *Views
}

// Len returns the number of rows.
func (m *DataMatrix) Len() int {
	return len(m.rows)
}

// Rows returns the rows in order. The slice is a copy; the rows are not.
func (m *DataMatrix) Rows() []*Row {
	return slices.Clone(m.rows)
}

// Row returns the i-th row, or nil when i is out of range.
func (m *DataMatrix) Row(i int) *Row {
	if i < 0 || i >= len(m.rows) {
		return nil
	}
	return m.rows[i]
}

// Index returns the position of the row with oid, or -1.
func (m *DataMatrix) Index(oid string) int {
	return slices.IndexFunc(m.rows, func(r *Row) bool { return r.OID == oid })
}

// Lookup returns the row with oid.
func (m *DataMatrix) Lookup(oid string) (*Row, bool) {
	i := m.Index(oid)
	if i < 0 {
		return nil, false
	}
	return m.rows[i], true
}

// Level returns the assembly level of r: 1 for a row without a parent in
// this view, one more than its parent otherwise. A parent chain that loops
// stops counting at the first repeat.
func (m *DataMatrix) Level(r *Row) int {
	level := 1
	seen := map[string]bool{r.OID: true}
	for parent := r.ParentOID; parent != ""; {
		p, ok := m.Lookup(parent)
		if !ok || seen[p.OID] {
			break
		}
		seen[p.OID] = true
		level++
		parent = p.ParentOID
	}
	return level
}

// Find returns the row mapping the (mapped system, parent row) pair, and
// its position.
func (m *DataMatrix) Find(mappedSystemOID, parentOID string) (*Row, int, bool) {
	for i, r := range m.rows {
		if r.MappedSystemOID == mappedSystemOID && r.ParentOID == parentOID {
			return r, i, true
		}
	}
	return nil, -1, false
}

// NewRow creates a row owned by this view without placing it. Use
// InsertRow to place it.
func (m *DataMatrix) NewRow(mappedSystemOID, parentOID, name string) *Row {
	v := m.views
	now := v.now()
	return &Row{
		RowState: RowState{
			OID:             v.oids.Generate(),
			ContainerOID:    m.ID,
			ParentOID:       parentOID,
			MappedSystemOID: mappedSystemOID,
			Name:            name,
			Owner:           v.owner,
			Creator:         v.creator,
			Modifier:        v.creator,
			CreateDatetime:  now,
			ModDatetime:     now,
		},
		m: m,
	}
}

// InsertRow places r at position i, clamped to [0, Len()].
func (m *DataMatrix) InsertRow(i int, r *Row) {
	i = clamp(i, len(m.rows))
	r.m = m
	r.ContainerOID = m.ID
	m.rows = slices.Insert(m.rows, i, r)
	m.touch()
}

// AppendNewRow appends an empty row. A child row's parent is the preceding
// row; a peer shares the preceding row's parent. The first row of a view is
// always a root.
func (m *DataMatrix) AppendNewRow(child bool) *Row {
	r := m.NewRow("", m.parentFor(len(m.rows), child), "")
	m.InsertRow(len(m.rows), r)
	return r
}

// InsertNewRow inserts an empty row at position i with the same parent
// rule as AppendNewRow, relative to the row before i.
func (m *DataMatrix) InsertNewRow(i int, child bool) *Row {
	i = clamp(i, len(m.rows))
	r := m.NewRow("", m.parentFor(i, child), "")
	m.InsertRow(i, r)
	return r
}

func (m *DataMatrix) parentFor(i int, child bool) string {
	if i == 0 || len(m.rows) == 0 {
		return ""
	}
	prev := m.rows[i-1]
	if child {
		return prev.OID
	}
	return prev.ParentOID
}

// RemoveRow removes the i-th row and purges its history and cached values.
// Returns false when i is out of range.
func (m *DataMatrix) RemoveRow(i int) bool {
	if i < 0 || i >= len(m.rows) {
		return false
	}
	r := m.rows[i]
	m.rows = slices.Delete(m.rows, i, i+1)
	m.views.purgeRow(r)
	m.touch()
	return true
}

// RemoveRowByOID removes the row with oid. Returns false when no such row
// exists.
func (m *DataMatrix) RemoveRowByOID(oid string) bool {
	return m.RemoveRow(m.Index(oid))
}

// Move relocates the row with oid to position index, clamped to the valid
// range. Returns false when no such row exists.
func (m *DataMatrix) Move(oid string, index int) bool {
	from := m.Index(oid)
	if from < 0 {
		return false
	}
	index = clamp(index, len(m.rows)-1)
	if from == index {
		return true
	}
	r := m.rows[from]
	m.rows = slices.Delete(m.rows, from, from+1)
	m.rows = slices.Insert(m.rows, index, r)
	m.touch()
	return true
}

// Unvisit clears the visited flag on every row.
func (m *DataMatrix) Unvisit() {
	for _, r := range m.rows {
		r.Visited = false
	}
}

// PurgeUnvisited removes and purges every row not marked visited, returning
// the removed oids in their former order.
func (m *DataMatrix) PurgeUnvisited() []string {
	var purged []string
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.Visited {
			kept = append(kept, r)
			continue
		}
		purged = append(purged, r.OID)
		m.views.purgeRow(r)
	}
	clear(m.rows[len(kept):])
	m.rows = kept
	if len(purged) > 0 {
		m.touch()
	}
	return purged
}

func (m *DataMatrix) touch() {
	m.ModDatetime = m.views.now()
}

func clamp(i, hi int) int {
	return max(0, min(i, hi))
}
