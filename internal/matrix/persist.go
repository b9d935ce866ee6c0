package matrix

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/galactic/internal/ir"
	"github.com/roach88/galactic/internal/store"
	"github.com/roach88/galactic/internal/valuecache"
)

// Export converts every live view and the history log into store rows.
// Views are ordered by id, history by oid then age.
func (v *Views) Export() ([]store.ViewRow, []store.HistoryRow, error) {
	views := v.All()
	out := make([]store.ViewRow, 0, len(views))
	for _, m := range views {
		vr := store.ViewRow{
			ID:              m.ID,
			OwnerContextOID: m.OwnerContextOID,
			EntityKind:      m.EntityKind,
			SchemaName:      m.SchemaName,
			Columns:         m.Schema,
			Creator:         m.Creator,
			Modifier:        m.Modifier,
			CreateDatetime:  formatTime(m.CreateDatetime),
			ModDatetime:     formatTime(m.ModDatetime),
			Rows:            make([]store.EntityRow, 0, len(m.rows)),
		}
		for _, r := range m.rows {
			vr.Rows = append(vr.Rows, entityRow(r.RowState))
		}
		out = append(out, vr)
	}

	history := []store.HistoryRow{}
	for _, oid := range v.history.OIDs() {
		for seq, s := range v.history.Snapshots(oid) {
			data, err := MarshalSnapshot(s)
			if err != nil {
				return nil, nil, fmt.Errorf("export history %s: %w", oid, err)
			}
			history = append(history, store.HistoryRow{OID: oid, Seq: int64(seq), Snapshot: string(data)})
		}
	}
	return out, history, nil
}

// Import replaces the registry contents with persisted views and history.
// Row values are expected to be loaded into the cache separately.
func (v *Views) Import(views []store.ViewRow, history []store.HistoryRow) error {
	loaded := make(map[string]*DataMatrix, len(views))
	for _, vr := range views {
		m := &DataMatrix{
			ID:              vr.ID,
			OwnerContextOID: vr.OwnerContextOID,
			EntityKind:      vr.EntityKind,
			SchemaName:      vr.SchemaName,
			Schema:          vr.Columns,
			Labels:          v.catalog.Labels(vr.Columns),
			Creator:         vr.Creator,
			Modifier:        vr.Modifier,
			CreateDatetime:  parseTime(vr.CreateDatetime),
			ModDatetime:     parseTime(vr.ModDatetime),
			rows:            make([]*Row, 0, len(vr.Rows)),
			views:           v,
		}
		for _, er := range vr.Rows {
			st := rowState(er)
			st.ContainerOID = m.ID
			m.rows = append(m.rows, &Row{RowState: st, m: m})
		}
		loaded[m.ID] = m
	}

	snaps := make([]Snapshot, 0, len(history))
	for _, h := range history {
		s, err := UnmarshalSnapshot([]byte(h.Snapshot))
		if err != nil {
			return fmt.Errorf("import history %s/%d: %w", h.OID, h.Seq, err)
		}
		s.Row.OID = h.OID
		snaps = append(snaps, s)
	}

	v.mu.Lock()
	v.byID = loaded
	v.mu.Unlock()
	v.history = NewHistory(v.caches)
	for _, s := range snaps {
		v.history.Record(s)
	}
	v.logger.Debug("imported views", "count", len(loaded), "history", len(snaps))
	return nil
}

// MarshalSnapshot encodes a snapshot as canonical JSON.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	params := ir.IRObject{}
	for pid, p := range s.Values.Parameters {
		params[pid] = ir.IRObject{
			"value":        ir.IRFloat(p.Value),
			"units":        ir.IRString(p.Units),
			"mod_datetime": ir.IRString(formatTime(p.ModDatetime)),
		}
	}
	des := ir.IRObject{}
	for deid, d := range s.Values.DataElements {
		des[deid] = ir.IRObject{
			"value":        d.Value,
			"mod_datetime": ir.IRString(formatTime(d.ModDatetime)),
		}
	}
	row := s.Row
	obj := ir.IRObject{
		"row": ir.IRObject{
			"oid":               ir.IRString(row.OID),
			"parent_entity_oid": ir.IRString(row.ParentOID),
			"mapped_system_oid": ir.IRString(row.MappedSystemOID),
			"name":              ir.IRString(row.Name),
			"owner":             ir.IRString(row.Owner),
			"creator":           ir.IRString(row.Creator),
			"modifier":          ir.IRString(row.Modifier),
			"create_datetime":   ir.IRString(formatTime(row.CreateDatetime)),
			"mod_datetime":      ir.IRString(formatTime(row.ModDatetime)),
		},
		"parameters":    params,
		"data_elements": des,
		"taken":         ir.IRString(formatTime(s.Taken)),
	}
	return ir.MarshalCanonical(obj)
}

// UnmarshalSnapshot decodes a snapshot written by MarshalSnapshot.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var obj ir.IRObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	row, ok := obj["row"].(ir.IRObject)
	if !ok {
		return Snapshot{}, fmt.Errorf("decode snapshot: missing row")
	}
	str := func(o ir.IRObject, k string) string {
		s, _ := o[k].(ir.IRString)
		return string(s)
	}

	s := Snapshot{
		Row: RowState{
			OID:             str(row, "oid"),
			ParentOID:       str(row, "parent_entity_oid"),
			MappedSystemOID: str(row, "mapped_system_oid"),
			Name:            str(row, "name"),
			Owner:           str(row, "owner"),
			Creator:         str(row, "creator"),
			Modifier:        str(row, "modifier"),
			CreateDatetime:  parseTime(str(row, "create_datetime")),
			ModDatetime:     parseTime(str(row, "mod_datetime")),
		},
		Taken: parseTime(str(obj, "taken")),
	}

	if params, ok := obj["parameters"].(ir.IRObject); ok && len(params) > 0 {
		s.Values.Parameters = make(map[string]valuecache.Parameter, len(params))
		for pid, raw := range params {
			entry, ok := raw.(ir.IRObject)
			if !ok {
				return Snapshot{}, fmt.Errorf("decode snapshot: parameter %s is %T", pid, raw)
			}
			var value float64
			switch n := entry["value"].(type) {
			case ir.IRFloat:
				value = float64(n)
			case ir.IRInt:
				value = float64(n)
			}
			s.Values.Parameters[pid] = valuecache.Parameter{
				Value:       value,
				Units:       str(entry, "units"),
				ModDatetime: parseTime(str(entry, "mod_datetime")),
			}
		}
	}
	if des, ok := obj["data_elements"].(ir.IRObject); ok && len(des) > 0 {
		s.Values.DataElements = make(map[string]valuecache.DataElement, len(des))
		for deid, raw := range des {
			entry, ok := raw.(ir.IRObject)
			if !ok {
				return Snapshot{}, fmt.Errorf("decode snapshot: data element %s is %T", deid, raw)
			}
			s.Values.DataElements[deid] = valuecache.DataElement{
				Value:       entry["value"],
				ModDatetime: parseTime(str(entry, "mod_datetime")),
			}
		}
	}
	return s, nil
}

func entityRow(s RowState) store.EntityRow {
	return store.EntityRow{
		OID:             s.OID,
		ParentOID:       s.ParentOID,
		MappedSystemOID: s.MappedSystemOID,
		Name:            s.Name,
		Owner:           s.Owner,
		Creator:         s.Creator,
		Modifier:        s.Modifier,
		CreateDatetime:  formatTime(s.CreateDatetime),
		ModDatetime:     formatTime(s.ModDatetime),
	}
}

func rowState(er store.EntityRow) RowState {
	return RowState{
		OID:             er.OID,
		ParentOID:       er.ParentOID,
		MappedSystemOID: er.MappedSystemOID,
		Name:            er.Name,
		Owner:           er.Owner,
		Creator:         er.Creator,
		Modifier:        er.Modifier,
		CreateDatetime:  parseTime(er.CreateDatetime),
		ModDatetime:     parseTime(er.ModDatetime),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(ir.DatetimeLayout)
}

func parseTime(s string) time.Time {
	t, _ := ir.ParseTime(s)
	return t
}
