package workspace

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/roach88/galactic/internal/graph"
	"github.com/roach88/galactic/internal/ir"
	"github.com/roach88/galactic/internal/schema"
	"github.com/roach88/galactic/internal/store"
	"github.com/roach88/galactic/internal/valuecache"
)

// objectRow cooks obj into its persisted form. The body is the canonical
// JSON of the flat record without sidecars; values live in their own tables.
func objectRow(reg *schema.Registry, obj *graph.Object) (store.ObjectRow, error) {
	rec, err := graph.ToRecord(reg, obj)
	if err != nil {
		return store.ObjectRow{}, err
	}
	body, err := ir.MarshalCanonical(rec.Flatten())
	if err != nil {
		return store.ObjectRow{}, fmt.Errorf("marshal object %s: %w", obj.OID, err)
	}
	row := store.ObjectRow{OID: obj.OID, ClassName: obj.ClassName, Body: string(body)}
	if t, ok := obj.ModDatetime(); ok {
		row.ModDatetime = formatTime(t)
	}
	return row, nil
}

// decodeObject is the inverse of objectRow.
func decodeObject(reg *schema.Registry, row store.ObjectRow) (*graph.Object, error) {
	var rec ir.Record
	if err := json.Unmarshal([]byte(row.Body), &rec); err != nil {
		return nil, fmt.Errorf("decode object %s: %w", row.OID, err)
	}
	if rec.OID == "" {
		rec.OID = row.OID
	}
	if rec.ClassName == "" {
		rec.ClassName = row.ClassName
	}
	obj, _, err := graph.FromRecord(reg, rec)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// valueSet converts the cached values of oid into a store value set with
// stable ordering.
func valueSet(oid string, v valuecache.Values) (store.ValueSet, error) {
	vs := store.ValueSet{OID: oid}
	for _, pid := range slices.Sorted(maps.Keys(v.Parameters)) {
		p := v.Parameters[pid]
		vs.Parameters = append(vs.Parameters, store.ParameterRow{
			OID:         oid,
			PID:         pid,
			Value:       p.Value,
			Units:       p.Units,
			ModDatetime: formatTime(p.ModDatetime),
		})
	}
	for _, deid := range slices.Sorted(maps.Keys(v.DataElements)) {
		d := v.DataElements[deid]
		data, err := ir.MarshalCanonical(d.Value)
		if err != nil {
			return store.ValueSet{}, fmt.Errorf("marshal data element %s/%s: %w", oid, deid, err)
		}
		vs.DataElements = append(vs.DataElements, store.DataElementRow{
			OID:         oid,
			DEID:        deid,
			Value:       string(data),
			ModDatetime: formatTime(d.ModDatetime),
		})
	}
	return vs, nil
}

// cachedValues is the inverse of valueSet.
func cachedValues(vs store.ValueSet) (valuecache.Values, error) {
	var v valuecache.Values
	if len(vs.Parameters) > 0 {
		v.Parameters = make(map[string]valuecache.Parameter, len(vs.Parameters))
		for _, p := range vs.Parameters {
			v.Parameters[p.PID] = valuecache.Parameter{
				Value:       p.Value,
				Units:       p.Units,
				ModDatetime: parseTime(p.ModDatetime),
			}
		}
	}
	if len(vs.DataElements) > 0 {
		v.DataElements = make(map[string]valuecache.DataElement, len(vs.DataElements))
		for _, d := range vs.DataElements {
			value, err := ir.UnmarshalIRValue([]byte(d.Value))
			if err != nil {
				return valuecache.Values{}, fmt.Errorf("decode data element %s/%s: %w", vs.OID, d.DEID, err)
			}
			v.DataElements[d.DEID] = valuecache.DataElement{
				Value:       value,
				ModDatetime: parseTime(d.ModDatetime),
			}
		}
	}
	return v, nil
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
