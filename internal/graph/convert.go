package graph

import (
	"fmt"

	"github.com/roach88/galactic/internal/ir"
	"github.com/roach88/galactic/internal/schema"
)

// ToRecord cooks the declared, non-inverse fields of obj into a wire record.
// Unset fields and empty lists are omitted. Sidecars are left empty.
func ToRecord(reg *schema.Registry, obj *Object) (ir.Record, error) {
	class, ok := reg.Class(obj.ClassName)
	if !ok {
		return ir.Record{}, fmt.Errorf("to record %s: unknown class %q", obj.OID, obj.ClassName)
	}
	rec := ir.Record{ClassName: obj.ClassName, OID: obj.OID, Fields: ir.IRObject{}}
	for _, f := range class.Fields {
		if f.Inverse {
			continue
		}
		v, err := CookField(f, obj.Get(f.Name))
		if err != nil {
			return ir.Record{}, fmt.Errorf("to record %s.%s: %w", obj.OID, f.Name, err)
		}
		if v != nil {
			rec.Fields[f.Name] = v
		}
	}
	return rec, nil
}

// CookField converts one live field value to its wire form. Nil and empty
// lists cook to nil.
func CookField(f schema.Field, v any) (ir.IRValue, error) {
	if v == nil {
		return nil, nil
	}
	rangeType := f.Range
	if f.IsRef() {
		rangeType = ir.RangeStr
	}
	cooked, err := ir.Cook(rangeType, f.Functional, v)
	if err != nil {
		return nil, err
	}
	if arr, ok := cooked.(ir.IRArray); ok && len(arr) == 0 {
		return nil, nil
	}
	return cooked, nil
}

// UncookField decodes one wire value for f. References decode to oid
// strings; nothing is looked up.
func UncookField(f schema.Field, v ir.IRValue) ir.Uncooked {
	rangeType := f.Range
	if f.IsRef() {
		rangeType = ir.RangeStr
	}
	return ir.Uncook(rangeType, f.Functional, v)
}

// FromRecord decodes every declared, non-inverse field of rec into a new
// object without resolving references. It returns the names of fields whose
// values fell back to a substitute.
func FromRecord(reg *schema.Registry, rec ir.Record) (*Object, []string, error) {
	class, ok := reg.Class(rec.ClassName)
	if !ok {
		return nil, nil, fmt.Errorf("from record %s: unknown class %q", rec.OID, rec.ClassName)
	}
	obj := NewObject(rec.ClassName, rec.OID)
	var fallbacks []string
	for _, f := range class.Fields {
		if f.Inverse {
			continue
		}
		raw, present := rec.Fields[f.Name]
		if !present {
			continue
		}
		u := UncookField(f, raw)
		if u.Fallback {
			fallbacks = append(fallbacks, f.Name)
		}
		obj.Set(f.Name, u.Value)
	}
	return obj, fallbacks, nil
}
