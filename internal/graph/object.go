package graph

import (
	"maps"
	"slices"
	"time"
)

// Object is a live domain object.
//
// Fields hold decoded values keyed by field name: string, int64, float64,
// bool, time.Time, or a slice of one of those for non-functional fields.
// Reference fields hold the referenced oid (string) or oids ([]string).
// Inverse fields are never stored; they are derived from the graph.
type Object struct {
	OID       string
	ClassName string
	Fields    map[string]any
}

// NewObject returns an empty object.
func NewObject(className, oid string) *Object {
	return &Object{OID: oid, ClassName: className, Fields: make(map[string]any)}
}

// Get returns a raw field value.
func (o *Object) Get(name string) any {
	if o == nil || o.Fields == nil {
		return nil
	}
	return o.Fields[name]
}

// Set assigns a field value. A nil value removes the field.
func (o *Object) Set(name string, v any) {
	if o.Fields == nil {
		o.Fields = make(map[string]any)
	}
	if v == nil {
		delete(o.Fields, name)
		return
	}
	o.Fields[name] = v
}

// String returns a string field or "".
func (o *Object) String(name string) string {
	s, _ := o.Get(name).(string)
	return s
}

// Name returns the name field.
func (o *Object) Name() string {
	return o.String("name")
}

// Ref returns the oid held by a functional reference field or "".
func (o *Object) Ref(name string) string {
	return o.String(name)
}

// Refs returns the oids held by a non-functional reference field.
func (o *Object) Refs(name string) []string {
	switch v := o.Get(name).(type) {
	case []string:
		return v
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

// Int returns an integer field.
func (o *Object) Int(name string) (int64, bool) {
	switch v := o.Get(name).(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Float returns a float field; integer fields are widened.
func (o *Object) Float(name string) (float64, bool) {
	switch v := o.Get(name).(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Bool returns a boolean field.
func (o *Object) Bool(name string) (bool, bool) {
	b, ok := o.Get(name).(bool)
	return b, ok
}

// Time returns a date or datetime field.
func (o *Object) Time(name string) (time.Time, bool) {
	t, ok := o.Get(name).(time.Time)
	return t, ok
}

// ModDatetime returns the last-modified timestamp, if set.
func (o *Object) ModDatetime() (time.Time, bool) {
	return o.Time("mod_datetime")
}

// Clone returns a copy that shares no mutable state with o.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	cp := &Object{OID: o.OID, ClassName: o.ClassName, Fields: make(map[string]any, len(o.Fields))}
	for k, v := range o.Fields {
		cp.Fields[k] = cloneValue(v)
	}
	return cp
}

// Equal reports whether two objects hold the same class and field values.
func (o *Object) Equal(other *Object) bool {
	if o == nil || other == nil {
		return o == other
	}
	if o.OID != other.OID || o.ClassName != other.ClassName {
		return false
	}
	return maps.EqualFunc(o.Fields, other.Fields, valuesEqual)
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case []string:
		return slices.Clone(val)
	case []int64:
		return slices.Clone(val)
	case []float64:
		return slices.Clone(val)
	case []bool:
		return slices.Clone(val)
	case []time.Time:
		return slices.Clone(val)
	case []any:
		return slices.Clone(val)
	default:
		return v
	}
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case []string:
		bv, ok := b.([]string)
		return ok && slices.Equal(av, bv)
	case []int64:
		bv, ok := b.([]int64)
		return ok && slices.Equal(av, bv)
	case []float64:
		bv, ok := b.([]float64)
		return ok && slices.Equal(av, bv)
	case []bool:
		bv, ok := b.([]bool)
		return ok && slices.Equal(av, bv)
	case []time.Time:
		bv, ok := b.([]time.Time)
		return ok && slices.EqualFunc(av, bv, time.Time.Equal)
	case []any:
		bv, ok := b.([]any)
		return ok && slices.EqualFunc(av, bv, valuesEqual)
	default:
		return a == b
	}
}
