package ir

import (
	"encoding/json"
	"fmt"
)

// Reserved keys of the flat wire form of a record.
const (
	KeyClassName    = "_cname"
	KeyOID          = "oid"
	KeyParameters   = "parameters"
	KeyDataElements = "data_elements"
)

// Record is the canonical wire form of one domain object.
//
// On the wire a record is a single flat JSON object:
//
//	{"_cname": "Acu", "oid": "...", "quantity": 2, "assembly": "<oid>", "parameters": {...}}
//
// Fields holds every other key. Reference-typed fields hold the referenced
// object's oid as an IRString (or an IRArray of oids for non-functional
// references). Parameters and DataElements are the optional value-cache
// sidecars and are nil when absent.
type Record struct {
	ClassName    string
	OID          string
	Fields       IRObject
	Parameters   IRObject
	DataElements IRObject
}

// Get returns a field value, or nil when the field is absent.
func (r Record) Get(name string) IRValue {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[name]
}

// String returns a string field, or "" when absent or not a string.
func (r Record) String(name string) string {
	if s, ok := r.Get(name).(IRString); ok {
		return string(s)
	}
	return ""
}

// Set assigns a field value, allocating Fields on first use.
func (r *Record) Set(name string, v IRValue) {
	if r.Fields == nil {
		r.Fields = IRObject{}
	}
	r.Fields[name] = v
}

// Delete removes a field.
func (r *Record) Delete(name string) {
	delete(r.Fields, name)
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	return Record{
		ClassName:    r.ClassName,
		OID:          r.OID,
		Fields:       r.Fields.Clone(),
		Parameters:   r.Parameters.Clone(),
		DataElements: r.DataElements.Clone(),
	}
}

// Flatten returns the flat wire object for the record.
func (r Record) Flatten() IRObject {
	obj := make(IRObject, len(r.Fields)+4)
	for k, v := range r.Fields {
		obj[k] = v
	}
	if r.ClassName != "" {
		obj[KeyClassName] = IRString(r.ClassName)
	}
	if r.OID != "" {
		obj[KeyOID] = IRString(r.OID)
	}
	if r.Parameters != nil {
		obj[KeyParameters] = r.Parameters
	}
	if r.DataElements != nil {
		obj[KeyDataElements] = r.DataElements
	}
	return obj
}

// RecordFromObject splits a flat wire object into a Record.
// A missing or non-string _cname/oid leaves the corresponding field empty;
// the merge engine decides what to do with such records.
func RecordFromObject(obj IRObject) (Record, error) {
	r := Record{Fields: IRObject{}}
	for k, v := range obj {
		switch k {
		case KeyClassName:
			if s, ok := v.(IRString); ok {
				r.ClassName = string(s)
			}
		case KeyOID:
			if s, ok := v.(IRString); ok {
				r.OID = string(s)
			}
		case KeyParameters:
			if IsNull(v) {
				continue
			}
			p, ok := v.(IRObject)
			if !ok {
				return Record{}, fmt.Errorf("record %q: parameters must be an object, got %T", r.OID, v)
			}
			r.Parameters = p
		case KeyDataElements:
			if IsNull(v) {
				continue
			}
			d, ok := v.(IRObject)
			if !ok {
				return Record{}, fmt.Errorf("record %q: data_elements must be an object, got %T", r.OID, v)
			}
			r.DataElements = d
		default:
			r.Fields[k] = v
		}
	}
	return r, nil
}

// MarshalJSON implements json.Marshaler using the flat wire form.
func (r Record) MarshalJSON() ([]byte, error) {
	return r.Flatten().MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler from the flat wire form.
func (r *Record) UnmarshalJSON(data []byte) error {
	var obj IRObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	rec, err := RecordFromObject(obj)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}
