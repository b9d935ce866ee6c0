package valuecache

import (
	"fmt"

	"github.com/roach88/galactic/internal/ir"
)

// GetDataElementValue returns the cached value of deid on oid, or nil.
func (c *Cache) GetDataElementValue(oid, deid string) ir.IRValue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.des[oid][deid].Value
}

// GetDataElementString returns a string data element, or "" when absent or
// not a string.
func (c *Cache) GetDataElementString(oid, deid string) string {
	s, _ := c.GetDataElementValue(oid, deid).(ir.IRString)
	return string(s)
}

// SetDataElementValue sets deid on oid, stamping the current time. Only
// primitive values are accepted; a nil value deletes the element.
func (c *Cache) SetDataElementValue(oid, deid string, value ir.IRValue) error {
	if oid == "" || deid == "" {
		return fmt.Errorf("set data element: empty oid or deid")
	}
	switch value.(type) {
	case ir.IRArray, ir.IRObject:
		return fmt.Errorf("set data element %s on %s: %T is not a primitive", deid, oid, value)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ir.IsNull(value) {
		if _, ok := c.des[oid][deid]; ok {
			delete(c.des[oid], deid)
			if len(c.des[oid]) == 0 {
				delete(c.des, oid)
			}
			c.markChanged(oid)
		}
		return nil
	}
	c.setDataElement(oid, deid, DataElement{Value: value, ModDatetime: c.now()})
	return nil
}

func (c *Cache) setDataElement(oid, deid string, d DataElement) {
	m, ok := c.des[oid]
	if !ok {
		m = make(map[string]DataElement)
		c.des[oid] = m
	}
	m[deid] = d
	c.markChanged(oid)
}

// SerializeDataElements returns the wire payload of oid's data elements:
//
//	{deid: {"value": any, "mod_datetime": str}}
//
// Returns nil when there is nothing to send.
func (c *Cache) SerializeDataElements(oid string) ir.IRObject {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.des[oid]) == 0 {
		return nil
	}
	out := make(ir.IRObject, len(c.des[oid]))
	for deid, d := range c.des[oid] {
		out[deid] = ir.IRObject{
			"value":        d.Value,
			"mod_datetime": ir.IRString(formatTime(d.ModDatetime)),
		}
	}
	return out
}

// DeserializeDataElements merges a wire payload into oid's data elements.
// Entries older than the cached one, and non-primitive values, are
// ignored. Returns the number of entries applied.
func (c *Cache) DeserializeDataElements(oid string, payload ir.IRObject) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	applied := 0
	for _, deid := range payload.SortedKeys() {
		entry, ok := payload[deid].(ir.IRObject)
		if !ok {
			c.logger.Debug("skipping malformed data element", "oid", oid, "deid", deid)
			continue
		}
		value := entry["value"]
		switch value.(type) {
		case nil, ir.IRNull, ir.IRArray, ir.IRObject:
			c.logger.Debug("skipping non-primitive data element", "oid", oid, "deid", deid)
			continue
		}
		mod, stamped := parseStamp(entry["mod_datetime"])
		if cur, exists := c.des[oid][deid]; exists {
			if !stamped || mod.Before(cur.ModDatetime) {
				c.logger.Debug("ignoring older data element", "oid", oid, "deid", deid)
				continue
			}
		}
		if !stamped {
			mod = c.now()
		}
		c.setDataElement(oid, deid, DataElement{Value: value, ModDatetime: mod})
		applied++
	}
	return applied
}
