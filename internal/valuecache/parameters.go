package valuecache

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/galactic/internal/ir"
)

// Base variables rolled up over assemblies.
const (
	Mass     = "m"
	Power    = "P"
	DataRate = "R_D"
)

// Parameter contexts.
const (
	CBE         = "CBE"
	Contingency = "Ctgcy"
	MEV         = "MEV"
)

// Variables are the base variables RecomputeAll rolls up, in order.
var Variables = []string{Mass, Power, DataRate}

// DefaultParameters are given to every new hardware product.
var DefaultParameters = []string{Mass, Power, DataRate}

var baseUnits = map[string]string{
	Mass:     "kg",
	Power:    "W",
	DataRate: "bit/s",
}

// ErrComputed is returned when setting a parameter that RecomputeAll owns.
var ErrComputed = errors.New("parameter is computed")

// PID returns the id of variable in context: PID("m", CBE) is "m[CBE]".
// An empty context returns the variable itself.
func PID(variable, context string) string {
	if context == "" {
		return variable
	}
	return variable + "[" + context + "]"
}

// SplitPID is the inverse of PID.
func SplitPID(pid string) (variable, context string) {
	i := strings.IndexByte(pid, '[')
	if i < 0 || !strings.HasSuffix(pid, "]") {
		return pid, ""
	}
	return pid[:i], pid[i+1 : len(pid)-1]
}

// IsComputed reports whether pid is derived by RecomputeAll.
func IsComputed(pid string) bool {
	_, ctx := SplitPID(pid)
	return ctx == CBE || ctx == MEV
}

// UnitsOf returns the base units of pid's variable; contingencies are
// dimensionless.
func UnitsOf(pid string) string {
	v, ctx := SplitPID(pid)
	if ctx == Contingency {
		return ""
	}
	return baseUnits[v]
}

// GetParameterValue returns the cached value of pid on oid, or 0.0 when
// either is unknown.
func (c *Cache) GetParameterValue(oid, pid string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.params[oid][pid].Value
}

// GetParameter returns the cached parameter and whether it exists.
func (c *Cache) GetParameter(oid, pid string) (Parameter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.params[oid][pid]
	return p, ok
}

// HasParameter reports whether oid carries pid.
func (c *Cache) HasParameter(oid, pid string) bool {
	_, ok := c.GetParameter(oid, pid)
	return ok
}

// SetParameterValue sets pid on oid, stamping the current time. Empty units
// fall back to the variable's base units. Computed parameters are refused.
func (c *Cache) SetParameterValue(oid, pid string, value float64, units string) error {
	if oid == "" || pid == "" {
		return fmt.Errorf("set parameter: empty oid or pid")
	}
	if IsComputed(pid) {
		return fmt.Errorf("set parameter %s on %s: %w", pid, oid, ErrComputed)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("set parameter %s on %s: non-finite value %v", pid, oid, value)
	}
	if units == "" {
		units = UnitsOf(pid)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setParameter(oid, pid, Parameter{Value: value, Units: units, ModDatetime: c.now()})
	return nil
}

// setParameter stores p and marks oid dirty. Caller holds mu.
func (c *Cache) setParameter(oid, pid string, p Parameter) {
	m, ok := c.params[oid]
	if !ok {
		m = make(map[string]Parameter)
		c.params[oid] = m
	}
	m[pid] = p
	c.markChanged(oid)
}

// AddDefaultParameters gives oid the default parameters it lacks, each
// initialized to zero.
func (c *Cache) AddDefaultParameters(oid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for _, pid := range DefaultParameters {
		if _, ok := c.params[oid][pid]; ok {
			continue
		}
		c.setParameter(oid, pid, Parameter{Units: UnitsOf(pid), ModDatetime: now})
	}
}

// DeleteParameter removes pid from oid.
func (c *Cache) DeleteParameter(oid, pid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.params[oid][pid]; !ok {
		return
	}
	delete(c.params[oid], pid)
	if len(c.params[oid]) == 0 {
		delete(c.params, oid)
	}
	c.markChanged(oid)
}

// SerializeParameters returns the wire payload of oid's settable
// parameters:
//
//	{pid: {"value": number, "units": str, "mod_datetime": str}}
//
// Computed parameters are left out; the receiver recomputes them. Returns
// nil when there is nothing to send.
func (c *Cache) SerializeParameters(oid string) ir.IRObject {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out ir.IRObject
	for pid, p := range c.params[oid] {
		if IsComputed(pid) {
			continue
		}
		if out == nil {
			out = ir.IRObject{}
		}
		out[pid] = ir.IRObject{
			"value":        ir.IRFloat(p.Value),
			"units":        ir.IRString(p.Units),
			"mod_datetime": ir.IRString(formatTime(p.ModDatetime)),
		}
	}
	return out
}

// DeserializeParameters merges a wire payload into oid's parameters.
// An entry older than the cached one is ignored, as are computed
// parameters and malformed entries. Returns the number of entries applied.
func (c *Cache) DeserializeParameters(oid string, payload ir.IRObject) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	applied := 0
	for _, pid := range payload.SortedKeys() {
		if IsComputed(pid) {
			continue
		}
		entry, ok := payload[pid].(ir.IRObject)
		if !ok {
			c.logger.Debug("skipping malformed parameter", "oid", oid, "pid", pid)
			continue
		}
		value, ok := numberOf(entry["value"])
		if !ok {
			c.logger.Debug("skipping parameter without numeric value", "oid", oid, "pid", pid)
			continue
		}
		mod, stamped := parseStamp(entry["mod_datetime"])
		if cur, exists := c.params[oid][pid]; exists {
			if !stamped || mod.Before(cur.ModDatetime) {
				c.logger.Debug("ignoring older parameter", "oid", oid, "pid", pid)
				continue
			}
		}
		if !stamped {
			mod = c.now()
		}
		units := ""
		if s, ok := entry["units"].(ir.IRString); ok {
			units = string(s)
		}
		if units == "" {
			units = UnitsOf(pid)
		}
		c.setParameter(oid, pid, Parameter{Value: value, Units: units, ModDatetime: mod})
		applied++
	}
	return applied
}

func numberOf(v ir.IRValue) (float64, bool) {
	switch n := v.(type) {
	case ir.IRFloat:
		return float64(n), true
	case ir.IRInt:
		return float64(n), true
	case ir.IRString:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func parseStamp(v ir.IRValue) (time.Time, bool) {
	s, ok := v.(ir.IRString)
	if !ok {
		return time.Time{}, false
	}
	return ir.ParseTime(string(s))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(ir.DatetimeLayout)
}
