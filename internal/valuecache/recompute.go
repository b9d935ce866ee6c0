package valuecache

import (
	"maps"
	"math"
	"slices"
	"strconv"
	"time"
)

// Precision is the number of significant digits computed values keep.
const Precision = 4

// RoundTo rounds x to n significant digits.
func RoundTo(x float64, n int) float64 {
	if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'g', n, 64), 64)
	if err != nil {
		return x
	}
	return r
}

// RecomputeAll derives the CBE and MEV of every variable for every oid
// that has the variable or has components:
//
//	X[CBE] = Σ component X[CBE] × quantity   (assemblies)
//	X[CBE] = X                               (leaves)
//	X[MEV] = X[CBE] × (1 + X[Ctgcy])
//
// Both are rounded to Precision significant digits. Only oids whose
// computed values actually change are marked dirty.
func (c *Cache) RecomputeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	targets := map[string]struct{}{}
	for oid := range c.params {
		targets[oid] = struct{}{}
	}
	for oid := range c.components {
		targets[oid] = struct{}{}
	}

	now := c.now()
	updated := 0
	for _, variable := range Variables {
		memo := map[string]float64{}
		for _, oid := range slices.Sorted(maps.Keys(targets)) {
			_, hasBase := c.params[oid][variable]
			if !hasBase && len(c.components[oid]) == 0 {
				continue
			}
			cbe := c.assemblyValue(oid, variable, memo, map[string]bool{})
			ctgcy := c.params[oid][PID(variable, Contingency)].Value
			mev := RoundTo(cbe*(1+ctgcy), Precision)
			units := baseUnits[variable]
			if c.setComputed(oid, PID(variable, CBE), cbe, units, now) {
				updated++
			}
			if c.setComputed(oid, PID(variable, MEV), mev, units, now) {
				updated++
			}
		}
	}
	c.logger.Debug("recomputed parameters", "count", len(targets), "updated", updated)
}

// assemblyValue returns the rolled-up CBE of variable for oid. A cycle in
// the component graph contributes zero at the point it closes.
func (c *Cache) assemblyValue(oid, variable string, memo map[string]float64, path map[string]bool) float64 {
	if v, ok := memo[oid]; ok {
		return v
	}
	if path[oid] {
		c.logger.Warn("component cycle", "oid", oid, "variable", variable)
		return 0
	}
	comps := c.components[oid]
	if len(comps) == 0 {
		v := c.params[oid][variable].Value
		memo[oid] = v
		return v
	}
	path[oid] = true
	sum := 0.0
	for _, comp := range comps {
		sum += c.assemblyValue(comp.OID, variable, memo, path) * float64(comp.Quantity)
	}
	delete(path, oid)
	v := RoundTo(sum, Precision)
	memo[oid] = v
	return v
}

// setComputed stores a computed value, keeping the old stamp when the value
// did not move. Reports whether anything changed. Caller holds mu.
func (c *Cache) setComputed(oid, pid string, value float64, units string, now time.Time) bool {
	if cur, ok := c.params[oid][pid]; ok && cur.Value == value && cur.Units == units {
		return false
	}
	c.setParameter(oid, pid, Parameter{Value: value, Units: units, ModDatetime: now})
	return true
}
