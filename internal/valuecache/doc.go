// Package valuecache holds the per-oid parameter and data element values
// that live outside the object graph, plus the derived relationship caches
// the parametric rollup needs.
//
// Parameters are numeric values with units and a modification time. Each
// base variable (mass "m", power "P", data rate "R_D") has derived context
// parameters named variable[context]:
//
//	m[CBE]    current best estimate, rolled up over components × quantity
//	m[Ctgcy]  contingency fraction, set by users
//	m[MEV]    maximum expected value, m[CBE] × (1 + m[Ctgcy])
//
// CBE and MEV are computed by RecomputeAll and cannot be set directly.
//
// Data elements are untyped primitive values (strings, numbers, booleans)
// keyed by data element id.
//
// The Cache tracks which oids changed since the last TakeDirty so that the
// caller can persist only what moved.
package valuecache
