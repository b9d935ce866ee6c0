// Package schema compiles the class registry and the default view schemas
// from CUE.
//
// The registry is the read-only source of truth for which class names are
// recognized, how their fields are typed, which fields are references or
// inverses, and the fixed order in which a batch is applied. A default
// definition is embedded in the binary; callers may unify an additional CUE
// package on top of it with LoadDir.
package schema
