package schema

import (
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/galactic/internal/ir"
)

// DefaultViewSchema is used for a view whose schema name is not registered.
var DefaultViewSchema = []string{"name", "desc"}

// Field describes one field of a class.
type Field struct {
	Name  string
	Range string // primitive range name or class name

	// Functional is false for list-valued fields.
	Functional bool

	// Inverse fields are derived from the references other objects hold
	// and are never decoded from the wire.
	Inverse bool
	Via     string // "Class.field" an inverse is computed from

	Required bool

	// Owner is the class that declared the field.
	Owner string
}

// IsRef reports whether the field holds oids of other objects.
func (f Field) IsRef() bool {
	return !ir.IsPrimitiveRange(f.Range)
}

// ViaParts splits Via into the referencing class and field.
func (f Field) ViaParts() (class, field string) {
	class, field, _ = strings.Cut(f.Via, ".")
	return class, field
}

// Class is a compiled class with its inherited fields resolved.
type Class struct {
	Name     string
	Base     string
	Abstract bool

	// Valued classes carry parameter and data element sidecars.
	Valued bool

	// Fields holds base fields first, each level in declaration order.
	Fields []Field

	index map[string]int
	pos   token.Pos
}

// Field returns the named field.
func (c *Class) Field(name string) (Field, bool) {
	i, ok := c.index[name]
	if !ok {
		return Field{}, false
	}
	return c.Fields[i], true
}

// Registry is the compiled class registry. It is immutable after Compile
// and safe for concurrent readers.
type Registry struct {
	classes map[string]*Class
	order   []string
	rank    map[string]int
	views   map[string][]string
}

// Class returns the named class, abstract or not.
func (r *Registry) Class(name string) (*Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// Recognized reports whether records of the named class may be applied.
// Abstract classes are declared but not recognized.
func (r *Registry) Recognized(name string) bool {
	c, ok := r.classes[name]
	return ok && !c.Abstract
}

// IsA reports whether name is ancestor or inherits from it.
func (r *Registry) IsA(name, ancestor string) bool {
	for c, ok := r.classes[name]; ok; c, ok = r.classes[c.Base] {
		if c.Name == ancestor {
			return true
		}
	}
	return false
}

// Lineage returns name followed by its bases, nearest first.
func (r *Registry) Lineage(name string) []string {
	var out []string
	for c, ok := r.classes[name]; ok; c, ok = r.classes[c.Base] {
		out = append(out, c.Name)
	}
	return out
}

// Names returns every declared class name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.classes))
	for n := range r.classes {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Order returns the apply order. Recognized classes not listed here are
// applied after all listed ones.
func (r *Registry) Order() []string {
	return slices.Clone(r.order)
}

// Rank returns the position of name in the apply order, or len(Order())
// for recognized classes outside it.
func (r *Registry) Rank(name string) int {
	if i, ok := r.rank[name]; ok {
		return i
	}
	return len(r.order)
}

// ViewSchemas returns the named column lists declared for views.
func (r *Registry) ViewSchemas() map[string][]string {
	out := make(map[string][]string, len(r.views))
	for k, v := range r.views {
		out[k] = slices.Clone(v)
	}
	return out
}

// Compile builds a Registry from a CUE value holding classes, order, and
// view_schemas. Uses the CUE SDK's Go API directly.
func Compile(v cue.Value) (*Registry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	decls, err := parseClasses(v)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		classes: make(map[string]*Class, len(decls)),
		rank:    make(map[string]int),
		views:   make(map[string][]string),
	}

	names := make([]string, 0, len(decls))
	for name := range decls {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, err := r.resolve(name, decls, map[string]bool{}); err != nil {
			return nil, err
		}
	}

	if err := r.checkFields(); err != nil {
		return nil, err
	}

	r.order, err = stringList(v.LookupPath(cue.ParsePath("order")))
	if err != nil {
		return nil, err
	}
	for i, name := range r.order {
		c, ok := r.classes[name]
		if !ok || c.Abstract {
			return nil, &CompileError{
				Code:    ErrCodeBadOrder,
				Field:   fmt.Sprintf("order[%d]", i),
				Message: fmt.Sprintf("%q is not a concrete class", name),
			}
		}
		r.rank[name] = i
	}

	viewsVal := v.LookupPath(cue.ParsePath("view_schemas"))
	if viewsVal.Exists() {
		iter, err := viewsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			cols, err := stringList(iter.Value())
			if err != nil {
				return nil, err
			}
			r.views[iter.Label()] = cols
		}
	}

	return r, nil
}

// classDecl is one class as written, before inheritance is applied.
type classDecl struct {
	base     string
	abstract bool
	valued   bool
	fields   []Field
	pos      token.Pos
}

func parseClasses(v cue.Value) (map[string]classDecl, error) {
	decls := make(map[string]classDecl)

	classesVal := v.LookupPath(cue.ParsePath("classes"))
	if !classesVal.Exists() {
		return decls, nil
	}

	iter, err := classesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		name := iter.Label()
		cv := iter.Value()

		d := classDecl{pos: cv.Pos()}
		if bv := cv.LookupPath(cue.ParsePath("base")); bv.Exists() {
			if d.base, err = bv.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if d.abstract, err = boolField(cv, "abstract", false); err != nil {
			return nil, err
		}
		if d.valued, err = boolField(cv, "valued", false); err != nil {
			return nil, err
		}

		fieldsVal := cv.LookupPath(cue.ParsePath("fields"))
		if fieldsVal.Exists() {
			fi, err := fieldsVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for fi.Next() {
				f, err := parseField(fi.Value())
				if err != nil {
					return nil, err
				}
				f.Owner = name
				d.fields = append(d.fields, f)
			}
		}

		decls[name] = d
	}

	return decls, nil
}

func parseField(v cue.Value) (Field, error) {
	var f Field
	var err error

	if f.Name, err = v.LookupPath(cue.ParsePath("name")).String(); err != nil {
		return f, formatCUEError(err)
	}
	if f.Range, err = v.LookupPath(cue.ParsePath("range")).String(); err != nil {
		return f, formatCUEError(err)
	}
	if f.Functional, err = boolField(v, "functional", true); err != nil {
		return f, err
	}
	if f.Inverse, err = boolField(v, "inverse", false); err != nil {
		return f, err
	}
	if f.Required, err = boolField(v, "required", false); err != nil {
		return f, err
	}
	if via := v.LookupPath(cue.ParsePath("via")); via.Exists() {
		if f.Via, err = via.String(); err != nil {
			return f, formatCUEError(err)
		}
	}
	return f, nil
}

// resolve compiles name and its bases, detecting inheritance cycles.
func (r *Registry) resolve(name string, decls map[string]classDecl, visiting map[string]bool) (*Class, error) {
	if c, ok := r.classes[name]; ok {
		return c, nil
	}
	d, ok := decls[name]
	if !ok {
		return nil, &CompileError{
			Code:    ErrCodeUnknownBase,
			Field:   "base",
			Message: fmt.Sprintf("class %q is not declared", name),
		}
	}
	if visiting[name] {
		return nil, &CompileError{
			Code:    ErrCodeInheritCycle,
			Field:   "classes." + name + ".base",
			Message: "inheritance cycle through " + name,
			Pos:     d.pos,
		}
	}
	visiting[name] = true

	c := &Class{
		Name:     name,
		Base:     d.base,
		Abstract: d.abstract,
		Valued:   d.valued,
		index:    make(map[string]int),
		pos:      d.pos,
	}

	if d.base != "" {
		if _, ok := decls[d.base]; !ok {
			return nil, &CompileError{
				Code:    ErrCodeUnknownBase,
				Field:   "classes." + name + ".base",
				Message: fmt.Sprintf("unknown base class %q", d.base),
				Pos:     d.pos,
			}
		}
		base, err := r.resolve(d.base, decls, visiting)
		if err != nil {
			return nil, err
		}
		c.Fields = slices.Clone(base.Fields)
		c.Valued = c.Valued || base.Valued
		for i, f := range c.Fields {
			c.index[f.Name] = i
		}
	}

	for _, f := range d.fields {
		if prev, dup := c.index[f.Name]; dup {
			return nil, &CompileError{
				Code:    ErrCodeDuplicateField,
				Field:   "classes." + name + ".fields",
				Message: fmt.Sprintf("field %q already declared by %s", f.Name, c.Fields[prev].Owner),
				Pos:     d.pos,
			}
		}
		c.Fields = append(c.Fields, f)
		c.index[f.Name] = len(c.Fields) - 1
	}

	r.classes[name] = c
	return c, nil
}

// checkFields validates ranges and inverse declarations once every class
// is resolved.
func (r *Registry) checkFields() error {
	for _, name := range r.Names() {
		c := r.classes[name]
		for _, f := range c.Fields {
			if f.Owner != name {
				continue
			}
			if f.IsRef() {
				if _, ok := r.classes[f.Range]; !ok {
					return &CompileError{
						Code:    ErrCodeUnknownRange,
						Field:   "classes." + name + ".fields." + f.Name,
						Message: fmt.Sprintf("unknown range %q", f.Range),
						Pos:     c.pos,
					}
				}
			}
			if !f.Inverse {
				continue
			}
			vc, vf := f.ViaParts()
			via, ok := r.classes[vc]
			if f.Functional || !f.IsRef() || !ok {
				return &CompileError{
					Code:    ErrCodeBadInverse,
					Field:   "classes." + name + ".fields." + f.Name,
					Message: "inverse fields must be non-functional references with a via of a declared class",
					Pos:     c.pos,
				}
			}
			if target, ok := via.Field(vf); !ok || !target.IsRef() {
				return &CompileError{
					Code:    ErrCodeBadInverse,
					Field:   "classes." + name + ".fields." + f.Name,
					Message: fmt.Sprintf("via %q is not a reference field", f.Via),
					Pos:     c.pos,
				}
			}
		}
	}
	return nil
}

// boolField reads an optional boolean, honoring CUE defaults.
func boolField(v cue.Value, name string, def bool) (bool, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return def, nil
	}
	if d, ok := f.Default(); ok {
		f = d
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func stringList(v cue.Value) ([]string, error) {
	out := []string{}
	if !v.Exists() {
		return out, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}
