package mel

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/galactic/internal/graph"
	"github.com/roach88/galactic/internal/refdata"
)

// node is one position in the assembly tree as the view sees it: a
// product reached through one usage, or through several consolidated
// usages of the same component.
type node struct {
	product  string // mapped system oid
	name     string // display name of the row
	system   string // product name
	refdes   string
	quantity int64
	usages   []string
}

// itemName composes the display name of a usage: "[designator] name", or
// just the name when there is no designator.
func itemName(designator, name string) string {
	if designator == "" {
		return name
	}
	return "[" + designator + "] " + name
}

// productName returns a product's name with newlines flattened, or
// "unknown".
func productName(obj *graph.Object, ok bool) string {
	if !ok {
		return "unknown"
	}
	name := strings.TrimSpace(strings.ReplaceAll(obj.Name(), "\n", " "))
	if name == "" {
		return "unknown"
	}
	return name
}

// sortNodes orders nodes by case-folded name, then product oid.
func sortNodes(nodes []node) {
	fold := cases.Fold()
	slices.SortStableFunc(nodes, func(a, b node) int {
		if c := strings.Compare(fold.String(a.name), fold.String(b.name)); c != 0 {
			return c
		}
		return strings.Compare(a.product, b.product)
	})
}

// rootSystem is the node for a system reconciled on its own.
func (r *Reconciler) rootSystem(system string) node {
	obj, ok := r.src.Get(system)
	name := productName(obj, ok)
	return node{product: system, name: name, system: name, quantity: 1}
}

// projectSystems returns one node per system usage of project, named
// "[system_role] name".
func (r *Reconciler) projectSystems(project string) []node {
	var nodes []node
	for _, oid := range r.src.SystemsOf(project) {
		psu, ok := r.src.Get(oid)
		if !ok {
			continue
		}
		system := psu.Ref("system")
		if system == "" || system == refdata.TBD {
			continue
		}
		obj, found := r.src.Get(system)
		name := productName(obj, found)
		role := psu.String("system_role")
		nodes = append(nodes, node{
			product:  system,
			name:     itemName(role, name),
			system:   name,
			refdes:   role,
			quantity: 1,
			usages:   []string{oid},
		})
	}
	sortNodes(nodes)
	return nodes
}

// children returns the consolidated component nodes of product. Usages of
// the same component merge into one node whose quantity is their sum and
// whose designator is the component's product type abbreviation. Usages of
// the TBD placeholder are skipped.
func (r *Reconciler) children(product string) []node {
	byComponent := map[string]*node{}
	var order []string
	for _, oid := range r.src.ComponentsOf(product) {
		acu, ok := r.src.Get(oid)
		if !ok {
			continue
		}
		comp := acu.Ref("component")
		if comp == "" || comp == refdata.TBD {
			continue
		}
		qty, ok := acu.Int("quantity")
		if !ok || qty < 1 {
			qty = 1
		}
		n, seen := byComponent[comp]
		if !seen {
			n = &node{product: comp}
			byComponent[comp] = n
			order = append(order, comp)
		}
		n.quantity += qty
		n.usages = append(n.usages, oid)
		if !seen {
			n.refdes = acu.String("reference_designator")
		}
	}

	nodes := make([]node, 0, len(order))
	for _, comp := range order {
		n := *byComponent[comp]
		obj, ok := r.src.Get(comp)
		n.system = productName(obj, ok)
		if len(n.usages) > 1 {
			n.refdes = r.abbreviation(obj, ok)
		}
		n.name = itemName(n.refdes, n.system)
		nodes = append(nodes, n)
	}
	sortNodes(nodes)
	return nodes
}

// abbreviation returns the abbreviation of a product's type, or "TBD".
func (r *Reconciler) abbreviation(product *graph.Object, ok bool) string {
	if !ok {
		return "TBD"
	}
	pt, found := r.src.Get(product.Ref("product_type"))
	if !found {
		return "TBD"
	}
	if abbr := strings.TrimSpace(pt.String("abbreviation")); abbr != "" {
		return abbr
	}
	return "TBD"
}
