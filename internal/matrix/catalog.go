package matrix

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/galactic/internal/schema"
)

// GenericSchema is the schema name a view gets when none is given.
const GenericSchema = "generic"

// Catalog maps schema names to ordered column ids, plus display labels for
// the ids it knows.
//
// Thread-safety: all methods are safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	schemas map[string][]string
	labels  map[string]string
}

var builtinLabels = map[string]string{
	"name":                 "Name",
	"desc":                 "Description",
	"level":                "Level",
	"system_name":          "System",
	"reference_designator": "Ref Des",
	"quantity":             "Qty",
	"m_unit":               "Unit Mass CBE",
	"hot_units":            "Hot Units",
	"flight_units":         "Flight Units",
	"m_cbe":                "Mass CBE",
	"m_ctgcy":              "Mass Contingency (%)",
	"m_mev":                "Mass MEV",
	"nom_p_unit_cbe":       "Unit Power CBE",
	"nom_p_cbe":            "Power CBE",
	"nom_p_ctgcy":          "Power Contingency (%)",
	"nom_p_mev":            "Power MEV",
}

// NewCatalog creates a catalog seeded with the given schemas, typically
// Registry.ViewSchemas().
func NewCatalog(seed map[string][]string) *Catalog {
	c := &Catalog{
		schemas: make(map[string][]string, len(seed)),
		labels:  maps.Clone(builtinLabels),
	}
	for name, ids := range seed {
		c.schemas[name] = slices.Clone(ids)
	}
	return c
}

// Register adds or replaces a named schema.
func (c *Catalog) Register(name string, ids []string) error {
	if name == "" {
		return fmt.Errorf("register schema: empty name")
	}
	if len(ids) == 0 {
		return fmt.Errorf("register schema %s: no columns", name)
	}
	for i, id := range ids {
		if id == "" {
			return fmt.Errorf("register schema %s: empty column id at %d", name, i)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemas[name] = slices.Clone(ids)
	return nil
}

// Lookup returns the columns of name, or the default ["name", "desc"] when
// the name is not registered.
func (c *Catalog) Lookup(name string) []string {
	ids, _ := c.Find(name)
	return ids
}

// Find returns the columns of name and whether it is registered. When it is
// not, the returned columns are the default schema.
func (c *Catalog) Find(name string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ids, ok := c.schemas[name]; ok {
		return slices.Clone(ids), true
	}
	return slices.Clone(schema.DefaultViewSchema), false
}

// Names returns every registered schema name, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.schemas))
}

// SetLabel overrides the display label of a column id.
func (c *Catalog) SetLabel(id, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labels[id] = label
}

// Label returns the display label of a column id. Unknown ids are title
// cased with underscores read as spaces: "dry_mass" becomes "Dry Mass".
func (c *Catalog) Label(id string) string {
	c.mu.RLock()
	label, ok := c.labels[id]
	c.mu.RUnlock()
	if ok {
		return label
	}
	return cases.Title(language.English).String(strings.ReplaceAll(id, "_", " "))
}

// Labels returns the labels of ids in order.
func (c *Catalog) Labels(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = c.Label(id)
	}
	return out
}
