package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/galactic/internal/schema"
)

func TestCatalog_SeededFromRegistry(t *testing.T) {
	reg, err := schema.Default()
	require.NoError(t, err)

	c := NewCatalog(reg.ViewSchemas())
	cols, ok := c.Find("MEL")
	require.True(t, ok)
	assert.Equal(t, "name", cols[0])
	assert.Contains(t, cols, "m_cbe")
	assert.Contains(t, c.Names(), "MEL")
}

func TestCatalog_LookupDefault(t *testing.T) {
	c := NewCatalog(nil)

	cols, ok := c.Find("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"name", "desc"}, cols)
	assert.Equal(t, []string{"name", "desc"}, c.Lookup("missing"))

	cols[0] = "mutated"
	assert.Equal(t, []string{"name", "desc"}, schema.DefaultViewSchema)
}

func TestCatalog_Register(t *testing.T) {
	c := NewCatalog(nil)
	ids := []string{"name", "vendor"}

	require.NoError(t, c.Register("parts", ids))
	ids[1] = "mutated"
	assert.Equal(t, []string{"name", "vendor"}, c.Lookup("parts"))

	require.NoError(t, c.Register("parts", []string{"name"}))
	assert.Equal(t, []string{"name"}, c.Lookup("parts"))
}

func TestCatalog_RegisterErrors(t *testing.T) {
	c := NewCatalog(nil)

	tests := []struct {
		name    string
		schema  string
		ids     []string
		wantErr string
	}{
		{"empty name", "", []string{"name"}, "empty name"},
		{"no columns", "x", nil, "no columns"},
		{"empty column", "x", []string{"name", ""}, "empty column id at 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Register(tt.schema, tt.ids)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
	assert.Empty(t, c.Names())
}

func TestCatalog_Labels(t *testing.T) {
	c := NewCatalog(nil)

	assert.Equal(t, "Mass Contingency (%)", c.Label("m_ctgcy"))
	assert.Equal(t, "Dry Mass", c.Label("dry_mass"))
	assert.Equal(t, "Vendor", c.Label("vendor"))

	c.SetLabel("vendor", "Supplier")
	assert.Equal(t, []string{"Name", "Supplier"}, c.Labels([]string{"name", "vendor"}))
}
