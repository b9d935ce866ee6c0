package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClasses_Text(t *testing.T) {
	out, err := execute(t, "classes")
	require.NoError(t, err)
	assert.Contains(t, out, "CLASS")
	assert.Contains(t, out, "HardwareProduct")
	assert.Contains(t, out, "Acu")
}

func TestClasses_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "classes")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   []ClassInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	byName := map[string]ClassInfo{}
	for _, c := range resp.Data {
		byName[c.Name] = c
	}

	hw, ok := byName["HardwareProduct"]
	require.True(t, ok)
	assert.Equal(t, "Product", hw.Base)
	assert.Contains(t, hw.Fields, "name")

	acu := byName["Acu"]
	assert.Contains(t, acu.Fields, "assembly")
	assert.Contains(t, acu.Fields, "component")
	assert.Greater(t, acu.Rank, hw.Rank, "usage links apply after products")
}

func TestClasses_MissingDir(t *testing.T) {
	out, err := execute(t, "classes", "--classes", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E009]")
}
