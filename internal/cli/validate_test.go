package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	dir := t.TempDir()
	batch := writeFile(t, dir, "sc.yaml", spacecraftBatch)

	out, err := execute(t, "validate", batch)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All batches valid (3 record(s) in 1 file(s))")
}

func TestValidate_ReferencesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "batches/a-usage.yaml", `
- {_cname: Acu, oid: "test:acu1", assembly: "test:sc", component: "test:bus", quantity: 2}
`)
	writeFile(t, dir, "batches/b-products.json", `[
  {"_cname": "HardwareProduct", "oid": "test:sc", "name": "Spacecraft"},
  {"_cname": "HardwareProduct", "oid": "test:bus", "name": "Bus"}
]`)

	out, err := execute(t, "--format", "json", "validate", filepath.Join(dir, "batches"))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Files)
	assert.Equal(t, 3, resp.Data.Records)
	assert.Empty(t, resp.Data.Errors)
}

func TestValidate_Invalid(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", spacecraftBatch)
	bad := writeFile(t, dir, "bad.yaml", `
- {_cname: HardwareProduct, oid: "test:rw", name: Wheel}
- {_cname: Acu, oid: "test:acu2", assembly: "test:sc", component: "test:gone"}
- {_cname: Gizmo, oid: "test:g1"}
`)

	out, err := execute(t, "--format", "json", "validate", good, bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidBatch, resp.Error.Code)
	assert.False(t, resp.Data.Valid)

	require.Len(t, resp.Data.Errors, 2)
	codes := map[string]Issue{}
	for _, issue := range resp.Data.Errors {
		codes[issue.Code] = issue
	}
	rel := codes["INVALID_RELATIONSHIP"]
	assert.Equal(t, bad, rel.File)
	assert.Equal(t, 1, rel.Index, "index is the record's position within its file")
	assert.Equal(t, "component", rel.Field)

	unknown := codes["UNKNOWN_TYPE"]
	assert.Equal(t, bad, unknown.File)
	assert.Equal(t, 2, unknown.Index)
}

func TestValidate_UndecodableFile(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yaml", "- [not, a, record]\n")

	out, err := execute(t, "validate", bad)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}

func TestLocate(t *testing.T) {
	spans := []span{{file: "a", start: 0}, {file: "b", start: 3}, {file: "c", start: 3}}
	file, i := locate(spans, 2)
	assert.Equal(t, "a", file)
	assert.Equal(t, 2, i)

	file, i = locate(spans, 4)
	assert.Equal(t, "c", file, "an empty file owns no records")
	assert.Equal(t, 1, i)
}
