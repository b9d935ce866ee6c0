package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/galactic/internal/codec"
	"github.com/roach88/galactic/internal/ir"
)

func oidsOf(recs []ir.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.OID
	}
	return out
}

func TestEncode_Stdout(t *testing.T) {
	db := seeded(t)

	out, err := execute(t, "encode", "--db", db, "--oid", "test:sc", "--components")
	require.NoError(t, err)
	recs, err := codec.ReadBatch(bytes.NewReader([]byte(out)), codec.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, []string{"test:sc", "test:acu1", "test:bus"}, oidsOf(recs))

	bus := recs[2]
	require.NotNil(t, bus.Parameters)
	m, ok := bus.Parameters["m"].(ir.IRObject)
	require.True(t, ok)
	assert.Equal(t, ir.IRString("kg"), m["units"])
}

func TestEncode_WithoutComponents(t *testing.T) {
	db := seeded(t)

	out, err := execute(t, "encode", "--db", db, "--oid", "test:sc", "--oid", "test:unknown")
	require.NoError(t, err)
	recs, err := codec.ReadBatch(bytes.NewReader([]byte(out)), codec.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, []string{"test:sc"}, oidsOf(recs))
}

func TestEncode_All(t *testing.T) {
	db := seeded(t)

	out, err := execute(t, "encode", "--db", db, "--yaml")
	require.NoError(t, err)
	recs, err := codec.ReadBatch(bytes.NewReader([]byte(out)), codec.FormatYAML)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"test:sc", "test:bus", "test:acu1"}, oidsOf(recs))
}

func TestEncode_OutFile(t *testing.T) {
	db := seeded(t)
	path := filepath.Join(t.TempDir(), "sc.yaml")

	out, err := execute(t, "--format", "json", "encode", "--db", db, "--oid", "test:bus", "--out", path)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   EncodeResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "yaml", resp.Data.Format)
	assert.Equal(t, []string{"test:bus"}, resp.Data.OIDs)

	recs, err := codec.ReadBatchFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"test:bus"}, oidsOf(recs))
}

func TestEncode_RoundTripsThroughApply(t *testing.T) {
	db := seeded(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "all.json")

	_, err := execute(t, "encode", "--db", db, "--out", path)
	require.NoError(t, err)

	out, err := execute(t, "apply", "--db", filepath.Join(dir, "copy.db"), path)
	require.NoError(t, err)
	assert.Contains(t, out, "new: 3")

	out, err = execute(t, "apply", "--db", db, path)
	require.NoError(t, err)
	assert.Contains(t, out, "unmodified: 3", "encoded records are not newer than what they came from")
}
