package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/galactic/internal/mel"
)

func TestMEL_Text(t *testing.T) {
	db := seeded(t)

	out, err := execute(t, "mel", "--db", db, "--context", "test:sc")
	require.NoError(t, err)
	assert.Contains(t, out, "MEL of test:sc (system): 2 row(s), 2 created, 0 reused, 0 purged")
	assert.Contains(t, out, "  Spacecraft  x1  20 kg")
	assert.Contains(t, out, "    Bus  x2  20 kg")
}

func TestMEL_RowsPersist(t *testing.T) {
	db := seeded(t)

	decode := func(out string) *mel.Report {
		var resp struct {
			Status string      `json:"status"`
			Data   *mel.Report `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.Equal(t, "ok", resp.Status)
		return resp.Data
	}

	out, err := execute(t, "--format", "json", "mel", "--db", db, "--context", "test:sc")
	require.NoError(t, err)
	first := decode(out)
	require.Len(t, first.Rows, 2)

	out, err = execute(t, "--format", "json", "mel", "--db", db, "--context", "test:sc")
	require.NoError(t, err)
	second := decode(out)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Reused)
	assert.Equal(t, first.Rows[0].OID, second.Rows[0].OID)
	assert.Equal(t, first.Rows[1].OID, second.Rows[1].OID)
}

func TestMEL_UnknownContext(t *testing.T) {
	db := seeded(t)

	out, err := execute(t, "mel", "--db", db, "--context", "test:nothing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "test:nothing is not a system or project")
}

func TestMEL_RequiresContext(t *testing.T) {
	_, err := execute(t, "mel", "--db", seeded(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}
