package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const spacecraftBatch = `
- {_cname: HardwareProduct, oid: "test:sc", name: Spacecraft, mod_datetime: "2024-03-01T12:00:00Z"}
- _cname: HardwareProduct
  oid: "test:bus"
  name: Bus
  mod_datetime: "2024-03-01T12:00:00Z"
  parameters:
    m: {value: 10, units: kg, mod_datetime: "2024-03-01T12:00:00Z"}
- {_cname: Acu, oid: "test:acu1", assembly: "test:sc", component: "test:bus", quantity: 2, mod_datetime: "2024-03-01T12:00:00Z"}
`

// writeFile writes content to name under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// seeded returns a database holding the spacecraft batch.
func seeded(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "galactic.db")
	batch := writeFile(t, dir, "sc.yaml", spacecraftBatch)
	_, err := execute(t, "apply", "--db", db, batch)
	require.NoError(t, err)
	return db
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "galactic", cmd.Use)
	assert.Contains(t, cmd.Long, "Master Equipment List")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"apply", "encode", "mel", "classes", "validate", "test"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"apply", []string{"db", "force", "no-recompute", "refdata", "metrics-addr"}},
		{"encode", []string{"db", "oid", "components", "subactivities", "refdata", "inverse", "out", "yaml"}},
		{"mel", []string{"db", "context", "schema"}},
		{"classes", []string{"classes"}},
		{"test", []string{"update", "filter"}},
	}
	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			for _, name := range tt.flags {
				assert.NotNil(t, sub.Flags().Lookup(name), "--%s", name)
			}
		})
	}
}

func TestFormatValidation(t *testing.T) {
	_, err := execute(t, "--format", "xml", "classes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "from-config.db")
	cfg := writeFile(t, dir, "galactic.yaml", "database: "+db+"\n")
	batch := writeFile(t, dir, "sc.yaml", spacecraftBatch)

	_, err := execute(t, "--config", cfg, "apply", batch)
	require.NoError(t, err)
	_, err = os.Stat(db)
	assert.NoError(t, err, "database named by the config file is created")
}

func TestConfigFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "galactic.yaml", "owner: \"has space\"\n")

	_, err := execute(t, "--config", cfg, "classes")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "owner")
}
