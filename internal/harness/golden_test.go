package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/galactic/internal/ir"
)

// TestScenarios runs every scenario under testdata/scenarios and compares
// it with its golden file. Regenerate with:
//
//	go test ./internal/harness -run TestScenarios -update
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			require.Equal(t, name, scenario.Name, "scenario name must match its file")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSummary_FailedRun(t *testing.T) {
	result := NewResult()
	result.Steps = append(result.Steps, StepResult{
		Kind:    KindApply,
		Counts:  map[string]int{"new": 1},
		Objects: []string{"test:sc"},
		Deleted: []string{"test:port"},
	})
	result.AddError("boom")

	data, err := ir.MarshalCanonical(Summary("failed", result))
	require.NoError(t, err)
	assert.Equal(t,
		`{"pass":false,"scenario":"failed","steps":[{"deleted":["test:port"],"kind":"apply","new":1,"objects":["test:sc"],"recomputed":false}]}`,
		string(data))
}
