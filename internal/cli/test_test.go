package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommandScenarios(t *testing.T) {
	out, _, err := execute(t, "test", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ scale_lazy")
	assert.Contains(t, out, "Test Summary: 5 passed, 0 failed, 5 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "test", scenariosDir, "--filter", "scale_*")
	require.NoError(t, err)

	var result TestResult
	decodeResponse(t, out, &result)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Passed)
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, _, err := execute(t, "test", scenariosDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandMissingPath(t *testing.T) {
	_, _, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

// writeFoldingScenario writes a scenario for the folding document into a
// temp dir and returns its path.
func writeFoldingScenario(t *testing.T, want string) string {
	t.Helper()
	doc, err := filepath.Abs(foldingDocument)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "folding.yaml")
	scenario := fmt.Sprintf(`name: folding_cli
description: "Folding from the CLI"
document: %s
batch_size: 2
passes: [default]
inputs:
  x: [1, -2]
expect:
  outputs:
    y: %s
`, doc, want)
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0644))
	return path
}

func TestTestCommandGolden(t *testing.T) {
	path := writeFoldingScenario(t, "[7, -14]")
	golden := filepath.Join(filepath.Dir(path), "golden", "folding_cli.golden")

	out, _, err := execute(t, "test", path, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ folding_cli (golden updated)")
	require.FileExists(t, golden)

	out, _, err = execute(t, "--format", "json", "test", path)
	require.NoError(t, err)
	var result TestResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "match", result.Scenarios[0].Golden)

	require.NoError(t, os.WriteFile(golden, []byte("stale\n"), 0644))
	out, _, err = execute(t, "test", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "snapshot does not match golden file")
}

func TestTestCommandFailingScenario(t *testing.T) {
	path := writeFoldingScenario(t, "[7, 14]")

	out, _, err := execute(t, "--format", "json", "test", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Scenarios[0].Errors, 1)
	assert.Contains(t, result.Scenarios[0].Errors[0], "output y")
}

func TestTestCommandBrokenScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: broken\n"), 0644))

	out, _, err := execute(t, "test", path)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}
