package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioFiles(t *testing.T) {
	files, err := ScenarioFiles(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.Len(t, files, 5)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "folding.yaml"), files[0])

	single := filepath.Join("testdata", "scenarios", "placeholder.yaml")
	files, err = ScenarioFiles(single)
	require.NoError(t, err)
	assert.Equal(t, []string{single}, files)

	_, err = ScenarioFiles(filepath.Join("testdata", "nope"))
	assert.Error(t, err)
}

func TestRunSuite(t *testing.T) {
	files, err := ScenarioFiles(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	broken := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("name: broken\n"), 0644))
	files = append(files, broken)

	result, err := New(standardLibrary(), nil).RunSuite(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 6, result.TotalScenarios)
	assert.Equal(t, 5, result.Passed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, broken, result.Failures[0].ScenarioPath)
	assert.Contains(t, result.Failures[0].Error, "failed to load scenario")
}

func TestRunSuite_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(standardLibrary(), nil).RunSuite(ctx, []string{"a.yaml"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.TotalScenarios)
}
