package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizeText(t *testing.T) {
	out, _, err := execute(t, "optimize", scaleDocument)
	require.NoError(t, err)

	assert.Contains(t, out, "Document: scale")
	assert.Contains(t, out, "=== Passes ===")
	assert.Contains(t, out, "dead-nodes")
	assert.Contains(t, out, "nodes 6, links 5")
	assert.NotContains(t, out, "negate float32", "dead node removed")
}

func TestOptimizeNoPasses(t *testing.T) {
	out, _, err := execute(t, "optimize", scaleDocument, "--passes", "none")
	require.NoError(t, err)
	assert.Contains(t, out, "(none)")
	assert.Contains(t, out, `"negate float32"`)
}

func TestOptimizeJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "optimize", foldingDocument)
	require.NoError(t, err)

	var result OptimizeResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "folding", result.Document)
	require.Len(t, result.Passes, 4)
	assert.Equal(t, "constant-folding", result.Passes[1].Pass)
	assert.Positive(t, result.Passes[1].Changed)
	assert.NotContains(t, result.Network, `"add int32"`, "constant sum folded")
}

func TestOptimizeDot(t *testing.T) {
	out, _, err := execute(t, "optimize", scaleDocument, "--dot")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "digraph network {"), out)
}

func TestOptimizeStrictUnknown(t *testing.T) {
	_, _, err := execute(t, "optimize", unknownDocument, "--mode", "strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeMapping)
}
