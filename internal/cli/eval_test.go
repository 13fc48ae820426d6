package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mfnet/internal/parallel"
)

func TestEvalText(t *testing.T) {
	out, _, err := execute(t, "eval", scaleDocument,
		"--inputs", `{"x": [1, 2, 3]}`,
		"--batch", "3",
		"--context", "offset:float32=0.5")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ scale evaluated (batch 3")
	assert.Contains(t, out, "y = [2.5,4.5,6.5]")
}

func TestEvalJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "eval", foldingDocument,
		"--inputs", `{"x": [1, -2]}`,
		"--batch", "2",
		"--passes", "default")
	require.NoError(t, err)

	var result struct {
		Document string             `json:"document"`
		RunID    string             `json:"run_id"`
		Outputs  map[string][]int64 `json:"outputs"`
	}
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "folding", result.Document)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, map[string][]int64{"y": {7, -14}}, result.Outputs)
}

func TestEvalPlaceholderWarnings(t *testing.T) {
	out, _, err := execute(t, "eval", unknownDocument, "--inputs", "x: 2")
	require.NoError(t, err)
	assert.Contains(t, out, "Placeholder:")
	assert.Contains(t, out, "y = [2]")
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exitCode int
		code     string
	}{
		{
			name:     "missing document",
			args:     []string{"eval", filepath.Join(t.TempDir(), "missing.yaml")},
			exitCode: ExitCommandError,
			code:     ErrCodeNotFound,
		},
		{
			name:     "bad inputs",
			args:     []string{"eval", scaleDocument, "--inputs", "[1]"},
			exitCode: ExitCommandError,
			code:     ErrCodeInput,
		},
		{
			name:     "bad context",
			args:     []string{"eval", scaleDocument, "--context", "offset=1"},
			exitCode: ExitCommandError,
			code:     ErrCodeInput,
		},
		{
			name:     "bad mode",
			args:     []string{"eval", scaleDocument, "--mode", "lenient"},
			exitCode: ExitCommandError,
			code:     ErrCodeInput,
		},
		{
			name:     "unknown pass",
			args:     []string{"eval", scaleDocument, "--passes", "inline"},
			exitCode: ExitCommandError,
			code:     ErrCodeInput,
		},
		{
			name:     "missing input value",
			args:     []string{"eval", scaleDocument},
			exitCode: ExitFailure,
			code:     ErrCodeEval,
		},
		{
			name:     "strict mapping",
			args:     []string{"eval", unknownDocument, "--inputs", "x: 1", "--mode", "strict"},
			exitCode: ExitFailure,
			code:     ErrCodeMapping,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))

			resp := decodeResponse(t, out, nil)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestEvalRecordsRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "mfnet.db")

	for range 2 {
		_, _, err := execute(t, "eval", scaleDocument,
			"--inputs", "x: 1",
			"--context", "offset:float32=1",
			"--db", db)
		require.NoError(t, err)
	}

	out, _, err := execute(t, "--format", "json", "trace", "list", "--db", db)
	require.NoError(t, err)
	var runs []RunSummary
	decodeResponse(t, out, &runs)
	require.Len(t, runs, 2)
	assert.Equal(t, runs[0].DocumentHash, runs[1].DocumentHash)
	assert.Equal(t, runs[0].OutputsHash, runs[1].OutputsHash)
	assert.Greater(t, runs[0].FirstSeq, runs[1].LastSeq, "newest first, seqs continue across runs")
	for _, r := range runs {
		assert.Equal(t, parallel.DefaultThreads(), r.Threads, "default --threads records GOMAXPROCS")
	}
}
