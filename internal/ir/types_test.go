package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketRefSplit(t *testing.T) {
	tests := []struct {
		ref        SocketRef
		node, sock string
		wantErr    bool
	}{
		{ref: "mul.a", node: "mul", sock: "a"},
		{ref: "inputs.x", node: "inputs", sock: "x"},
		{ref: "vec.item.0", node: "vec", sock: "item.0"},
		{ref: "mul", wantErr: true},
		{ref: ".a", wantErr: true},
		{ref: "mul.", wantErr: true},
		{ref: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.ref), func(t *testing.T) {
			node, sock, err := tt.ref.Split()
			if tt.wantErr {
				assert.ErrorContains(t, err, "malformed socket reference")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.node, node)
			assert.Equal(t, tt.sock, sock)
		})
	}
	assert.Equal(t, SocketRef("mul.result"), Ref("mul", "result"))
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	doc := sampleDocument()

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"nodes"`)
	assert.Contains(t, string(data), `"from":"inputs.x"`)
	assert.NotContains(t, string(data), `"Params"`)

	var back Document
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, MustDocumentHash(doc), MustDocumentHash(&back))
}

func TestDocumentNode(t *testing.T) {
	doc := sampleDocument()

	n, ok := doc.Node("k")
	require.True(t, ok)
	assert.Equal(t, "value.float", n.Type)

	_, ok = doc.Node("missing")
	assert.False(t, ok)
}

func TestDocumentIR(t *testing.T) {
	obj := sampleDocument().IR()
	assert.Equal(t, []string{"inputs", "ir_version", "links", "name", "nodes", "outputs"}, obj.SortedKeys())
	assert.Equal(t, IRString(IRVersion), obj["ir_version"])
	assert.Len(t, obj["links"], 3)
}
