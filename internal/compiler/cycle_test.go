package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mfnet/internal/ir"
)

func chain(links ...[2]string) *ir.Document {
	doc := &ir.Document{Name: "g"}
	seen := make(map[string]bool)
	for _, l := range links {
		for _, id := range l {
			if !seen[id] {
				seen[id] = true
				doc.Nodes = append(doc.Nodes, ir.NodeSpec{ID: id, Type: "t"})
			}
		}
		doc.Links = append(doc.Links, ir.LinkSpec{From: ir.Ref(l[0], "out"), To: ir.Ref(l[1], "in")})
	}
	return doc
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	doc := chain([2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"a", "c"})
	assert.Empty(t, AnalyzeCycles(doc))
	assert.Empty(t, AnalyzeCycles(&ir.Document{}))
}

func TestAnalyzeCycles_ThreeNodeCycle(t *testing.T) {
	doc := chain([2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"c", "a"}, [2]string{"c", "d"})

	warnings := AnalyzeCycles(doc)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "b", "c", "a"}, warnings[0].Path)
	assert.Equal(t, "cycle detected: a -> b -> c -> a", warnings[0].Message)
	assert.Equal(t, "warning", warnings[0].Level)
}

func TestAnalyzeCycles_SelfLoop(t *testing.T) {
	doc := chain([2]string{"a", "a"})

	warnings := AnalyzeCycles(doc)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "a"}, warnings[0].Path)
}

func TestAnalyzeCycles_IgnoresBoundaryAndMalformed(t *testing.T) {
	doc := chain([2]string{"a", "b"})
	doc.Links = append(doc.Links,
		ir.LinkSpec{From: "inputs.x", To: "a.in"},
		ir.LinkSpec{From: "b.out", To: "outputs.y"},
		ir.LinkSpec{From: "broken", To: "a.in"},
	)
	assert.Empty(t, AnalyzeCycles(doc))
}

func TestAnalyzeCycles_TwoIndependentCycles(t *testing.T) {
	doc := chain([2]string{"a", "b"}, [2]string{"b", "a"}, [2]string{"c", "d"}, [2]string{"d", "c"})

	warnings := AnalyzeCycles(doc)
	require.Len(t, warnings, 2)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
	assert.Equal(t, []string{"c", "d", "c"}, warnings[1].Path)
}
