package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRangeMask(t *testing.T) {
	m := Range(3, 4)

	assert.True(t, m.IsRange())
	assert.Equal(t, 4, m.Size())
	assert.Equal(t, 3, m.First())
	assert.Equal(t, 6, m.Last())
	assert.Equal(t, 7, m.MinArraySize())
	assert.Equal(t, []int{3, 4, 5, 6}, m.Indices())
	assert.True(t, m.Contains(5))
	assert.False(t, m.Contains(7))
	assert.Equal(t, 1.0, m.Density())
}

func TestEmptyMask(t *testing.T) {
	var m IndexMask

	assert.True(t, m.IsEmpty())
	assert.Equal(t, 0, m.MinArraySize())
	assert.Equal(t, 0, m.Span())
	calls := 0
	m.ForEach(func(int) { calls++ })
	assert.Zero(t, calls)
}

func TestFromIndicesContiguousBecomesRange(t *testing.T) {
	m := FromIndices([]int{5, 6, 7})

	assert.True(t, m.IsRange(), "contiguous indices should be stored as a range")
	start, size := m.AsRange()
	assert.Equal(t, 5, start)
	assert.Equal(t, 3, size)
}

func TestFromIndicesSparse(t *testing.T) {
	m := FromIndices([]int{1, 4, 9})

	assert.False(t, m.IsRange())
	assert.Equal(t, 9, m.Span())
	assert.InDelta(t, 3.0/9.0, m.Density(), 1e-9)
	assert.True(t, m.Contains(4))
	assert.False(t, m.Contains(5))
	assert.Panics(t, func() { m.AsRange() })
}

func TestFromIndicesRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		indices []int
	}{
		{"unsorted", []int{3, 1}},
		{"duplicate", []int{2, 2}},
		{"negative", []int{-1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() { FromIndices(tt.indices) })
		})
	}
}

func TestFromBoolsAndPredicate(t *testing.T) {
	m := FromBools([]bool{true, false, true, true})
	assert.Equal(t, []int{0, 2, 3}, m.Indices())

	even := FromPredicate(Range(0, 10), func(i int) bool { return i%2 == 0 })
	assert.Equal(t, []int{0, 2, 4, 6, 8}, even.Indices())
}

func TestSlice(t *testing.T) {
	t.Run("range stays range", func(t *testing.T) {
		s := Range(10, 10).Slice(2, 3)
		assert.True(t, s.IsRange())
		assert.Equal(t, []int{12, 13, 14}, s.Indices())
	})

	t.Run("sparse slice re-laid out as range", func(t *testing.T) {
		m := FromIndices([]int{1, 5, 6, 7, 20})
		s := m.Slice(1, 3)
		assert.True(t, s.IsRange())
		assert.Equal(t, []int{5, 6, 7}, s.Indices())
	})

	t.Run("out of bounds panics", func(t *testing.T) {
		assert.Panics(t, func() { Range(0, 3).Slice(2, 2) })
	})
}

func TestSliceAndOffset(t *testing.T) {
	m := FromIndices([]int{100, 102, 103, 110})

	s := m.SliceAndOffset(1, 3, 102)
	assert.Equal(t, []int{0, 1, 8}, s.Indices())

	r := Range(50, 10).SliceAndOffset(5, 5, 55)
	require.True(t, r.IsRange())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, r.Indices())

	assert.Panics(t, func() { m.SliceAndOffset(0, 2, 101) })
}

func TestEqual(t *testing.T) {
	assert.True(t, Range(2, 3).Equal(FromIndices([]int{2, 3, 4})))
	assert.False(t, Range(2, 3).Equal(FromIndices([]int{2, 3, 5})))
	assert.True(t, IndexMask{}.Equal(Range(7, 0)))
}

func TestForEachPos(t *testing.T) {
	m := FromIndices([]int{3, 8})
	var got [][2]int
	m.ForEachPos(func(pos, i int) { got = append(got, [2]int{pos, i}) })
	assert.Equal(t, [][2]int{{0, 3}, {1, 8}}, got)
}
