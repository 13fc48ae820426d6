// Package mask implements IndexMask, the ordered set of batch positions a
// multi-function call is allowed to touch.
//
// A mask is either a contiguous range [start, start+size) or an explicit
// sorted, duplicate-free list of indices. Callers never need to know which
// representation backs a mask; all accessors work on both. Slicing re-lays
// out a sparse mask as a range whenever the selected indices are contiguous.
package mask

import (
	"fmt"
	"slices"
)

// IndexMask is an immutable ordered set of non-negative indices.
//
// The zero value is an empty mask.
type IndexMask struct {
	start   int
	size    int
	indices []int // nil for range masks
}

// Range returns the mask [start, start+size).
func Range(start, size int) IndexMask {
	if start < 0 || size < 0 {
		panic(fmt.Sprintf("mask: invalid range start=%d size=%d", start, size))
	}
	return IndexMask{start: start, size: size}
}

// FromIndices returns a mask over the given indices.
//
// Indices must be non-negative, strictly increasing and free of duplicates;
// anything else is a contract violation and panics. The slice is retained,
// callers must not modify it afterwards.
func FromIndices(indices []int) IndexMask {
	for i, idx := range indices {
		if idx < 0 {
			panic(fmt.Sprintf("mask: negative index %d at position %d", idx, i))
		}
		if i > 0 && indices[i-1] >= idx {
			panic(fmt.Sprintf("mask: indices not strictly increasing at position %d (%d >= %d)", i, indices[i-1], idx))
		}
	}
	return fromSorted(indices)
}

// fromSorted picks the cheapest representation for already validated indices.
func fromSorted(indices []int) IndexMask {
	if len(indices) == 0 {
		return IndexMask{}
	}
	first, last := indices[0], indices[len(indices)-1]
	if last-first+1 == len(indices) {
		return IndexMask{start: first, size: len(indices)}
	}
	return IndexMask{start: first, size: len(indices), indices: indices}
}

// FromBools returns a mask of every position whose flag is set.
func FromBools(flags []bool) IndexMask {
	return FromPredicate(Range(0, len(flags)), func(i int) bool { return flags[i] })
}

// FromPredicate returns the subset of universe for which pred holds.
func FromPredicate(universe IndexMask, pred func(i int) bool) IndexMask {
	var indices []int
	universe.ForEach(func(i int) {
		if pred(i) {
			indices = append(indices, i)
		}
	})
	return fromSorted(indices)
}

// Size returns the number of indices in the mask.
func (m IndexMask) Size() int { return m.size }

// IsEmpty reports whether the mask contains no indices.
func (m IndexMask) IsEmpty() bool { return m.size == 0 }

// IsRange reports whether the mask is a contiguous range.
func (m IndexMask) IsRange() bool { return m.indices == nil }

// AsRange returns the range bounds. It panics if the mask is not a range.
func (m IndexMask) AsRange() (start, size int) {
	if !m.IsRange() {
		panic("mask: AsRange called on a sparse mask")
	}
	return m.start, m.size
}

// Get returns the index at position pos.
func (m IndexMask) Get(pos int) int {
	if pos < 0 || pos >= m.size {
		panic(fmt.Sprintf("mask: position %d out of bounds [0,%d)", pos, m.size))
	}
	if m.indices == nil {
		return m.start + pos
	}
	return m.indices[pos]
}

// First returns the smallest index. It panics on an empty mask.
func (m IndexMask) First() int { return m.Get(0) }

// Last returns the largest index. It panics on an empty mask.
func (m IndexMask) Last() int { return m.Get(m.size - 1) }

// MinArraySize is the length an array needs to hold every masked index.
func (m IndexMask) MinArraySize() int {
	if m.size == 0 {
		return 0
	}
	return m.Last() + 1
}

// Span returns the number of positions between the first and last index,
// inclusive. For a range this equals Size.
func (m IndexMask) Span() int {
	if m.size == 0 {
		return 0
	}
	return m.Last() - m.First() + 1
}

// Density is Size divided by Span, in (0, 1]. An empty mask has density 1.
func (m IndexMask) Density() float64 {
	if m.size == 0 {
		return 1
	}
	return float64(m.size) / float64(m.Span())
}

// ForEach calls fn for every index in increasing order.
func (m IndexMask) ForEach(fn func(i int)) {
	if m.indices == nil {
		for i := m.start; i < m.start+m.size; i++ {
			fn(i)
		}
		return
	}
	for _, i := range m.indices {
		fn(i)
	}
}

// ForEachPos calls fn with every position and its index.
func (m IndexMask) ForEachPos(fn func(pos, i int)) {
	if m.indices == nil {
		for pos := 0; pos < m.size; pos++ {
			fn(pos, m.start+pos)
		}
		return
	}
	for pos, i := range m.indices {
		fn(pos, i)
	}
}

// Indices returns the masked indices as a fresh slice.
func (m IndexMask) Indices() []int {
	out := make([]int, m.size)
	m.ForEachPos(func(pos, i int) { out[pos] = i })
	return out
}

// Contains reports whether i is in the mask.
func (m IndexMask) Contains(i int) bool {
	if m.indices == nil {
		return i >= m.start && i < m.start+m.size
	}
	_, found := slices.BinarySearch(m.indices, i)
	return found
}

// Slice returns the sub-mask of positions [start, start+size).
func (m IndexMask) Slice(start, size int) IndexMask {
	if start < 0 || size < 0 || start+size > m.size {
		panic(fmt.Sprintf("mask: slice [%d,%d) out of bounds [0,%d)", start, start+size, m.size))
	}
	if m.indices == nil {
		return IndexMask{start: m.start + start, size: size}
	}
	return fromSorted(m.indices[start : start+size])
}

// SliceAndOffset slices positions [start, start+size) and subtracts offset
// from every resulting index. Offset must not exceed the first sliced index.
func (m IndexMask) SliceAndOffset(start, size, offset int) IndexMask {
	sliced := m.Slice(start, size)
	if sliced.IsEmpty() {
		return sliced
	}
	if offset > sliced.First() {
		panic(fmt.Sprintf("mask: offset %d larger than first index %d", offset, sliced.First()))
	}
	if sliced.indices == nil {
		return IndexMask{start: sliced.start - offset, size: sliced.size}
	}
	shifted := make([]int, sliced.size)
	for pos, i := range sliced.indices {
		shifted[pos] = i - offset
	}
	return IndexMask{start: shifted[0], size: sliced.size, indices: shifted}
}

// Equal reports whether both masks contain the same indices.
func (m IndexMask) Equal(other IndexMask) bool {
	if m.size != other.size {
		return false
	}
	if m.IsRange() && other.IsRange() {
		return m.size == 0 || m.start == other.start
	}
	for pos := 0; pos < m.size; pos++ {
		if m.Get(pos) != other.Get(pos) {
			return false
		}
	}
	return true
}

// String renders small masks fully and large masks as a summary.
func (m IndexMask) String() string {
	if m.IsRange() {
		return fmt.Sprintf("[%d..%d)", m.start, m.start+m.size)
	}
	if m.size <= 16 {
		return fmt.Sprint(m.indices)
	}
	return fmt.Sprintf("{%d indices in [%d..%d]}", m.size, m.First(), m.Last())
}
