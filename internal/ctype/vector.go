package ctype

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/roach88/mfnet/internal/mask"
)

// VectorArray owns n independently growable vectors of one element type.
// It backs Vector-category output and mutable parameters.
type VectorArray struct {
	typ     *Type
	vectors []vectorSlot
}

type vectorSlot struct {
	store *Array // capacity
	len   int
}

// NewVectorArray creates n empty vectors.
func NewVectorArray(t *Type, n int) *VectorArray {
	return &VectorArray{typ: t, vectors: make([]vectorSlot, n)}
}

// Type implements Buffer.
func (va *VectorArray) Type() *Type { return va.typ }

// Len returns the number of vectors.
func (va *VectorArray) Len() int { return len(va.vectors) }

// VectorLen returns the length of vector i.
func (va *VectorArray) VectorLen(i int) int { return va.slot(i).len }

// Get returns a read-only view of vector i.
func (va *VectorArray) Get(i int) Span {
	s := va.slot(i)
	if s.len == 0 {
		return Span{typ: va.typ}
	}
	return Span{typ: va.typ, data: s.store.data, size: s.len}
}

// Append copies the value at p onto the end of vector i.
func (va *VectorArray) Append(i int, p unsafe.Pointer) {
	s := va.slot(i)
	va.reserve(s, s.len+1)
	va.typ.CopyToUninitialized(p, s.store.Ptr(s.len))
	s.len++
}

// Extend appends every element of values to vector i.
func (va *VectorArray) Extend(i int, values Span) {
	if values.typ != va.typ {
		panic(fmt.Sprintf("ctype: extend %s vector with %s values", va.typ.name, values.typ.name))
	}
	if values.size == 0 {
		return
	}
	s := va.slot(i)
	va.reserve(s, s.len+values.size)
	for k := 0; k < values.size; k++ {
		va.typ.CopyToUninitialized(values.Get(k), s.store.Ptr(s.len+k))
	}
	s.len += values.size
}

// ExtendIndices extends every masked vector i with the matching vector of src.
func (va *VectorArray) ExtendIndices(m mask.IndexMask, src VVectorArray) {
	m.ForEach(func(i int) { va.Extend(i, src.Get(i)) })
}

// Clear empties vector i.
func (va *VectorArray) Clear(i int) {
	s := va.slot(i)
	if s.len > 0 {
		va.typ.DestructIndices(s.store.data, mask.Range(0, s.len))
	}
	s.len = 0
}

func (va *VectorArray) slot(i int) *vectorSlot {
	if i < 0 || i >= len(va.vectors) {
		panic(fmt.Sprintf("ctype: vector index %d out of bounds [0,%d)", i, len(va.vectors)))
	}
	return &va.vectors[i]
}

func (va *VectorArray) reserve(s *vectorSlot, capacity int) {
	current := 0
	if s.store != nil {
		current = s.store.size
	}
	if capacity <= current {
		return
	}
	newCap := max(capacity, current*2, 4)
	grown := NewArrayUninitialized(va.typ, newCap)
	if s.len > 0 {
		va.typ.RelocateToUninitializedIndices(s.store.data, grown.data, mask.Range(0, s.len))
	}
	s.store = grown
}

// Clone implements Buffer.
func (va *VectorArray) Clone() Buffer {
	c := NewVectorArray(va.typ, len(va.vectors))
	for i := range va.vectors {
		c.Extend(i, va.Get(i))
	}
	return c
}

// Release implements Buffer.
func (va *VectorArray) Release() {
	for i := range va.vectors {
		va.Clear(i)
		va.vectors[i].store = nil
	}
	va.vectors = nil
}

// String renders every vector.
func (va *VectorArray) String() string {
	parts := make([]string, len(va.vectors))
	for i := range va.vectors {
		parts[i] = va.Get(i).String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// VVectorArray is a read-only view of n vectors, backed either by a
// VectorArray or by one vector broadcast to every index.
type VVectorArray struct {
	typ      *Type
	size     int
	vectors  *VectorArray
	single   Span
	isSingle bool
}

// VVectorArrayFor views every vector of va.
func VVectorArrayFor(va *VectorArray) VVectorArray {
	return VVectorArray{typ: va.typ, size: va.Len(), vectors: va}
}

// VVectorArrayForSingle views one vector broadcast to n indices.
func VVectorArrayForSingle(values Span, n int) VVectorArray {
	return VVectorArray{typ: values.typ, size: n, single: values, isSingle: true}
}

// Type returns the element type.
func (v VVectorArray) Type() *Type { return v.typ }

// Len returns the number of vectors.
func (v VVectorArray) Len() int { return v.size }

// IsSingle reports whether every index sees the same vector.
func (v VVectorArray) IsSingle() bool { return v.isSingle }

// Get returns vector i.
func (v VVectorArray) Get(i int) Span {
	if i < 0 || i >= v.size {
		panic(fmt.Sprintf("ctype: vector index %d out of bounds [0,%d)", i, v.size))
	}
	if v.isSingle {
		return v.single
	}
	return v.vectors.Get(i)
}
