package ctype

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/roach88/mfnet/internal/mask"
)

// Span is a read-only, non-owning view of contiguous values.
type Span struct {
	typ  *Type
	data unsafe.Pointer
	size int
}

// NewSpan views n values starting at data.
func NewSpan(t *Type, data unsafe.Pointer, n int) Span {
	if n < 0 {
		panic(fmt.Sprintf("ctype: negative span length %d", n))
	}
	t.checkBuffer(data, n)
	return Span{typ: t, data: data, size: n}
}

// Type returns the element type.
func (s Span) Type() *Type { return s.typ }

// Len returns the number of elements.
func (s Span) Len() int { return s.size }

// IsEmpty reports whether the span has no elements.
func (s Span) IsEmpty() bool { return s.size == 0 }

// Data returns the pointer to the first element.
func (s Span) Data() unsafe.Pointer { return s.data }

// Get returns a pointer to element i. The value must not be modified.
func (s Span) Get(i int) unsafe.Pointer {
	if i < 0 || i >= s.size {
		panic(fmt.Sprintf("ctype: index %d out of bounds [0,%d)", i, s.size))
	}
	return unsafe.Add(s.data, uintptr(i)*s.typ.size)
}

// Slice returns the sub-span [start, start+n).
func (s Span) Slice(start, n int) Span {
	if start < 0 || n < 0 || start+n > s.size {
		panic(fmt.Sprintf("ctype: slice [%d,%d) out of bounds [0,%d)", start, start+n, s.size))
	}
	if n == 0 {
		return Span{typ: s.typ}
	}
	return Span{typ: s.typ, data: unsafe.Add(s.data, uintptr(start)*s.typ.size), size: n}
}

// String renders the span contents.
func (s Span) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < s.size; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.typ.Format(s.Get(i)))
	}
	b.WriteByte(']')
	return b.String()
}

// SpanValues returns the typed contents of s. The slice aliases the span.
func SpanValues[T any](s Span) []T {
	checkGoType[T](s.typ)
	return elems[T](s.data, s.size)
}

// MutableSpan is a mutable, non-owning view of contiguous values.
type MutableSpan struct {
	Span
}

// NewMutableSpan views n mutable values starting at data.
func NewMutableSpan(t *Type, data unsafe.Pointer, n int) MutableSpan {
	return MutableSpan{Span: NewSpan(t, data, n)}
}

// Slice returns the mutable sub-span [start, start+n).
func (s MutableSpan) Slice(start, n int) MutableSpan {
	return MutableSpan{Span: s.Span.Slice(start, n)}
}

// MutableValues returns the typed contents of s for writing.
func MutableValues[T any](s MutableSpan) []T {
	return SpanValues[T](s.Span)
}

// VArray is a read-only view of n elements backed either by a span or by a
// single value broadcast to every index. Call sites must not assume which.
type VArray struct {
	typ      *Type
	size     int
	data     unsafe.Pointer
	isSingle bool
}

// VArrayForSpan views a span.
func VArrayForSpan(s Span) VArray {
	return VArray{typ: s.typ, size: s.size, data: s.data}
}

// VArrayForSingle views the value at p broadcast to n elements.
func VArrayForSingle(t *Type, p unsafe.Pointer, n int) VArray {
	if p == nil {
		panic("ctype: nil single value")
	}
	t.checkBuffer(p, 1)
	return VArray{typ: t, size: n, data: p, isSingle: true}
}

// Type returns the element type.
func (v VArray) Type() *Type { return v.typ }

// Len returns the logical number of elements.
func (v VArray) Len() int { return v.size }

// IsSingle reports whether every element is the same broadcast value.
func (v VArray) IsSingle() bool { return v.isSingle }

// Single returns the broadcast value, if v is backed by one.
func (v VArray) Single() (unsafe.Pointer, bool) {
	if !v.isSingle {
		return nil, false
	}
	return v.data, true
}

// Get returns a pointer to element i. The value must not be modified.
func (v VArray) Get(i int) unsafe.Pointer {
	if i < 0 || i >= v.size {
		panic(fmt.Sprintf("ctype: index %d out of bounds [0,%d)", i, v.size))
	}
	if v.isSingle {
		return v.data
	}
	return unsafe.Add(v.data, uintptr(i)*v.typ.size)
}

// Slice returns a view of [start, start+n).
func (v VArray) Slice(start, n int) VArray {
	if start < 0 || n < 0 || start+n > v.size {
		panic(fmt.Sprintf("ctype: slice [%d,%d) out of bounds [0,%d)", start, start+n, v.size))
	}
	if v.isSingle {
		return VArray{typ: v.typ, size: n, data: v.data, isSingle: true}
	}
	return VArrayForSpan(Span{typ: v.typ, data: v.data, size: v.size}.Slice(start, n))
}

// MaterializeToUninitialized copies every masked element into dst at the
// same index.
func (v VArray) MaterializeToUninitialized(m mask.IndexMask, dst unsafe.Pointer) {
	v.checkMask(m)
	if v.isSingle {
		v.typ.FillUninitializedIndices(v.data, dst, m)
		return
	}
	v.typ.CopyToUninitializedIndices(v.data, dst, m)
}

// MaterializeCompressedToUninitialized copies element m[k] into dst[k].
func (v VArray) MaterializeCompressedToUninitialized(m mask.IndexMask, dst unsafe.Pointer) {
	v.checkMask(m)
	if v.isSingle {
		v.typ.FillUninitializedIndices(v.data, dst, mask.Range(0, m.Size()))
		return
	}
	v.typ.CopyToUninitializedCompressed(v.data, dst, m)
}

func (v VArray) checkMask(m mask.IndexMask) {
	if m.MinArraySize() > v.size {
		panic(fmt.Sprintf("ctype: mask needs %d elements, varray has %d", m.MinArraySize(), v.size))
	}
}

// VArrayGet returns element i of v as T.
func VArrayGet[T any](v VArray, i int) T {
	checkGoType[T](v.typ)
	return *(*T)(v.Get(i))
}

// VArrayReader returns a typed accessor for the elements of v.
func VArrayReader[T any](v VArray) func(i int) T {
	checkGoType[T](v.typ)
	if v.isSingle {
		val := *(*T)(v.data)
		return func(int) T { return val }
	}
	vals := elems[T](v.data, v.size)
	return func(i int) T { return vals[i] }
}
