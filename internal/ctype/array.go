package ctype

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/roach88/mfnet/internal/mask"
)

// Buffer is an owned, type-erased value container. The evaluator moves
// buffers between sockets without knowing which kind backs them.
type Buffer interface {
	// Type returns the element type.
	Type() *Type
	// Clone returns an independent deep copy.
	Clone() Buffer
	// Release destructs all held values. The buffer must not be used afterwards.
	Release()
}

// Array owns n contiguous values of one type.
//
// The backing store is allocated with reflect.MakeSlice so the garbage
// collector knows the element layout; data points at its first element.
type Array struct {
	typ     *Type
	backing reflect.Value
	data    unsafe.Pointer
	size    int
}

// NewArray allocates n default-constructed values.
func NewArray(t *Type, n int) *Array {
	a := NewArrayUninitialized(t, n)
	if n > 0 {
		t.ConstructDefaultIndices(a.data, mask.Range(0, n))
	}
	return a
}

// NewArrayUninitialized allocates n zeroed values. Callers are expected to
// construct every slot they later read.
func NewArrayUninitialized(t *Type, n int) *Array {
	if n < 0 {
		panic(fmt.Sprintf("ctype: negative array length %d", n))
	}
	backing := reflect.MakeSlice(reflect.SliceOf(t.rtype), n, n)
	a := &Array{typ: t, backing: backing, size: n}
	if n > 0 {
		a.data = backing.Index(0).Addr().UnsafePointer()
	}
	return a
}

// FromSlice copies values into a new array of type t. The Go element type
// must match the descriptor.
func FromSlice[T any](t *Type, values []T) *Array {
	checkGoType[T](t)
	a := NewArrayUninitialized(t, len(values))
	copy(Values[T](a), values)
	return a
}

// Values returns the typed contents of a. The slice aliases the array.
func Values[T any](a *Array) []T {
	checkGoType[T](a.typ)
	return elems[T](a.data, a.size)
}

func checkGoType[T any](t *Type) {
	if rt := reflect.TypeFor[T](); rt != t.rtype {
		panic(fmt.Sprintf("ctype: Go type %s does not match descriptor %s (%s)", rt, t.name, t.rtype))
	}
}

// Type returns the element type.
func (a *Array) Type() *Type { return a.typ }

// Len returns the number of elements.
func (a *Array) Len() int { return a.size }

// Data returns a pointer to the first element, or nil for empty arrays.
func (a *Array) Data() unsafe.Pointer { return a.data }

// Ptr returns a pointer to element i.
func (a *Array) Ptr(i int) unsafe.Pointer {
	if i < 0 || i >= a.size {
		panic(fmt.Sprintf("ctype: index %d out of bounds [0,%d)", i, a.size))
	}
	return unsafe.Add(a.data, uintptr(i)*a.typ.size)
}

// Span returns a read-only view of the whole array.
func (a *Array) Span() Span { return Span{typ: a.typ, data: a.data, size: a.size} }

// MutableSpan returns a mutable view of the whole array.
func (a *Array) MutableSpan() MutableSpan { return MutableSpan{Span: a.Span()} }

// Clone implements Buffer.
func (a *Array) Clone() Buffer {
	c := NewArrayUninitialized(a.typ, a.size)
	if a.size > 0 {
		a.typ.CopyToUninitializedIndices(a.data, c.data, mask.Range(0, a.size))
	}
	return c
}

// Release implements Buffer.
func (a *Array) Release() {
	if a.size > 0 {
		a.typ.DestructIndices(a.data, mask.Range(0, a.size))
	}
	a.data = nil
	a.size = 0
	a.backing = reflect.Value{}
}

// String renders the array contents for debugging.
func (a *Array) String() string {
	return a.Span().String()
}

// SingleValue owns one value that is logically broadcast to any batch length.
type SingleValue struct {
	arr *Array
}

// NewSingleValue allocates a default-constructed single value.
func NewSingleValue(t *Type) *SingleValue {
	return &SingleValue{arr: NewArray(t, 1)}
}

// SingleOf wraps v as a single value of type t.
func SingleOf[T any](t *Type, v T) *SingleValue {
	return &SingleValue{arr: FromSlice(t, []T{v})}
}

// SingleFromPtr copies the value at p into a new single value.
func SingleFromPtr(t *Type, p unsafe.Pointer) *SingleValue {
	s := &SingleValue{arr: NewArrayUninitialized(t, 1)}
	t.CopyToUninitialized(p, s.arr.data)
	return s
}

// Type implements Buffer.
func (s *SingleValue) Type() *Type { return s.arr.typ }

// Ptr returns a pointer to the held value.
func (s *SingleValue) Ptr() unsafe.Pointer { return s.arr.data }

// VArray views the value broadcast to n elements.
func (s *SingleValue) VArray(n int) VArray { return VArrayForSingle(s.arr.typ, s.arr.data, n) }

// Clone implements Buffer.
func (s *SingleValue) Clone() Buffer { return &SingleValue{arr: s.arr.Clone().(*Array)} }

// Release implements Buffer.
func (s *SingleValue) Release() { s.arr.Release() }

// String renders the held value.
func (s *SingleValue) String() string { return s.arr.typ.Format(s.arr.data) }

// Get returns the typed value held by s.
func Get[T any](s *SingleValue) T {
	return Values[T](s.arr)[0]
}
