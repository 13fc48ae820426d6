package ctype

import (
	"fmt"
	"hash/maphash"
	"reflect"
	"unsafe"

	"github.com/roach88/mfnet/internal/mask"
)

// Type is an immutable runtime descriptor of a value type.
//
// Descriptors are created by Register or RegisterComparable and owned by a
// Registry. Compare descriptors by pointer.
type Type struct {
	name                  string
	rtype                 reflect.Type
	size                  uintptr
	alignment             uintptr
	triviallyDestructible bool
	hasEquality           bool
	ops                   typeOps
}

// typeOps is implemented by opsFor[T] for every registered T.
type typeOps interface {
	constructDefault(dst unsafe.Pointer, m mask.IndexMask)
	destruct(p unsafe.Pointer, m mask.IndexMask)
	copy(src, dst unsafe.Pointer, m mask.IndexMask)
	copyCompressed(src, dst unsafe.Pointer, m mask.IndexMask)
	relocate(src, dst unsafe.Pointer, m mask.IndexMask)
	relocateScattered(src, dst unsafe.Pointer, m mask.IndexMask)
	fill(value, dst unsafe.Pointer, m mask.IndexMask)
	equal(a, b unsafe.Pointer) bool
	hash(p unsafe.Pointer) uint64
	format(p unsafe.Pointer) string
}

// Name returns the registered name, e.g. "float32".
func (t *Type) Name() string { return t.name }

// Size returns the size of one element in bytes.
func (t *Type) Size() uintptr { return t.size }

// Alignment returns the required alignment of one element in bytes.
func (t *Type) Alignment() uintptr { return t.alignment }

// IsTriviallyDestructible reports whether the type holds no references, in
// which case Destruct is a no-op.
func (t *Type) IsTriviallyDestructible() bool { return t.triviallyDestructible }

// HasEquality reports whether IsEqual and Hash are available.
func (t *Type) HasEquality() bool { return t.hasEquality }

// GoType returns the reflected Go type behind the descriptor.
func (t *Type) GoType() reflect.Type { return t.rtype }

// String implements fmt.Stringer.
func (t *Type) String() string { return t.name }

// ConstructDefault writes the default value into dst.
func (t *Type) ConstructDefault(dst unsafe.Pointer) {
	t.ops.constructDefault(dst, single)
}

// ConstructDefaultIndices writes the default value at every masked index of dst.
func (t *Type) ConstructDefaultIndices(dst unsafe.Pointer, m mask.IndexMask) {
	t.checkBuffer(dst, m.MinArraySize())
	t.ops.constructDefault(dst, m)
}

// Destruct releases the value at p. Trivially destructible types are untouched.
func (t *Type) Destruct(p unsafe.Pointer) {
	if t.triviallyDestructible {
		return
	}
	t.ops.destruct(p, single)
}

// DestructIndices releases every masked value of p.
func (t *Type) DestructIndices(p unsafe.Pointer, m mask.IndexMask) {
	if t.triviallyDestructible {
		return
	}
	t.checkBuffer(p, m.MinArraySize())
	t.ops.destruct(p, m)
}

// CopyToInitialized assigns *src to the live value *dst.
func (t *Type) CopyToInitialized(src, dst unsafe.Pointer) {
	t.ops.copy(src, dst, single)
}

// CopyToUninitialized constructs *dst as a copy of *src.
func (t *Type) CopyToUninitialized(src, dst unsafe.Pointer) {
	t.ops.copy(src, dst, single)
}

// CopyToInitializedIndices copies every masked index from src to dst.
func (t *Type) CopyToInitializedIndices(src, dst unsafe.Pointer, m mask.IndexMask) {
	t.checkBuffer(src, m.MinArraySize())
	t.checkBuffer(dst, m.MinArraySize())
	t.ops.copy(src, dst, m)
}

// CopyToUninitializedIndices copies every masked index from src to dst.
func (t *Type) CopyToUninitializedIndices(src, dst unsafe.Pointer, m mask.IndexMask) {
	t.CopyToInitializedIndices(src, dst, m)
}

// CopyToUninitializedCompressed gathers src[m[k]] into dst[k].
func (t *Type) CopyToUninitializedCompressed(src, dst unsafe.Pointer, m mask.IndexMask) {
	t.checkBuffer(src, m.MinArraySize())
	t.checkBuffer(dst, m.Size())
	t.ops.copyCompressed(src, dst, m)
}

// RelocateToInitialized moves *src into the live value *dst and destructs *src.
func (t *Type) RelocateToInitialized(src, dst unsafe.Pointer) {
	t.ops.relocate(src, dst, single)
}

// RelocateToUninitialized moves *src into *dst and destructs *src.
func (t *Type) RelocateToUninitialized(src, dst unsafe.Pointer) {
	t.ops.relocate(src, dst, single)
}

// RelocateToUninitializedIndices moves every masked index from src to dst.
func (t *Type) RelocateToUninitializedIndices(src, dst unsafe.Pointer, m mask.IndexMask) {
	t.checkBuffer(src, m.MinArraySize())
	t.checkBuffer(dst, m.MinArraySize())
	t.ops.relocate(src, dst, m)
}

// RelocateToUninitializedScattered moves src[k] into dst[m[k]]. It is the
// inverse of CopyToUninitializedCompressed.
func (t *Type) RelocateToUninitializedScattered(src, dst unsafe.Pointer, m mask.IndexMask) {
	t.checkBuffer(src, m.Size())
	t.checkBuffer(dst, m.MinArraySize())
	t.ops.relocateScattered(src, dst, m)
}

// FillUninitializedIndices copies *value into every masked index of dst.
func (t *Type) FillUninitializedIndices(value, dst unsafe.Pointer, m mask.IndexMask) {
	t.checkBuffer(dst, m.MinArraySize())
	t.ops.fill(value, dst, m)
}

// IsEqual compares two values. It panics if the type has no equality.
func (t *Type) IsEqual(a, b unsafe.Pointer) bool {
	if !t.hasEquality {
		panic(fmt.Sprintf("ctype: type %s has no equality", t.name))
	}
	return t.ops.equal(a, b)
}

// Hash hashes a value. It panics if the type has no equality.
func (t *Type) Hash(p unsafe.Pointer) uint64 {
	if !t.hasEquality {
		panic(fmt.Sprintf("ctype: type %s has no equality", t.name))
	}
	return t.ops.hash(p)
}

// Format renders the value at p for debugging output.
func (t *Type) Format(p unsafe.Pointer) string {
	return t.ops.format(p)
}

// checkBuffer enforces the buffer contract for n elements at p.
func (t *Type) checkBuffer(p unsafe.Pointer, n int) {
	if n == 0 {
		return
	}
	if p == nil {
		panic(fmt.Sprintf("ctype: nil %s buffer with %d elements", t.name, n))
	}
	if uintptr(p)%t.alignment != 0 {
		panic(fmt.Sprintf("ctype: %s buffer %p violates alignment %d", t.name, p, t.alignment))
	}
}

var single = mask.Range(0, 1)

// opsFor implements typeOps for one concrete Go type.
type opsFor[T any] struct {
	def  T
	eq   func(a, b *T) bool
	hsh  func(v *T) uint64
	seed maphash.Seed
}

func elems[T any](p unsafe.Pointer, n int) []T {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(p), n)
}

func (o *opsFor[T]) constructDefault(dst unsafe.Pointer, m mask.IndexMask) {
	d := elems[T](dst, m.MinArraySize())
	m.ForEach(func(i int) { d[i] = o.def })
}

func (o *opsFor[T]) destruct(p unsafe.Pointer, m mask.IndexMask) {
	d := elems[T](p, m.MinArraySize())
	var zero T
	m.ForEach(func(i int) { d[i] = zero })
}

func (o *opsFor[T]) copy(src, dst unsafe.Pointer, m mask.IndexMask) {
	n := m.MinArraySize()
	s, d := elems[T](src, n), elems[T](dst, n)
	m.ForEach(func(i int) { d[i] = s[i] })
}

func (o *opsFor[T]) copyCompressed(src, dst unsafe.Pointer, m mask.IndexMask) {
	s, d := elems[T](src, m.MinArraySize()), elems[T](dst, m.Size())
	m.ForEachPos(func(pos, i int) { d[pos] = s[i] })
}

func (o *opsFor[T]) relocate(src, dst unsafe.Pointer, m mask.IndexMask) {
	n := m.MinArraySize()
	s, d := elems[T](src, n), elems[T](dst, n)
	var zero T
	m.ForEach(func(i int) {
		d[i] = s[i]
		s[i] = zero
	})
}

func (o *opsFor[T]) relocateScattered(src, dst unsafe.Pointer, m mask.IndexMask) {
	s, d := elems[T](src, m.Size()), elems[T](dst, m.MinArraySize())
	var zero T
	m.ForEachPos(func(pos, i int) {
		d[i] = s[pos]
		s[pos] = zero
	})
}

func (o *opsFor[T]) fill(value, dst unsafe.Pointer, m mask.IndexMask) {
	v := *(*T)(value)
	d := elems[T](dst, m.MinArraySize())
	m.ForEach(func(i int) { d[i] = v })
}

func (o *opsFor[T]) equal(a, b unsafe.Pointer) bool {
	return o.eq((*T)(a), (*T)(b))
}

func (o *opsFor[T]) hash(p unsafe.Pointer) uint64 {
	return o.hsh((*T)(p))
}

func (o *opsFor[T]) format(p unsafe.Pointer) string {
	return fmt.Sprint(*(*T)(p))
}

// holdsReferences reports whether values of rt contain pointers the garbage
// collector has to trace.
func holdsReferences(rt reflect.Type) bool {
	switch rt.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.String, reflect.Slice,
		reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		return true
	case reflect.Array:
		return rt.Len() > 0 && holdsReferences(rt.Elem())
	case reflect.Struct:
		for i := 0; i < rt.NumField(); i++ {
			if holdsReferences(rt.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
