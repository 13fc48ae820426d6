package ctype

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mfnet/internal/mask"
)

type payload struct {
	Name  string
	Score int
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()
	defer r.Close()

	for _, name := range []string{"float32", "float64", "int32", "int64", "bool", "string", "float3"} {
		t.Run(name, func(t *testing.T) {
			typ, ok := r.Lookup(name)
			require.True(t, ok)
			assert.Equal(t, name, typ.Name())
			assert.True(t, typ.HasEquality())
		})
	}

	f32 := TypeOf[float32](r)
	assert.Equal(t, uintptr(4), f32.Size())
	assert.Equal(t, uintptr(4), f32.Alignment())
	assert.True(t, f32.IsTriviallyDestructible())
	assert.False(t, TypeOf[string](r).IsTriviallyDestructible())
	assert.Equal(t, uintptr(12), TypeOf[Float3](r).Size())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	RegisterComparable(r, "int64", int64(0))

	assert.Panics(t, func() { RegisterComparable(r, "int64", int64(0)) }, "duplicate name")
	assert.Panics(t, func() { RegisterComparable(r, "other", int64(0)) }, "duplicate Go type")
	assert.Panics(t, func() { TypeOf[float32](r) }, "unregistered Go type")
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := NewDefaultRegistry()
	b := NewDefaultRegistry()

	assert.NotSame(t, a.MustLookup("float32"), b.MustLookup("float32"))

	a.Close()
	_, ok := a.Lookup("float32")
	assert.False(t, ok, "closed registry has no types")
	_, ok = b.Lookup("float32")
	assert.True(t, ok)
}

func TestRegisterWithDefault(t *testing.T) {
	r := NewRegistry()
	typ := Register(r, "payload", payload{Name: "unset", Score: -1})

	assert.False(t, typ.HasEquality())
	assert.False(t, typ.IsTriviallyDestructible())

	arr := NewArray(typ, 3)
	for _, v := range Values[payload](arr) {
		assert.Equal(t, payload{Name: "unset", Score: -1}, v)
	}
	assert.Panics(t, func() { typ.Hash(arr.Ptr(0)) })
}

func TestCopyAndRelocate(t *testing.T) {
	r := NewDefaultRegistry()
	typ := TypeOf[string](r)

	src := FromSlice(typ, []string{"a", "b", "c", "d"})
	dst := NewArray(typ, 4)

	typ.CopyToUninitializedIndices(src.Data(), dst.Data(), mask.FromIndices([]int{1, 3}))
	assert.Equal(t, []string{"", "b", "", "d"}, Values[string](dst))
	assert.Equal(t, []string{"a", "b", "c", "d"}, Values[string](src))

	typ.RelocateToUninitializedIndices(src.Data(), dst.Data(), mask.Range(0, 1))
	assert.Equal(t, "a", Values[string](dst)[0])
	assert.Equal(t, "", Values[string](src)[0], "relocated source is destructed")

	typ.DestructIndices(dst.Data(), mask.Range(0, 4))
	assert.Equal(t, []string{"", "", "", ""}, Values[string](dst))
}

func TestCompressAndScatterRoundTrip(t *testing.T) {
	r := NewDefaultRegistry()
	typ := TypeOf[int64](r)
	m := mask.FromIndices([]int{2, 5, 9})

	src := FromSlice(typ, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	compressed := NewArrayUninitialized(typ, m.Size())
	typ.CopyToUninitializedCompressed(src.Data(), compressed.Data(), m)
	assert.Equal(t, []int64{2, 5, 9}, Values[int64](compressed))

	for i := range Values[int64](compressed) {
		Values[int64](compressed)[i] *= 10
	}
	out := NewArray(typ, 10)
	typ.RelocateToUninitializedScattered(compressed.Data(), out.Data(), m)
	assert.Equal(t, []int64{0, 0, 20, 0, 0, 50, 0, 0, 0, 90}, Values[int64](out))
}

func TestBufferContractViolations(t *testing.T) {
	r := NewDefaultRegistry()
	typ := TypeOf[int64](r)

	assert.Panics(t, func() { NewSpan(typ, nil, 3) }, "nil buffer with nonzero size")
	assert.NotPanics(t, func() { NewSpan(typ, nil, 0) })

	arr := NewArray(typ, 4)
	misaligned := unsafe.Add(arr.Data(), 1)
	assert.Panics(t, func() { NewSpan(typ, misaligned, 1) }, "misaligned buffer")

	assert.Panics(t, func() { Values[float32](arr) }, "Go type mismatch")
	assert.Panics(t, func() { arr.Ptr(4) })
}

func TestVArraySpanAndSingleBehaveUniformly(t *testing.T) {
	r := NewDefaultRegistry()
	typ := TypeOf[float32](r)

	arr := FromSlice(typ, []float32{1, 2, 3, 4})
	single := SingleOf(typ, float32(7))

	spanView := VArrayForSpan(arr.Span())
	singleView := single.VArray(4)

	assert.False(t, spanView.IsSingle())
	assert.True(t, singleView.IsSingle())
	assert.Equal(t, float32(3), VArrayGet[float32](spanView, 2))
	assert.Equal(t, float32(7), VArrayGet[float32](singleView, 3))

	m := mask.FromIndices([]int{0, 3})
	dst := NewArray(typ, 4)
	spanView.MaterializeToUninitialized(m, dst.Data())
	assert.Equal(t, []float32{1, 0, 0, 4}, Values[float32](dst))

	singleView.MaterializeToUninitialized(m, dst.Data())
	assert.Equal(t, []float32{7, 0, 0, 7}, Values[float32](dst))

	compressed := NewArray(typ, 2)
	spanView.MaterializeCompressedToUninitialized(m, compressed.Data())
	assert.Equal(t, []float32{1, 4}, Values[float32](compressed))

	sliced := spanView.Slice(1, 2)
	assert.Equal(t, 2, sliced.Len())
	assert.Equal(t, float32(2), VArrayGet[float32](sliced, 0))

	assert.Panics(t, func() { spanView.MaterializeToUninitialized(mask.Range(0, 5), dst.Data()) })
}

func TestArrayCloneIsIndependent(t *testing.T) {
	r := NewDefaultRegistry()
	typ := TypeOf[string](r)

	arr := FromSlice(typ, []string{"x", "y"})
	clone := arr.Clone().(*Array)
	Values[string](clone)[0] = "changed"

	assert.Equal(t, []string{"x", "y"}, Values[string](arr))
	assert.Equal(t, "[changed y]", clone.String())

	arr.Release()
	assert.Equal(t, 0, arr.Len())
}

func TestVectorArray(t *testing.T) {
	r := NewDefaultRegistry()
	typ := TypeOf[int32](r)

	va := NewVectorArray(typ, 3)
	for k := int32(0); k < 10; k++ {
		va.Append(1, unsafe.Pointer(&k))
	}
	va.Extend(2, FromSlice(typ, []int32{7, 8}).Span())

	assert.Equal(t, 0, va.VectorLen(0))
	assert.Equal(t, []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, SpanValues[int32](va.Get(1)))
	assert.Equal(t, []int32{7, 8}, SpanValues[int32](va.Get(2)))

	clone := va.Clone().(*VectorArray)
	va.Clear(1)
	assert.Equal(t, 0, va.VectorLen(1))
	assert.Equal(t, 10, clone.VectorLen(1))

	view := VVectorArrayFor(clone)
	assert.Equal(t, 3, view.Len())
	assert.Equal(t, []int32{7, 8}, SpanValues[int32](view.Get(2)))

	broadcast := VVectorArrayForSingle(FromSlice(typ, []int32{4}).Span(), 5)
	assert.True(t, broadcast.IsSingle())
	assert.Equal(t, []int32{4}, SpanValues[int32](broadcast.Get(4)))

	assert.Panics(t, func() { va.Extend(0, FromSlice(TypeOf[int64](r), []int64{1}).Span()) })
}

func TestEqualityAndHash(t *testing.T) {
	r := NewDefaultRegistry()
	typ := TypeOf[Float3](r)

	a := SingleOf(typ, Float3{1, 2, 3})
	b := SingleOf(typ, Float3{1, 2, 3})
	c := SingleOf(typ, Float3{3, 2, 1})

	assert.True(t, typ.IsEqual(a.Ptr(), b.Ptr()))
	assert.False(t, typ.IsEqual(a.Ptr(), c.Ptr()))
	assert.Equal(t, typ.Hash(a.Ptr()), typ.Hash(b.Ptr()))
	assert.Equal(t, "[1 2 3]", a.String())
	assert.Equal(t, Float3{1, 2, 3}, Get[Float3](a))
}
