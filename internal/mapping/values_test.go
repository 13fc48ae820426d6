package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/fn"
	"github.com/roach88/mfnet/internal/ir"
	"github.com/roach88/mfnet/internal/mask"
)

func TestBufferFromIRSingle(t *testing.T) {
	lib := StandardLibrary(ctype.NewDefaultRegistry())
	f32 := fn.Single(lib.Registry().MustLookup("float32"))

	buf, err := lib.BufferFromIR(f32, ir.IRInt(4), 3)
	require.NoError(t, err)
	sv, ok := buf.(*ctype.SingleValue)
	require.True(t, ok, "scalars broadcast")
	assert.Equal(t, float32(4), ctype.Get[float32](sv))

	buf, err = lib.BufferFromIR(f32, ir.IRArray{ir.IRFloat(0.5), ir.IRInt(1), ir.IRFloat(-2)}, 3)
	require.NoError(t, err)
	arr, ok := buf.(*ctype.Array)
	require.True(t, ok)
	assert.Equal(t, []float32{0.5, 1, -2}, ctype.Values[float32](arr))

	_, err = lib.BufferFromIR(f32, ir.IRArray{ir.IRFloat(1)}, 3)
	assert.ErrorContains(t, err, "got 1 values for a batch of 3")

	_, err = lib.BufferFromIR(f32, ir.IRArray{ir.IRFloat(1), ir.IRBool(true)}, 2)
	assert.ErrorContains(t, err, "element 1: cannot read bool true as float32")

	_, err = lib.BufferFromIR(f32, ir.IRString("x"), 1)
	assert.True(t, IsMappingError(err, CodeInvalidValue))
}

func TestBufferFromIRFloat3PrefersScalar(t *testing.T) {
	lib := StandardLibrary(ctype.NewDefaultRegistry())
	f3 := fn.Single(lib.Registry().MustLookup("float3"))

	buf, err := lib.BufferFromIR(f3, ir.IRArray{ir.IRInt(1), ir.IRInt(2), ir.IRInt(3)}, 3)
	require.NoError(t, err)
	require.IsType(t, &ctype.SingleValue{}, buf)
	assert.Equal(t, ctype.Float3{1, 2, 3}, ctype.Get[ctype.Float3](buf.(*ctype.SingleValue)))

	perIndex := ir.IRArray{
		ir.IRArray{ir.IRInt(1), ir.IRInt(0), ir.IRInt(0)},
		ir.IRArray{ir.IRInt(0), ir.IRInt(1), ir.IRInt(0)},
	}
	buf, err = lib.BufferFromIR(f3, perIndex, 2)
	require.NoError(t, err)
	assert.Equal(t, []ctype.Float3{{1, 0, 0}, {0, 1, 0}}, ctype.Values[ctype.Float3](buf.(*ctype.Array)))
}

func TestBufferFromIRVector(t *testing.T) {
	lib := StandardLibrary(ctype.NewDefaultRegistry())
	vec := fn.Vector(lib.Registry().MustLookup("int32"))

	buf, err := lib.BufferFromIR(vec, ir.IRArray{ir.IRInt(1), ir.IRInt(2)}, 4)
	require.NoError(t, err)
	shared, ok := buf.(*ctype.Array)
	require.True(t, ok, "a flat array is one shared vector")
	assert.Equal(t, []int32{1, 2}, ctype.Values[int32](shared))

	buf, err = lib.BufferFromIR(vec, ir.IRArray{ir.IRArray{ir.IRInt(1)}, ir.IRArray{}}, 2)
	require.NoError(t, err)
	va, ok := buf.(*ctype.VectorArray)
	require.True(t, ok)
	assert.Equal(t, 1, va.VectorLen(0))
	assert.Equal(t, 0, va.VectorLen(1))

	_, err = lib.BufferFromIR(vec, ir.IRInt(1), 1)
	assert.ErrorContains(t, err, "vector value must be an array")

	_, err = lib.BufferFromIR(vec, ir.IRArray{ir.IRArray{ir.IRInt(1)}, ir.IRInt(2)}, 2)
	assert.ErrorContains(t, err, "vector 1: want array")

	_, err = lib.BufferFromIR(vec, ir.IRArray{ir.IRArray{ir.IRFloat(1.5)}}, 1)
	assert.ErrorContains(t, err, "vector 0 element 0")
}

func TestBufferToIR(t *testing.T) {
	lib := StandardLibrary(ctype.NewDefaultRegistry())
	reg := lib.Registry()
	f32 := reg.MustLookup("float32")
	i32 := reg.MustLookup("int32")

	t.Run("single value broadcasts", func(t *testing.T) {
		out, err := lib.BufferToIR(fn.Single(f32), ctype.SingleOf(f32, float32(0.1)), mask.Range(0, 2))
		require.NoError(t, err)
		assert.Equal(t, ir.IRArray{ir.IRFloat(0.1), ir.IRFloat(0.1)}, out)
	})

	t.Run("array honours the mask", func(t *testing.T) {
		arr := ctype.FromSlice(i32, []int32{10, 11, 12, 13})
		out, err := lib.BufferToIR(fn.Single(i32), arr, mask.FromIndices([]int{1, 3}))
		require.NoError(t, err)
		assert.Equal(t, ir.IRArray{ir.IRInt(11), ir.IRInt(13)}, out)
	})

	t.Run("shared vector", func(t *testing.T) {
		arr := ctype.FromSlice(i32, []int32{1, 2})
		out, err := lib.BufferToIR(fn.Vector(i32), arr, mask.Range(0, 2))
		require.NoError(t, err)
		vec := ir.IRArray{ir.IRInt(1), ir.IRInt(2)}
		assert.Equal(t, ir.IRArray{vec, vec}, out)
	})

	t.Run("vector array", func(t *testing.T) {
		va := ctype.NewVectorArray(i32, 2)
		va.Extend(1, ctype.FromSlice(i32, []int32{7}).Span())
		out, err := lib.BufferToIR(fn.Vector(i32), va, mask.Range(0, 2))
		require.NoError(t, err)
		assert.Equal(t, ir.IRArray{ir.IRArray{}, ir.IRArray{ir.IRInt(7)}}, out)
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := lib.BufferToIR(fn.Single(f32), ctype.SingleOf(i32, int32(1)), mask.Range(0, 1))
		assert.ErrorContains(t, err, "buffer has type int32, want float32")
	})
}

func TestDecodeSingleWithoutCodec(t *testing.T) {
	reg := ctype.NewDefaultRegistry()
	lib := NewLibrary(reg)
	_, err := lib.DecodeSingle(reg.MustLookup("float32"), ir.IRFloat(1))
	assert.ErrorContains(t, err, "has no value codec")
}

func TestGoValue(t *testing.T) {
	reg := ctype.NewDefaultRegistry()
	lib := StandardLibrary(reg)

	v, err := lib.GoValue(reg.MustLookup("float32"), ir.IRInt(2))
	require.NoError(t, err)
	assert.Equal(t, float32(2), v)

	v, err = lib.GoValue(reg.MustLookup("string"), ir.IRString("a"))
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	_, err = lib.GoValue(reg.MustLookup("int32"), ir.IRString("a"))
	assert.True(t, IsMappingError(err, CodeInvalidValue))
}
