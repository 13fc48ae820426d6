package mapping

import (
	"fmt"
	"math"
	"strconv"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/fn"
	"github.com/roach88/mfnet/internal/ir"
)

// StandardLibrary returns the node types used by bundled documents, the
// CLI and tests. reg must contain the default types.
//
//	value                  params: type, value
//	value.float|int|bool|string   params: value
//	math.add|subtract|multiply|divide|minimum|maximum   sockets a, b -> result
//	math.negate|absolute   sockets a -> result
//	math.clamp             sockets a (value), b (min), c (max) -> result
//	compare.less|equal     sockets a, b -> result (bool)
//	vector.build           params: type, count; sockets item0.. -> vector
//	vector.sum             params: type; socket vector -> sum
//	context.value          params: key, type, default -> value
//	float3.combine         sockets a, b, c -> result
//	float3.length          socket a -> result
//
// Arithmetic nodes take an optional type param (float32, float64, int32,
// int64; default float32). Division by zero yields zero.
func StandardLibrary(reg *ctype.Registry) *Library {
	l := NewLibrary(reg)
	registerCodecs(l)

	l.RegisterFunction("value", func(ic *InsertContext) (fn.Function, error) {
		t, err := ic.TypeParam("type", "float32")
		if err != nil {
			return nil, err
		}
		v, err := ic.ValueParam("value", t)
		if err != nil {
			return nil, err
		}
		return fn.NewGenericConstant(v), nil
	})
	l.RegisterFunction("value.float", constant[float32]("float32"))
	l.RegisterFunction("value.int", constant[int32]("int32"))
	l.RegisterFunction("value.bool", constant[bool]("bool"))
	l.RegisterFunction("value.string", constant[string]("string"))

	l.RegisterFunction("math.add", binaryMath("add", add[float32], add[float64], add[int32], add[int64]))
	l.RegisterFunction("math.subtract", binaryMath("subtract", subtract[float32], subtract[float64], subtract[int32], subtract[int64]))
	l.RegisterFunction("math.multiply", binaryMath("multiply", multiply[float32], multiply[float64], multiply[int32], multiply[int64]))
	l.RegisterFunction("math.divide", binaryMath("divide", divide[float32], divide[float64], divide[int32], divide[int64]))
	l.RegisterFunction("math.minimum", binaryMath("minimum", minimum[float32], minimum[float64], minimum[int32], minimum[int64]))
	l.RegisterFunction("math.maximum", binaryMath("maximum", maximum[float32], maximum[float64], maximum[int32], maximum[int64]))
	l.RegisterFunction("math.negate", unaryMath("negate", negate[float32], negate[float64], negate[int32], negate[int64]))
	l.RegisterFunction("math.absolute", unaryMath("absolute", absolute[float32], absolute[float64], absolute[int32], absolute[int64]))
	l.RegisterFunction("math.clamp", numeric(func(ic *InsertContext, t *ctype.Type) fn.Function {
		reg := ic.Registry()
		switch t.Name() {
		case "float64":
			return fn.NewCustomSI3SO(reg, "clamp float64", clamp[float64])
		case "int32":
			return fn.NewCustomSI3SO(reg, "clamp int32", clamp[int32])
		case "int64":
			return fn.NewCustomSI3SO(reg, "clamp int64", clamp[int64])
		}
		return fn.NewCustomSI3SO(reg, "clamp float32", clamp[float32])
	}))

	l.RegisterFunction("compare.less", comparison("less", less[float32], less[float64], less[int32], less[int64]))
	l.RegisterFunction("compare.equal", comparison("equal", equal[float32], equal[float64], equal[int32], equal[int64]))

	l.RegisterFunction("vector.build", func(ic *InsertContext) (fn.Function, error) {
		t, err := ic.TypeParam("type", "float32")
		if err != nil {
			return nil, err
		}
		n, err := ic.IntParam("count", 2)
		if err != nil {
			return nil, err
		}
		if n < 0 || n > 1024 {
			return nil, fmt.Errorf("param count: %d out of range [0, 1024]", n)
		}
		return fn.NewVectorBuilder(t, int(n)), nil
	})
	l.RegisterFunction("vector.sum", numeric(func(ic *InsertContext, t *ctype.Type) fn.Function {
		reg := ic.Registry()
		switch t.Name() {
		case "float64":
			return fn.NewVectorSum[float64](reg)
		case "int32":
			return fn.NewVectorSum[int32](reg)
		case "int64":
			return fn.NewVectorSum[int64](reg)
		}
		return fn.NewVectorSum[float32](reg)
	}))

	l.RegisterFunction("context.value", contextValue)

	l.RegisterFunction("float3.combine", func(ic *InsertContext) (fn.Function, error) {
		return fn.NewCustomSI3SO(ic.Registry(), "combine float3", func(x, y, z float32) ctype.Float3 {
			return ctype.Float3{x, y, z}
		}), nil
	})
	l.RegisterFunction("float3.length", func(ic *InsertContext) (fn.Function, error) {
		return fn.NewCustomSI1SO(ic.Registry(), "length float3", func(v ctype.Float3) float32 {
			return float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
		}), nil
	})

	l.RegisterConversion(fn.NewConvert(reg, func(v float32) int32 { return int32(v) }))
	l.RegisterConversion(fn.NewConvert(reg, func(v int32) float32 { return float32(v) }))
	l.RegisterConversion(fn.NewConvert(reg, func(v float32) float64 { return float64(v) }))
	l.RegisterConversion(fn.NewConvert(reg, func(v float64) float32 { return float32(v) }))
	l.RegisterConversion(fn.NewConvert(reg, func(v int32) int64 { return int64(v) }))
	l.RegisterConversion(fn.NewConvert(reg, func(v int64) int32 { return int32(v) }))
	l.RegisterConversion(fn.NewConvert(reg, func(v bool) float32 { return boolTo[float32](v) }))
	l.RegisterConversion(fn.NewConvert(reg, func(v bool) int32 { return boolTo[int32](v) }))
	l.RegisterConversion(fn.NewConvert(reg, func(v float32) bool { return v != 0 }))
	l.RegisterConversion(fn.NewConvert(reg, func(v float32) ctype.Float3 { return ctype.Float3{v, v, v} }))
	return l
}

func registerCodecs(l *Library) {
	RegisterCodec(l, func(v ir.IRValue) (float32, bool) {
		f, ok := ir.AsFloat(v)
		return float32(f), ok
	}, encodeFloat32)
	RegisterCodec(l, ir.AsFloat, func(f float64) ir.IRValue { return ir.IRFloat(f) })
	RegisterCodec(l, func(v ir.IRValue) (int32, bool) {
		n, ok := ir.AsInt(v)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return 0, false
		}
		return int32(n), true
	}, func(n int32) ir.IRValue { return ir.IRInt(n) })
	RegisterCodec(l, ir.AsInt, func(n int64) ir.IRValue { return ir.IRInt(n) })
	RegisterCodec(l, ir.AsBool, func(b bool) ir.IRValue { return ir.IRBool(b) })
	RegisterCodec(l, ir.AsString, func(s string) ir.IRValue { return ir.IRString(s) })
	RegisterCodec(l, func(v ir.IRValue) (ctype.Float3, bool) {
		arr, ok := v.(ir.IRArray)
		if !ok || len(arr) != 3 {
			return ctype.Float3{}, false
		}
		var out ctype.Float3
		for i, c := range arr {
			f, ok := ir.AsFloat(c)
			if !ok {
				return ctype.Float3{}, false
			}
			out[i] = float32(f)
		}
		return out, true
	}, func(v ctype.Float3) ir.IRValue {
		return ir.IRArray{encodeFloat32(v[0]), encodeFloat32(v[1]), encodeFloat32(v[2])}
	})
}

// encodeFloat32 widens through the shortest float32 decimal form so 0.1f
// encodes as 0.1 rather than 0.10000000149011612.
func encodeFloat32(f float32) ir.IRValue {
	wide, err := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'g', -1, 32), 64)
	if err != nil {
		return ir.IRFloat(float64(f))
	}
	return ir.IRFloat(wide)
}

func constant[T comparable](typeName string) FunctionFactory {
	return func(ic *InsertContext) (fn.Function, error) {
		v, err := ic.ValueParam("value", ic.Registry().MustLookup(typeName))
		if err != nil {
			return nil, err
		}
		return fn.NewConstant(ic.Registry(), ctype.Get[T](v)), nil
	}
}

// numeric resolves the "type" param to one of the arithmetic types before
// calling build.
func numeric(build func(ic *InsertContext, t *ctype.Type) fn.Function) FunctionFactory {
	return func(ic *InsertContext) (fn.Function, error) {
		t, err := ic.TypeParam("type", "float32")
		if err != nil {
			return nil, err
		}
		switch t.Name() {
		case "float32", "float64", "int32", "int64":
			return build(ic, t), nil
		}
		return nil, fmt.Errorf("param type: %s is not numeric", t.Name())
	}
}

func binaryMath(name string, f32 func(a, b float32) float32, f64 func(a, b float64) float64,
	i32 func(a, b int32) int32, i64 func(a, b int64) int64) FunctionFactory {
	return numeric(func(ic *InsertContext, t *ctype.Type) fn.Function {
		reg := ic.Registry()
		label := name + " " + t.Name()
		switch t.Name() {
		case "float64":
			return fn.NewCustomSI2SO(reg, label, f64)
		case "int32":
			return fn.NewCustomSI2SO(reg, label, i32)
		case "int64":
			return fn.NewCustomSI2SO(reg, label, i64)
		}
		return fn.NewCustomSI2SO(reg, label, f32)
	})
}

func unaryMath(name string, f32 func(float32) float32, f64 func(float64) float64,
	i32 func(int32) int32, i64 func(int64) int64) FunctionFactory {
	return numeric(func(ic *InsertContext, t *ctype.Type) fn.Function {
		reg := ic.Registry()
		label := name + " " + t.Name()
		switch t.Name() {
		case "float64":
			return fn.NewCustomSI1SO(reg, label, f64)
		case "int32":
			return fn.NewCustomSI1SO(reg, label, i32)
		case "int64":
			return fn.NewCustomSI1SO(reg, label, i64)
		}
		return fn.NewCustomSI1SO(reg, label, f32)
	})
}

func comparison(name string, f32 func(a, b float32) bool, f64 func(a, b float64) bool,
	i32 func(a, b int32) bool, i64 func(a, b int64) bool) FunctionFactory {
	return numeric(func(ic *InsertContext, t *ctype.Type) fn.Function {
		reg := ic.Registry()
		label := name + " " + t.Name()
		switch t.Name() {
		case "float64":
			return fn.NewCustomSI2SO(reg, label, f64)
		case "int32":
			return fn.NewCustomSI2SO(reg, label, i32)
		case "int64":
			return fn.NewCustomSI2SO(reg, label, i64)
		}
		return fn.NewCustomSI2SO(reg, label, f32)
	})
}

func contextValue(ic *InsertContext) (fn.Function, error) {
	key, err := ic.StringParam("key", "")
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, fmt.Errorf("param key is required")
	}
	t, err := ic.TypeParam("type", "float32")
	if err != nil {
		return nil, err
	}
	def, err := ic.ValueParam("default", t)
	if err != nil {
		return nil, err
	}
	reg := ic.Registry()
	switch t.Name() {
	case "float32":
		return fn.NewContextValue(reg, key, ctype.Get[float32](def)), nil
	case "float64":
		return fn.NewContextValue(reg, key, ctype.Get[float64](def)), nil
	case "int32":
		return fn.NewContextValue(reg, key, ctype.Get[int32](def)), nil
	case "int64":
		return fn.NewContextValue(reg, key, ctype.Get[int64](def)), nil
	case "bool":
		return fn.NewContextValue(reg, key, ctype.Get[bool](def)), nil
	case "string":
		return fn.NewContextValue(reg, key, ctype.Get[string](def)), nil
	}
	return nil, fmt.Errorf("param type: context values of type %s are not supported", t.Name())
}

func add[T fn.Number](a, b T) T      { return a + b }
func subtract[T fn.Number](a, b T) T { return a - b }
func multiply[T fn.Number](a, b T) T { return a * b }
func negate[T fn.Number](a T) T      { return -a }
func less[T fn.Number](a, b T) bool  { return a < b }
func equal[T fn.Number](a, b T) bool { return a == b }
func minimum[T fn.Number](a, b T) T  { return min(a, b) }
func maximum[T fn.Number](a, b T) T  { return max(a, b) }

func divide[T fn.Number](a, b T) T {
	if b == 0 {
		return 0
	}
	return a / b
}

func absolute[T fn.Number](a T) T {
	if a < 0 {
		return -a
	}
	return a
}

func clamp[T fn.Number](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

func boolTo[T fn.Number](b bool) T {
	if b {
		return 1
	}
	return 0
}
