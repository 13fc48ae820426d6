package fn

import (
	"fmt"
	"hash/maphash"
	"unsafe"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/mask"
)

// CustomSI1SO wraps a Go function of one input into a multi-function.
type CustomSI1SO[A, R any] struct {
	sig   *Signature
	fn    func(A) R
	hints ExecutionHints
}

// NewCustomSI1SO creates a function named name computing fn element-wise.
func NewCustomSI1SO[A, R any](reg *ctype.Registry, name string, fn func(A) R) *CustomSI1SO[A, R] {
	sig := NewSignatureBuilder(name).
		SingleInput("a", ctype.TypeOf[A](reg)).
		SingleOutput("result", ctype.TypeOf[R](reg)).
		Build()
	return &CustomSI1SO[A, R]{sig: sig, fn: fn, hints: DefaultExecutionHints}
}

// WithHints overrides the default execution hints.
func (f *CustomSI1SO[A, R]) WithHints(h ExecutionHints) *CustomSI1SO[A, R] {
	f.hints = h
	return f
}

func (f *CustomSI1SO[A, R]) Signature() *Signature          { return f.sig }
func (f *CustomSI1SO[A, R]) ExecutionHints() ExecutionHints { return f.hints }

func (f *CustomSI1SO[A, R]) Call(m mask.IndexMask, params *Params, _ *Context) {
	a := ctype.VArrayReader[A](params.ReadonlySingleInput(0, "a"))
	out := ctype.MutableValues[R](params.UninitializedSingleOutput(1, "result"))
	m.ForEach(func(i int) { out[i] = f.fn(a(i)) })
}

// CustomSI2SO wraps a Go function of two inputs.
type CustomSI2SO[A, B, R any] struct {
	sig   *Signature
	fn    func(A, B) R
	hints ExecutionHints
}

// NewCustomSI2SO creates a function named name computing fn element-wise.
func NewCustomSI2SO[A, B, R any](reg *ctype.Registry, name string, fn func(A, B) R) *CustomSI2SO[A, B, R] {
	sig := NewSignatureBuilder(name).
		SingleInput("a", ctype.TypeOf[A](reg)).
		SingleInput("b", ctype.TypeOf[B](reg)).
		SingleOutput("result", ctype.TypeOf[R](reg)).
		Build()
	return &CustomSI2SO[A, B, R]{sig: sig, fn: fn, hints: DefaultExecutionHints}
}

// WithHints overrides the default execution hints.
func (f *CustomSI2SO[A, B, R]) WithHints(h ExecutionHints) *CustomSI2SO[A, B, R] {
	f.hints = h
	return f
}

func (f *CustomSI2SO[A, B, R]) Signature() *Signature          { return f.sig }
func (f *CustomSI2SO[A, B, R]) ExecutionHints() ExecutionHints { return f.hints }

func (f *CustomSI2SO[A, B, R]) Call(m mask.IndexMask, params *Params, _ *Context) {
	a := ctype.VArrayReader[A](params.ReadonlySingleInput(0, "a"))
	b := ctype.VArrayReader[B](params.ReadonlySingleInput(1, "b"))
	out := ctype.MutableValues[R](params.UninitializedSingleOutput(2, "result"))
	m.ForEach(func(i int) { out[i] = f.fn(a(i), b(i)) })
}

// CustomSI3SO wraps a Go function of three inputs.
type CustomSI3SO[A, B, C, R any] struct {
	sig   *Signature
	fn    func(A, B, C) R
	hints ExecutionHints
}

// NewCustomSI3SO creates a function named name computing fn element-wise.
func NewCustomSI3SO[A, B, C, R any](reg *ctype.Registry, name string, fn func(A, B, C) R) *CustomSI3SO[A, B, C, R] {
	sig := NewSignatureBuilder(name).
		SingleInput("a", ctype.TypeOf[A](reg)).
		SingleInput("b", ctype.TypeOf[B](reg)).
		SingleInput("c", ctype.TypeOf[C](reg)).
		SingleOutput("result", ctype.TypeOf[R](reg)).
		Build()
	return &CustomSI3SO[A, B, C, R]{sig: sig, fn: fn, hints: DefaultExecutionHints}
}

func (f *CustomSI3SO[A, B, C, R]) Signature() *Signature { return f.sig }

func (f *CustomSI3SO[A, B, C, R]) ExecutionHints() ExecutionHints { return f.hints }

func (f *CustomSI3SO[A, B, C, R]) Call(m mask.IndexMask, params *Params, _ *Context) {
	a := ctype.VArrayReader[A](params.ReadonlySingleInput(0, "a"))
	b := ctype.VArrayReader[B](params.ReadonlySingleInput(1, "b"))
	c := ctype.VArrayReader[C](params.ReadonlySingleInput(2, "c"))
	out := ctype.MutableValues[R](params.UninitializedSingleOutput(3, "result"))
	m.ForEach(func(i int) { out[i] = f.fn(a(i), b(i), c(i)) })
}

// CustomSM updates one mutable parameter in place.
type CustomSM[T any] struct {
	sig   *Signature
	fn    func(*T)
	hints ExecutionHints
}

// NewCustomSM creates a function named name applying fn to every masked value.
func NewCustomSM[T any](reg *ctype.Registry, name string, fn func(*T)) *CustomSM[T] {
	sig := NewSignatureBuilder(name).
		SingleMutable("value", ctype.TypeOf[T](reg)).
		Build()
	return &CustomSM[T]{sig: sig, fn: fn, hints: DefaultExecutionHints}
}

// WithHints overrides the default execution hints.
func (f *CustomSM[T]) WithHints(h ExecutionHints) *CustomSM[T] {
	f.hints = h
	return f
}

func (f *CustomSM[T]) Signature() *Signature          { return f.sig }
func (f *CustomSM[T]) ExecutionHints() ExecutionHints { return f.hints }

func (f *CustomSM[T]) Call(m mask.IndexMask, params *Params, _ *Context) {
	values := ctype.MutableValues[T](params.SingleMutable(0, "value"))
	m.ForEach(func(i int) { f.fn(&values[i]) })
}

// Constant outputs the same value at every index.
type Constant[T comparable] struct {
	sig   *Signature
	typ   *ctype.Type
	value T
}

// NewConstant creates a function producing v.
func NewConstant[T comparable](reg *ctype.Registry, v T) *Constant[T] {
	t := ctype.TypeOf[T](reg)
	sig := NewSignatureBuilder(fmt.Sprintf("constant %v", v)).
		SingleOutput("value", t).
		Build()
	return &Constant[T]{sig: sig, typ: t, value: v}
}

// Value returns the constant.
func (c *Constant[T]) Value() T { return c.value }

func (c *Constant[T]) Signature() *Signature { return c.sig }

func (c *Constant[T]) Call(m mask.IndexMask, params *Params, _ *Context) {
	out := ctype.MutableValues[T](params.UninitializedSingleOutput(0, "value"))
	m.ForEach(func(i int) { out[i] = c.value })
}

func (c *Constant[T]) Hash() uint64 {
	return maphash.Comparable(constantSeed, c.value)
}

func (c *Constant[T]) Equal(other Function) bool {
	o, ok := other.(*Constant[T])
	return ok && o.typ == c.typ && o.value == c.value
}

var constantSeed = maphash.MakeSeed()

// GenericConstant outputs a type-erased value at every index. Constant
// folding produces these.
type GenericConstant struct {
	sig   *Signature
	value *ctype.SingleValue
}

// NewGenericConstant takes ownership of value.
func NewGenericConstant(value *ctype.SingleValue) *GenericConstant {
	sig := NewSignatureBuilder("constant " + value.String()).
		SingleOutput("value", value.Type()).
		Build()
	return &GenericConstant{sig: sig, value: value}
}

// Value returns the held value.
func (c *GenericConstant) Value() *ctype.SingleValue { return c.value }

func (c *GenericConstant) Signature() *Signature { return c.sig }

func (c *GenericConstant) Call(m mask.IndexMask, params *Params, _ *Context) {
	out := params.UninitializedSingleOutput(0, "value")
	c.value.Type().FillUninitializedIndices(c.value.Ptr(), out.Data(), m)
}

func (c *GenericConstant) Hash() uint64 {
	t := c.value.Type()
	if !t.HasEquality() {
		return maphash.Comparable(constantSeed, uintptr(unsafe.Pointer(c)))
	}
	return t.Hash(c.value.Ptr())
}

func (c *GenericConstant) Equal(other Function) bool {
	o, ok := other.(*GenericConstant)
	if !ok || o.value.Type() != c.value.Type() {
		return false
	}
	if o == c {
		return true
	}
	t := c.value.Type()
	return t.HasEquality() && t.IsEqual(c.value.Ptr(), o.value.Ptr())
}

// GenericConstantArray outputs the same vector at every index.
type GenericConstantArray struct {
	sig    *Signature
	values *ctype.Array
}

// NewGenericConstantArray takes ownership of values.
func NewGenericConstantArray(values *ctype.Array) *GenericConstantArray {
	sig := NewSignatureBuilder("constant array " + values.String()).
		VectorOutput("value", values.Type()).
		Build()
	return &GenericConstantArray{sig: sig, values: values}
}

// Values returns the held vector.
func (c *GenericConstantArray) Values() *ctype.Array { return c.values }

func (c *GenericConstantArray) Signature() *Signature { return c.sig }

func (c *GenericConstantArray) Call(m mask.IndexMask, params *Params, _ *Context) {
	out := params.VectorOutput(0, "value")
	span := c.values.Span()
	m.ForEach(func(i int) { out.Extend(i, span) })
}

func (c *GenericConstantArray) Hash() uint64 {
	t := c.values.Type()
	if !t.HasEquality() {
		return maphash.Comparable(constantSeed, uintptr(unsafe.Pointer(c)))
	}
	h := uint64(c.values.Len())
	for i := 0; i < c.values.Len(); i++ {
		h = h*31 + t.Hash(c.values.Ptr(i))
	}
	return h
}

func (c *GenericConstantArray) Equal(other Function) bool {
	o, ok := other.(*GenericConstantArray)
	if !ok || o.values.Type() != c.values.Type() || o.values.Len() != c.values.Len() {
		return false
	}
	if o == c {
		return true
	}
	t := c.values.Type()
	if !t.HasEquality() {
		return false
	}
	for i := 0; i < c.values.Len(); i++ {
		if !t.IsEqual(c.values.Ptr(i), o.values.Ptr(i)) {
			return false
		}
	}
	return true
}

// Convert converts between two value types element-wise.
type Convert[From, To any] struct {
	sig *Signature
	fn  func(From) To
}

// NewConvert creates a conversion function named after both types.
func NewConvert[From, To any](reg *ctype.Registry, fn func(From) To) *Convert[From, To] {
	from, to := ctype.TypeOf[From](reg), ctype.TypeOf[To](reg)
	sig := NewSignatureBuilder(from.Name() + " to " + to.Name()).
		SingleInput("input", from).
		SingleOutput("output", to).
		Build()
	return &Convert[From, To]{sig: sig, fn: fn}
}

func (c *Convert[From, To]) Signature() *Signature { return c.sig }

func (c *Convert[From, To]) Call(m mask.IndexMask, params *Params, _ *Context) {
	in := ctype.VArrayReader[From](params.ReadonlySingleInput(0, "input"))
	out := ctype.MutableValues[To](params.UninitializedSingleOutput(1, "output"))
	m.ForEach(func(i int) { out[i] = c.fn(in(i)) })
}

func (c *Convert[From, To]) Hash() uint64 {
	return maphash.String(constantSeed, c.sig.Name)
}

func (c *Convert[From, To]) Equal(other Function) bool {
	_, ok := other.(*Convert[From, To])
	return ok
}

// VectorBuilder packs n single inputs into one vector per index.
type VectorBuilder struct {
	sig *Signature
	n   int
}

// NewVectorBuilder creates a builder with n inputs of type t.
func NewVectorBuilder(t *ctype.Type, n int) *VectorBuilder {
	b := NewSignatureBuilder(fmt.Sprintf("vector builder %s[%d]", t.Name(), n))
	for k := 0; k < n; k++ {
		b.SingleInput(fmt.Sprintf("item%d", k), t)
	}
	b.VectorOutput("vector", t)
	return &VectorBuilder{sig: b.Build(), n: n}
}

func (v *VectorBuilder) Signature() *Signature { return v.sig }

func (v *VectorBuilder) Call(m mask.IndexMask, params *Params, _ *Context) {
	out := params.VectorOutput(v.n, "vector")
	for k := 0; k < v.n; k++ {
		in := params.ReadonlySingleInput(k)
		m.ForEach(func(i int) { out.Append(i, in.Get(i)) })
	}
}

func (v *VectorBuilder) Hash() uint64 {
	return maphash.String(constantSeed, v.sig.Name)
}

func (v *VectorBuilder) Equal(other Function) bool {
	o, ok := other.(*VectorBuilder)
	return ok && o.sig.Name == v.sig.Name
}

// Number is the set of element types VectorSum accepts.
type Number interface {
	~int32 | ~int64 | ~float32 | ~float64
}

// VectorSum sums each vector.
type VectorSum[T Number] struct {
	sig *Signature
}

// NewVectorSum creates a sum over vectors of T.
func NewVectorSum[T Number](reg *ctype.Registry) *VectorSum[T] {
	t := ctype.TypeOf[T](reg)
	sig := NewSignatureBuilder("sum " + t.Name()).
		VectorInput("vector", t).
		SingleOutput("sum", t).
		Build()
	return &VectorSum[T]{sig: sig}
}

func (s *VectorSum[T]) Signature() *Signature { return s.sig }

func (s *VectorSum[T]) ExecutionHints() ExecutionHints {
	return ExecutionHints{MinGrainSize: 1000}
}

func (s *VectorSum[T]) Call(m mask.IndexMask, params *Params, _ *Context) {
	in := params.ReadonlyVectorInput(0, "vector")
	out := ctype.MutableValues[T](params.UninitializedSingleOutput(1, "sum"))
	m.ForEach(func(i int) {
		var total T
		for _, v := range ctype.SpanValues[T](in.Get(i)) {
			total += v
		}
		out[i] = total
	})
}

func (s *VectorSum[T]) Hash() uint64 {
	return maphash.String(constantSeed, s.sig.Name)
}

func (s *VectorSum[T]) Equal(other Function) bool {
	_, ok := other.(*VectorSum[T])
	return ok
}

// ContextValue outputs a value read from the call context, or a default
// when the key is missing or holds a different type.
type ContextValue[T any] struct {
	sig *Signature
	key string
	def T
}

// NewContextValue creates a function reading key from the context.
func NewContextValue[T any](reg *ctype.Registry, key string, def T) *ContextValue[T] {
	sig := NewSignatureBuilder("context " + key).
		SingleOutput("value", ctype.TypeOf[T](reg)).
		DependsOnContext().
		Build()
	return &ContextValue[T]{sig: sig, key: key, def: def}
}

func (c *ContextValue[T]) Signature() *Signature { return c.sig }

func (c *ContextValue[T]) Call(m mask.IndexMask, params *Params, ctx *Context) {
	v := c.def
	if raw, ok := ctx.Value(c.key); ok {
		if typed, ok := raw.(T); ok {
			v = typed
		}
	}
	out := ctype.MutableValues[T](params.UninitializedSingleOutput(0, "value"))
	m.ForEach(func(i int) { out[i] = v })
}
