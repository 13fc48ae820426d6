package fn

import (
	"fmt"

	"github.com/roach88/mfnet/internal/ctype"
	"github.com/roach88/mfnet/internal/mask"
)

type paramSlot struct {
	varray  ctype.VArray
	vvector ctype.VVectorArray
	span    ctype.MutableSpan
	vector  *ctype.VectorArray
}

// Params holds the buffers bound to each parameter of a signature.
type Params struct {
	sig   *Signature
	size  int
	slots []paramSlot
}

// ParamsBuilder binds buffers to a signature in parameter order.
type ParamsBuilder struct {
	p *Params
}

// NewParamsBuilder starts binding for sig. Every bound buffer must hold
// at least minArraySize elements.
func NewParamsBuilder(sig *Signature, minArraySize int) *ParamsBuilder {
	return &ParamsBuilder{p: &Params{
		sig:   sig,
		size:  minArraySize,
		slots: make([]paramSlot, 0, len(sig.Params)),
	}}
}

func (b *ParamsBuilder) next(cat ParamCategory, t *ctype.Type, n int, name []string) {
	i := len(b.p.slots)
	sig := b.p.sig
	if i >= len(sig.Params) {
		panic(fmt.Sprintf("fn: %s: too many parameters bound", sig.Name))
	}
	sig.checkName(i, name)
	pt := sig.Params[i].Type
	if pt.Category() != cat {
		panic(fmt.Sprintf("fn: %s: parameter %d (%s) is %s, bound as %s", sig.Name, i, sig.Params[i].Name, pt.Category(), cat))
	}
	if pt.DataType().Type() != t {
		panic(fmt.Sprintf("fn: %s: parameter %d (%s) has type %s, bound %s", sig.Name, i, sig.Params[i].Name, pt.DataType().Type(), t))
	}
	if n < b.p.size {
		panic(fmt.Sprintf("fn: %s: parameter %d (%s) has %d elements, need %d", sig.Name, i, sig.Params[i].Name, n, b.p.size))
	}
}

// AddReadonlySingleInput binds the next parameter to v.
func (b *ParamsBuilder) AddReadonlySingleInput(v ctype.VArray, name ...string) *ParamsBuilder {
	b.next(SingleInput, v.Type(), v.Len(), name)
	b.p.slots = append(b.p.slots, paramSlot{varray: v})
	return b
}

// AddReadonlyVectorInput binds the next parameter to v.
func (b *ParamsBuilder) AddReadonlyVectorInput(v ctype.VVectorArray, name ...string) *ParamsBuilder {
	b.next(VectorInput, v.Type(), v.Len(), name)
	b.p.slots = append(b.p.slots, paramSlot{vvector: v})
	return b
}

// AddUninitializedSingleOutput binds the next parameter to s.
func (b *ParamsBuilder) AddUninitializedSingleOutput(s ctype.MutableSpan, name ...string) *ParamsBuilder {
	b.next(SingleOutput, s.Type(), s.Len(), name)
	b.p.slots = append(b.p.slots, paramSlot{span: s})
	return b
}

// AddVectorOutput binds the next parameter to va.
func (b *ParamsBuilder) AddVectorOutput(va *ctype.VectorArray, name ...string) *ParamsBuilder {
	b.next(VectorOutput, va.Type(), va.Len(), name)
	b.p.slots = append(b.p.slots, paramSlot{vector: va})
	return b
}

// AddSingleMutable binds the next parameter to s.
func (b *ParamsBuilder) AddSingleMutable(s ctype.MutableSpan, name ...string) *ParamsBuilder {
	b.next(SingleMutable, s.Type(), s.Len(), name)
	b.p.slots = append(b.p.slots, paramSlot{span: s})
	return b
}

// AddVectorMutable binds the next parameter to va.
func (b *ParamsBuilder) AddVectorMutable(va *ctype.VectorArray, name ...string) *ParamsBuilder {
	b.next(VectorMutable, va.Type(), va.Len(), name)
	b.p.slots = append(b.p.slots, paramSlot{vector: va})
	return b
}

// Build returns the bound parameters. Every parameter must be bound.
func (b *ParamsBuilder) Build() *Params {
	if len(b.p.slots) != len(b.p.sig.Params) {
		panic(fmt.Sprintf("fn: %s: %d of %d parameters bound", b.p.sig.Name, len(b.p.slots), len(b.p.sig.Params)))
	}
	return b.p
}

// Signature returns the signature the params are bound to.
func (p *Params) Signature() *Signature { return p.sig }

// MinArraySize returns the element count every buffer holds at least.
func (p *Params) MinArraySize() int { return p.size }

func (p *Params) slot(i int, cat ParamCategory, name []string) *paramSlot {
	p.sig.checkName(i, name)
	if got := p.sig.Params[i].Type.Category(); got != cat {
		panic(fmt.Sprintf("fn: %s: parameter %d is %s, accessed as %s", p.sig.Name, i, got, cat))
	}
	return &p.slots[i]
}

// ReadonlySingleInput returns parameter i.
func (p *Params) ReadonlySingleInput(i int, name ...string) ctype.VArray {
	return p.slot(i, SingleInput, name).varray
}

// ReadonlyVectorInput returns parameter i.
func (p *Params) ReadonlyVectorInput(i int, name ...string) ctype.VVectorArray {
	return p.slot(i, VectorInput, name).vvector
}

// UninitializedSingleOutput returns parameter i.
func (p *Params) UninitializedSingleOutput(i int, name ...string) ctype.MutableSpan {
	return p.slot(i, SingleOutput, name).span
}

// VectorOutput returns parameter i.
func (p *Params) VectorOutput(i int, name ...string) *ctype.VectorArray {
	return p.slot(i, VectorOutput, name).vector
}

// SingleMutable returns parameter i.
func (p *Params) SingleMutable(i int, name ...string) ctype.MutableSpan {
	return p.slot(i, SingleMutable, name).span
}

// VectorMutable returns parameter i.
func (p *Params) VectorMutable(i int, name ...string) *ctype.VectorArray {
	return p.slot(i, VectorMutable, name).vector
}

// sliced views every single-category buffer at [start, start+n). Vector
// buffers cannot be sliced; callers never reach here with them.
func (p *Params) sliced(start, n int) *Params {
	out := &Params{sig: p.sig, size: n, slots: make([]paramSlot, len(p.slots))}
	for i, param := range p.sig.Params {
		s := p.slots[i]
		switch param.Type.Category() {
		case SingleInput:
			out.slots[i] = paramSlot{varray: s.varray.Slice(start, n)}
		case SingleOutput, SingleMutable:
			out.slots[i] = paramSlot{span: s.span.Slice(start, n)}
		default:
			panic(fmt.Sprintf("fn: %s: cannot slice %s parameter", p.sig.Name, param.Type.Category()))
		}
	}
	return out
}

// compressed gathers the masked elements of every input and mutable buffer
// into dense temporaries of m.Size() elements. Single-value inputs stay
// broadcast. scatter must be called afterwards to write results back.
func (p *Params) compressed(m mask.IndexMask) *compressedParams {
	n := m.Size()
	cp := &compressedParams{
		orig:   p,
		m:      m,
		params: &Params{sig: p.sig, size: n, slots: make([]paramSlot, len(p.slots))},
		temps:  make([]*ctype.Array, len(p.slots)),
	}
	for i, param := range p.sig.Params {
		s := p.slots[i]
		t := param.Type.DataType().Type()
		switch param.Type.Category() {
		case SingleInput:
			if ptr, ok := s.varray.Single(); ok {
				cp.params.slots[i] = paramSlot{varray: ctype.VArrayForSingle(t, ptr, n)}
				continue
			}
			tmp := ctype.NewArrayUninitialized(t, n)
			s.varray.MaterializeCompressedToUninitialized(m, tmp.Data())
			cp.temps[i] = tmp
			cp.params.slots[i] = paramSlot{varray: ctype.VArrayForSpan(tmp.Span())}
		case SingleOutput:
			tmp := ctype.NewArrayUninitialized(t, n)
			cp.temps[i] = tmp
			cp.params.slots[i] = paramSlot{span: tmp.MutableSpan()}
		case SingleMutable:
			tmp := ctype.NewArrayUninitialized(t, n)
			t.CopyToUninitializedCompressed(s.span.Data(), tmp.Data(), m)
			cp.temps[i] = tmp
			cp.params.slots[i] = paramSlot{span: tmp.MutableSpan()}
		default:
			panic(fmt.Sprintf("fn: %s: cannot compress %s parameter", p.sig.Name, param.Type.Category()))
		}
	}
	return cp
}

type compressedParams struct {
	orig   *Params
	m      mask.IndexMask
	params *Params
	temps  []*ctype.Array
}

// scatter moves written values back to their original indices and
// releases the temporaries.
func (cp *compressedParams) scatter() {
	for i, param := range cp.orig.sig.Params {
		tmp := cp.temps[i]
		if tmp == nil {
			continue
		}
		if param.Type.IsOutputOrMutable() {
			dst := cp.orig.slots[i].span.Data()
			tmp.Type().RelocateToUninitializedScattered(tmp.Data(), dst, cp.m)
		}
		tmp.Release()
	}
}
