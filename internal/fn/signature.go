package fn

import (
	"fmt"
	"strings"

	"github.com/roach88/mfnet/internal/ctype"
)

// Param is one named signature parameter.
type Param struct {
	Name string
	Type ParamType
}

// Signature is the ordered parameter list of a function. Order is the only
// thing call sites bind by.
type Signature struct {
	Name             string
	Params           []Param
	DependsOnContext bool
}

// ParamCount returns the number of parameters.
func (s *Signature) ParamCount() int { return len(s.Params) }

// ParamType returns the type of parameter i.
func (s *Signature) ParamType(i int) ParamType { return s.Params[i].Type }

// ParamIndex looks a parameter up by name. It is meant for tooling and
// consistency checks, not for binding.
func (s *Signature) ParamIndex(name string) (int, bool) {
	for i, p := range s.Params {
		if p.Name == name {
			return i, true
		}
	}
	return -1, false
}

// InputOrMutableIndices returns the indices of parameters the function reads.
func (s *Signature) InputOrMutableIndices() []int {
	var out []int
	for i, p := range s.Params {
		if p.Type.IsInputOrMutable() {
			out = append(out, i)
		}
	}
	return out
}

// OutputOrMutableIndices returns the indices of parameters the function writes.
func (s *Signature) OutputOrMutableIndices() []int {
	var out []int
	for i, p := range s.Params {
		if p.Type.IsOutputOrMutable() {
			out = append(out, i)
		}
	}
	return out
}

// HasVectorOutputOrMutable reports whether any written parameter is a vector.
func (s *Signature) HasVectorOutputOrMutable() bool {
	for _, p := range s.Params {
		if p.Type.IsOutputOrMutable() && p.Type.DataType().IsVector() {
			return true
		}
	}
	return false
}

// String renders the signature as "name(input float32 a, output float32 b)".
func (s *Signature) String() string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.Type.String() + " " + p.Name
	}
	return s.Name + "(" + strings.Join(parts, ", ") + ")"
}

// checkName panics when name is given and does not match parameter i.
func (s *Signature) checkName(i int, name []string) {
	if len(name) == 0 || name[0] == "" {
		return
	}
	if s.Params[i].Name != name[0] {
		panic(fmt.Sprintf("fn: %s: parameter %d is %q, not %q", s.Name, i, s.Params[i].Name, name[0]))
	}
}

// SignatureBuilder assembles a Signature.
type SignatureBuilder struct {
	sig Signature
}

// NewSignatureBuilder starts a signature for a function called name.
func NewSignatureBuilder(name string) *SignatureBuilder {
	return &SignatureBuilder{sig: Signature{Name: name}}
}

func (b *SignatureBuilder) add(name string, iface InterfaceType, data DataType) *SignatureBuilder {
	for _, p := range b.sig.Params {
		if p.Name == name {
			panic(fmt.Sprintf("fn: %s: duplicate parameter %q", b.sig.Name, name))
		}
	}
	b.sig.Params = append(b.sig.Params, Param{Name: name, Type: NewParamType(iface, data)})
	return b
}

func (b *SignatureBuilder) SingleInput(name string, t *ctype.Type) *SignatureBuilder {
	return b.add(name, Input, Single(t))
}

func (b *SignatureBuilder) VectorInput(name string, t *ctype.Type) *SignatureBuilder {
	return b.add(name, Input, Vector(t))
}

func (b *SignatureBuilder) SingleOutput(name string, t *ctype.Type) *SignatureBuilder {
	return b.add(name, Output, Single(t))
}

func (b *SignatureBuilder) VectorOutput(name string, t *ctype.Type) *SignatureBuilder {
	return b.add(name, Output, Vector(t))
}

func (b *SignatureBuilder) SingleMutable(name string, t *ctype.Type) *SignatureBuilder {
	return b.add(name, Mutable, Single(t))
}

func (b *SignatureBuilder) VectorMutable(name string, t *ctype.Type) *SignatureBuilder {
	return b.add(name, Mutable, Vector(t))
}

// Param appends a parameter of an arbitrary type.
func (b *SignatureBuilder) Param(name string, pt ParamType) *SignatureBuilder {
	return b.add(name, pt.iface, pt.data)
}

// DependsOnContext marks the function as reading its Context. Such
// functions are never constant-folded or merged.
func (b *SignatureBuilder) DependsOnContext() *SignatureBuilder {
	b.sig.DependsOnContext = true
	return b
}

// Build returns the finished signature.
func (b *SignatureBuilder) Build() *Signature {
	sig := b.sig
	sig.Params = append([]Param(nil), b.sig.Params...)
	return &sig
}
