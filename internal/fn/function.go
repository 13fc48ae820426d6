package fn

import (
	"hash/maphash"
	"reflect"

	"github.com/roach88/mfnet/internal/mask"
)

// Function is a batched computation with a fixed signature.
//
// Call must only write masked indices of output and mutable parameters.
// Output slots are uninitialized on entry; mutable slots hold live values.
type Function interface {
	Signature() *Signature
	Call(m mask.IndexMask, params *Params, ctx *Context)
}

// ExecutionHints guide how CallAuto splits work.
type ExecutionHints struct {
	// MinGrainSize is the smallest number of indices worth a separate task.
	MinGrainSize int
	// UniformExecutionTime means every index costs about the same.
	UniformExecutionTime bool
	// AllocatesArray means Call allocates temporaries sized by the highest
	// masked index, so chunks far from zero benefit from re-indexing.
	AllocatesArray bool
}

// DefaultExecutionHints is used for functions that do not implement Hinter.
var DefaultExecutionHints = ExecutionHints{
	MinGrainSize:         10000,
	UniformExecutionTime: true,
}

// Hinter is implemented by functions that provide their own hints.
type Hinter interface {
	ExecutionHints() ExecutionHints
}

// Hasher is implemented by functions with a structural hash. Functions
// without it hash by identity.
type Hasher interface {
	Hash() uint64
}

// Equaler is implemented by functions with structural equality.
type Equaler interface {
	Equal(other Function) bool
}

// HintsOf returns f's execution hints.
func HintsOf(f Function) ExecutionHints {
	if h, ok := f.(Hinter); ok {
		hints := h.ExecutionHints()
		if hints.MinGrainSize < 1 {
			hints.MinGrainSize = 1
		}
		return hints
	}
	return DefaultExecutionHints
}

var identitySeed = maphash.MakeSeed()

// HashOf returns the structural hash of f if it has one, else a hash of its
// identity.
func HashOf(f Function) uint64 {
	if h, ok := f.(Hasher); ok {
		return h.Hash()
	}
	v := reflect.ValueOf(f)
	if v.Kind() == reflect.Pointer {
		return maphash.Comparable(identitySeed, v.Pointer())
	}
	return maphash.String(identitySeed, f.Signature().Name)
}

// Equal reports whether a and b compute the same thing.
func Equal(a, b Function) bool {
	if sameIdentity(a, b) {
		return true
	}
	if e, ok := a.(Equaler); ok {
		return e.Equal(b)
	}
	return false
}

func sameIdentity(a, b Function) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// Context carries named values for functions whose signature depends on
// context. A nil *Context is valid and empty.
type Context struct {
	values map[string]any
}

// NewContext returns a context holding a copy of values.
func NewContext(values map[string]any) *Context {
	c := &Context{values: make(map[string]any, len(values))}
	for k, v := range values {
		c.values[k] = v
	}
	return c
}

// Value returns the value stored under key.
func (c *Context) Value(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.values[key]
	return v, ok
}
